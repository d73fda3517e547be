package idex

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/idexbot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// Subscription channel names.
const (
	channelL2OrderBook = "l2orderbook"
	channelTokenPrice  = "tokenprice"
)

// L2DiffHandler is called for every incremental order book update.
type L2DiffHandler func(market string, diff *domain.L2OrderBook)

// TokenPriceHandler is called for every token price update.
type TokenPriceHandler func(price domain.TokenPrice, ts time.Time)

// ConnectHandler is called after the connection is established, including
// after every successful reconnect.
type ConnectHandler func()

// DisconnectHandler is called when the connection drops, before any
// reconnection attempt. Subscribers use it to invalidate state built from
// the stream.
type DisconnectHandler func()

// ErrorHandler is called for error frames and undecodable payloads.
type ErrorHandler func(err error)

// WSClient is a WebSocket client for the exchange's real-time data feed. It
// manages the connection lifecycle, subscriptions, and dispatches decoded
// messages to registered handlers. All wire deserialization happens here;
// handlers only ever see domain types.
type WSClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	// Subscriptions to restore on reconnect, keyed by channel.
	subscriptions map[string][]string

	handlerMu          sync.RWMutex
	l2Handlers         []L2DiffHandler
	priceHandlers      []TokenPriceHandler
	connectHandlers    []ConnectHandler
	disconnectHandlers []DisconnectHandler
	errorHandlers      []ErrorHandler

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewWSClient creates a WebSocket client for the given endpoint, e.g.
// "wss://websocket-matic.idex.io/v1".
func NewWSClient(wsURL string) *WSClient {
	return &WSClient{
		wsURL:         wsURL,
		subscriptions: make(map[string][]string),
		done:          make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read and ping
// loops. Previously held subscriptions are restored.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()

	if w.closed {
		w.mu.Unlock()
		return fmt.Errorf("idex/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("idex/ws: connect: %w", err)
	}

	w.conn = conn

	// Set up pong handler for keep-alive.
	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop(conn)
	go w.pingLoop(conn)

	for channel, markets := range w.subscriptions {
		if len(markets) == 0 {
			continue
		}
		cmd := WSCommand{Method: "subscribe", Subscriptions: []string{channel}, Markets: markets}
		if err := w.sendCommand(cmd); err != nil {
			w.mu.Unlock()
			return fmt.Errorf("idex/ws: restore subscription: %w", err)
		}
	}
	w.mu.Unlock()

	w.emitConnect()
	return nil
}

// SubscribeL2 subscribes to the l2orderbook channel for the given markets.
func (w *WSClient) SubscribeL2(ctx context.Context, markets []string) error {
	return w.subscribe(channelL2OrderBook, markets)
}

// UnsubscribeL2 unsubscribes the given markets from the l2orderbook channel.
func (w *WSClient) UnsubscribeL2(ctx context.Context, markets []string) error {
	return w.unsubscribe(channelL2OrderBook, markets)
}

// SubscribeTokenPrice subscribes to the tokenprice channel for the given
// markets.
func (w *WSClient) SubscribeTokenPrice(ctx context.Context, markets []string) error {
	return w.subscribe(channelTokenPrice, markets)
}

func (w *WSClient) subscribe(channel string, markets []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("idex/ws: not connected")
	}

	cmd := WSCommand{Method: "subscribe", Subscriptions: []string{channel}, Markets: markets}
	if err := w.sendCommand(cmd); err != nil {
		return fmt.Errorf("idex/ws: subscribe to %s: %w", channel, err)
	}

	// Track for reconnection, skipping markets already held.
	held := make(map[string]struct{}, len(w.subscriptions[channel]))
	for _, m := range w.subscriptions[channel] {
		held[m] = struct{}{}
	}
	for _, m := range markets {
		if _, ok := held[m]; !ok {
			w.subscriptions[channel] = append(w.subscriptions[channel], m)
		}
	}

	return nil
}

func (w *WSClient) unsubscribe(channel string, markets []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("idex/ws: not connected")
	}

	cmd := WSCommand{Method: "unsubscribe", Subscriptions: []string{channel}, Markets: markets}
	if err := w.sendCommand(cmd); err != nil {
		return fmt.Errorf("idex/ws: unsubscribe from %s: %w", channel, err)
	}

	removed := make(map[string]struct{}, len(markets))
	for _, m := range markets {
		removed[m] = struct{}{}
	}
	remaining := w.subscriptions[channel][:0]
	for _, m := range w.subscriptions[channel] {
		if _, ok := removed[m]; !ok {
			remaining = append(remaining, m)
		}
	}
	w.subscriptions[channel] = remaining

	return nil
}

// Close shuts down the WebSocket connection and stops the read loop.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// OnL2Diff registers a handler for incremental order book updates.
func (w *WSClient) OnL2Diff(handler L2DiffHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.l2Handlers = append(w.l2Handlers, handler)
}

// OnTokenPrice registers a handler for token price updates.
func (w *WSClient) OnTokenPrice(handler TokenPriceHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.priceHandlers = append(w.priceHandlers, handler)
}

// OnConnect registers a handler called after every successful connection,
// including reconnects.
func (w *WSClient) OnConnect(handler ConnectHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.connectHandlers = append(w.connectHandlers, handler)
}

// OnDisconnect registers a handler called when the connection drops.
func (w *WSClient) OnDisconnect(handler DisconnectHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.disconnectHandlers = append(w.disconnectHandlers, handler)
}

// OnError registers a handler for stream errors.
func (w *WSClient) OnError(handler ErrorHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.errorHandlers = append(w.errorHandlers, handler)
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// sendCommand sends a JSON command to the WebSocket. Caller must hold w.mu.
func (w *WSClient) sendCommand(cmd WSCommand) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop continuously reads messages from the WebSocket and dispatches
// them to the registered handlers. On disconnect it notifies handlers and
// attempts to reconnect with exponential backoff.
// readLoop owns exactly one connection: the one it was started for. It must
// never touch w.conn, which a successful reconnect repoints at a fresh
// connection served by its own loops.
func (w *WSClient) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}

			w.emitDisconnect()
			w.reconnect()
			return // the new connection runs its own loops
		}

		w.handleMessage(message)
	}
}

// pingLoop sends periodic ping messages to keep its connection alive. Like
// readLoop it is bound to a single connection, so a reconnect never leaves
// two writers pinging the same socket.
func (w *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage decodes one frame and routes it by envelope type.
func (w *WSClient) handleMessage(raw []byte) {
	var envelope WSMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		w.emitError(fmt.Errorf("idex/ws: decode envelope: %w", err))
		return
	}

	switch envelope.Type {
	case channelL2OrderBook:
		var msg WSL2Message
		if err := json.Unmarshal(envelope.Data, &msg); err != nil {
			w.emitError(fmt.Errorf("idex/ws: decode l2orderbook: %w", err))
			return
		}
		diff, err := msg.ToDomainDiff()
		if err != nil {
			w.emitError(err)
			return
		}

		w.handlerMu.RLock()
		handlers := w.l2Handlers
		w.handlerMu.RUnlock()
		for _, h := range handlers {
			h(msg.Market, diff)
		}

	case channelTokenPrice:
		var msg WSTokenPriceMessage
		if err := json.Unmarshal(envelope.Data, &msg); err != nil {
			w.emitError(fmt.Errorf("idex/ws: decode tokenprice: %w", err))
			return
		}
		price, ts, err := msg.ToDomainTokenPrice()
		if err != nil {
			w.emitError(err)
			return
		}

		w.handlerMu.RLock()
		handlers := w.priceHandlers
		w.handlerMu.RUnlock()
		for _, h := range handlers {
			h(price, ts)
		}

	case "error":
		var msg WSError
		if err := json.Unmarshal(envelope.Data, &msg); err != nil {
			w.emitError(fmt.Errorf("idex/ws: decode error frame: %w", err))
			return
		}
		w.emitError(fmt.Errorf("idex/ws: server error %s: %s", msg.Code, msg.Message))
	}
}

func (w *WSClient) emitConnect() {
	w.handlerMu.RLock()
	handlers := w.connectHandlers
	w.handlerMu.RUnlock()
	for _, h := range handlers {
		h()
	}
}

func (w *WSClient) emitDisconnect() {
	w.handlerMu.RLock()
	handlers := w.disconnectHandlers
	w.handlerMu.RUnlock()
	for _, h := range handlers {
		h()
	}
}

func (w *WSClient) emitError(err error) {
	w.handlerMu.RLock()
	handlers := w.errorHandlers
	w.handlerMu.RUnlock()
	for _, h := range handlers {
		h(err)
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. It blocks until successful or the client is closed.
func (w *WSClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
