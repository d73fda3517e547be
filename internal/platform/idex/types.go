package idex

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/idexbot/internal/domain"
	"github.com/alanyoungcy/idexbot/internal/pipmath"
)

// --------------------------------------------------------------------------
// Wire primitives
// --------------------------------------------------------------------------

// WireLevel is a single price level on the wire, encoded as the tuple
// [price, size, numOrders] with price and size as decimal strings.
type WireLevel struct {
	Price     string
	Size      string
	NumOrders int
}

func (l *WireLevel) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("idex: level tuple: %w", err)
	}
	if len(parts) != 3 {
		return fmt.Errorf("idex: level tuple has %d elements, want 3", len(parts))
	}
	if err := json.Unmarshal(parts[0], &l.Price); err != nil {
		return fmt.Errorf("idex: level price: %w", err)
	}
	if err := json.Unmarshal(parts[1], &l.Size); err != nil {
		return fmt.Errorf("idex: level size: %w", err)
	}
	if err := json.Unmarshal(parts[2], &l.NumOrders); err != nil {
		return fmt.Errorf("idex: level numOrders: %w", err)
	}
	return nil
}

func (l WireLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{l.Price, l.Size, l.NumOrders})
}

// toDomain converts a wire level into a pip-denominated price level.
func (l WireLevel) toDomain() (domain.PriceLevel, error) {
	price, err := pipmath.DecimalToPip(l.Price)
	if err != nil {
		return domain.PriceLevel{}, fmt.Errorf("idex: level price %q: %w", l.Price, err)
	}
	size, err := pipmath.DecimalToPip(l.Size)
	if err != nil {
		return domain.PriceLevel{}, fmt.Errorf("idex: level size %q: %w", l.Size, err)
	}
	return domain.PriceLevel{
		Price:     price,
		Size:      size,
		NumOrders: l.NumOrders,
		Kind:      domain.LevelKindLimit,
	}, nil
}

// APIPoolReserves carries the pool reserves as decimal strings.
type APIPoolReserves struct {
	BaseReserveQuantity  string `json:"baseReserveQuantity"`
	QuoteReserveQuantity string `json:"quoteReserveQuantity"`
}

func (p *APIPoolReserves) toDomain() (*domain.PoolReserves, error) {
	base, err := pipmath.DecimalToPip(p.BaseReserveQuantity)
	if err != nil {
		return nil, fmt.Errorf("idex: pool base reserve %q: %w", p.BaseReserveQuantity, err)
	}
	quote, err := pipmath.DecimalToPip(p.QuoteReserveQuantity)
	if err != nil {
		return nil, fmt.Errorf("idex: pool quote reserve %q: %w", p.QuoteReserveQuantity, err)
	}
	return &domain.PoolReserves{
		BaseReserveQuantity:  base,
		QuoteReserveQuantity: quote,
	}, nil
}

// --------------------------------------------------------------------------
// REST DTOs
// --------------------------------------------------------------------------

// APIOrderBook is the REST level-2 snapshot response.
type APIOrderBook struct {
	Sequence uint64           `json:"sequence"`
	Bids     []WireLevel      `json:"bids"`
	Asks     []WireLevel      `json:"asks"`
	Pool     *APIPoolReserves `json:"pool,omitempty"`
}

// ToDomainL2 converts a snapshot into a pip-denominated order book.
func (b *APIOrderBook) ToDomainL2() (*domain.L2OrderBook, error) {
	book := &domain.L2OrderBook{Sequence: b.Sequence}

	for _, wire := range b.Bids {
		level, err := wire.toDomain()
		if err != nil {
			return nil, err
		}
		book.Bids = append(book.Bids, level)
	}
	for _, wire := range b.Asks {
		level, err := wire.toDomain()
		if err != nil {
			return nil, err
		}
		book.Asks = append(book.Asks, level)
	}

	if b.Pool != nil {
		pool, err := b.Pool.toDomain()
		if err != nil {
			return nil, err
		}
		book.Pool = pool
	}

	return book, nil
}

// APIExchangeInfo is the subset of the exchange info response relevant to
// hybrid book composition and swap quoting.
type APIExchangeInfo struct {
	TakerIdexFeeRate              string `json:"takerIdexFeeRate"`
	TakerLiquidityProviderFeeRate string `json:"takerLiquidityProviderFeeRate"`
	TakerTradeMinimum             string `json:"takerTradeMinimum"`
}

// ToDomainFeeRates converts the exchange fee info into pip-denominated rates.
func (e *APIExchangeInfo) ToDomainFeeRates() (domain.FeeRates, error) {
	idexFee, err := pipmath.DecimalToPip(e.TakerIdexFeeRate)
	if err != nil {
		return domain.FeeRates{}, fmt.Errorf("idex: taker fee rate %q: %w", e.TakerIdexFeeRate, err)
	}
	poolFee, err := pipmath.DecimalToPip(e.TakerLiquidityProviderFeeRate)
	if err != nil {
		return domain.FeeRates{}, fmt.Errorf("idex: pool fee rate %q: %w", e.TakerLiquidityProviderFeeRate, err)
	}
	minimum, err := pipmath.DecimalToPip(e.TakerTradeMinimum)
	if err != nil {
		return domain.FeeRates{}, fmt.Errorf("idex: taker minimum %q: %w", e.TakerTradeMinimum, err)
	}
	return domain.FeeRates{
		IdexFeeRate:               idexFee,
		PoolFeeRate:               poolFee,
		TakerMinimumInNativeAsset: minimum,
	}, nil
}

// APIAsset is one entry of the asset listing, carrying the token's price in
// the exchange's native asset. Price is null for unpriced assets.
type APIAsset struct {
	Symbol string  `json:"symbol"`
	Price  *string `json:"maticPrice"`
}

// ToDomainTokenPrice converts an asset entry. Unpriced assets map to a nil
// price rather than zero so callers can tell the two apart.
func (a *APIAsset) ToDomainTokenPrice() (domain.TokenPrice, error) {
	tp := domain.TokenPrice{Token: a.Symbol}
	if a.Price == nil {
		return tp, nil
	}
	price, err := pipmath.DecimalToPip(*a.Price)
	if err != nil {
		return domain.TokenPrice{}, fmt.Errorf("idex: asset %s price %q: %w", a.Symbol, *a.Price, err)
	}
	tp.Price = price
	return tp, nil
}

// APIOrderResult is the response from placing or cancelling an order.
type APIOrderResult struct {
	OrderID  string `json:"orderId"`
	Market   string `json:"market"`
	Status   string `json:"status"`
	ErrorMsg string `json:"errorMsg,omitempty"`
}

// ToDomainOrderResult converts an order placement response.
func (r *APIOrderResult) ToDomainOrderResult() domain.OrderResult {
	return domain.OrderResult{
		OrderID: r.OrderID,
		Status:  r.Status,
		Success: r.ErrorMsg == "",
		Message: r.ErrorMsg,
	}
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSMessage is the outer envelope of every WebSocket frame. Type selects
// which of the payload fields is populated.
type WSMessage struct {
	Type string          `json:"type"` // "l2orderbook", "tokenprice", "subscriptions", "error"
	Data json.RawMessage `json:"data"`
}

// WSL2Message is an incremental level-2 order book update.
type WSL2Message struct {
	Market   string           `json:"market"`
	Time     int64            `json:"time"` // milliseconds since epoch
	Sequence uint64           `json:"sequence"`
	Bids     []WireLevel      `json:"bids"`
	Asks     []WireLevel      `json:"asks"`
	Pool     *APIPoolReserves `json:"pool,omitempty"`
}

// ToDomainDiff converts a stream update into a pip-denominated diff book.
// Zero-size levels survive the conversion; they mark level removals.
func (m *WSL2Message) ToDomainDiff() (*domain.L2OrderBook, error) {
	book := &domain.L2OrderBook{Sequence: m.Sequence}

	for _, wire := range m.Bids {
		level, err := wire.toDomain()
		if err != nil {
			return nil, err
		}
		book.Bids = append(book.Bids, level)
	}
	for _, wire := range m.Asks {
		level, err := wire.toDomain()
		if err != nil {
			return nil, err
		}
		book.Asks = append(book.Asks, level)
	}

	if m.Pool != nil {
		pool, err := m.Pool.toDomain()
		if err != nil {
			return nil, err
		}
		book.Pool = pool
	}

	return book, nil
}

// WSTokenPriceMessage carries the latest native-asset price for a token.
type WSTokenPriceMessage struct {
	Token string  `json:"token"`
	Time  int64   `json:"time"`
	Price *string `json:"price"` // null when the token has no price
}

// ToDomainTokenPrice converts a token price update.
func (m *WSTokenPriceMessage) ToDomainTokenPrice() (domain.TokenPrice, time.Time, error) {
	ts := time.UnixMilli(m.Time)
	tp := domain.TokenPrice{Token: m.Token}
	if m.Price == nil {
		return tp, ts, nil
	}
	price, err := pipmath.DecimalToPip(*m.Price)
	if err != nil {
		return domain.TokenPrice{}, ts, fmt.Errorf("idex: token %s price %q: %w", m.Token, *m.Price, err)
	}
	tp.Price = price
	return tp, ts, nil
}

// WSError is the payload of an "error" frame.
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WSCommand is the JSON payload sent to subscribe or unsubscribe.
type WSCommand struct {
	Method        string   `json:"method"` // "subscribe" or "unsubscribe"
	Subscriptions []string `json:"subscriptions,omitempty"`
	Markets       []string `json:"markets,omitempty"`
}

// --------------------------------------------------------------------------
// Outbound order payloads
// --------------------------------------------------------------------------

// apiOrderRequest is the authenticated order placement payload.
type apiOrderRequest struct {
	Parameters apiOrderParameters `json:"parameters"`
	Signature  string             `json:"signature"`
}

type apiOrderParameters struct {
	Nonce    string `json:"nonce"`
	Wallet   string `json:"wallet"`
	Market   string `json:"market"`
	Type     string `json:"type"`
	Side     string `json:"side"`
	Quantity string `json:"quantity"`
	Price    string `json:"price,omitempty"`
}

// apiCancelRequest is the authenticated order cancellation payload.
type apiCancelRequest struct {
	Parameters apiCancelParameters `json:"parameters"`
	Signature  string              `json:"signature"`
}

type apiCancelParameters struct {
	Nonce   string `json:"nonce"`
	Wallet  string `json:"wallet"`
	OrderID string `json:"orderId"`
}

// sideByte and typeBytes map enum strings onto the single-byte encodings
// covered by the wallet signature.
func sideByte(side domain.OrderSide) byte {
	if side == domain.OrderSideSell {
		return 1
	}
	return 0
}

func typeByte(orderType domain.OrderType) byte {
	if orderType == domain.OrderTypeLimit {
		return 1
	}
	return 0
}
