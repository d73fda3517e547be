package orderbook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/alanyoungcy/idexbot/internal/domain"
)

const (
	// DefaultSnapshotLimit is the REST depth requested when synchronizing.
	DefaultSnapshotLimit = 1000

	// defaultRetryBaseDelay seeds the exponential backoff used while a
	// snapshot fetch keeps failing.
	defaultRetryBaseDelay = time.Second
)

// SnapshotFetcher loads a full L2 snapshot over REST.
type SnapshotFetcher interface {
	FetchOrderBookL2(ctx context.Context, market string, limit int, includePool bool) (*domain.L2OrderBook, error)
}

// Subscriber manages the l2orderbook stream subscriptions for the client.
type Subscriber interface {
	SubscribeL2(ctx context.Context, markets []string) error
	UnsubscribeL2(ctx context.Context, markets []string) error
}

// ClientConfig holds the hybrid composition parameters for a Client.
type ClientConfig struct {
	// NumPoolLevels is how many synthetic levels to generate per side.
	NumPoolLevels int

	// PoolSlippageIncrement is the price distance between synthetic levels,
	// in pips.
	PoolSlippageIncrement *big.Int

	// SnapshotLimit is the depth requested for REST snapshots.
	SnapshotLimit int

	// RetryBaseDelay seeds the resynchronization backoff.
	RetryBaseDelay time.Duration
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.NumPoolLevels <= 0 {
		c.NumPoolLevels = 10
	}
	if c.PoolSlippageIncrement == nil || c.PoolSlippageIncrement.Sign() <= 0 {
		c.PoolSlippageIncrement = big.NewInt(100_000) // 0.001 in pips
	}
	if c.SnapshotLimit <= 0 {
		c.SnapshotLimit = DefaultSnapshotLimit
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = defaultRetryBaseDelay
	}
	return c
}

// marketBook is the per-market synchronization state. A nil book with
// buffered diffs means a snapshot load is pending.
type marketBook struct {
	book     *domain.L2OrderBook
	buffered []*domain.L2OrderBook
	loading  bool
}

// Client owns the live per-market book state: it applies incoming diffs,
// resynchronizes over REST when a sequence gap is detected, and notifies
// registered handlers of top-of-book and depth changes. All book mutation is
// serialized behind a single mutex; ladders are replaced wholesale on update
// so concurrent readers never observe a partially merged state.
type Client struct {
	fetcher    SnapshotFetcher
	subscriber Subscriber
	cfg        ClientConfig
	logger     *slog.Logger

	// takerMinimum converts the configured taker minimum into quote terms
	// for a market. Optional; nil disables minimum-taker levels.
	takerMinimum func(market string) *big.Int

	mu         sync.Mutex
	generation uint64
	started    bool
	books      map[string]*marketBook
	feeRates   domain.FeeRates

	handlerMu          sync.RWMutex
	readyHandlers      []func(market string)
	l1Handlers         []func(market string)
	l2Handlers         []func(market string)
	connectHandlers    []func()
	disconnectHandlers []func()
	errorHandlers      []func(err error)
}

// NewClient creates a real-time order book client. subscriber may be nil when
// the caller manages stream subscriptions itself.
func NewClient(fetcher SnapshotFetcher, subscriber Subscriber, cfg ClientConfig, logger *slog.Logger) *Client {
	return &Client{
		fetcher:    fetcher,
		subscriber: subscriber,
		cfg:        cfg.withDefaults(),
		logger:     logger.With(slog.String("component", "orderbook_client")),
		books:      make(map[string]*marketBook),
		feeRates:   domain.ZeroFeeRates(),
	}
}

// OnReady registers a handler called when a market's book first synchronizes.
func (c *Client) OnReady(h func(market string)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.readyHandlers = append(c.readyHandlers, h)
}

// OnL1 registers a handler called when a market's top of book changes.
func (c *Client) OnL1(h func(market string)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.l1Handlers = append(c.l1Handlers, h)
}

// OnL2 registers a handler called after every applied diff.
func (c *Client) OnL2(h func(market string)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.l2Handlers = append(c.l2Handlers, h)
}

// OnConnected registers a handler called when the underlying stream comes
// (back) up.
func (c *Client) OnConnected(h func()) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.connectHandlers = append(c.connectHandlers, h)
}

// OnDisconnected registers a handler called when the underlying stream drops.
func (c *Client) OnDisconnected(h func()) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.disconnectHandlers = append(c.disconnectHandlers, h)
}

// OnError registers a handler for recoverable errors (sequence gaps, failed
// snapshot fetches). The client recovers autonomously; handlers are purely
// for observability.
func (c *Client) OnError(h func(err error)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.errorHandlers = append(c.errorHandlers, h)
}

// SetTakerMinimumProvider installs the market-specific conversion of the
// taker minimum into quote terms, enabling minimum-taker synthetic levels.
func (c *Client) SetTakerMinimumProvider(f func(market string) *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.takerMinimum = f
}

// SetFeeRates replaces the fee configuration wholesale.
func (c *Client) SetFeeRates(rates domain.FeeRates) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feeRates = rates
}

// SetCustomFeeRates overrides individual fee parameters; nil fields keep the
// current value.
func (c *Client) SetCustomFeeRates(idexFeeRate, poolFeeRate, takerMinimumInNativeAsset *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idexFeeRate != nil {
		c.feeRates.IdexFeeRate = idexFeeRate
	}
	if poolFeeRate != nil {
		c.feeRates.PoolFeeRate = poolFeeRate
	}
	if takerMinimumInNativeAsset != nil {
		c.feeRates.TakerMinimumInNativeAsset = takerMinimumInNativeAsset
	}
}

// FeeRates returns the current fee configuration.
func (c *Client) FeeRates() domain.FeeRates {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.feeRates
}

// Start begins accepting diffs for the given markets and subscribes to their
// l2orderbook streams. Books load lazily when the first diff arrives.
func (c *Client) Start(ctx context.Context, markets []string) error {
	c.mu.Lock()
	c.started = true
	for _, market := range markets {
		if _, ok := c.books[market]; !ok {
			c.books[market] = &marketBook{}
		}
	}
	c.mu.Unlock()

	if c.subscriber != nil {
		if err := c.subscriber.SubscribeL2(ctx, markets); err != nil {
			return fmt.Errorf("orderbook: subscribe: %w", err)
		}
	}
	return nil
}

// Stop unsubscribes, atomically clears all book state, and stops accepting
// diffs. Any in-flight snapshot fetch discards its result.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	markets := make([]string, 0, len(c.books))
	for market := range c.books {
		markets = append(markets, market)
	}
	c.books = make(map[string]*marketBook)
	c.generation++
	c.started = false
	c.mu.Unlock()

	if c.subscriber != nil && len(markets) > 0 {
		if err := c.subscriber.UnsubscribeL2(ctx, markets); err != nil {
			return fmt.Errorf("orderbook: unsubscribe: %w", err)
		}
	}
	return nil
}

// HandleConnected notifies consumers that the underlying stream is up.
func (c *Client) HandleConnected() {
	c.handlerMu.RLock()
	handlers := c.connectHandlers
	c.handlerMu.RUnlock()
	for _, h := range handlers {
		h()
	}
}

// HandleDisconnected drops all synchronized books; they reload when diffs
// resume after reconnection.
func (c *Client) HandleDisconnected() {
	c.mu.Lock()
	for _, mb := range c.books {
		mb.book = nil
		mb.buffered = nil
		mb.loading = false
	}
	c.generation++
	c.mu.Unlock()

	c.handlerMu.RLock()
	handlers := c.disconnectHandlers
	c.handlerMu.RUnlock()
	for _, h := range handlers {
		h()
	}
}

// HandleL2Diff ingests one incremental diff for a market. Out-of-sequence
// diffs trigger a full resynchronization; diffs for unknown markets while
// stopped are dropped.
func (c *Client) HandleL2Diff(ctx context.Context, market string, diff *domain.L2OrderBook) {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}

	mb, ok := c.books[market]
	if !ok {
		mb = &marketBook{}
		c.books[market] = mb
	}

	if mb.book == nil {
		mb.buffered = append(mb.buffered, diff)
		c.startLoadLocked(ctx, market, mb)
		c.mu.Unlock()
		return
	}

	switch {
	case diff.Sequence == mb.book.Sequence+1:
		before := c.hybridL1Locked(market, mb.book)
		UpdateL2Levels(mb.book, diff)
		after := c.hybridL1Locked(market, mb.book)
		changed := !l1Equal(before, after)
		c.mu.Unlock()
		if changed {
			c.emitL1(market)
		}
		c.emitL2(market)

	case diff.Sequence == mb.book.Sequence && len(diff.Bids) == 0 && len(diff.Asks) == 0 && diff.Pool != nil:
		// Pool-only update: reserves changed without a book sequence bump.
		changed := !mb.book.Pool.Equal(diff.Pool)
		mb.book.Pool = diff.Pool
		c.mu.Unlock()
		if changed {
			c.emitL1(market)
			c.emitL2(market)
		}

	default:
		// Sequence gap: drop the book untouched and resynchronize.
		gap := fmt.Errorf("orderbook: %s diff sequence %d against book sequence %d: %w",
			market, diff.Sequence, mb.book.Sequence, domain.ErrSequenceGap)
		mb.book = nil
		mb.buffered = append(mb.buffered[:0], diff)
		c.startLoadLocked(ctx, market, mb)
		c.mu.Unlock()
		c.emitError(gap)
	}
}

// startLoadLocked triggers a snapshot load for a market unless one is already
// in flight. Callers must hold c.mu.
func (c *Client) startLoadLocked(ctx context.Context, market string, mb *marketBook) {
	if mb.loading {
		return
	}
	mb.loading = true
	generation := c.generation
	go c.load(ctx, market, generation)
}

// load fetches snapshots with exponential backoff until one is recent enough
// to bridge to the buffered diff stream, then installs it and replays the
// buffer. A stale generation (client stopped or reset mid-flight) discards
// the result.
func (c *Client) load(ctx context.Context, market string, generation uint64) {
	delay := c.cfg.RetryBaseDelay
	for {
		snapshot, err := c.fetcher.FetchOrderBookL2(ctx, market, c.cfg.SnapshotLimit, true)
		if err != nil {
			c.emitError(fmt.Errorf("orderbook: snapshot %s: %w", market, err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			continue
		}

		c.mu.Lock()
		if c.generation != generation {
			c.mu.Unlock()
			return
		}
		mb, ok := c.books[market]
		if !ok {
			c.mu.Unlock()
			return
		}
		if len(mb.buffered) > 0 && snapshot.Sequence+1 < mb.buffered[0].Sequence {
			// Snapshot predates the buffered stream; try again.
			c.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			continue
		}

		mb.book = snapshot
		holeAt := -1
		for i, diff := range mb.buffered {
			if diff.Sequence <= mb.book.Sequence {
				continue
			}
			if diff.Sequence > mb.book.Sequence+1 {
				// The stream dropped a message while the snapshot was in
				// flight; this snapshot cannot bridge past the hole.
				holeAt = i
				break
			}
			UpdateL2Levels(mb.book, diff)
		}
		if holeAt >= 0 {
			mb.book = nil
			mb.buffered = mb.buffered[holeAt:]
			c.mu.Unlock()
			c.emitError(fmt.Errorf("orderbook: %s buffered diff stream not contiguous: %w",
				market, domain.ErrSequenceGap))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			continue
		}
		mb.buffered = nil
		mb.loading = false
		c.mu.Unlock()

		c.emitReady(market)
		c.emitL1(market)
		c.emitL2(market)
		return
	}
}

// GetOrderBookL1 returns the hybrid top of book for a market, computed on
// demand from the current limit book, pool reserves, and fee configuration.
func (c *Client) GetOrderBookL1(market string) (domain.L1OrderBook, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mb, ok := c.books[market]
	if !ok || mb.book == nil {
		return domain.L1OrderBook{}, fmt.Errorf("orderbook: market %s not loaded: %w", market, domain.ErrNotFound)
	}
	return c.hybridL1Locked(market, mb.book), nil
}

// GetOrderBookL2 returns the hybrid depth for a market, limited to the given
// total number of levels split evenly (rounded up) between the two sides.
// The limit must be within [2, 1000].
func (c *Client) GetOrderBookL2(market string, limit int) (domain.L2OrderBook, error) {
	if limit < 2 || limit > 1000 {
		return domain.L2OrderBook{}, fmt.Errorf("orderbook: limit %d outside [2, 1000]: %w", limit, domain.ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	mb, ok := c.books[market]
	if !ok || mb.book == nil {
		return domain.L2OrderBook{}, fmt.Errorf("orderbook: market %s not loaded: %w", market, domain.ErrNotFound)
	}

	hybrid, err := c.composeLocked(market, mb.book)
	if err != nil {
		return domain.L2OrderBook{}, err
	}

	perSide := (limit + 1) / 2
	l2 := hybrid.L2
	if len(l2.Bids) > perSide {
		l2.Bids = l2.Bids[:perSide]
	}
	if len(l2.Asks) > perSide {
		l2.Asks = l2.Asks[:perSide]
	}
	return l2, nil
}

// composeLocked builds the hybrid view for a book under c.mu.
func (c *Client) composeLocked(market string, book *domain.L2OrderBook) (HybridBook, error) {
	var minimumInQuote *big.Int
	include := false
	if c.takerMinimum != nil && c.feeRates.TakerMinimumInNativeAsset != nil && c.feeRates.TakerMinimumInNativeAsset.Sign() > 0 {
		minimumInQuote = c.takerMinimum(market)
		include = minimumInQuote != nil && minimumInQuote.Sign() > 0
	}
	return ComposeHybridBook(book, c.cfg.NumPoolLevels, c.cfg.PoolSlippageIncrement,
		c.feeRates.IdexFeeRate, c.feeRates.PoolFeeRate, include, minimumInQuote)
}

// hybridL1Locked derives the hybrid L1 for change detection; composition
// failures degrade to the plain limit-book L1.
func (c *Client) hybridL1Locked(market string, book *domain.L2OrderBook) domain.L1OrderBook {
	hybrid, err := c.composeLocked(market, book)
	if err != nil {
		c.logger.Warn("hybrid composition failed, using limit book",
			slog.String("market", market),
			slog.String("error", err.Error()),
		)
		return L2ToL1(book)
	}
	return hybrid.L1
}

func levelEqual(a, b domain.PriceLevel) bool {
	return a.Price.Cmp(b.Price) == 0 && a.Size.Cmp(b.Size) == 0 && a.NumOrders == b.NumOrders
}

func l1Equal(a, b domain.L1OrderBook) bool {
	return levelEqual(a.BestBid, b.BestBid) && levelEqual(a.BestAsk, b.BestAsk) && a.Pool.Equal(b.Pool)
}

func (c *Client) emitReady(market string) {
	c.handlerMu.RLock()
	handlers := c.readyHandlers
	c.handlerMu.RUnlock()
	for _, h := range handlers {
		h(market)
	}
}

func (c *Client) emitL1(market string) {
	c.handlerMu.RLock()
	handlers := c.l1Handlers
	c.handlerMu.RUnlock()
	for _, h := range handlers {
		h(market)
	}
}

func (c *Client) emitL2(market string) {
	c.handlerMu.RLock()
	handlers := c.l2Handlers
	c.handlerMu.RUnlock()
	for _, h := range handlers {
		h(market)
	}
}

func (c *Client) emitError(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	c.logger.Warn("order book error", slog.String("error", err.Error()))
	c.handlerMu.RLock()
	handlers := c.errorHandlers
	c.handlerMu.RUnlock()
	for _, h := range handlers {
		h(err)
	}
}
