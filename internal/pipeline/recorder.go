// Package pipeline contains the background workers that persist and archive
// recorded market data.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/alanyoungcy/idexbot/internal/domain"
	"github.com/alanyoungcy/idexbot/internal/pipmath"
)

// L1Source provides the current top-of-book view for a market. The orderbook
// Client satisfies this.
type L1Source interface {
	GetOrderBookL1(market string) (domain.L1OrderBook, error)
}

// RecorderConfig holds the batching parameters for the Recorder.
type RecorderConfig struct {
	// FlushInterval is the maximum time a buffered update waits before being
	// written to the store.
	FlushInterval time.Duration

	// FlushBatchSize triggers an early flush once this many updates are
	// buffered.
	FlushBatchSize int
}

func (c RecorderConfig) withDefaults() RecorderConfig {
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	if c.FlushBatchSize <= 0 {
		c.FlushBatchSize = 100
	}
	return c
}

// Recorder captures top-of-book changes and batch-inserts them into the
// update store. RecordL1 is cheap and non-blocking so it is safe to call
// directly from the book client's change handler; the actual database write
// happens on the Run goroutine.
type Recorder struct {
	source L1Source
	store  domain.L1UpdateStore
	cfg    RecorderConfig
	logger *slog.Logger

	mu      sync.Mutex
	buffer  []domain.L1Update
	flushCh chan struct{}
}

// NewRecorder creates a new Recorder.
func NewRecorder(source L1Source, store domain.L1UpdateStore, cfg RecorderConfig, logger *slog.Logger) *Recorder {
	return &Recorder{
		source:  source,
		store:   store,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		flushCh: make(chan struct{}, 1),
	}
}

// RecordL1 snapshots the market's current top of book and buffers it for the
// next flush. Errors fetching the book (market not yet synchronized) are
// logged and dropped rather than propagated to the caller.
func (r *Recorder) RecordL1(market string) {
	l1, err := r.source.GetOrderBookL1(market)
	if err != nil {
		r.logger.Warn("recorder skipped update",
			slog.String("market", market),
			slog.String("error", err.Error()),
		)
		return
	}

	update := domain.L1Update{
		Market:    market,
		Sequence:  l1.Sequence,
		BidPrice:  pipmath.PipToDecimal(l1.BestBid.Price),
		BidSize:   pipmath.PipToDecimal(l1.BestBid.Size),
		AskPrice:  pipmath.PipToDecimal(l1.BestAsk.Price),
		AskSize:   pipmath.PipToDecimal(l1.BestAsk.Size),
		Timestamp: time.Now().UTC(),
	}
	if l1.Pool != nil {
		update.BaseReserve = pipmath.PipToDecimal(l1.Pool.BaseReserveQuantity)
		update.QuoteReserve = pipmath.PipToDecimal(l1.Pool.QuoteReserveQuantity)
	} else {
		zero := pipmath.PipToDecimal(big.NewInt(0))
		update.BaseReserve = zero
		update.QuoteReserve = zero
	}

	r.mu.Lock()
	r.buffer = append(r.buffer, update)
	full := len(r.buffer) >= r.cfg.FlushBatchSize
	r.mu.Unlock()

	if full {
		select {
		case r.flushCh <- struct{}{}:
		default:
		}
	}
}

// Run flushes the buffer on the configured interval (or earlier when the
// batch size is reached) until the context is cancelled. A final flush runs
// on shutdown so no buffered updates are lost.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Shutdown flush uses a fresh context; ctx is already done.
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := r.Flush(flushCtx)
			cancel()
			if err != nil {
				r.logger.Error("recorder shutdown flush failed", slog.String("error", err.Error()))
			}
			return ctx.Err()
		case <-ticker.C:
			if err := r.Flush(ctx); err != nil {
				r.logger.Error("recorder flush failed", slog.String("error", err.Error()))
			}
		case <-r.flushCh:
			if err := r.Flush(ctx); err != nil {
				r.logger.Error("recorder flush failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Flush writes all buffered updates to the store. On insert failure the
// batch is re-queued ahead of any updates recorded in the meantime.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	batch := r.buffer
	r.buffer = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := r.store.InsertBatch(ctx, batch); err != nil {
		r.mu.Lock()
		r.buffer = append(batch, r.buffer...)
		r.mu.Unlock()
		return fmt.Errorf("pipeline: flush %d updates: %w", len(batch), err)
	}

	r.logger.Debug("recorder flushed updates", slog.Int("count", len(batch)))
	return nil
}

// Buffered returns the number of updates waiting for the next flush.
func (r *Recorder) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffer)
}
