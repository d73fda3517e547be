package app

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/idexbot/internal/domain"
	"github.com/alanyoungcy/idexbot/internal/pipeline"
	"github.com/alanyoungcy/idexbot/internal/pipmath"
)

// startBookEngine connects the websocket stream, routes its events into the
// live book engine, seeds fee rates and token prices over REST, and starts
// tracking the configured markets. It is shared by every operating mode.
func (a *App) startBookEngine(ctx context.Context, deps *Dependencies) error {
	// Fee rates must be in place before the first hybrid composition.
	rates, err := deps.Exchange.FetchFeeRates(ctx)
	if err != nil {
		return err
	}
	deps.Books.SetFeeRates(rates)

	if err := a.seedTokenPrices(ctx, deps); err != nil {
		// Token prices only gate minimum-taker levels; a cold cache is not
		// fatal, the stream fills it in.
		a.logger.WarnContext(ctx, "token price seed failed", slog.String("error", err.Error()))
	}

	if a.cfg.OrderBook.IncludeMinimumTakerLevels {
		deps.Books.SetTakerMinimumProvider(a.takerMinimumProvider(deps))
	}

	deps.Stream.OnL2Diff(func(market string, diff *domain.L2OrderBook) {
		deps.Books.HandleL2Diff(ctx, market, diff)
	})
	deps.Stream.OnConnect(func() {
		deps.Books.HandleConnected()
	})
	deps.Stream.OnDisconnect(func() {
		deps.Books.HandleDisconnected()
	})
	deps.Stream.OnError(func(err error) {
		a.logger.WarnContext(ctx, "stream error", slog.String("error", err.Error()))
	})
	deps.Stream.OnTokenPrice(func(price domain.TokenPrice, ts time.Time) {
		if err := deps.PriceCache.SetPrice(ctx, price.Token, price.Price, ts); err != nil {
			a.logger.WarnContext(ctx, "price cache write failed",
				slog.String("token", price.Token),
				slog.String("error", err.Error()),
			)
		}
	})
	deps.Books.OnError(func(err error) {
		if errors.Is(err, domain.ErrSequenceGap) {
			a.logger.InfoContext(ctx, "sequence gap, resynchronizing")
			return
		}
		a.logger.WarnContext(ctx, "book engine error", slog.String("error", err.Error()))
	})

	if err := deps.Stream.Connect(ctx); err != nil {
		return err
	}
	if err := deps.Stream.SubscribeTokenPrice(ctx, a.cfg.OrderBook.Markets); err != nil {
		return err
	}
	return deps.Books.Start(ctx, a.cfg.OrderBook.Markets)
}

// seedTokenPrices primes the price cache from the REST assets endpoint so
// minimum-taker levels are available before the first stream update.
func (a *App) seedTokenPrices(ctx context.Context, deps *Dependencies) error {
	prices, err := deps.Exchange.FetchAssetPrices(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, p := range prices {
		if err := deps.PriceCache.SetPrice(ctx, p.Token, p.Price, now); err != nil {
			return err
		}
	}
	return nil
}

// takerMinimumProvider converts the exchange's native-asset taker minimum
// into quote terms for a market using the cached quote token price. It
// returns nil when the quote token has no known price, which suppresses the
// minimum-taker level for that market.
func (a *App) takerMinimumProvider(deps *Dependencies) func(market string) *big.Int {
	return func(market string) *big.Int {
		symbols := strings.Split(market, "-")
		if len(symbols) != 2 {
			return nil
		}
		minimum := deps.Books.FeeRates().TakerMinimumInNativeAsset
		if minimum == nil || minimum.Sign() == 0 {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		quotePrice, _, err := deps.PriceCache.GetPrice(ctx, symbols[1])
		if err != nil || quotePrice == nil || quotePrice.Sign() == 0 {
			return nil
		}
		return pipmath.DividePips(minimum, quotePrice)
	}
}

// shutdownBookEngine stops the book engine and the websocket stream with a
// fresh timeout, since the run context is already cancelled by the time it
// executes.
func (a *App) shutdownBookEngine(deps *Dependencies) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := deps.Books.Stop(ctx); err != nil {
		a.logger.Warn("book engine stop failed", slog.String("error", err.Error()))
	}
	if err := deps.Stream.Close(); err != nil {
		a.logger.Warn("stream close failed", slog.String("error", err.Error()))
	}
}

// MonitorMode tracks the configured markets and logs top-of-book changes.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode",
		slog.Any("markets", a.cfg.OrderBook.Markets),
	)

	if err := a.startBookEngine(ctx, deps); err != nil {
		return err
	}
	defer a.shutdownBookEngine(deps)

	deps.Books.OnL1(func(market string) {
		l1, err := deps.Books.GetOrderBookL1(market)
		if err != nil {
			return
		}
		a.logger.InfoContext(ctx, "top of book",
			slog.String("market", market),
			slog.Uint64("sequence", l1.Sequence),
			slog.String("bid", pipmath.PipToDecimal(l1.BestBid.Price)),
			slog.String("bid_size", pipmath.PipToDecimal(l1.BestBid.Size)),
			slog.String("ask", pipmath.PipToDecimal(l1.BestAsk.Price)),
			slog.String("ask_size", pipmath.PipToDecimal(l1.BestAsk.Size)),
		)
	})

	<-ctx.Done()
	return ctx.Err()
}

// RecordMode tracks the configured markets and persists every top-of-book
// change, with periodic archival of old rows to blob storage.
func (a *App) RecordMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting record mode",
		slog.Any("markets", a.cfg.OrderBook.Markets),
	)

	if err := a.startBookEngine(ctx, deps); err != nil {
		return err
	}
	defer a.shutdownBookEngine(deps)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})

	if !a.cfg.Recorder.Enabled {
		a.logger.WarnContext(ctx, "record mode with recorder disabled, nothing will be persisted")
	}

	if a.cfg.Recorder.Enabled {
		recorder := pipeline.NewRecorder(deps.Books, deps.UpdateStore, pipeline.RecorderConfig{
			FlushInterval:  a.cfg.Recorder.FlushInterval.Duration,
			FlushBatchSize: a.cfg.Recorder.FlushBatchSize,
		}, a.logger)

		deps.Books.OnL1(func(market string) {
			recorder.RecordL1(market)
		})

		g.Go(func() error {
			return recorder.Run(ctx)
		})

		archiver := pipeline.NewArchiver(
			deps.Archiver,
			deps.UpdateStore,
			a.cfg.Recorder.ArchiveRetentionDays,
			a.cfg.Recorder.ArchiveInterval.Duration,
			a.logger,
		)
		g.Go(func() error {
			return archiver.RunPeriodic(ctx)
		})
	}

	return g.Wait()
}

// TradeMode tracks the configured markets with trading credentials loaded,
// so orders can be placed and cancelled against the live book state.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode",
		slog.Any("markets", a.cfg.OrderBook.Markets),
		slog.String("wallet", deps.Signer.Address().Hex()),
	)

	if err := a.startBookEngine(ctx, deps); err != nil {
		return err
	}
	defer a.shutdownBookEngine(deps)

	<-ctx.Done()
	return ctx.Err()
}
