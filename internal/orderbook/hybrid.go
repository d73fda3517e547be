package orderbook

import (
	"math/big"

	"github.com/alanyoungcy/idexbot/internal/domain"
	"github.com/alanyoungcy/idexbot/internal/pipmath"
)

// HybridBook bundles the level-1 and level-2 views produced by a single
// composition pass, guaranteed consistent with each other.
type HybridBook struct {
	L1 domain.L1OrderBook
	L2 domain.L2OrderBook
}

// L2ToL1 derives the top-of-book view from a level-2 book. Empty sides yield
// the zero-level sentinel; the pool passes through unchanged.
func L2ToL1(book *domain.L2OrderBook) domain.L1OrderBook {
	l1 := domain.L1OrderBook{
		Sequence: book.Sequence,
		BestBid:  domain.ZeroLevel(),
		BestAsk:  domain.ZeroLevel(),
		Pool:     book.Pool,
	}
	if len(book.Bids) > 0 {
		l1.BestBid = book.Bids[0]
	}
	if len(book.Asks) > 0 {
		l1.BestAsk = book.Asks[0]
	}
	return l1
}

// mergeLadders interleaves two individually sorted ladders into one, keeping
// the side's price ordering. Limit levels sort before pool levels at equal
// prices so real liquidity is favored.
func mergeLadders(isAscending bool, limit, synthetic domain.Ladder) domain.Ladder {
	merged := make(domain.Ladder, 0, len(limit)+len(synthetic))
	li, si := 0, 0
	for li < len(limit) && si < len(synthetic) {
		cmp := limit[li].Price.Cmp(synthetic[si].Price)
		if !isAscending {
			cmp = -cmp
		}
		if cmp <= 0 {
			merged = append(merged, limit[li])
			li++
		} else {
			merged = append(merged, synthetic[si])
			si++
		}
	}
	merged = append(merged, limit[li:]...)
	merged = append(merged, synthetic[si:]...)
	return merged
}

// poolBaseAvailable is the cumulative gross base quantity the pool offers
// between its current price and the given boundary price, or zero when the
// boundary sits on the wrong side of the pool price.
func poolBaseAvailable(isAsk bool, pool *domain.PoolReserves, price, idexFeeRate, poolFeeRate *big.Int) *big.Int {
	poolPrice := pipmath.DividePips(pool.QuoteReserveQuantity, pool.BaseReserveQuantity)
	if isAsk {
		if price.Cmp(poolPrice) <= 0 {
			return big.NewInt(0)
		}
		quantities, err := CalculateBuyQuantitiesForTargetPrice(
			pool.BaseReserveQuantity, pool.QuoteReserveQuantity, price, idexFeeRate, poolFeeRate)
		if err != nil {
			return big.NewInt(0)
		}
		return quantities.GrossBase
	}
	if price.Cmp(poolPrice) >= 0 || price.Sign() <= 0 {
		return big.NewInt(0)
	}
	quantities, err := CalculateSellQuantitiesForTargetPrice(
		pool.BaseReserveQuantity, pool.QuoteReserveQuantity, price, idexFeeRate, poolFeeRate)
	if err != nil {
		return big.NewInt(0)
	}
	return quantities.GrossBase
}

// recalculateHybridLevelAmounts walks a merged ladder best to worst with a
// running tracker of pool liquidity already attributed to earlier levels.
// Each level absorbs the incremental pool quantity available between the
// previous boundary and its own price: pool levels are replaced by that
// increment (and dropped when it is zero), limit levels add it to their
// resting size. Total depth is conserved.
func recalculateHybridLevelAmounts(isAsk bool, levels domain.Ladder, pool *domain.PoolReserves, idexFeeRate, poolFeeRate *big.Int) domain.Ladder {
	result := make(domain.Ladder, 0, len(levels))
	attributed := big.NewInt(0)
	for _, level := range levels {
		cumulative := poolBaseAvailable(isAsk, pool, level.Price, idexFeeRate, poolFeeRate)
		increment := new(big.Int).Sub(cumulative, attributed)
		if increment.Sign() > 0 {
			attributed = cumulative
		} else {
			increment.SetInt64(0)
		}

		if level.Kind == domain.LevelKindPool {
			if increment.Sign() <= 0 {
				continue
			}
			level.Size = increment
		} else if increment.Sign() > 0 {
			level.Size = new(big.Int).Add(level.Size, increment)
		}
		result = append(result, level)
	}
	return result
}

// minimumTakerLevel computes the synthetic level at (roughly) twice the
// minimum taker quantity in quote terms, so the top of book always reflects
// an economically meaningful price rather than a dust-sized one. Returns nil
// when no such level can be computed.
func minimumTakerLevel(isAsk bool, pool *domain.PoolReserves, minimumInQuote, idexFeeRate, poolFeeRate *big.Int) *domain.PriceLevel {
	doubled := new(big.Int).Mul(minimumInQuote, two)
	if isAsk {
		baseOut, err := CalculateBaseQuantityOut(
			pool.BaseReserveQuantity, pool.QuoteReserveQuantity, doubled, idexFeeRate, poolFeeRate)
		if err != nil || baseOut.Sign() <= 0 {
			return nil
		}
		price := pipmath.DividePips(doubled, baseOut)
		if price.Sign() <= 0 {
			return nil
		}
		return &domain.PriceLevel{Price: price, Size: baseOut, Kind: domain.LevelKindPool}
	}

	// Bid side: find the gross base input whose quote output is the doubled
	// minimum, then price the level at the realized average.
	if doubled.Cmp(pool.QuoteReserveQuantity) >= 0 {
		return nil
	}
	kept := new(big.Int).Sub(pool.QuoteReserveQuantity, doubled)
	product := new(big.Int).Mul(pool.BaseReserveQuantity, pool.QuoteReserveQuantity)
	targetBaseReserve := ceilDiv(product, kept)
	netBaseIn := new(big.Int).Sub(targetBaseReserve, pool.BaseReserveQuantity)
	grossBaseIn := grossFromNet(netBaseIn, idexFeeRate, poolFeeRate)
	if grossBaseIn.Sign() <= 0 {
		return nil
	}
	price := pipmath.DividePips(doubled, grossBaseIn)
	if price.Sign() <= 0 {
		return nil
	}
	return &domain.PriceLevel{Price: price, Size: grossBaseIn, Kind: domain.LevelKindPool}
}

// insertLevel places a level into a sorted ladder, keeping the side ordering.
// An existing level at the same price is left alone.
func insertLevel(isAscending bool, levels domain.Ladder, level domain.PriceLevel) domain.Ladder {
	for i, existing := range levels {
		cmp := level.Price.Cmp(existing.Price)
		if cmp == 0 {
			return levels
		}
		if (isAscending && cmp < 0) || (!isAscending && cmp > 0) {
			result := make(domain.Ladder, 0, len(levels)+1)
			result = append(result, levels[:i]...)
			result = append(result, level)
			result = append(result, levels[i:]...)
			return result
		}
	}
	return append(append(domain.Ladder{}, levels...), level)
}

// ComposeHybridBook blends a limit order book with its pool's synthetic depth
// into a single consistent L1/L2 view. Without a pool the limit book passes
// through unchanged. Given identical inputs the output is bit-identical.
func ComposeHybridBook(limitBook *domain.L2OrderBook, numLevels int, slippageIncrement, idexFeeRate, poolFeeRate *big.Int, includeMinimumTakerLevels bool, minimumTakerInQuote *big.Int) (HybridBook, error) {
	if limitBook.Pool == nil {
		l2 := domain.L2OrderBook{
			Sequence: limitBook.Sequence,
			Bids:     append(domain.Ladder{}, limitBook.Bids...),
			Asks:     append(domain.Ladder{}, limitBook.Asks...),
		}
		return HybridBook{L1: L2ToL1(&l2), L2: l2}, nil
	}

	pool := limitBook.Pool
	synthetic, err := CalculateSyntheticPriceLevels(
		pool.BaseReserveQuantity, pool.QuoteReserveQuantity,
		numLevels, slippageIncrement, idexFeeRate, poolFeeRate)
	if err != nil {
		return HybridBook{}, err
	}

	asks := mergeLadders(true, limitBook.Asks, synthetic.Asks)
	bids := mergeLadders(false, limitBook.Bids, synthetic.Bids)

	if includeMinimumTakerLevels && minimumTakerInQuote != nil && minimumTakerInQuote.Sign() > 0 {
		if level := minimumTakerLevel(true, pool, minimumTakerInQuote, idexFeeRate, poolFeeRate); level != nil {
			asks = insertLevel(true, asks, *level)
		}
		if level := minimumTakerLevel(false, pool, minimumTakerInQuote, idexFeeRate, poolFeeRate); level != nil {
			bids = insertLevel(false, bids, *level)
		}
	}

	asks = recalculateHybridLevelAmounts(true, asks, pool, idexFeeRate, poolFeeRate)
	bids = recalculateHybridLevelAmounts(false, bids, pool, idexFeeRate, poolFeeRate)

	l2 := domain.L2OrderBook{
		Sequence: limitBook.Sequence,
		Bids:     bids,
		Asks:     asks,
		Pool:     pool,
	}
	return HybridBook{L1: L2ToL1(&l2), L2: l2}, nil
}
