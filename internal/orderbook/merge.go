package orderbook

import (
	"math/big"

	"github.com/alanyoungcy/idexbot/internal/domain"
)

// UpdateLadderSide applies a sorted diff to a sorted ladder and returns a new
// ladder, leaving the input slices untouched. Update levels carry absolute
// replacement values; a level with zero size or zero resting orders removes
// the price. The result is strictly sorted with no duplicate prices and no
// zero-size levels.
func UpdateLadderSide(isAscending bool, existing, updates domain.Ladder) domain.Ladder {
	result := make(domain.Ladder, 0, len(existing)+len(updates))

	beforeOrEqual := func(a, b *big.Int) bool {
		if isAscending {
			return a.Cmp(b) <= 0
		}
		return a.Cmp(b) >= 0
	}

	appendUpdate := func(update domain.PriceLevel) {
		// Repeated updates at the same price within one diff: last one wins,
		// including a removal cancelling an earlier insert.
		if update.Size.Sign() == 0 || update.NumOrders == 0 {
			if n := len(result); n > 0 && result[n-1].Price.Cmp(update.Price) == 0 {
				result = result[:n-1]
			}
			return
		}
		if n := len(result); n > 0 && result[n-1].Price.Cmp(update.Price) == 0 {
			result[n-1] = update
			return
		}
		result = append(result, update)
	}

	var lastPriceUpdated *big.Int
	next := 0
	for _, level := range existing {
		for next < len(updates) && beforeOrEqual(updates[next].Price, level.Price) {
			appendUpdate(updates[next])
			lastPriceUpdated = updates[next].Price
			next++
		}
		// A level whose price was touched by an update has been superseded.
		if lastPriceUpdated != nil && lastPriceUpdated.Cmp(level.Price) == 0 {
			continue
		}
		result = append(result, level)
	}
	for ; next < len(updates); next++ {
		appendUpdate(updates[next])
	}

	return result
}

// UpdateL2Levels applies an incremental diff to a book in place: both sides
// are merged, the sequence is advanced to the diff's, and pool reserves are
// replaced wholesale whenever the diff carries them (reserves are never
// diffed incrementally).
func UpdateL2Levels(book, diff *domain.L2OrderBook) {
	book.Sequence = diff.Sequence
	book.Bids = UpdateLadderSide(false, book.Bids, diff.Bids)
	book.Asks = UpdateLadderSide(true, book.Asks, diff.Asks)
	if diff.Pool != nil {
		book.Pool = diff.Pool
	}
}
