package orderbook

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/idexbot/internal/domain"
)

func limitLevel(price, size int64, numOrders int) domain.PriceLevel {
	return domain.PriceLevel{
		Price:     big.NewInt(price),
		Size:      big.NewInt(size),
		NumOrders: numOrders,
	}
}

func requireLadderInvariants(t *testing.T, isAscending bool, ladder domain.Ladder) {
	t.Helper()
	for i, level := range ladder {
		assert.Positive(t, level.Size.Sign(), "zero-size level at %d", i)
		if i == 0 {
			continue
		}
		cmp := ladder[i-1].Price.Cmp(level.Price)
		if isAscending {
			require.Negative(t, cmp, "asks not strictly ascending at %d", i)
		} else {
			require.Positive(t, cmp, "bids not strictly descending at %d", i)
		}
	}
}

func TestUpdateLadderSideClearsLevel(t *testing.T) {
	book := &domain.L2OrderBook{
		Sequence: 5,
		Asks:     domain.Ladder{limitLevel(100_00000000, 10_00000000, 1)},
		Bids:     domain.Ladder{},
	}
	diff := &domain.L2OrderBook{
		Sequence: 6,
		Asks:     domain.Ladder{limitLevel(100_00000000, 0, 0)},
	}

	UpdateL2Levels(book, diff)
	assert.Empty(t, book.Asks)
	assert.Equal(t, uint64(6), book.Sequence)
}

func TestUpdateLadderSideEmptyDiffIsIdentity(t *testing.T) {
	existing := domain.Ladder{
		limitLevel(101, 5, 1),
		limitLevel(102, 7, 2),
	}
	result := UpdateLadderSide(true, existing, nil)
	require.Len(t, result, 2)
	for i := range existing {
		assert.Zero(t, result[i].Price.Cmp(existing[i].Price))
		assert.Zero(t, result[i].Size.Cmp(existing[i].Size))
	}
}

func TestUpdateLadderSideInsertReplaceAndAppend(t *testing.T) {
	existing := domain.Ladder{
		limitLevel(100, 1, 1),
		limitLevel(102, 2, 1),
		limitLevel(104, 3, 1),
	}
	updates := domain.Ladder{
		limitLevel(99, 10, 1),  // insert before head
		limitLevel(102, 20, 2), // replace
		limitLevel(103, 30, 1), // insert between
		limitLevel(110, 40, 1), // beyond current depth
	}

	result := UpdateLadderSide(true, existing, updates)
	requireLadderInvariants(t, true, result)
	require.Len(t, result, 6)
	assert.Equal(t, int64(99), result[0].Price.Int64())
	assert.Equal(t, int64(20), result[2].Size.Int64())
	assert.Equal(t, int64(110), result[5].Price.Int64())
}

func TestUpdateLadderSideDescendingBids(t *testing.T) {
	existing := domain.Ladder{
		limitLevel(104, 3, 1),
		limitLevel(102, 2, 1),
		limitLevel(100, 1, 1),
	}
	updates := domain.Ladder{
		limitLevel(105, 9, 1), // new best bid
		limitLevel(102, 0, 0), // remove
		limitLevel(99, 4, 1),  // beyond depth
	}

	result := UpdateLadderSide(false, existing, updates)
	requireLadderInvariants(t, false, result)
	require.Len(t, result, 4)
	assert.Equal(t, int64(105), result[0].Price.Int64())
	assert.Equal(t, int64(104), result[1].Price.Int64())
	assert.Equal(t, int64(100), result[2].Price.Int64())
	assert.Equal(t, int64(99), result[3].Price.Int64())
}

func TestUpdateLadderSideRepeatedPriceLastWins(t *testing.T) {
	existing := domain.Ladder{limitLevel(100, 1, 1)}
	updates := domain.Ladder{
		limitLevel(101, 5, 1),
		limitLevel(101, 8, 2),
	}
	result := UpdateLadderSide(true, existing, updates)
	requireLadderInvariants(t, true, result)
	require.Len(t, result, 2)
	assert.Equal(t, int64(8), result[1].Size.Int64())
	assert.Equal(t, 2, result[1].NumOrders)
}

func TestUpdateLadderSideRepeatedPriceRemovalWins(t *testing.T) {
	existing := domain.Ladder{limitLevel(100, 1, 1)}
	updates := domain.Ladder{
		limitLevel(101, 5, 1),
		limitLevel(101, 0, 0),
	}
	result := UpdateLadderSide(true, existing, updates)
	requireLadderInvariants(t, true, result)
	require.Len(t, result, 1)
	assert.Equal(t, int64(100), result[0].Price.Int64())
}

func TestUpdateLadderSideRemovalOfUnknownPrice(t *testing.T) {
	existing := domain.Ladder{limitLevel(100, 1, 1)}
	updates := domain.Ladder{limitLevel(105, 0, 0)}
	result := UpdateLadderSide(true, existing, updates)
	require.Len(t, result, 1)
	assert.Equal(t, int64(100), result[0].Price.Int64())
}

func TestUpdateL2LevelsReplacesPoolWholesale(t *testing.T) {
	book := &domain.L2OrderBook{
		Sequence: 1,
		Pool: &domain.PoolReserves{
			BaseReserveQuantity:  big.NewInt(100),
			QuoteReserveQuantity: big.NewInt(200),
		},
	}
	diff := &domain.L2OrderBook{
		Sequence: 2,
		Pool: &domain.PoolReserves{
			BaseReserveQuantity:  big.NewInt(90),
			QuoteReserveQuantity: big.NewInt(222),
		},
	}
	UpdateL2Levels(book, diff)
	assert.Equal(t, int64(90), book.Pool.BaseReserveQuantity.Int64())

	// A diff without a pool leaves the existing reserves in place.
	UpdateL2Levels(book, &domain.L2OrderBook{Sequence: 3})
	require.NotNil(t, book.Pool)
	assert.Equal(t, int64(222), book.Pool.QuoteReserveQuantity.Int64())
}
