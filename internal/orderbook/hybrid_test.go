package orderbook

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/idexbot/internal/domain"
)

func TestL2ToL1(t *testing.T) {
	book := &domain.L2OrderBook{
		Sequence: 9,
		Bids:     domain.Ladder{limitLevel(99, 5, 1)},
		Asks:     domain.Ladder{limitLevel(101, 7, 2)},
	}
	l1 := L2ToL1(book)
	assert.Equal(t, uint64(9), l1.Sequence)
	assert.Zero(t, l1.BestBid.Price.Cmp(book.Bids[0].Price))
	assert.Zero(t, l1.BestAsk.Price.Cmp(book.Asks[0].Price))

	empty := L2ToL1(&domain.L2OrderBook{Sequence: 3})
	assert.Zero(t, empty.BestBid.Price.Sign())
	assert.Zero(t, empty.BestBid.Size.Sign())
	assert.Zero(t, empty.BestAsk.Price.Sign())
}

func TestComposeHybridBookWithoutPool(t *testing.T) {
	book := &domain.L2OrderBook{
		Sequence: 4,
		Bids:     domain.Ladder{limitLevel(99, 5, 1)},
		Asks:     domain.Ladder{limitLevel(101, 7, 2)},
	}
	hybrid, err := ComposeHybridBook(book, 10, big.NewInt(1), big.NewInt(0), big.NewInt(0), false, nil)
	require.NoError(t, err)
	require.Len(t, hybrid.L2.Asks, 1)
	require.Len(t, hybrid.L2.Bids, 1)
	assert.Zero(t, hybrid.L1.BestAsk.Price.Cmp(book.Asks[0].Price))
}

func TestSyntheticPriceLevels(t *testing.T) {
	base := pip(t, "1000")
	quote := pip(t, "2000")
	increment := pip(t, "0.01")
	zero := big.NewInt(0)

	levels, err := CalculateSyntheticPriceLevels(base, quote, 5, increment, zero, zero)
	require.NoError(t, err)
	require.Len(t, levels.Asks, 5)
	require.Len(t, levels.Bids, 5)

	requireLadderInvariants(t, true, levels.Asks)
	requireLadderInvariants(t, false, levels.Bids)

	poolPrice := pip(t, "2")
	assert.Zero(t, levels.Asks[0].Price.Cmp(new(big.Int).Add(poolPrice, increment)))
	assert.Zero(t, levels.Bids[0].Price.Cmp(new(big.Int).Sub(poolPrice, increment)))
	for _, level := range append(append(domain.Ladder{}, levels.Asks...), levels.Bids...) {
		assert.Equal(t, domain.LevelKindPool, level.Kind)
		assert.Zero(t, level.NumOrders)
	}
}

func TestSyntheticBidLevelsStopAtZeroPrice(t *testing.T) {
	base := pip(t, "1000")
	quote := pip(t, "2000")
	increment := pip(t, "1.5") // second bid level would be negative
	zero := big.NewInt(0)

	levels, err := CalculateSyntheticPriceLevels(base, quote, 5, increment, zero, zero)
	require.NoError(t, err)
	assert.Len(t, levels.Bids, 1)
	assert.Len(t, levels.Asks, 5)
}

func TestComposeHybridBookMergesPoolAndLimit(t *testing.T) {
	book := &domain.L2OrderBook{
		Sequence: 11,
		// Limit ask between the first and second synthetic boundaries.
		Asks: domain.Ladder{limitLevel(2_01500000, 3_00000000, 1)},
		Bids: domain.Ladder{limitLevel(1_98500000, 4_00000000, 1)},
		Pool: &domain.PoolReserves{
			BaseReserveQuantity:  pip(t, "1000"),
			QuoteReserveQuantity: pip(t, "2000"),
		},
	}
	increment := pip(t, "0.01")
	zero := big.NewInt(0)

	hybrid, err := ComposeHybridBook(book, 3, increment, zero, zero, false, nil)
	require.NoError(t, err)

	requireLadderInvariants(t, true, hybrid.L2.Asks)
	requireLadderInvariants(t, false, hybrid.L2.Bids)

	// Best ask is the first synthetic boundary, below the limit level.
	assert.Zero(t, hybrid.L1.BestAsk.Price.Cmp(pip(t, "2.01")))
	assert.Equal(t, domain.LevelKindPool, hybrid.L1.BestAsk.Kind)

	// The limit ask at 2.015 absorbs the pool liquidity between 2.01 and
	// 2.015, so its size strictly exceeds its resting size.
	var limitAsk *domain.PriceLevel
	for i := range hybrid.L2.Asks {
		if hybrid.L2.Asks[i].Kind == domain.LevelKindLimit {
			limitAsk = &hybrid.L2.Asks[i]
			break
		}
	}
	require.NotNil(t, limitAsk)
	assert.Positive(t, limitAsk.Size.Cmp(pip(t, "3")))

	// Depth is conserved: total ask base equals the pool's cumulative base
	// to the last boundary plus the resting limit size.
	total := big.NewInt(0)
	for _, level := range hybrid.L2.Asks {
		total.Add(total, level.Size)
	}
	cumulative := poolBaseAvailable(true, book.Pool, hybrid.L2.Asks[len(hybrid.L2.Asks)-1].Price, zero, zero)
	expected := new(big.Int).Add(cumulative, pip(t, "3"))
	assert.Zero(t, total.Cmp(expected))
}

func TestComposeHybridBookDeterministic(t *testing.T) {
	book := &domain.L2OrderBook{
		Sequence: 11,
		Asks:     domain.Ladder{limitLevel(2_01500000, 3_00000000, 1)},
		Bids:     domain.Ladder{limitLevel(1_98500000, 4_00000000, 1)},
		Pool: &domain.PoolReserves{
			BaseReserveQuantity:  pip(t, "1000"),
			QuoteReserveQuantity: pip(t, "2000"),
		},
	}
	increment := pip(t, "0.01")
	fee := pip(t, "0.001")

	first, err := ComposeHybridBook(book, 4, increment, fee, fee, false, nil)
	require.NoError(t, err)
	second, err := ComposeHybridBook(book, 4, increment, fee, fee, false, nil)
	require.NoError(t, err)

	require.Len(t, second.L2.Asks, len(first.L2.Asks))
	require.Len(t, second.L2.Bids, len(first.L2.Bids))
	for i := range first.L2.Asks {
		assert.Zero(t, first.L2.Asks[i].Price.Cmp(second.L2.Asks[i].Price))
		assert.Zero(t, first.L2.Asks[i].Size.Cmp(second.L2.Asks[i].Size))
	}
}

func TestComposeHybridBookMinimumTakerLevel(t *testing.T) {
	book := &domain.L2OrderBook{
		Sequence: 2,
		Pool: &domain.PoolReserves{
			BaseReserveQuantity:  pip(t, "1000"),
			QuoteReserveQuantity: pip(t, "2000"),
		},
	}
	increment := pip(t, "0.1")
	zero := big.NewInt(0)
	minimum := pip(t, "10") // in quote terms

	without, err := ComposeHybridBook(book, 3, increment, zero, zero, false, nil)
	require.NoError(t, err)
	with, err := ComposeHybridBook(book, 3, increment, zero, zero, true, minimum)
	require.NoError(t, err)

	// The injected level sits between the pool price and the first slippage
	// boundary, improving the displayed best ask.
	assert.Negative(t, with.L1.BestAsk.Price.Cmp(without.L1.BestAsk.Price))
	assert.Positive(t, with.L1.BestAsk.Price.Cmp(pip(t, "2")))
	assert.Positive(t, with.L1.BestAsk.Size.Sign())

	// And symmetrically the best bid.
	assert.Positive(t, with.L1.BestBid.Price.Cmp(without.L1.BestBid.Price))
	assert.Negative(t, with.L1.BestBid.Price.Cmp(pip(t, "2")))
}
