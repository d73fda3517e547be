package orderbook

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/idexbot/internal/domain"
)

func poolBook(t *testing.T, base, quote string) *domain.L2OrderBook {
	t.Helper()
	return &domain.L2OrderBook{
		Sequence: 1,
		Pool: &domain.PoolReserves{
			BaseReserveQuantity:  pip(t, base),
			QuoteReserveQuantity: pip(t, quote),
		},
	}
}

func TestQuoteSwapZeroInput(t *testing.T) {
	zero := big.NewInt(0)
	book := poolBook(t, "1000", "2000")

	quote, err := QuoteSwap(zero, true, book, zero, zero, zero)
	require.NoError(t, err)
	assert.Zero(t, quote.OutputExpected.Sign())
	assert.Zero(t, quote.Price.Sign())
	assert.Zero(t, quote.FeeQuantity.Sign())

	quote, err = QuoteSwap(nil, false, book, zero, zero, zero)
	require.NoError(t, err)
	assert.Zero(t, quote.OutputExpected.Sign())
}

func TestQuoteSwapPoolOnlyBuy(t *testing.T) {
	zero := big.NewInt(0)
	slippage := pip(t, "0.02")
	book := poolBook(t, "1000", "2000")

	quote, err := QuoteSwap(pip(t, "20"), true, book, zero, zero, slippage)
	require.NoError(t, err)

	// 20 quote against x=1000, y=2000: kept base reserve rounds up to
	// 990.09900991, so 9.90099009 base comes out.
	assert.Equal(t, "990099009", quote.OutputExpected.String())
	assert.Equal(t, "202000000", quote.Price.String()) // realized 2.02
	assert.Equal(t, "970297028", quote.OutputMinimum.String())
	assert.Equal(t, "990099", quote.PriceImpact.String()) // ~0.99%
	assert.Zero(t, quote.FeeQuantity.Sign())
	assert.Positive(t, quote.LimitPrice.Cmp(pip(t, "2")))
}

func TestQuoteSwapPoolOnlySell(t *testing.T) {
	zero := big.NewInt(0)
	book := poolBook(t, "1000", "2000")

	quote, err := QuoteSwap(pip(t, "10"), false, book, zero, zero, zero)
	require.NoError(t, err)

	// 10 base in: kept quote reserve rounds up to 1980.19801981, so
	// 19.80198019 quote comes out.
	assert.Equal(t, "1980198019", quote.OutputExpected.String())
	assert.Zero(t, quote.OutputMinimum.Cmp(quote.OutputExpected))
	assert.Positive(t, quote.PriceImpact.Sign())
}

func TestQuoteSwapFeesInInputAsset(t *testing.T) {
	idexFee := pip(t, "0.001")
	poolFee := pip(t, "0.002")
	book := poolBook(t, "1000", "2000")

	quote, err := QuoteSwap(pip(t, "20"), true, book, idexFee, poolFee, big.NewInt(0))
	require.NoError(t, err)

	// Pool fills are charged the combined rate on the quote input.
	assert.Equal(t, "6000000", quote.FeeQuantity.String()) // 0.06
	assert.Negative(t, quote.OutputExpected.Cmp(big.NewInt(990099009)))
}

func TestQuoteSwapLimitBookOnlyBuy(t *testing.T) {
	zero := big.NewInt(0)
	book := &domain.L2OrderBook{
		Sequence: 1,
		Asks: domain.Ladder{
			limitLevel(2_00000000, 5_00000000, 1),
			limitLevel(2_10000000, 10_00000000, 2),
		},
	}

	quote, err := QuoteSwap(pip(t, "20"), true, book, zero, zero, zero)
	require.NoError(t, err)

	// 10 quote clears the 5 base at 2.0, the remaining 10 quote buys
	// 4.76190476 base at 2.1.
	assert.Equal(t, "976190476", quote.OutputExpected.String())
	assert.Equal(t, "2380952", quote.PriceImpact.String())
	assert.Zero(t, quote.FeeQuantity.Sign())
}

func TestQuoteSwapLimitBookOnlySell(t *testing.T) {
	zero := big.NewInt(0)
	book := &domain.L2OrderBook{
		Sequence: 1,
		Bids: domain.Ladder{
			limitLevel(2_00000000, 3_00000000, 1),
			limitLevel(1_90000000, 10_00000000, 1),
		},
	}

	quote, err := QuoteSwap(pip(t, "5"), false, book, zero, zero, zero)
	require.NoError(t, err)

	// 3 base at 2.0 plus 2 base at 1.9.
	assert.Equal(t, pip(t, "9.8").String(), quote.OutputExpected.String())
}

func TestQuoteSwapLimitFeeOnlyOnExchangePortion(t *testing.T) {
	idexFee := pip(t, "0.001")
	poolFee := pip(t, "0.002")
	book := &domain.L2OrderBook{
		Sequence: 1,
		Bids:     domain.Ladder{limitLevel(2_00000000, 10_00000000, 1)},
	}

	quote, err := QuoteSwap(pip(t, "4"), false, book, idexFee, poolFee, big.NewInt(0))
	require.NoError(t, err)

	// Limit fills pay only the exchange fee, never the pool fee.
	assert.Equal(t, "400000", quote.FeeQuantity.String()) // 4 * 0.001
}

func TestQuoteSwapHybridBeatsPoolAlone(t *testing.T) {
	zero := big.NewInt(0)
	input := pip(t, "100")
	slippage := pip(t, "0.05")

	poolOnly, err := QuoteSwap(input, true, poolBook(t, "1000", "2000"), zero, zero, slippage)
	require.NoError(t, err)

	hybrid := poolBook(t, "1000", "2000")
	hybrid.Asks = domain.Ladder{limitLevel(2_01000000, 20_00000000, 1)}
	withLimit, err := QuoteSwap(input, true, hybrid, zero, zero, slippage)
	require.NoError(t, err)

	// Resting liquidity at 2.01 fills part of the order below the pool's
	// marginal price, so the hybrid walk returns at least as much base.
	assert.GreaterOrEqual(t, withLimit.OutputExpected.Cmp(poolOnly.OutputExpected), 0)
	assert.LessOrEqual(t, withLimit.PriceImpact.Cmp(poolOnly.PriceImpact), 0)
}

func TestQuoteSwapOutputMinimumNeverExceedsExpected(t *testing.T) {
	zero := big.NewInt(0)
	slippage := pip(t, "0.01")
	book := poolBook(t, "500", "1500")
	book.Asks = domain.Ladder{limitLevel(3_05000000, 2_00000000, 1)}

	quote, err := QuoteSwap(pip(t, "50"), true, book, zero, zero, slippage)
	require.NoError(t, err)
	assert.LessOrEqual(t, quote.OutputMinimum.Cmp(quote.OutputExpected), 0)
	assert.Positive(t, quote.OutputExpected.Sign())
}

func TestQuoteSwapInvalidReserves(t *testing.T) {
	zero := big.NewInt(0)
	book := &domain.L2OrderBook{
		Sequence: 1,
		Pool: &domain.PoolReserves{
			BaseReserveQuantity:  big.NewInt(0),
			QuoteReserveQuantity: pip(t, "2000"),
		},
	}
	_, err := QuoteSwap(pip(t, "1"), true, book, zero, zero, zero)
	assert.ErrorIs(t, err, domain.ErrInvalidReserves)
}
