package orderbook

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/idexbot/internal/domain"
	"github.com/alanyoungcy/idexbot/internal/pipmath"
)

func pip(t *testing.T, value string) *big.Int {
	t.Helper()
	v, err := pipmath.DecimalToPip(value)
	require.NoError(t, err)
	return v
}

func absDiff(a, b *big.Int) *big.Int {
	return new(big.Int).Abs(new(big.Int).Sub(a, b))
}

func TestCalculateGrossBaseQuantityReachesTargetPrice(t *testing.T) {
	base := pip(t, "1000")
	quote := pip(t, "2000") // pool price 2.0
	target := pip(t, "2.2")
	zero := big.NewInt(0)

	grossBase, err := CalculateGrossBaseQuantity(base, quote, target, zero, zero)
	require.NoError(t, err)
	assert.Positive(t, grossBase.Sign())

	quantities, err := CalculateBuyQuantitiesForTargetPrice(base, quote, target, zero, zero)
	require.NoError(t, err)
	assert.Zero(t, quantities.GrossBase.Cmp(grossBase))

	// Applying the paired quantities through the constant-product formula
	// lands within one pip of the target price.
	newBase := new(big.Int).Sub(base, quantities.GrossBase)
	newQuote := new(big.Int).Add(quote, quantities.GrossQuote)
	realized := pipmath.DividePips(newQuote, newBase)
	assert.True(t, absDiff(realized, target).Cmp(big.NewInt(1)) <= 0,
		"realized %s target %s", realized, target)
}

func TestCalculateSellQuantitiesReachesTargetPrice(t *testing.T) {
	base := pip(t, "1000")
	quote := pip(t, "2000")
	target := pip(t, "1.8")
	zero := big.NewInt(0)

	quantities, err := CalculateSellQuantitiesForTargetPrice(base, quote, target, zero, zero)
	require.NoError(t, err)
	assert.Positive(t, quantities.GrossBase.Sign())
	assert.Positive(t, quantities.GrossQuote.Sign())

	newBase := new(big.Int).Add(base, quantities.GrossBase)
	newQuote := new(big.Int).Sub(quote, quantities.GrossQuote)
	realized := pipmath.DividePips(newQuote, newBase)
	assert.True(t, absDiff(realized, target).Cmp(big.NewInt(1)) <= 0,
		"realized %s target %s", realized, target)
}

func TestBuyQuantitiesWithFees(t *testing.T) {
	base := pip(t, "1000")
	quote := pip(t, "2000")
	target := pip(t, "2.2")
	idexFee := pip(t, "0.001")
	poolFee := pip(t, "0.002")

	withFees, err := CalculateBuyQuantitiesForTargetPrice(base, quote, target, idexFee, poolFee)
	require.NoError(t, err)
	noFees, err := CalculateBuyQuantitiesForTargetPrice(base, quote, target, big.NewInt(0), big.NewInt(0))
	require.NoError(t, err)

	// Fees mean the taker must supply strictly more quote to reach the same
	// pool price.
	assert.Positive(t, withFees.GrossQuote.Cmp(noFees.GrossQuote))
}

func TestTargetPriceValidation(t *testing.T) {
	base := pip(t, "1000")
	quote := pip(t, "2000")
	zero := big.NewInt(0)

	// Buy target at or below the pool price is rejected.
	_, err := CalculateGrossBaseQuantity(base, quote, pip(t, "2"), zero, zero)
	assert.True(t, errors.Is(err, domain.ErrInvalidPriceRange))
	_, err = CalculateGrossBaseQuantity(base, quote, pip(t, "1.5"), zero, zero)
	assert.True(t, errors.Is(err, domain.ErrInvalidPriceRange))

	// Sell target at or above the pool price is rejected.
	_, err = CalculateGrossQuoteQuantity(base, quote, pip(t, "2"), zero, zero)
	assert.True(t, errors.Is(err, domain.ErrInvalidPriceRange))
	_, err = CalculateGrossQuoteQuantity(base, quote, pip(t, "2.5"), zero, zero)
	assert.True(t, errors.Is(err, domain.ErrInvalidPriceRange))
}

func TestReservesValidation(t *testing.T) {
	zero := big.NewInt(0)
	_, err := CalculateGrossBaseQuantity(zero, pip(t, "2000"), pip(t, "2.2"), zero, zero)
	assert.True(t, errors.Is(err, domain.ErrInvalidReserves))
	_, err = CalculateBaseQuantityOut(pip(t, "1000"), zero, pip(t, "1"), zero, zero)
	assert.True(t, errors.Is(err, domain.ErrInvalidReserves))
}

func TestConstantProductNeverDecreases(t *testing.T) {
	idexFee := pip(t, "0.0005")
	poolFee := pip(t, "0.0025")
	cases := []struct {
		base, quote, in string
	}{
		{"1000", "2000", "1"},
		{"1000", "2000", "0.00000001"},
		{"1000", "2000", "500"},
		{"0.5", "12345.678", "3.14159265"},
		{"250000", "0.25", "0.00000042"},
	}

	for _, tc := range cases {
		base := pip(t, tc.base)
		quote := pip(t, tc.quote)
		in := pip(t, tc.in)
		before := new(big.Int).Mul(base, quote)

		bP := new(big.Int).Sub(pipmath.OneInPips, idexFee)
		bP.Sub(bP, poolFee)
		invariantIn := pipmath.MultiplyPips(in, bP, false)

		baseOut, err := CalculateBaseQuantityOut(base, quote, in, idexFee, poolFee)
		require.NoError(t, err)
		afterBuy := new(big.Int).Mul(
			new(big.Int).Sub(base, baseOut),
			new(big.Int).Add(quote, invariantIn),
		)
		assert.True(t, afterBuy.Cmp(before) >= 0, "buy %+v", tc)

		quoteOut, err := CalculateQuoteQuantityOut(base, quote, in, idexFee, poolFee)
		require.NoError(t, err)
		afterSell := new(big.Int).Mul(
			new(big.Int).Add(base, invariantIn),
			new(big.Int).Sub(quote, quoteOut),
		)
		assert.True(t, afterSell.Cmp(before) >= 0, "sell %+v", tc)
	}
}

func TestQuantityOutZeroInput(t *testing.T) {
	base := pip(t, "1000")
	quote := pip(t, "2000")
	out, err := CalculateBaseQuantityOut(base, quote, big.NewInt(0), big.NewInt(0), big.NewInt(0))
	require.NoError(t, err)
	assert.Zero(t, out.Sign())
}
