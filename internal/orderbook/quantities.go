// Package orderbook implements the hybrid order book engine: the AMM
// quantity solver, synthetic level generation, incremental level-2 merging,
// hybrid book composition, swap quoting, and the real-time book client.
//
// All quantities are pips (*big.Int, 1e8 per unit) and every function here is
// pure: no ambient state, fee rates are always passed in explicitly.
package orderbook

import (
	"fmt"
	"math/big"

	"github.com/alanyoungcy/idexbot/internal/domain"
	"github.com/alanyoungcy/idexbot/internal/pipmath"
)

// Fee model: the taker supplies a gross quantity of the input asset. The
// exchange fee (idexFeeRate) leaves the system and the pool fee (poolFeeRate)
// is deposited back into the reserves, so for a gross input g:
//
//	deposited = g * (1e8 - idexFeeRate) / 1e8
//	invariant = g * (1e8 - idexFeeRate - poolFeeRate) / 1e8
//
// The invariant portion moves the constant product; the deposited portion is
// what the marked pool price is computed from. Solving "what gross input
// moves the pool to exactly targetPrice" therefore yields a quadratic whose
// positive root is taken with SquareRootBigInt.

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// BuySellQuantities pairs the base and quote legs of a pool trade that moves
// the pool price to a target. Both values are gross (pre-fee) quantities.
type BuySellQuantities struct {
	GrossBase  *big.Int
	GrossQuote *big.Int
}

func ceilDiv(a, b *big.Int) *big.Int {
	quo, rem := new(big.Int).QuoRem(a, b, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, one)
	}
	return quo
}

func validateReserves(baseReserve, quoteReserve *big.Int) error {
	if baseReserve == nil || quoteReserve == nil ||
		baseReserve.Cmp(one) < 0 || quoteReserve.Cmp(one) < 0 {
		return fmt.Errorf("orderbook: reserves must each be at least one pip: %w", domain.ErrInvalidReserves)
	}
	return nil
}

func validateTargetPrice(baseReserve, quoteReserve, targetPrice *big.Int, isBuy bool) error {
	current := pipmath.DividePips(quoteReserve, baseReserve)
	if isBuy {
		if targetPrice.Cmp(current) <= 0 {
			return fmt.Errorf("orderbook: buy target price %s not above pool price %s: %w",
				targetPrice.String(), current.String(), domain.ErrInvalidPriceRange)
		}
		return nil
	}
	if targetPrice.Sign() <= 0 || targetPrice.Cmp(current) >= 0 {
		return fmt.Errorf("orderbook: sell target price %s not below pool price %s: %w",
			targetPrice.String(), current.String(), domain.ErrInvalidPriceRange)
	}
	return nil
}

// buyTargetQuoteReserve solves for the invariant-side quote reserve u = y + n
// (n being the net price-moving quote input) that marks the pool at exactly
// targetPrice:
//
//	aP*1e8*u^2 - y*fP*1e8*u - targetPrice*x*y*bP = 0
//
// where aP = 1e8 - idexFeeRate and bP = 1e8 - idexFeeRate - poolFeeRate.
func buyTargetQuoteReserve(baseReserve, quoteReserve, targetPrice, idexFeeRate, poolFeeRate *big.Int) (*big.Int, error) {
	v0 := pipmath.OneInPips
	aP := new(big.Int).Sub(v0, idexFeeRate)
	bP := new(big.Int).Sub(aP, poolFeeRate)

	// t1 = y * fP * 1e8
	t1 := new(big.Int).Mul(quoteReserve, poolFeeRate)
	t1.Mul(t1, v0)

	// disc = t1^2 + 4 * aP * 1e8 * bP * targetPrice * x * y
	disc := new(big.Int).Mul(t1, t1)
	t2 := new(big.Int).Mul(big.NewInt(4), aP)
	t2.Mul(t2, v0)
	t2.Mul(t2, bP)
	t2.Mul(t2, targetPrice)
	t2.Mul(t2, baseReserve)
	t2.Mul(t2, quoteReserve)
	disc.Add(disc, t2)

	root, err := pipmath.SquareRootBigInt(disc)
	if err != nil {
		return nil, err
	}

	u := new(big.Int).Add(t1, root)
	den := new(big.Int).Mul(two, aP)
	den.Mul(den, v0)
	return u.Quo(u, den), nil
}

// sellTargetBaseReserve solves for the invariant-side base reserve w = x + n
// that marks the pool at exactly targetPrice on a sell:
//
//	targetPrice*aP*w^2 - targetPrice*x*fP*w - x*y*1e8*bP = 0
func sellTargetBaseReserve(baseReserve, quoteReserve, targetPrice, idexFeeRate, poolFeeRate *big.Int) (*big.Int, error) {
	v0 := pipmath.OneInPips
	aP := new(big.Int).Sub(v0, idexFeeRate)
	bP := new(big.Int).Sub(aP, poolFeeRate)

	// t1 = targetPrice * x * fP
	t1 := new(big.Int).Mul(targetPrice, baseReserve)
	t1.Mul(t1, poolFeeRate)

	// disc = t1^2 + 4 * targetPrice * aP * x * y * 1e8 * bP
	disc := new(big.Int).Mul(t1, t1)
	t2 := new(big.Int).Mul(big.NewInt(4), targetPrice)
	t2.Mul(t2, aP)
	t2.Mul(t2, baseReserve)
	t2.Mul(t2, quoteReserve)
	t2.Mul(t2, v0)
	t2.Mul(t2, bP)
	disc.Add(disc, t2)

	root, err := pipmath.SquareRootBigInt(disc)
	if err != nil {
		return nil, err
	}

	w := new(big.Int).Add(t1, root)
	den := new(big.Int).Mul(two, targetPrice)
	den.Mul(den, aP)
	return w.Quo(w, den), nil
}

// CalculateGrossBaseQuantity returns the gross base quantity the pool
// supplies as its price rises to targetPrice. The target must be strictly
// above the current pool price and both reserves at least one pip.
func CalculateGrossBaseQuantity(baseReserve, quoteReserve, targetPrice, idexFeeRate, poolFeeRate *big.Int) (*big.Int, error) {
	if err := validateReserves(baseReserve, quoteReserve); err != nil {
		return nil, err
	}
	if err := validateTargetPrice(baseReserve, quoteReserve, targetPrice, true); err != nil {
		return nil, err
	}

	u, err := buyTargetQuoteReserve(baseReserve, quoteReserve, targetPrice, idexFeeRate, poolFeeRate)
	if err != nil {
		return nil, err
	}
	if u.Cmp(quoteReserve) <= 0 {
		return big.NewInt(0), nil
	}

	product := new(big.Int).Mul(baseReserve, quoteReserve)
	kept := ceilDiv(product, u)
	out := new(big.Int).Sub(baseReserve, kept)
	if out.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return out, nil
}

// CalculateGrossQuoteQuantity returns the gross quote quantity the pool
// supplies as its price falls to targetPrice. The target must be strictly
// below the current pool price and both reserves at least one pip.
func CalculateGrossQuoteQuantity(baseReserve, quoteReserve, targetPrice, idexFeeRate, poolFeeRate *big.Int) (*big.Int, error) {
	if err := validateReserves(baseReserve, quoteReserve); err != nil {
		return nil, err
	}
	if err := validateTargetPrice(baseReserve, quoteReserve, targetPrice, false); err != nil {
		return nil, err
	}

	w, err := sellTargetBaseReserve(baseReserve, quoteReserve, targetPrice, idexFeeRate, poolFeeRate)
	if err != nil {
		return nil, err
	}
	if w.Cmp(baseReserve) <= 0 {
		return big.NewInt(0), nil
	}

	product := new(big.Int).Mul(baseReserve, quoteReserve)
	kept := ceilDiv(product, w)
	out := new(big.Int).Sub(quoteReserve, kept)
	if out.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return out, nil
}

// grossFromNet inverts the combined fee deduction: the smallest gross input
// whose net-of-fee portion is the given net amount, truncated; the one-pip
// correction in the pair functions closes any residual drift.
func grossFromNet(net, idexFeeRate, poolFeeRate *big.Int) *big.Int {
	den := new(big.Int).Sub(pipmath.OneInPips, idexFeeRate)
	den.Sub(den, poolFeeRate)
	if den.Sign() <= 0 {
		return big.NewInt(0)
	}
	gross := new(big.Int).Mul(net, pipmath.OneInPips)
	return gross.Quo(gross, den)
}

// CalculateBuyQuantitiesForTargetPrice returns the paired gross base and
// quote legs of a pool buy that moves the pool price up to exactly
// targetPrice. The gross quote amount is corrected by one pip when the
// integer arithmetic would otherwise leave the realized post-trade pool price
// off the target.
func CalculateBuyQuantitiesForTargetPrice(baseReserve, quoteReserve, targetPrice, idexFeeRate, poolFeeRate *big.Int) (BuySellQuantities, error) {
	if err := validateReserves(baseReserve, quoteReserve); err != nil {
		return BuySellQuantities{}, err
	}
	if err := validateTargetPrice(baseReserve, quoteReserve, targetPrice, true); err != nil {
		return BuySellQuantities{}, err
	}

	u, err := buyTargetQuoteReserve(baseReserve, quoteReserve, targetPrice, idexFeeRate, poolFeeRate)
	if err != nil {
		return BuySellQuantities{}, err
	}
	if u.Cmp(quoteReserve) <= 0 {
		return BuySellQuantities{GrossBase: big.NewInt(0), GrossQuote: big.NewInt(0)}, nil
	}

	net := new(big.Int).Sub(u, quoteReserve)
	grossQuote := grossFromNet(net, idexFeeRate, poolFeeRate)

	aP := new(big.Int).Sub(pipmath.OneInPips, idexFeeRate)
	bP := new(big.Int).Sub(aP, poolFeeRate)
	invariantIn := pipmath.MultiplyPips(grossQuote, bP, false)
	depositedIn := pipmath.MultiplyPips(grossQuote, aP, false)

	product := new(big.Int).Mul(baseReserve, quoteReserve)
	kept := ceilDiv(product, new(big.Int).Add(quoteReserve, invariantIn))
	grossBase := new(big.Int).Sub(baseReserve, kept)
	if grossBase.Sign() < 0 {
		grossBase.SetInt64(0)
	}

	realized := pipmath.DividePips(new(big.Int).Add(quoteReserve, depositedIn), kept)
	switch realized.Cmp(targetPrice) {
	case -1:
		grossQuote.Add(grossQuote, one)
	case 1:
		grossQuote.Sub(grossQuote, one)
	}

	return BuySellQuantities{GrossBase: grossBase, GrossQuote: grossQuote}, nil
}

// CalculateSellQuantitiesForTargetPrice returns the paired gross base and
// quote legs of a pool sell that moves the pool price down to exactly
// targetPrice, with the same one-pip correction applied to the quote leg.
func CalculateSellQuantitiesForTargetPrice(baseReserve, quoteReserve, targetPrice, idexFeeRate, poolFeeRate *big.Int) (BuySellQuantities, error) {
	if err := validateReserves(baseReserve, quoteReserve); err != nil {
		return BuySellQuantities{}, err
	}
	if err := validateTargetPrice(baseReserve, quoteReserve, targetPrice, false); err != nil {
		return BuySellQuantities{}, err
	}

	w, err := sellTargetBaseReserve(baseReserve, quoteReserve, targetPrice, idexFeeRate, poolFeeRate)
	if err != nil {
		return BuySellQuantities{}, err
	}
	if w.Cmp(baseReserve) <= 0 {
		return BuySellQuantities{GrossBase: big.NewInt(0), GrossQuote: big.NewInt(0)}, nil
	}

	net := new(big.Int).Sub(w, baseReserve)
	grossBase := grossFromNet(net, idexFeeRate, poolFeeRate)

	aP := new(big.Int).Sub(pipmath.OneInPips, idexFeeRate)
	bP := new(big.Int).Sub(aP, poolFeeRate)
	invariantIn := pipmath.MultiplyPips(grossBase, bP, false)
	depositedIn := pipmath.MultiplyPips(grossBase, aP, false)

	product := new(big.Int).Mul(baseReserve, quoteReserve)
	kept := ceilDiv(product, new(big.Int).Add(baseReserve, invariantIn))
	grossQuote := new(big.Int).Sub(quoteReserve, kept)
	if grossQuote.Sign() < 0 {
		grossQuote.SetInt64(0)
	}

	remainingQuote := new(big.Int).Sub(quoteReserve, grossQuote)
	realized := pipmath.DividePips(remainingQuote, new(big.Int).Add(baseReserve, depositedIn))
	switch realized.Cmp(targetPrice) {
	case 1:
		grossQuote.Add(grossQuote, one)
	case -1:
		grossQuote.Sub(grossQuote, one)
	}
	if grossQuote.Sign() < 0 {
		grossQuote.SetInt64(0)
	}

	return BuySellQuantities{GrossBase: grossBase, GrossQuote: grossQuote}, nil
}

// CalculateBaseQuantityOut returns the base quantity the pool pays out for a
// gross quote input. The kept base reserve is rounded up so the constant
// product never decreases in the trader's favor.
func CalculateBaseQuantityOut(baseReserve, quoteReserve, grossQuoteIn, idexFeeRate, poolFeeRate *big.Int) (*big.Int, error) {
	if err := validateReserves(baseReserve, quoteReserve); err != nil {
		return nil, err
	}
	if grossQuoteIn.Sign() == 0 {
		return big.NewInt(0), nil
	}

	bP := new(big.Int).Sub(pipmath.OneInPips, idexFeeRate)
	bP.Sub(bP, poolFeeRate)
	invariantIn := pipmath.MultiplyPips(grossQuoteIn, bP, false)

	product := new(big.Int).Mul(baseReserve, quoteReserve)
	kept := ceilDiv(product, new(big.Int).Add(quoteReserve, invariantIn))
	out := new(big.Int).Sub(baseReserve, kept)
	if out.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return out, nil
}

// CalculateQuoteQuantityOut returns the quote quantity the pool pays out for
// a gross base input, with the same ceiling rule on the kept quote reserve.
func CalculateQuoteQuantityOut(baseReserve, quoteReserve, grossBaseIn, idexFeeRate, poolFeeRate *big.Int) (*big.Int, error) {
	if err := validateReserves(baseReserve, quoteReserve); err != nil {
		return nil, err
	}
	if grossBaseIn.Sign() == 0 {
		return big.NewInt(0), nil
	}

	bP := new(big.Int).Sub(pipmath.OneInPips, idexFeeRate)
	bP.Sub(bP, poolFeeRate)
	invariantIn := pipmath.MultiplyPips(grossBaseIn, bP, false)

	product := new(big.Int).Mul(baseReserve, quoteReserve)
	kept := ceilDiv(product, new(big.Int).Add(baseReserve, invariantIn))
	out := new(big.Int).Sub(quoteReserve, kept)
	if out.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return out, nil
}
