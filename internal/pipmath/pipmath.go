// Package pipmath implements exact fixed-point arithmetic over pip-scaled
// integers. One pip is 1e-8 of a decimal quantity; every operation is carried
// out on big integers so no binary floating point ever enters the pipeline.
package pipmath

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/idexbot/internal/domain"
)

// PipDecimals is the number of fractional digits a pip represents.
const PipDecimals = 8

// OneInPips is 1.0 expressed in pips. Treat as read-only.
var OneInPips = big.NewInt(100_000_000)

var three = big.NewInt(3)

// DecimalToPip parses an arbitrary-precision decimal string and converts it
// to pips, truncating (toward zero) any digits beyond the eighth decimal
// place.
func DecimalToPip(value string) (*big.Int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("pipmath: parse decimal %q: %w", value, domain.ErrInvalidArgument)
	}
	// Shift is exact; BigInt truncates the remaining fractional component.
	return d.Shift(PipDecimals).BigInt(), nil
}

// PipToDecimal renders a pip value as a decimal string with exactly eight
// fractional digits.
func PipToDecimal(pip *big.Int) string {
	return decimal.NewFromBigInt(pip, -PipDecimals).StringFixed(PipDecimals)
}

// MultiplyPips computes a*b/1e8 with the full product taken at unbounded
// precision before dividing. When roundUp is true and the division leaves a
// remainder, the quotient is incremented by one pip.
func MultiplyPips(a, b *big.Int, roundUp bool) *big.Int {
	product := new(big.Int).Mul(a, b)
	quo, rem := product.QuoRem(product, OneInPips, new(big.Int))
	if roundUp && rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

// DividePips computes a*1e8/b, truncated. A non-positive divisor yields zero
// so that callers walking possibly-empty books stay branch-free.
func DividePips(a, b *big.Int) *big.Int {
	if b.Sign() <= 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(a, OneInPips)
	return scaled.Quo(scaled, b)
}

// SquareRootBigInt returns the integer square root of v via Newton's method,
// rounded down. Values in (0, 3] return 1 as the floor-rounding edge case and
// zero returns zero. Negative input is outside the function's domain.
func SquareRootBigInt(v *big.Int) (*big.Int, error) {
	if v.Sign() < 0 {
		return nil, fmt.Errorf("pipmath: square root of negative value %s: %w", v.String(), domain.ErrDomain)
	}
	if v.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if v.Cmp(three) <= 0 {
		return big.NewInt(1), nil
	}

	// Start from a power of two guaranteed to be at least the root, then
	// iterate x = (x + v/x) / 2 until the sequence stops decreasing.
	z := new(big.Int).Lsh(big.NewInt(1), uint(v.BitLen()/2+1))
	for {
		y := new(big.Int).Quo(v, z)
		y.Add(y, z)
		y.Rsh(y, 1)
		if y.Cmp(z) >= 0 {
			return z, nil
		}
		z = y
	}
}

// MinBigInt returns the smaller of a and b.
func MinBigInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// MaxBigInt returns the larger of a and b.
func MaxBigInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
