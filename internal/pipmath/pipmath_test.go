package pipmath

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/idexbot/internal/domain"
)

func TestDecimalToPip(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"1", 100_000_000},
		{"1.23456789", 123_456_789},
		{"1.234567895", 123_456_789}, // truncation, not rounding
		{"0.00000001", 1},
		{"0.000000009", 0},
		{"-2.5", -250_000_000},
		{"20049.99", 2_004_999_000_000},
	}
	for _, tc := range cases {
		got, err := DecimalToPip(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got.Int64(), tc.in)
	}
}

func TestDecimalToPipInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "1.2.3", "1,5"} {
		_, err := DecimalToPip(in)
		assert.True(t, errors.Is(err, domain.ErrInvalidArgument), in)
	}
}

func TestPipToDecimalRoundTrip(t *testing.T) {
	for _, in := range []string{"0.00000000", "1.00000000", "1.23456789", "12345.67800000", "-0.50000000"} {
		pip, err := DecimalToPip(in)
		require.NoError(t, err)
		assert.Equal(t, in, PipToDecimal(pip))
	}
}

func TestMultiplyPips(t *testing.T) {
	a := big.NewInt(250_000_000) // 2.5
	b := big.NewInt(40_000_000)  // 0.4
	assert.Equal(t, int64(100_000_000), MultiplyPips(a, b, false).Int64())

	// 1 pip * 1 pip truncates to zero, rounds up to one.
	one := big.NewInt(1)
	assert.Equal(t, int64(0), MultiplyPips(one, one, false).Int64())
	assert.Equal(t, int64(1), MultiplyPips(one, one, true).Int64())

	// Exact products do not round up.
	assert.Equal(t, int64(100_000_000), MultiplyPips(a, b, true).Int64())
}

func TestDividePips(t *testing.T) {
	assert.Equal(t, int64(250_000_000), DividePips(big.NewInt(100_000_000), big.NewInt(40_000_000)).Int64())
	// Defined to be zero for non-positive divisors.
	assert.Equal(t, int64(0), DividePips(big.NewInt(100), big.NewInt(0)).Int64())
	assert.Equal(t, int64(0), DividePips(big.NewInt(100), big.NewInt(-5)).Int64())
	// Truncation.
	assert.Equal(t, int64(33_333_333), DividePips(big.NewInt(100_000_000), big.NewInt(300_000_000)).Int64())
}

func TestSquareRootBigInt(t *testing.T) {
	cases := []struct {
		in   int64
		want int64
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{3, 1},
		{4, 2},
		{15, 3},
		{16, 4},
		{17, 4},
		{1_000_000, 1000},
		{999_999, 999},
	}
	for _, tc := range cases {
		got, err := SquareRootBigInt(big.NewInt(tc.in))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.Int64(), "sqrt(%d)", tc.in)
	}

	// Large value: (10^18)^2 = 10^36.
	v := new(big.Int).Exp(big.NewInt(10), big.NewInt(36), nil)
	got, err := SquareRootBigInt(v)
	require.NoError(t, err)
	want := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	assert.Zero(t, got.Cmp(want))

	_, err = SquareRootBigInt(big.NewInt(-1))
	assert.True(t, errors.Is(err, domain.ErrDomain))
}

func TestMinMaxBigInt(t *testing.T) {
	a, b := big.NewInt(5), big.NewInt(7)
	assert.Equal(t, a, MinBigInt(a, b))
	assert.Equal(t, b, MaxBigInt(a, b))
	assert.Equal(t, a, MinBigInt(a, a))
}
