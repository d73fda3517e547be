package domain

import "math/big"

// All prices, sizes, and reserve quantities are pips: integers scaled by 1e8.
// A *big.Int stored in any of these types is treated as immutable; arithmetic
// always allocates a fresh value.

// LevelKind distinguishes resting limit-order levels from synthetic levels
// derived from pool reserves.
type LevelKind int

const (
	LevelKindLimit LevelKind = iota
	LevelKindPool
)

// PriceLevel is one entry in an order book side.
type PriceLevel struct {
	Price     *big.Int
	Size      *big.Int
	NumOrders int
	Kind      LevelKind
}

// ZeroLevel is the sentinel returned for the best bid/ask of an empty side.
func ZeroLevel() PriceLevel {
	return PriceLevel{Price: big.NewInt(0), Size: big.NewInt(0)}
}

// Ladder is one side of a level-2 book: strictly sorted by price (ascending
// for asks, descending for bids) with at most one level per distinct price
// and no zero-size levels.
type Ladder []PriceLevel

// PoolReserves holds the constant-product AMM reserves for a hybrid market.
type PoolReserves struct {
	BaseReserveQuantity  *big.Int
	QuoteReserveQuantity *big.Int
}

// Equal reports whether two reserve pairs are numerically identical. Either
// receiver or argument may be nil.
func (p *PoolReserves) Equal(other *PoolReserves) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.BaseReserveQuantity.Cmp(other.BaseReserveQuantity) == 0 &&
		p.QuoteReserveQuantity.Cmp(other.QuoteReserveQuantity) == 0
}

// L2OrderBook is the full-depth view of a market. Sequence is assigned by the
// exchange and is the sole anchor for applying incremental diffs.
type L2OrderBook struct {
	Sequence uint64
	Bids     Ladder
	Asks     Ladder
	Pool     *PoolReserves
}

// L1OrderBook is the top-of-book view, always derived from an L2OrderBook.
type L1OrderBook struct {
	Sequence uint64
	BestBid  PriceLevel
	BestAsk  PriceLevel
	Pool     *PoolReserves
}

// FeeRates are the taker fee parameters applied when composing hybrid books
// and quoting swaps. Rates are pips (1e8 = 100%).
type FeeRates struct {
	IdexFeeRate               *big.Int
	PoolFeeRate               *big.Int
	TakerMinimumInNativeAsset *big.Int
}

// ZeroFeeRates returns an all-zero FeeRates value, the default before the
// exchange info endpoint has been consulted.
func ZeroFeeRates() FeeRates {
	return FeeRates{
		IdexFeeRate:               big.NewInt(0),
		PoolFeeRate:               big.NewInt(0),
		TakerMinimumInNativeAsset: big.NewInt(0),
	}
}

// SwapQuote is the result of pricing a hypothetical swap against a hybrid
// book. All fields are pips; FeeQuantity is denominated in the input asset.
type SwapQuote struct {
	OutputExpected *big.Int
	OutputMinimum  *big.Int
	Price          *big.Int
	InvertedPrice  *big.Int
	PriceImpact    *big.Int
	FeeQuantity    *big.Int
	LimitPrice     *big.Int
}
