package orderbook

import (
	"math/big"

	"github.com/alanyoungcy/idexbot/internal/domain"
	"github.com/alanyoungcy/idexbot/internal/pipmath"
)

// SyntheticLevels is the AMM depth ladder for both sides of a market.
type SyntheticLevels struct {
	Asks domain.Ladder
	Bids domain.Ladder
}

// CalculateSyntheticPriceLevels expands pool reserves into a ladder of
// synthetic price levels at increasing slippage from the current pool price.
// Level i sits slippageIncrement*i pips away from the pool price and carries
// the marginal (non-cumulative) base quantity available between level i-1 and
// level i. Zero-size levels are never emitted, so cumulative size is strictly
// increasing along each side.
func CalculateSyntheticPriceLevels(baseReserve, quoteReserve *big.Int, numLevels int, slippageIncrement, idexFeeRate, poolFeeRate *big.Int) (SyntheticLevels, error) {
	if err := validateReserves(baseReserve, quoteReserve); err != nil {
		return SyntheticLevels{}, err
	}

	levels := SyntheticLevels{}
	if numLevels <= 0 || slippageIncrement.Sign() <= 0 {
		return levels, nil
	}

	poolPrice := pipmath.DividePips(quoteReserve, baseReserve)

	askCumulative := big.NewInt(0)
	for i := 1; i <= numLevels; i++ {
		offset := new(big.Int).Mul(slippageIncrement, big.NewInt(int64(i)))
		price := new(big.Int).Add(poolPrice, offset)

		quantities, err := CalculateBuyQuantitiesForTargetPrice(baseReserve, quoteReserve, price, idexFeeRate, poolFeeRate)
		if err != nil {
			return SyntheticLevels{}, err
		}

		marginal := new(big.Int).Sub(quantities.GrossBase, askCumulative)
		if marginal.Sign() > 0 {
			levels.Asks = append(levels.Asks, domain.PriceLevel{
				Price: price,
				Size:  marginal,
				Kind:  domain.LevelKindPool,
			})
			askCumulative = quantities.GrossBase
		}
	}

	bidCumulative := big.NewInt(0)
	for i := 1; i <= numLevels; i++ {
		offset := new(big.Int).Mul(slippageIncrement, big.NewInt(int64(i)))
		price := new(big.Int).Sub(poolPrice, offset)
		if price.Sign() <= 0 {
			break
		}

		quantities, err := CalculateSellQuantitiesForTargetPrice(baseReserve, quoteReserve, price, idexFeeRate, poolFeeRate)
		if err != nil {
			return SyntheticLevels{}, err
		}

		marginal := new(big.Int).Sub(quantities.GrossBase, bidCumulative)
		if marginal.Sign() > 0 {
			levels.Bids = append(levels.Bids, domain.PriceLevel{
				Price: price,
				Size:  marginal,
				Kind:  domain.LevelKindPool,
			})
			bidCumulative = quantities.GrossBase
		}
	}

	return levels, nil
}
