package orderbook

import (
	"math/big"

	"github.com/alanyoungcy/idexbot/internal/domain"
	"github.com/alanyoungcy/idexbot/internal/pipmath"
)

func zeroSwapQuote() domain.SwapQuote {
	return domain.SwapQuote{
		OutputExpected: big.NewInt(0),
		OutputMinimum:  big.NewInt(0),
		Price:          big.NewInt(0),
		InvertedPrice:  big.NewInt(0),
		PriceImpact:    big.NewInt(0),
		FeeQuantity:    big.NewInt(0),
		LimitPrice:     big.NewInt(0),
	}
}

// poolState tracks the running reserves while a swap walk consumes pool
// liquidity boundary by boundary.
type poolState struct {
	base  *big.Int
	quote *big.Int
}

func (p *poolState) price() *big.Int {
	return pipmath.DividePips(p.quote, p.base)
}

// applyQuoteIn advances the reserves by a gross quote input (buy direction).
func (p *poolState) applyQuoteIn(grossQuote, idexFeeRate, poolFeeRate *big.Int) {
	aP := new(big.Int).Sub(pipmath.OneInPips, idexFeeRate)
	bP := new(big.Int).Sub(aP, poolFeeRate)
	invariantIn := pipmath.MultiplyPips(grossQuote, bP, false)
	depositedIn := pipmath.MultiplyPips(grossQuote, aP, false)
	product := new(big.Int).Mul(p.base, p.quote)
	p.base = ceilDiv(product, new(big.Int).Add(p.quote, invariantIn))
	p.quote = new(big.Int).Add(p.quote, depositedIn)
}

// applyBaseIn advances the reserves by a gross base input (sell direction).
func (p *poolState) applyBaseIn(grossBase, idexFeeRate, poolFeeRate *big.Int) {
	aP := new(big.Int).Sub(pipmath.OneInPips, idexFeeRate)
	bP := new(big.Int).Sub(aP, poolFeeRate)
	invariantIn := pipmath.MultiplyPips(grossBase, bP, false)
	depositedIn := pipmath.MultiplyPips(grossBase, aP, false)
	product := new(big.Int).Mul(p.base, p.quote)
	p.quote = ceilDiv(product, new(big.Int).Add(p.base, invariantIn))
	p.base = new(big.Int).Add(p.base, depositedIn)
}

// QuoteSwap prices a hypothetical swap of inputQuantity against a book.
// When isQuoteAsset is true the input is the quote asset and the swap buys
// base off the ask side; otherwise it sells base into the bid side.
// poolSlippageLimit bounds how far past its current price the pool may be
// pushed; pool liquidity beyond that boundary is never consumed.
func QuoteSwap(inputQuantity *big.Int, isQuoteAsset bool, book *domain.L2OrderBook, idexFeeRate, poolFeeRate, poolSlippageLimit *big.Int) (domain.SwapQuote, error) {
	quote := zeroSwapQuote()
	if inputQuantity == nil || inputQuantity.Sign() <= 0 {
		return quote, nil
	}

	v0 := pipmath.OneInPips
	combinedFee := new(big.Int).Add(idexFeeRate, poolFeeRate)

	var levels domain.Ladder
	if isQuoteAsset {
		levels = book.Asks
	} else {
		levels = book.Bids
	}

	var pool *poolState
	var midPrice *big.Int
	if book.Pool != nil {
		if err := validateReserves(book.Pool.BaseReserveQuantity, book.Pool.QuoteReserveQuantity); err != nil {
			return quote, err
		}
		pool = &poolState{
			base:  book.Pool.BaseReserveQuantity,
			quote: book.Pool.QuoteReserveQuantity,
		}
		midPrice = pool.price()

		// Pool-only pass: output and resulting pool price if the whole input
		// went through the pool.
		probe := poolState{base: pool.base, quote: pool.quote}
		var poolOnlyOut *big.Int
		var err error
		if isQuoteAsset {
			poolOnlyOut, err = CalculateBaseQuantityOut(pool.base, pool.quote, inputQuantity, idexFeeRate, poolFeeRate)
			if err != nil {
				return quote, err
			}
			probe.applyQuoteIn(inputQuantity, idexFeeRate, poolFeeRate)
		} else {
			poolOnlyOut, err = CalculateQuoteQuantityOut(pool.base, pool.quote, inputQuantity, idexFeeRate, poolFeeRate)
			if err != nil {
				return quote, err
			}
			probe.applyBaseIn(inputQuantity, idexFeeRate, poolFeeRate)
		}
		postPrice := probe.price()

		if isQuoteAsset {
			quote.LimitPrice = pipmath.MultiplyPips(postPrice, new(big.Int).Add(v0, poolSlippageLimit), true)
		} else {
			quote.LimitPrice = pipmath.MultiplyPips(postPrice, new(big.Int).Sub(v0, poolSlippageLimit), false)
		}

		// If the pool alone never reaches the best opposing limit level, the
		// limit book cannot improve the quote.
		poolOnly := len(levels) == 0
		if !poolOnly {
			if isQuoteAsset {
				poolOnly = postPrice.Cmp(levels[0].Price) <= 0
			} else {
				poolOnly = postPrice.Cmp(levels[0].Price) >= 0
			}
		}
		if poolOnly {
			quote.OutputExpected = poolOnlyOut
			quote.FeeQuantity = pipmath.MultiplyPips(inputQuantity, combinedFee, false)
			finishSwapQuote(&quote, inputQuantity, isQuoteAsset, midPrice, poolSlippageLimit)
			return quote, nil
		}

		// The walk below may consume pool liquidity only up to the slippage
		// boundary: represent it as a synthetic level in the ladder.
		boundary := domain.PriceLevel{Price: quote.LimitPrice, Size: big.NewInt(0), Kind: domain.LevelKindPool}
		levels = insertLevel(isQuoteAsset, levels, boundary)
	} else if len(levels) > 0 {
		midPrice = levels[0].Price
	}

	remaining := new(big.Int).Set(inputQuantity)
	received := big.NewInt(0)
	fee := big.NewInt(0)

	for _, level := range levels {
		if remaining.Sign() == 0 {
			break
		}

		// Consume pool liquidity up to this level's price boundary first.
		if pool != nil {
			target := level.Price
			if isQuoteAsset {
				target = pipmath.MinBigInt(target, quote.LimitPrice)
			} else {
				target = pipmath.MaxBigInt(target, quote.LimitPrice)
			}
			if isQuoteAsset && target.Cmp(pool.price()) > 0 {
				quantities, err := CalculateBuyQuantitiesForTargetPrice(pool.base, pool.quote, target, idexFeeRate, poolFeeRate)
				if err == nil && quantities.GrossQuote.Sign() > 0 {
					if quantities.GrossQuote.Cmp(remaining) >= 0 {
						out, outErr := CalculateBaseQuantityOut(pool.base, pool.quote, remaining, idexFeeRate, poolFeeRate)
						if outErr != nil {
							return quote, outErr
						}
						received.Add(received, out)
						fee.Add(fee, pipmath.MultiplyPips(remaining, combinedFee, false))
						remaining.SetInt64(0)
						break
					}
					received.Add(received, quantities.GrossBase)
					fee.Add(fee, pipmath.MultiplyPips(quantities.GrossQuote, combinedFee, false))
					remaining.Sub(remaining, quantities.GrossQuote)
					pool.applyQuoteIn(quantities.GrossQuote, idexFeeRate, poolFeeRate)
				}
			} else if !isQuoteAsset && target.Sign() > 0 && target.Cmp(pool.price()) < 0 {
				quantities, err := CalculateSellQuantitiesForTargetPrice(pool.base, pool.quote, target, idexFeeRate, poolFeeRate)
				if err == nil && quantities.GrossBase.Sign() > 0 {
					if quantities.GrossBase.Cmp(remaining) >= 0 {
						out, outErr := CalculateQuoteQuantityOut(pool.base, pool.quote, remaining, idexFeeRate, poolFeeRate)
						if outErr != nil {
							return quote, outErr
						}
						received.Add(received, out)
						fee.Add(fee, pipmath.MultiplyPips(remaining, combinedFee, false))
						remaining.SetInt64(0)
						break
					}
					received.Add(received, quantities.GrossQuote)
					fee.Add(fee, pipmath.MultiplyPips(quantities.GrossBase, combinedFee, false))
					remaining.Sub(remaining, quantities.GrossBase)
					pool.applyBaseIn(quantities.GrossBase, idexFeeRate, poolFeeRate)
				}
			}
		}

		// Then the resting limit liquidity at the level itself.
		if level.Kind != domain.LevelKindLimit || level.Size.Sign() <= 0 {
			continue
		}
		if isQuoteAsset {
			cost := pipmath.MultiplyPips(level.Size, level.Price, true)
			if cost.Cmp(remaining) >= 0 {
				received.Add(received, pipmath.DividePips(remaining, level.Price))
				fee.Add(fee, pipmath.MultiplyPips(remaining, idexFeeRate, false))
				remaining.SetInt64(0)
				break
			}
			received.Add(received, level.Size)
			fee.Add(fee, pipmath.MultiplyPips(cost, idexFeeRate, false))
			remaining.Sub(remaining, cost)
		} else {
			if level.Size.Cmp(remaining) >= 0 {
				received.Add(received, pipmath.MultiplyPips(remaining, level.Price, false))
				fee.Add(fee, pipmath.MultiplyPips(remaining, idexFeeRate, false))
				remaining.SetInt64(0)
				break
			}
			received.Add(received, pipmath.MultiplyPips(level.Size, level.Price, false))
			fee.Add(fee, pipmath.MultiplyPips(level.Size, idexFeeRate, false))
			remaining.Sub(remaining, level.Size)
		}
	}

	quote.OutputExpected = received
	quote.FeeQuantity = fee
	finishSwapQuote(&quote, inputQuantity, isQuoteAsset, midPrice, poolSlippageLimit)
	return quote, nil
}

// finishSwapQuote fills the derived fields: effective prices, the minimum
// output under the slippage tolerance, and the price impact relative to the
// mid-price-implied output.
func finishSwapQuote(quote *domain.SwapQuote, input *big.Int, isQuoteAsset bool, midPrice, poolSlippageLimit *big.Int) {
	v0 := pipmath.OneInPips
	out := quote.OutputExpected
	if out.Sign() > 0 {
		if isQuoteAsset {
			quote.Price = pipmath.DividePips(input, out)
			quote.InvertedPrice = pipmath.DividePips(out, input)
		} else {
			quote.Price = pipmath.DividePips(out, input)
			quote.InvertedPrice = pipmath.DividePips(input, out)
		}
	}
	quote.OutputMinimum = pipmath.MultiplyPips(out, new(big.Int).Sub(v0, poolSlippageLimit), false)

	if midPrice == nil || midPrice.Sign() <= 0 {
		return
	}
	var ideal *big.Int
	if isQuoteAsset {
		ideal = pipmath.DividePips(input, midPrice)
	} else {
		ideal = pipmath.MultiplyPips(input, midPrice, false)
	}
	if ideal.Sign() <= 0 || out.Cmp(ideal) >= 0 {
		return
	}
	shortfall := new(big.Int).Sub(ideal, out)
	quote.PriceImpact = pipmath.DividePips(shortfall, ideal)
}
