package utils

import "math"

// OrderBookLevel is one price/volume level of a simulated order book side,
// used by SimulateMarketBuy/SimulateMarketSell to walk the book.
type OrderBookLevel struct {
	Price  float64
	Volume float64
}

// RoundToLotSize truncates value down to the nearest multiple of lotSize.
// A non-positive lotSize is a no-op (the exchange did not report a step).
func RoundToLotSize(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	steps := math.Floor(value / lotSize)
	return roundFloat(steps * lotSize)
}

// RoundToLotSizeUp rounds value up to the nearest multiple of lotSize.
func RoundToLotSizeUp(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	steps := math.Ceil(value / lotSize)
	return roundFloat(steps * lotSize)
}

// RoundToLotSizeNearest rounds value to the nearest multiple of lotSize.
func RoundToLotSizeNearest(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	steps := math.Round(value / lotSize)
	return roundFloat(steps * lotSize)
}

// roundFloat clips accumulated floating point noise from step multiplication.
func roundFloat(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}

// CalculateSpread returns (priceHigh-priceLow)/priceLow*100, or 0 if
// priceLow is not strictly positive.
func CalculateSpread(priceHigh, priceLow float64) float64 {
	if priceLow <= 0 {
		return 0
	}
	return (priceHigh - priceLow) / priceLow * 100
}

// CalculateSpreadFromPrices returns the spread between two prices
// regardless of which one is larger.
func CalculateSpreadFromPrices(priceA, priceB float64) float64 {
	if priceA <= 0 || priceB <= 0 {
		return 0
	}
	if priceA >= priceB {
		return CalculateSpread(priceA, priceB)
	}
	return CalculateSpread(priceB, priceA)
}

// CalculateNetSpread subtracts round-trip trading fees (charged on both
// legs, both directions) from a gross spread percentage.
func CalculateNetSpread(spreadPct, feeA, feeB float64) float64 {
	totalFeePct := 2 * (feeA + feeB) * 100
	return spreadPct - totalFeePct
}

// CalculateNetSpreadDirect computes the gross spread between two prices and
// subtracts round-trip fees in one call.
func CalculateNetSpreadDirect(priceHigh, priceLow, feeA, feeB float64) float64 {
	return CalculateNetSpread(CalculateSpread(priceHigh, priceLow), feeA, feeB)
}

// CalculateWeightedAverage returns the volume-weighted average of values.
// Mismatched slice lengths, an empty input, or a non-positive weight sum
// all return 0. Negative weights are dropped rather than applied.
func CalculateWeightedAverage(values, weights []float64) float64 {
	if len(values) == 0 || len(values) != len(weights) {
		return 0
	}

	var sumWeighted, sumWeights float64
	for i, v := range values {
		w := weights[i]
		if w <= 0 {
			continue
		}
		sumWeighted += v * w
		sumWeights += w
	}
	if sumWeights <= 0 {
		return 0
	}
	return sumWeighted / sumWeights
}

// SimulateMarketBuy walks asks from the top of book, filling as much of
// targetVolume as liquidity allows. It returns the volume-weighted average
// fill price, the quantity actually filled, and the slippage in percent
// relative to the best ask.
func SimulateMarketBuy(asks []OrderBookLevel, targetVolume float64) (avgPrice, filled, slippagePct float64) {
	return simulateMarketWalk(asks, targetVolume)
}

// SimulateMarketSell walks bids from the top of book the same way
// SimulateMarketBuy walks asks. Slippage is negative when the fill price is
// worse (lower) than the best bid.
func SimulateMarketSell(bids []OrderBookLevel, targetVolume float64) (avgPrice, filled, slippagePct float64) {
	return simulateMarketWalk(bids, targetVolume)
}

func simulateMarketWalk(levels []OrderBookLevel, targetVolume float64) (avgPrice, filled, slippagePct float64) {
	if len(levels) == 0 || targetVolume <= 0 {
		return 0, 0, 0
	}

	bestPrice := levels[0].Price
	var notional float64
	remaining := targetVolume

	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		take := math.Min(remaining, lvl.Volume)
		notional += take * lvl.Price
		filled += take
		remaining -= take
	}

	if filled <= 0 {
		return 0, 0, 0
	}

	avgPrice = notional / filled
	slippagePct = CalculateSpread(avgPrice, bestPrice)
	if avgPrice < bestPrice {
		slippagePct = -CalculateSpread(bestPrice, avgPrice)
	}
	return roundFloat(avgPrice), roundFloat(filled), roundFloat(slippagePct)
}

// CalculatePNL computes directional PNL for a single position.
// side must be "long" or "short"; anything else returns 0.
func CalculatePNL(side string, entryPrice, currentPrice, quantity float64) float64 {
	switch side {
	case "long":
		return (currentPrice - entryPrice) * quantity
	case "short":
		return (entryPrice - currentPrice) * quantity
	default:
		return 0
	}
}

// CalculateTotalPNL sums the PNL of a long leg and a short leg sharing the
// same quantity.
func CalculateTotalPNL(longEntry, longCurrent, shortEntry, shortCurrent, quantity float64) float64 {
	return CalculatePNL("long", longEntry, longCurrent, quantity) +
		CalculatePNL("short", shortEntry, shortCurrent, quantity)
}

// SplitVolume divides totalVolume into nParts equal, lot-size-rounded
// chunks. Returns nil for nParts <= 0 or totalVolume <= 0.
func SplitVolume(totalVolume float64, nParts int, lotSize float64) []float64 {
	if nParts <= 0 || totalVolume <= 0 {
		return nil
	}
	part := RoundToLotSizeNearest(totalVolume/float64(nParts), lotSize)
	parts := make([]float64, nParts)
	for i := range parts {
		parts[i] = part
	}
	return parts
}

// IsSpreadSufficient reports whether spreadPct meets or exceeds threshold.
func IsSpreadSufficient(spreadPct, threshold float64) bool {
	return spreadPct >= threshold
}

// ShouldExit reports whether spreadPct has compressed to or below the exit
// threshold.
func ShouldExit(spreadPct, exitThreshold float64) bool {
	return spreadPct <= exitThreshold
}

// IsStopLossHit reports whether pnl has breached a configured stop loss.
// A stopLoss of 0 means the stop is disabled.
func IsStopLossHit(pnl, stopLoss float64) bool {
	if stopLoss <= 0 {
		return false
	}
	return pnl <= -stopLoss
}

// Clamp restricts value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
