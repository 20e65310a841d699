package ta

import (
	"math"

	"forex-signal-engine/internal/domain"
)

type VolatilityLevel string

const (
	VolatilityLow     VolatilityLevel = "low"
	VolatilityNormal  VolatilityLevel = "normal"
	VolatilityHigh    VolatilityLevel = "high"
	VolatilityExtreme VolatilityLevel = "extreme"
)

// ATR as a percentage of price at which each level starts.
const (
	normalVolatilityPct  = 0.15
	highVolatilityPct    = 0.5
	extremeVolatilityPct = 1.0
)

// ClassifyVolatility buckets ATR relative to price.
func ClassifyVolatility(atr, price float64) VolatilityLevel {
	if price <= 0 || atr <= 0 {
		return VolatilityNormal
	}
	pct := atr / price * 100
	switch {
	case pct >= extremeVolatilityPct:
		return VolatilityExtreme
	case pct >= highVolatilityPct:
		return VolatilityHigh
	case pct >= normalVolatilityPct:
		return VolatilityNormal
	default:
		return VolatilityLow
	}
}

type Regime string

const (
	RegimeTrending Regime = "trending"
	RegimeRanging  Regime = "ranging"
	RegimeVolatile Regime = "volatile"
)

const regimeSlopeBars = 10

// ClassifyRegime labels a series trending when the 20 EMA moved more than 1.5 ATR over the
// last ten bars, volatile when volatility is high or extreme, ranging otherwise.
func ClassifyRegime(candles []domain.Candle) Regime {
	if len(candles) < 20+regimeSlopeBars {
		return RegimeRanging
	}
	atr := ATR(candles, 14)
	last := candles[len(candles)-1].Close
	switch ClassifyVolatility(atr, last) {
	case VolatilityHigh, VolatilityExtreme:
		return RegimeVolatile
	}
	ema := EMASeries(domain.Closes(candles), 20)
	slope := math.Abs(ema[len(ema)-1] - ema[len(ema)-1-regimeSlopeBars])
	if atr > 0 && slope > 1.5*atr {
		return RegimeTrending
	}
	return RegimeRanging
}
