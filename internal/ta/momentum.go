package ta

import (
	"math"

	"forex-signal-engine/internal/domain"

	"github.com/markcheno/go-talib"
)

const (
	NeutralStochastic = 50.0
	NeutralWilliamsR  = -50.0
)

type StochasticResult struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

// Stochastic returns the slow %K/%D pair.
func Stochastic(candles []domain.Candle, kPeriod, slowK, slowD int) StochasticResult {
	neutral := StochasticResult{K: NeutralStochastic, D: NeutralStochastic}
	if kPeriod <= 0 || slowK <= 0 || slowD <= 0 || len(candles) < kPeriod+slowK+slowD {
		return neutral
	}
	highs, lows, closes := domain.HighsLowsCloses(candles)
	k, d := talib.Stoch(highs, lows, closes, kPeriod, slowK, talib.SMA, slowD, talib.SMA)
	lk, ld := lastFinite(k), lastFinite(d)
	if math.IsNaN(lk) || math.IsNaN(ld) {
		return neutral
	}
	return StochasticResult{K: lk, D: ld}
}

// WilliamsR returns %R in [-100, 0].
func WilliamsR(candles []domain.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return NeutralWilliamsR
	}
	highs, lows, closes := domain.HighsLowsCloses(candles)
	v := lastFinite(talib.WillR(highs, lows, closes, period))
	if math.IsNaN(v) {
		return NeutralWilliamsR
	}
	return v
}

// ROC returns the percentage rate of change over period closes.
func ROC(closes []float64, period int) float64 {
	if period <= 0 || len(closes) <= period {
		return 0
	}
	v := lastFinite(talib.Roc(closes, period))
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func lastFinite(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	v := series[len(series)-1]
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}
