// Package ta implements the technical indicators used by the analysis pipeline.
// Every function is pure and degrades to a neutral value on short input.
package ta

import (
	"math"

	"forex-signal-engine/internal/domain"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

const (
	NeutralRSI = 50.0

	// SqueezeBandwidth is the band width, as a fraction of the middle band, under which
	// Bollinger bands count as squeezed.
	SqueezeBandwidth = 0.002
)

func MeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(values, nil)
}

func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	return stat.Mean(values[len(values)-period:], nil)
}

func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	if period <= 1 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// EMA returns the latest value of the exponential moving average, 0 for empty input.
func EMA(values []float64, period int) float64 {
	series := EMASeries(values, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

func RSISeries(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) <= period {
		return nil
	}
	series := make([]float64, len(closes))
	for i := range series {
		series[i] = math.NaN()
	}

	var gainSum float64
	var lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	series[period] = rsiFromAvg(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain := math.Max(delta, 0)
		loss := math.Max(-delta, 0)
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		series[i] = rsiFromAvg(avgGain, avgLoss)
	}
	return series
}

// RSI returns the latest Wilder RSI, or NeutralRSI when fewer than period+1 closes exist.
func RSI(closes []float64, period int) float64 {
	series := RSISeries(closes, period)
	if len(series) == 0 {
		return NeutralRSI
	}
	return series[len(series)-1]
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return NeutralRSI
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func MACDSeries(values []float64, fast, slow, signal int) ([]float64, []float64) {
	if len(values) == 0 {
		return nil, nil
	}
	fastEMA := EMASeries(values, fast)
	slowEMA := EMASeries(values, slow)
	macdLine := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := EMASeries(macdLine, signal)
	return macdLine, signalLine
}

type MACDResult struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD returns the latest line/signal/histogram triple.
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	line, sig := MACDSeries(closes, fast, slow, signal)
	if len(line) == 0 {
		return MACDResult{}
	}
	l, s := line[len(line)-1], sig[len(sig)-1]
	return MACDResult{Line: l, Signal: s, Histogram: l - s}
}

type BandPosition string

const (
	BandAbove  BandPosition = "above"
	BandBelow  BandPosition = "below"
	BandWithin BandPosition = "within"
)

type BollingerResult struct {
	Middle    float64      `json:"middle"`
	Upper     float64      `json:"upper"`
	Lower     float64      `json:"lower"`
	Bandwidth float64      `json:"bandwidth"`
	Position  BandPosition `json:"position"`
	Squeeze   bool         `json:"squeeze"`
}

// Bollinger computes bands over the trailing period closes. With fewer samples the bands
// collapse onto the last close.
func Bollinger(closes []float64, period int, stdDevs float64) BollingerResult {
	if len(closes) == 0 {
		return BollingerResult{Position: BandWithin}
	}
	last := closes[len(closes)-1]
	if period <= 0 || len(closes) < period {
		return BollingerResult{Middle: last, Upper: last, Lower: last, Position: BandWithin}
	}
	mean, std := MeanStd(closes[len(closes)-period:])
	res := BollingerResult{
		Middle: mean,
		Upper:  mean + stdDevs*std,
		Lower:  mean - stdDevs*std,
	}
	if mean != 0 {
		res.Bandwidth = (res.Upper - res.Lower) / mean
	}
	res.Squeeze = res.Bandwidth < SqueezeBandwidth
	switch {
	case last > res.Upper:
		res.Position = BandAbove
	case last < res.Lower:
		res.Position = BandBelow
	default:
		res.Position = BandWithin
	}
	return res
}

// ATR returns Wilder's average true range, or 0 when fewer than period+1 candles exist.
func ATR(candles []domain.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	highs, lows, closes := domain.HighsLowsCloses(candles)
	v := lastFinite(talib.Atr(highs, lows, closes, period))
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
