package domain

import (
	"errors"
	"strings"
	"time"
)

var ErrUnknownTimeframe = errors.New("unknown timeframe")

// Timeframe is the candle interval of an OHLCV series.
type Timeframe string

const (
	TimeframeWeekly   Timeframe = "W"
	TimeframeDaily    Timeframe = "1D"
	TimeframeFourHour Timeframe = "4H"
	TimeframeHourly   Timeframe = "1H"
	Timeframe15Min    Timeframe = "15M"
	Timeframe5Min     Timeframe = "5M"
	Timeframe1Min     Timeframe = "1M"
)

// SupportedTimeframes lists every interval the candle store may hold.
var SupportedTimeframes = []Timeframe{
	TimeframeWeekly, TimeframeDaily, TimeframeFourHour,
	TimeframeHourly, Timeframe15Min, Timeframe5Min, Timeframe1Min,
}

// AnalysisTimeframes are the series the confluence engine runs on, highest first.
var AnalysisTimeframes = []Timeframe{TimeframeWeekly, TimeframeDaily, TimeframeFourHour}

// ParseTimeframe accepts the canonical labels case-insensitively plus "D" for daily.
func ParseTimeframe(s string) (Timeframe, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "D" {
		return TimeframeDaily, nil
	}
	for _, tf := range SupportedTimeframes {
		if string(tf) == v {
			return tf, nil
		}
	}
	return "", ErrUnknownTimeframe
}

// Candle represents a single OHLCV candle for a pair at a given timeframe.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool { return c.Close > c.Open }

// IsBearish reports whether the candle closed below its open.
func (c Candle) IsBearish() bool { return c.Close < c.Open }

// Body is the absolute open-to-close distance.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range is the high-to-low distance.
func (c Candle) Range() float64 { return c.High - c.Low }

// Closes extracts the close series.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// HighsLowsCloses splits candles into the three parallel series most indicators take.
func HighsLowsCloses(candles []Candle) (highs, lows, closes []float64) {
	highs = make([]float64, len(candles))
	lows = make([]float64, len(candles))
	closes = make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	return highs, lows, closes
}

// PriceUpdate is a single live quote for a pair.
type PriceUpdate struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceSnapshot maps symbol to its latest price.
type PriceSnapshot map[string]float64

// DefaultSymbols lists the pairs tracked when FX_SYMBOLS is not configured.
var DefaultSymbols = []string{
	"EURUSD", "GBPUSD", "USDJPY", "EURJPY", "GBPJPY",
	"AUDUSD", "USDCAD", "USDCHF", "NZDUSD", "EURGBP",
}

// NormalizeSymbol upper-cases a pair and strips common separators ("eur/usd" -> "EURUSD").
func NormalizeSymbol(s string) string {
	r := strings.NewReplacer("/", "", "_", "", "-", "", " ", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(s)))
}
