package ta

import (
	"math"
	"testing"
	"time"

	"forex-signal-engine/internal/domain"
)

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func risingCandles(n int, start, step float64) []domain.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Candle, n)
	for i := range out {
		o := start + float64(i)*step
		c := o + step
		out[i] = domain.Candle{
			Symbol:    "EURUSD",
			Timeframe: domain.TimeframeFourHour,
			OpenTime:  base.Add(time.Duration(i) * 4 * time.Hour),
			Open:      o,
			High:      c,
			Low:       o,
			Close:     c,
		}
	}
	return out
}

func flatCandles(n int, price, rng float64) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{Open: price, High: price + rng/2, Low: price - rng/2, Close: price}
	}
	return out
}

func TestRSI(t *testing.T) {
	if got := RSI([]float64{1, 2, 3}, 14); got != NeutralRSI {
		t.Fatalf("expected neutral RSI on short input, got %v", got)
	}
	up := domain.Closes(risingCandles(30, 1.1, 0.001))
	if got := RSI(up, 14); got != 100 {
		t.Fatalf("expected 100 for monotonic rise, got %v", got)
	}
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 1.1
	}
	if got := RSI(flat, 14); got != NeutralRSI {
		t.Fatalf("expected neutral RSI for flat series, got %v", got)
	}
}

func TestMovingAverages(t *testing.T) {
	if got := SMA([]float64{1, 2, 3, 4}, 2); got != 3.5 {
		t.Fatalf("expected 3.5, got %v", got)
	}
	if got := SMA([]float64{1}, 2); got != 0 {
		t.Fatalf("expected 0 on short input, got %v", got)
	}
	if got := EMA([]float64{2, 2, 2, 2}, 3); got != 2 {
		t.Fatalf("expected EMA of constant to be constant, got %v", got)
	}
	if got := EMA(nil, 3); got != 0 {
		t.Fatalf("expected 0 for empty input, got %v", got)
	}
}

func TestMACDConstantSeries(t *testing.T) {
	res := MACD([]float64{1.1, 1.1, 1.1, 1.1, 1.1}, 12, 26, 9)
	if res.Line != 0 || res.Signal != 0 || res.Histogram != 0 {
		t.Fatalf("expected zero MACD, got %+v", res)
	}
	if got := MACD(nil, 12, 26, 9); got != (MACDResult{}) {
		t.Fatalf("expected zero result for empty input, got %+v", got)
	}
}

func TestBollinger(t *testing.T) {
	flat := domain.Closes(flatCandles(25, 1.1, 0.001))
	res := Bollinger(flat, 20, 2)
	if !res.Squeeze {
		t.Fatalf("expected squeeze on flat series: %+v", res)
	}
	if res.Position != BandWithin {
		t.Fatalf("expected within, got %s", res.Position)
	}

	closes := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 2}
	res = Bollinger(closes, 10, 1)
	if res.Position != BandAbove {
		t.Fatalf("expected last close above upper band: %+v", res)
	}

	short := Bollinger([]float64{1.2}, 20, 2)
	if short.Middle != 1.2 || short.Position != BandWithin {
		t.Fatalf("unexpected short-input bands: %+v", short)
	}
}

func TestATR(t *testing.T) {
	if got := ATR(flatCandles(5, 1.1, 0.001), 14); got != 0 {
		t.Fatalf("expected 0 on short input, got %v", got)
	}
	got := ATR(flatCandles(30, 1.1, 0.001), 14)
	if !approx(got, 0.001, 1e-12) {
		t.Fatalf("expected ATR 0.001, got %v", got)
	}
}

func TestATRWilderSmoothing(t *testing.T) {
	// period 2: TRs are 0.0020, 0.0030, 0.0010; seed (0.0020+0.0030)/2, then (0.0025+0.0010)/2.
	candles := []domain.Candle{
		{Open: 1.1000, High: 1.1010, Low: 1.0990, Close: 1.1000},
		{Open: 1.1000, High: 1.1015, Low: 1.0995, Close: 1.1010},
		{Open: 1.1010, High: 1.1030, Low: 1.1000, Close: 1.1020},
		{Open: 1.1020, High: 1.1025, Low: 1.1015, Close: 1.1020},
	}
	if got := ATR(candles, 2); !approx(got, 0.00175, 1e-9) {
		t.Fatalf("expected Wilder ATR 0.00175, got %v", got)
	}
	if got := ATR(candles[:2], 2); got != 0 {
		t.Fatalf("expected 0 below period+1 candles, got %v", got)
	}
}

func TestMomentumGuards(t *testing.T) {
	short := flatCandles(3, 1.1, 0.001)
	if got := Stochastic(short, 14, 3, 3); got.K != NeutralStochastic || got.D != NeutralStochastic {
		t.Fatalf("expected neutral stochastic, got %+v", got)
	}
	if got := WilliamsR(short, 14); got != NeutralWilliamsR {
		t.Fatalf("expected neutral %%R, got %v", got)
	}
	if got := ROC([]float64{1, 2}, 10); got != 0 {
		t.Fatalf("expected 0 ROC on short input, got %v", got)
	}
}

func TestMomentumRisingSeries(t *testing.T) {
	candles := risingCandles(40, 1.1, 0.001)
	if got := Stochastic(candles, 14, 3, 3); got.K < 80 {
		t.Fatalf("expected overbought %%K on rising series, got %+v", got)
	}
	if got := WilliamsR(candles, 14); got < -20 {
		t.Fatalf("expected %%R near 0 on rising series, got %v", got)
	}

	closes := []float64{100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110}
	if got := ROC(closes, 10); !approx(got, 10, 1e-9) {
		t.Fatalf("expected ROC 10, got %v", got)
	}
}

func TestClassicPivots(t *testing.T) {
	pp := ClassicPivots(domain.Candle{High: 1.2, Low: 1.0, Close: 1.1})
	if !approx(pp.P, 1.1, 1e-12) || !approx(pp.R1, 1.2, 1e-12) || !approx(pp.S1, 1.0, 1e-12) {
		t.Fatalf("unexpected pivots: %+v", pp)
	}
	levels := pp.Levels()
	for i := 1; i < len(levels); i++ {
		if levels[i] < levels[i-1] {
			t.Fatalf("levels not ascending: %v", levels)
		}
	}
}

func TestFibonacciLevels(t *testing.T) {
	up := FibonacciLevels(1.2, 1.0, true)
	for _, lvl := range up.Retracements {
		if lvl.Ratio == 0.5 && !approx(lvl.Price, 1.1, 1e-12) {
			t.Fatalf("expected 50%% at 1.1, got %v", lvl.Price)
		}
	}
	if ext := up.Extensions[len(up.Extensions)-1]; !approx(ext.Price, 1.4, 1e-12) {
		t.Fatalf("expected 2.0 extension at 1.4, got %v", ext.Price)
	}
	down := FibonacciLevels(1.2, 1.0, false)
	if down.Retracements[0].Price >= 1.1 {
		t.Fatalf("down-move retracements should start near the low: %+v", down.Retracements)
	}
}

func TestClassifyVolatility(t *testing.T) {
	cases := []struct {
		atr  float64
		want VolatilityLevel
	}{
		{0.0005, VolatilityLow},
		{0.003, VolatilityNormal},
		{0.007, VolatilityHigh},
		{0.02, VolatilityExtreme},
	}
	for _, tc := range cases {
		if got := ClassifyVolatility(tc.atr, 1.0); got != tc.want {
			t.Fatalf("atr %v: expected %s, got %s", tc.atr, tc.want, got)
		}
	}
}

func TestClassifyRegime(t *testing.T) {
	if got := ClassifyRegime(flatCandles(5, 1.1, 0.001)); got != RegimeRanging {
		t.Fatalf("expected ranging on short input, got %s", got)
	}
	if got := ClassifyRegime(flatCandles(40, 1.1, 0.001)); got != RegimeRanging {
		t.Fatalf("expected ranging on flat input, got %s", got)
	}
}
