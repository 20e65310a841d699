// Package structure detects swing points in a candle series and labels the resulting trend.
package structure

import (
	"math"

	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/ta"
)

const (
	// MinCandles is the shortest series that can contain a 2-bar swing.
	MinCandles = 5

	atrPeriod     = 14
	minATRSpacing = 0.5
	trendWindow   = 4
	trendVotes    = 3
)

type swing struct {
	high  bool
	index int
	price float64
}

// Analyze returns the market structure of an oldest-first candle series.
func Analyze(candles []domain.Candle) domain.MarketStructure {
	if len(candles) < MinCandles {
		return domain.MarketStructure{Trend: domain.TrendNeutral, Points: []domain.StructurePoint{}}
	}

	atr := ta.ATR(candles, atrPeriod)
	points := classify(candles, filterSwings(findSwings(candles), atr*minATRSpacing))

	hi, lo := rangeOf(candles)
	return domain.MarketStructure{
		Trend:       TrendOf(points),
		Points:      points,
		CurrentHigh: hi,
		CurrentLow:  lo,
	}
}

func findSwings(candles []domain.Candle) []swing {
	var out []swing
	for i := 2; i < len(candles)-2; i++ {
		h := candles[i].High
		if h > candles[i-1].High && h > candles[i+1].High && h > candles[i-2].High && h > candles[i+2].High {
			out = append(out, swing{high: true, index: i, price: h})
		}
		l := candles[i].Low
		if l < candles[i-1].Low && l < candles[i+1].Low && l < candles[i-2].Low && l < candles[i+2].Low {
			out = append(out, swing{high: false, index: i, price: l})
		}
	}
	return out
}

// filterSwings drops swings closer than minDistance to the previously accepted one.
func filterSwings(swings []swing, minDistance float64) []swing {
	if len(swings) == 0 {
		return swings
	}
	out := []swing{swings[0]}
	for _, s := range swings[1:] {
		last := out[len(out)-1]
		if minDistance > 0 && math.Abs(s.price-last.price) < minDistance {
			continue
		}
		out = append(out, s)
	}
	return out
}

func classify(candles []domain.Candle, swings []swing) []domain.StructurePoint {
	points := make([]domain.StructurePoint, 0, len(swings))
	maxHigh, minLow := math.Inf(-1), math.Inf(1)
	for _, s := range swings {
		var kind domain.PointKind
		if s.high {
			kind = domain.PointLH
			if s.price > maxHigh {
				kind = domain.PointHH
			}
			maxHigh = math.Max(maxHigh, s.price)
		} else {
			kind = domain.PointLL
			if !math.IsInf(minLow, 1) && s.price > minLow {
				kind = domain.PointHL
			}
			minLow = math.Min(minLow, s.price)
		}
		points = append(points, domain.StructurePoint{
			Kind:          kind,
			Price:         s.price,
			Timestamp:     candles[s.index].OpenTime,
			SequenceIndex: s.index,
		})
	}
	return points
}

// TrendOf votes over the last four points.
func TrendOf(points []domain.StructurePoint) domain.Trend {
	if len(points) < trendWindow {
		return domain.TrendNeutral
	}
	var bull, bear int
	for _, p := range points[len(points)-trendWindow:] {
		switch {
		case p.Kind.IsBullish():
			bull++
		case p.Kind.IsBearish():
			bear++
		}
	}
	switch {
	case bull >= trendVotes:
		return domain.TrendBullish
	case bear >= trendVotes:
		return domain.TrendBearish
	default:
		return domain.TrendNeutral
	}
}

// LastOfKind returns the most recent point matching any of kinds.
func LastOfKind(points []domain.StructurePoint, kinds ...domain.PointKind) (domain.StructurePoint, bool) {
	for i := len(points) - 1; i >= 0; i-- {
		for _, k := range kinds {
			if points[i].Kind == k {
				return points[i], true
			}
		}
	}
	return domain.StructurePoint{}, false
}

// Highs returns the swing highs in sequence order.
func Highs(points []domain.StructurePoint) []domain.StructurePoint {
	var out []domain.StructurePoint
	for _, p := range points {
		if p.Kind.IsHigh() {
			out = append(out, p)
		}
	}
	return out
}

// Lows returns the swing lows in sequence order.
func Lows(points []domain.StructurePoint) []domain.StructurePoint {
	var out []domain.StructurePoint
	for _, p := range points {
		if p.Kind.IsLow() {
			out = append(out, p)
		}
	}
	return out
}

func rangeOf(candles []domain.Candle) (float64, float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	hi, lo := candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		hi = math.Max(hi, c.High)
		lo = math.Min(lo, c.Low)
	}
	return hi, lo
}
