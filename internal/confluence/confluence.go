// Package confluence scores trend agreement across the weekly, daily and 4H series.
package confluence

import (
	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/structure"
)

const (
	WeeklyDailyWeight   = 40
	DailyFourHourWeight = 30
	AllThreeBonus       = 30

	// MinScore is the lowest score at which trend-continuation trades are considered.
	MinScore = 40
)

// Series holds the oldest-first candles of each analysed timeframe.
type Series struct {
	Weekly   []domain.Candle
	Daily    []domain.Candle
	FourHour []domain.Candle
}

type Result struct {
	Analysis   domain.MultiTimeframeAnalysis               `json:"analysis"`
	Structures map[domain.Timeframe]domain.MarketStructure `json:"structures"`
}

// Structure returns the analysed structure for tf, neutral if absent.
func (r Result) Structure(tf domain.Timeframe) domain.MarketStructure {
	if s, ok := r.Structures[tf]; ok {
		return s
	}
	return domain.MarketStructure{Trend: domain.TrendNeutral}
}

// Analyze runs the structure analyzer on each timeframe independently and scores the result.
func Analyze(s Series) Result {
	w := structure.Analyze(s.Weekly)
	d := structure.Analyze(s.Daily)
	h := structure.Analyze(s.FourHour)
	return Result{
		Analysis: Score(w.Trend, d.Trend, h.Trend),
		Structures: map[domain.Timeframe]domain.MarketStructure{
			domain.TimeframeWeekly:   w,
			domain.TimeframeDaily:    d,
			domain.TimeframeFourHour: h,
		},
	}
}

func aligned(a, b domain.Trend) bool {
	return a == b && a != domain.TrendNeutral
}

// Score combines three trend labels into a 0-100 confluence score and a trading bias.
func Score(weekly, daily, fourHour domain.Trend) domain.MultiTimeframeAnalysis {
	out := domain.MultiTimeframeAnalysis{
		Weekly:       weekly,
		Daily:        daily,
		FourHour:     fourHour,
		TradingBias:  domain.BiasNoTrade,
		AlignedPairs: []domain.TimeframePair{},
	}

	var biasTrend domain.Trend
	if aligned(weekly, daily) {
		out.ConfluenceScore += WeeklyDailyWeight
		out.AlignedPairs = append(out.AlignedPairs, domain.PairWeeklyDaily)
		biasTrend = weekly
	}
	if aligned(daily, fourHour) {
		out.ConfluenceScore += DailyFourHourWeight
		out.AlignedPairs = append(out.AlignedPairs, domain.PairDailyFourHour)
		if biasTrend == "" {
			biasTrend = daily
		}
	}
	if aligned(weekly, daily) && aligned(daily, fourHour) {
		out.ConfluenceScore += AllThreeBonus
		out.AlignedPairs = append(out.AlignedPairs, domain.PairAllThree)
	}

	switch biasTrend {
	case domain.TrendBullish:
		out.TradingBias = domain.BiasBuy
	case domain.TrendBearish:
		out.TradingBias = domain.BiasSell
	}
	return out
}
