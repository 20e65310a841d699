package domain

import "time"

// PointKind classifies a swing point relative to earlier swings.
type PointKind string

const (
	PointHH PointKind = "HH"
	PointHL PointKind = "HL"
	PointLH PointKind = "LH"
	PointLL PointKind = "LL"
)

// IsHigh reports whether the point is a swing high (HH or LH).
func (k PointKind) IsHigh() bool { return k == PointHH || k == PointLH }

// IsLow reports whether the point is a swing low (HL or LL).
func (k PointKind) IsLow() bool { return k == PointHL || k == PointLL }

// IsBullish reports whether the point is evidence of an uptrend.
func (k PointKind) IsBullish() bool { return k == PointHH || k == PointHL }

// IsBearish reports whether the point is evidence of a downtrend.
func (k PointKind) IsBearish() bool { return k == PointLH || k == PointLL }

// StructurePoint is an accepted, classified swing.
type StructurePoint struct {
	Kind          PointKind `json:"kind"`
	Price         float64   `json:"price"`
	Timestamp     time.Time `json:"timestamp"`
	SequenceIndex int       `json:"sequence_index"`
}

type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

// MarketStructure is a snapshot of one analysis pass over one series.
type MarketStructure struct {
	Trend       Trend            `json:"trend"`
	Points      []StructurePoint `json:"points"`
	CurrentHigh float64          `json:"current_high"`
	CurrentLow  float64          `json:"current_low"`
}

type ZoneKind string

const (
	ZoneSupport    ZoneKind = "support"
	ZoneResistance ZoneKind = "resistance"
)

// Zone is an area of interest built from clustered structure points.
type Zone struct {
	Kind       ZoneKind  `json:"kind"`
	Timeframe  Timeframe `json:"timeframe"`
	PriceLevel float64   `json:"price_level"`
	Low        float64   `json:"low"`
	High       float64   `json:"high"`
	WidthPips  int       `json:"width_pips"`
	Strength   int       `json:"strength"`
	TouchCount int       `json:"touch_count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastTested time.Time `json:"last_tested"`
}

// Contains reports whether price sits inside the zone band.
func (z Zone) Contains(price float64) bool {
	return price >= z.Low && price <= z.High
}

// ZoneOverlap pairs a weekly and a daily zone of the same kind.
type ZoneOverlap struct {
	Weekly           Zone `json:"weekly"`
	Daily            Zone `json:"daily"`
	DistancePips     int  `json:"distance_pips"`
	CombinedStrength int  `json:"combined_strength"`
}

type Bias string

const (
	BiasBuy     Bias = "BUY"
	BiasSell    Bias = "SELL"
	BiasNoTrade Bias = "NO_TRADE"
)

// Direction converts a tradable bias into a signal direction.
func (b Bias) Direction() (Direction, bool) {
	switch b {
	case BiasBuy:
		return DirectionBuy, true
	case BiasSell:
		return DirectionSell, true
	case BiasNoTrade:
		return "", false
	}
	return "", false
}

type TimeframePair string

const (
	PairWeeklyDaily   TimeframePair = "W+1D"
	PairDailyFourHour TimeframePair = "1D+4H"
	PairAllThree      TimeframePair = "W+1D+4H"
)

// MultiTimeframeAnalysis is the confluence engine's view of one symbol.
type MultiTimeframeAnalysis struct {
	Weekly          Trend           `json:"weekly"`
	Daily           Trend           `json:"daily"`
	FourHour        Trend           `json:"four_hour"`
	TradingBias     Bias            `json:"trading_bias"`
	ConfluenceScore int             `json:"confluence_score"`
	AlignedPairs    []TimeframePair `json:"aligned_pairs"`
}

// IsAligned reports whether the given pairing is part of the aligned set.
func (m MultiTimeframeAnalysis) IsAligned(pair TimeframePair) bool {
	for _, p := range m.AlignedPairs {
		if p == pair {
			return true
		}
	}
	return false
}
