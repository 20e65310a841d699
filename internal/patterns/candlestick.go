// Package patterns recognises candlestick and chart patterns.
package patterns

import "forex-signal-engine/internal/domain"

type Kind string

const (
	BullishEngulfing Kind = "bullish_engulfing"
	BearishEngulfing Kind = "bearish_engulfing"
	Hammer           Kind = "hammer"
	ShootingStar     Kind = "shooting_star"
	Doji             Kind = "doji"
	MorningStar      Kind = "morning_star"
	EveningStar      Kind = "evening_star"
	BullishHarami    Kind = "bullish_harami"
	BearishHarami    Kind = "bearish_harami"
)

// ConfirmationWindow is how many trailing candles count as confirmation.
const ConfirmationWindow = 3

// Candlestick is a pattern ending at Index. Direction is empty for indecision patterns.
type Candlestick struct {
	Kind      Kind             `json:"kind"`
	Index     int              `json:"index"`
	Direction domain.Direction `json:"direction,omitempty"`
}

func upperWick(c domain.Candle) float64 { return c.High - max(c.Open, c.Close) }
func lowerWick(c domain.Candle) float64 { return min(c.Open, c.Close) - c.Low }

func isBullishEngulfing(c1, c2 domain.Candle) bool {
	return c1.IsBearish() && c2.IsBullish() && c2.Open <= c1.Close && c2.Close >= c1.Open
}

func isBearishEngulfing(c1, c2 domain.Candle) bool {
	return c1.IsBullish() && c2.IsBearish() && c2.Open >= c1.Close && c2.Close <= c1.Open
}

func isDoji(c domain.Candle) bool {
	rng := c.Range()
	return rng > 0 && c.Body()/rng < 0.10
}

func isHammer(c domain.Candle) bool {
	body := c.Body()
	return body > 0 && lowerWick(c) >= 2*body && upperWick(c) <= body
}

func isShootingStar(c domain.Candle) bool {
	body := c.Body()
	return body > 0 && upperWick(c) >= 2*body && lowerWick(c) <= body
}

func strongBody(c domain.Candle) bool {
	rng := c.Range()
	return rng > 0 && c.Body() >= rng*0.6
}

func isBullishHarami(c1, c2 domain.Candle) bool {
	if !c1.IsBearish() || !strongBody(c1) || !c2.IsBullish() {
		return false
	}
	return c2.Open >= c1.Close && c2.Close <= c1.Open && c2.Body() <= c1.Body()*0.5
}

func isBearishHarami(c1, c2 domain.Candle) bool {
	if !c1.IsBullish() || !strongBody(c1) || !c2.IsBearish() {
		return false
	}
	return c2.Open <= c1.Close && c2.Close >= c1.Open && c2.Body() <= c1.Body()*0.5
}

func isMorningStar(c1, c2, c3 domain.Candle) bool {
	if !c1.IsBearish() || !strongBody(c1) || !c3.IsBullish() {
		return false
	}
	mid := (c1.Open + c1.Close) / 2
	return c2.Body() <= c1.Body()*0.3 && max(c2.Open, c2.Close) <= c1.Close+c1.Body()*0.1 && c3.Close >= mid
}

func isEveningStar(c1, c2, c3 domain.Candle) bool {
	if !c1.IsBullish() || !strongBody(c1) || !c3.IsBearish() {
		return false
	}
	mid := (c1.Open + c1.Close) / 2
	return c2.Body() <= c1.Body()*0.3 && min(c2.Open, c2.Close) >= c1.Close-c1.Body()*0.1 && c3.Close <= mid
}

// Detect scans every candle and reports each pattern at the index of its final candle.
func Detect(candles []domain.Candle) []Candlestick {
	return DetectRecent(candles, len(candles))
}

// DetectRecent only reports patterns completing within the last window candles.
func DetectRecent(candles []domain.Candle, window int) []Candlestick {
	out := []Candlestick{}
	from := max(0, len(candles)-window)
	for i := from; i < len(candles); i++ {
		c := candles[i]
		switch {
		case isDoji(c):
			out = append(out, Candlestick{Kind: Doji, Index: i})
		case isHammer(c):
			out = append(out, Candlestick{Kind: Hammer, Index: i, Direction: domain.DirectionBuy})
		case isShootingStar(c):
			out = append(out, Candlestick{Kind: ShootingStar, Index: i, Direction: domain.DirectionSell})
		}
		if i >= 1 {
			prev := candles[i-1]
			switch {
			case isBullishEngulfing(prev, c):
				out = append(out, Candlestick{Kind: BullishEngulfing, Index: i, Direction: domain.DirectionBuy})
			case isBearishEngulfing(prev, c):
				out = append(out, Candlestick{Kind: BearishEngulfing, Index: i, Direction: domain.DirectionSell})
			case isBullishHarami(prev, c):
				out = append(out, Candlestick{Kind: BullishHarami, Index: i, Direction: domain.DirectionBuy})
			case isBearishHarami(prev, c):
				out = append(out, Candlestick{Kind: BearishHarami, Index: i, Direction: domain.DirectionSell})
			}
		}
		if i >= 2 {
			switch {
			case isMorningStar(candles[i-2], candles[i-1], c):
				out = append(out, Candlestick{Kind: MorningStar, Index: i, Direction: domain.DirectionBuy})
			case isEveningStar(candles[i-2], candles[i-1], c):
				out = append(out, Candlestick{Kind: EveningStar, Index: i, Direction: domain.DirectionSell})
			}
		}
	}
	return out
}

// Confirms reports whether any pattern points in dir.
func Confirms(patterns []Candlestick, dir domain.Direction) bool {
	for _, p := range patterns {
		if p.Direction == dir {
			return true
		}
	}
	return false
}
