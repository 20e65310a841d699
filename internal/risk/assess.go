package risk

import (
	"time"

	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/ta"
)

// UnfavorableSessionPenalty is subtracted from confidence outside a pair's favored sessions.
const UnfavorableSessionPenalty = -10

type Assessment struct {
	Volatility           ta.VolatilityLevel `json:"volatility"`
	Sessions             []Session          `json:"sessions"`
	Favorable            bool               `json:"favorable"`
	Blocked              bool               `json:"blocked"`
	ConfidenceAdjustment int                `json:"confidence_adjustment"`
}

// Assess combines volatility on the entry series with the session open at t.
func Assess(symbol string, candles []domain.Candle, t time.Time) Assessment {
	var price float64
	if len(candles) > 0 {
		price = candles[len(candles)-1].Close
	}
	a := Assessment{
		Volatility: ta.ClassifyVolatility(ta.ATR(candles, 14), price),
		Sessions:   SessionsAt(t),
		Favorable:  FavorableSession(symbol, t),
	}
	a.Blocked = a.Volatility == ta.VolatilityExtreme
	if !a.Favorable {
		a.ConfidenceAdjustment = UnfavorableSessionPenalty
	}
	return a
}
