// Package risk sizes positions and gates signals on correlation, session and volatility.
package risk

import (
	"math"

	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/pips"
)

const StandardLot = 100000

// PositionSize converts an account risk budget into units and lots for a stop distance.
func PositionSize(balance, riskPercent float64, stopPips int, symbol string) domain.PositionSizing {
	if balance <= 0 || riskPercent <= 0 || stopPips <= 0 {
		return domain.PositionSizing{}
	}
	riskAmount := balance * riskPercent / 100
	units := math.Floor(riskAmount * float64(pips.Multiplier(symbol)) / float64(stopPips))
	return domain.PositionSizing{
		RiskAmount: math.Round(riskAmount*100) / 100,
		Units:      units,
		Lots:       math.Floor(units/(StandardLot/100)) / 100,
	}
}
