// Package pips converts between prices and pip distances for FX pairs.
package pips

import (
	"strings"

	"forex-signal-engine/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	standardPip = 0.0001
	jpyPip      = 0.01

	standardMultiplier = 10000
	jpyMultiplier      = 100
)

// IsJPYQuoted reports whether the pair's quote currency is JPY.
func IsJPYQuoted(symbol string) bool {
	s := domain.NormalizeSymbol(symbol)
	return strings.HasSuffix(s, "JPY")
}

// Value returns the price size of one pip.
func Value(symbol string) float64 {
	if IsJPYQuoted(symbol) {
		return jpyPip
	}
	return standardPip
}

// Multiplier returns how many pips make one unit of price.
func Multiplier(symbol string) int64 {
	if IsJPYQuoted(symbol) {
		return jpyMultiplier
	}
	return standardMultiplier
}

func decimalPlaces(symbol string) int32 {
	if IsJPYQuoted(symbol) {
		return 3
	}
	return 5
}

// Between returns the unsigned pip distance between two prices.
func Between(a, b float64, symbol string) int {
	d := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs()
	return int(d.Mul(decimal.NewFromInt(Multiplier(symbol))).Round(0).IntPart())
}

// Signed returns the pip P&L of a trade from entry to exit, positive when the move favours dir.
func Signed(entry, exit float64, dir domain.Direction, symbol string) int {
	n := Between(entry, exit, symbol)
	switch dir {
	case domain.DirectionBuy:
		if exit < entry {
			return -n
		}
	case domain.DirectionSell:
		if exit > entry {
			return -n
		}
	}
	return n
}

// ToPrice converts a pip count into a price distance.
func ToPrice(pips float64, symbol string) float64 {
	f, _ := decimal.NewFromFloat(pips).Mul(decimal.NewFromFloat(Value(symbol))).Float64()
	return f
}

// Offset moves price by pips; negative pips move it down.
func Offset(price, pips float64, symbol string) float64 {
	return Round(price+ToPrice(pips, symbol), symbol)
}

// Round trims a price to fractional-pip precision (5 places, 3 for JPY pairs).
func Round(price float64, symbol string) float64 {
	f, _ := decimal.NewFromFloat(price).Round(decimalPlaces(symbol)).Float64()
	return f
}

// Format renders a price at the pair's quote precision.
func Format(price float64, symbol string) string {
	return decimal.NewFromFloat(price).StringFixed(decimalPlaces(symbol))
}

// PercentChange returns the percentage move from one price to another. A zero base yields 0.
func PercentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

// RewardRisk returns reward/risk in pips; zero risk yields 0.
func RewardRisk(entry, stop, target float64, symbol string) float64 {
	risk := Between(entry, stop, symbol)
	if risk == 0 {
		return 0
	}
	return float64(Between(entry, target, symbol)) / float64(risk)
}
