// Package zones clusters structure points into support and resistance areas of interest.
package zones

import (
	"sort"

	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/pips"
)

const (
	MaxWidthPips     = 60
	MinWidthPips     = 5
	OptimalWidthPips = 25
	MinTouches       = 3
	MaxStrength      = 5

	// OverlapDistancePips is how close a weekly and daily level must be to count as one area.
	OverlapDistancePips = 10
	// OverlapBonus is the confidence added per overlapping weekly/daily pair.
	OverlapBonus = 10
)

// Detect clusters points into zones. lastClose breaks ties between support and resistance.
func Detect(points []domain.StructurePoint, tf domain.Timeframe, symbol string, lastClose float64) []domain.Zone {
	if len(points) < MinTouches {
		return []domain.Zone{}
	}
	sorted := make([]domain.StructurePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	zones := []domain.Zone{}
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && pips.Between(sorted[start].Price, sorted[i].Price, symbol) <= MaxWidthPips {
			continue
		}
		if i-start >= MinTouches {
			zones = append(zones, build(sorted[start:i], tf, symbol, lastClose))
		}
		start = i
	}
	return zones
}

func build(cluster []domain.StructurePoint, tf domain.Timeframe, symbol string, lastClose float64) domain.Zone {
	lo, hi := cluster[0].Price, cluster[len(cluster)-1].Price
	var sum float64
	var lows, highs int
	first, last := cluster[0].Timestamp, cluster[0].Timestamp
	for _, p := range cluster {
		sum += p.Price
		if p.Kind.IsLow() {
			lows++
		} else {
			highs++
		}
		if p.Timestamp.Before(first) {
			first = p.Timestamp
		}
		if p.Timestamp.After(last) {
			last = p.Timestamp
		}
	}
	level := sum / float64(len(cluster))

	band := pips.Between(lo, hi, symbol)
	width := band
	if width < MinWidthPips {
		width = MinWidthPips
		pad := pips.ToPrice(float64(width-band), symbol) / 2
		lo -= pad
		hi += pad
	}

	kind := domain.ZoneResistance
	switch {
	case lows > highs:
		kind = domain.ZoneSupport
	case lows == highs && level < lastClose:
		kind = domain.ZoneSupport
	}

	strength := min(MaxStrength, len(cluster))
	if width <= OptimalWidthPips {
		strength = min(MaxStrength, strength+1)
	}

	return domain.Zone{
		Kind:       kind,
		Timeframe:  tf,
		PriceLevel: pips.Round(level, symbol),
		Low:        lo,
		High:       hi,
		WidthPips:  width,
		Strength:   strength,
		TouchCount: len(cluster),
		FirstSeen:  first,
		LastTested: last,
	}
}

// FindOverlaps pairs same-kind weekly and daily zones whose levels sit within 10 pips.
func FindOverlaps(weekly, daily []domain.Zone, symbol string) []domain.ZoneOverlap {
	var out []domain.ZoneOverlap
	for _, w := range weekly {
		for _, d := range daily {
			if w.Kind != d.Kind {
				continue
			}
			dist := pips.Between(w.PriceLevel, d.PriceLevel, symbol)
			if dist > OverlapDistancePips {
				continue
			}
			out = append(out, domain.ZoneOverlap{
				Weekly:           w,
				Daily:            d,
				DistancePips:     dist,
				CombinedStrength: min(MaxStrength, w.Strength+d.Strength),
			})
		}
	}
	return out
}

// Containing returns the zones whose band includes price.
func Containing(zones []domain.Zone, price float64) []domain.Zone {
	var out []domain.Zone
	for _, z := range zones {
		if z.Contains(price) {
			out = append(out, z)
		}
	}
	return out
}
