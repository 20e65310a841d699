package patterns

import (
	"math"

	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/structure"
)

// ShoulderTolerance bounds how far the two shoulder heights may differ, as a fraction of head height.
const ShoulderTolerance = 0.25

type HeadAndShoulders struct {
	Direction     domain.Direction      `json:"direction"`
	Inverse       bool                  `json:"inverse"`
	LeftShoulder  domain.StructurePoint `json:"left_shoulder"`
	Head          domain.StructurePoint `json:"head"`
	RightShoulder domain.StructurePoint `json:"right_shoulder"`
	Neckline      float64               `json:"neckline"`
	Target        float64               `json:"target"`
	Confirmed     bool                  `json:"confirmed"`
}

// DetectHeadAndShoulders returns the most recent confirmed head-and-shoulders top or inverse
// bottom. Confirmation requires the last close beyond the neckline.
func DetectHeadAndShoulders(points []domain.StructurePoint, candles []domain.Candle) (HeadAndShoulders, bool) {
	if len(candles) == 0 {
		return HeadAndShoulders{}, false
	}
	last := candles[len(candles)-1].Close

	top, topOK := scan(points, last, false)
	bottom, bottomOK := scan(points, last, true)
	switch {
	case topOK && bottomOK:
		if bottom.RightShoulder.SequenceIndex > top.RightShoulder.SequenceIndex {
			return bottom, true
		}
		return top, true
	case topOK:
		return top, true
	case bottomOK:
		return bottom, true
	}
	return HeadAndShoulders{}, false
}

func scan(points []domain.StructurePoint, last float64, inverse bool) (HeadAndShoulders, bool) {
	extremes, troughs := structure.Highs(points), structure.Lows(points)
	if inverse {
		extremes, troughs = troughs, extremes
	}
	for i := len(extremes) - 3; i >= 0; i-- {
		l, h, r := extremes[i], extremes[i+1], extremes[i+2]
		t1, ok1 := between(troughs, l.SequenceIndex, h.SequenceIndex, inverse)
		t2, ok2 := between(troughs, h.SequenceIndex, r.SequenceIndex, inverse)
		if !ok1 || !ok2 {
			continue
		}
		neck := (t1.Price + t2.Price) / 2
		hs := HeadAndShoulders{LeftShoulder: l, Head: h, RightShoulder: r, Neckline: neck, Inverse: inverse}
		if !inverse {
			if !(h.Price > l.Price && h.Price > r.Price && l.Price > neck && r.Price > neck) {
				continue
			}
			head := h.Price - neck
			if math.Abs((l.Price-neck)-(r.Price-neck)) > ShoulderTolerance*head {
				continue
			}
			hs.Direction = domain.DirectionSell
			hs.Target = neck - head
			hs.Confirmed = last < neck
		} else {
			if !(h.Price < l.Price && h.Price < r.Price && l.Price < neck && r.Price < neck) {
				continue
			}
			head := neck - h.Price
			if math.Abs((neck-l.Price)-(neck-r.Price)) > ShoulderTolerance*head {
				continue
			}
			hs.Direction = domain.DirectionBuy
			hs.Target = neck + head
			hs.Confirmed = last > neck
		}
		if hs.Confirmed {
			return hs, true
		}
	}
	return HeadAndShoulders{}, false
}

// between picks the deepest opposite swing strictly between two sequence indexes.
func between(points []domain.StructurePoint, from, to int, highest bool) (domain.StructurePoint, bool) {
	var best domain.StructurePoint
	found := false
	for _, p := range points {
		if p.SequenceIndex <= from || p.SequenceIndex >= to {
			continue
		}
		if !found || (highest && p.Price > best.Price) || (!highest && p.Price < best.Price) {
			best, found = p, true
		}
	}
	return best, found
}
