package ta

import "forex-signal-engine/internal/domain"

// PivotPoints are the classic floor-trader levels derived from the previous period.
type PivotPoints struct {
	P  float64 `json:"p"`
	R1 float64 `json:"r1"`
	R2 float64 `json:"r2"`
	R3 float64 `json:"r3"`
	S1 float64 `json:"s1"`
	S2 float64 `json:"s2"`
	S3 float64 `json:"s3"`
}

func ClassicPivots(prev domain.Candle) PivotPoints {
	p := (prev.High + prev.Low + prev.Close) / 3
	rng := prev.High - prev.Low
	return PivotPoints{
		P:  p,
		R1: 2*p - prev.Low,
		S1: 2*p - prev.High,
		R2: p + rng,
		S2: p - rng,
		R3: prev.High + 2*(p-prev.Low),
		S3: prev.Low - 2*(prev.High-p),
	}
}

// Levels returns the pivots ordered from lowest to highest.
func (pp PivotPoints) Levels() []float64 {
	return []float64{pp.S3, pp.S2, pp.S1, pp.P, pp.R1, pp.R2, pp.R3}
}

var (
	RetracementRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786}
	ExtensionRatios   = []float64{1.272, 1.618, 2.0}
)

type FibLevel struct {
	Ratio float64 `json:"ratio"`
	Price float64 `json:"price"`
}

type FibonacciResult struct {
	Retracements []FibLevel `json:"retracements"`
	Extensions   []FibLevel `json:"extensions"`
}

// FibonacciLevels measures a swing from low to high. For an up-move retracements sit below
// the high and extensions project above the low; a down-move mirrors both.
func FibonacciLevels(swingHigh, swingLow float64, upMove bool) FibonacciResult {
	if swingHigh < swingLow {
		swingHigh, swingLow = swingLow, swingHigh
	}
	rng := swingHigh - swingLow
	var res FibonacciResult
	for _, r := range RetracementRatios {
		price := swingHigh - r*rng
		if !upMove {
			price = swingLow + r*rng
		}
		res.Retracements = append(res.Retracements, FibLevel{Ratio: r, Price: price})
	}
	for _, r := range ExtensionRatios {
		price := swingLow + r*rng
		if !upMove {
			price = swingHigh - r*rng
		}
		res.Extensions = append(res.Extensions, FibLevel{Ratio: r, Price: price})
	}
	return res
}
