package risk

import "forex-signal-engine/internal/domain"

// ConflictThreshold is the absolute correlation above which two positions stack risk.
const ConflictThreshold = 0.5

type pair struct{ a, b string }

func key(a, b string) pair {
	if a > b {
		a, b = b, a
	}
	return pair{a, b}
}

var correlations = map[pair]float64{
	key("EURUSD", "GBPUSD"): 0.85,
	key("EURUSD", "AUDUSD"): 0.70,
	key("EURUSD", "NZDUSD"): 0.65,
	key("EURUSD", "USDCHF"): -0.90,
	key("EURUSD", "USDCAD"): -0.55,
	key("EURUSD", "USDJPY"): -0.30,
	key("EURUSD", "EURGBP"): 0.35,
	key("GBPUSD", "AUDUSD"): 0.60,
	key("GBPUSD", "NZDUSD"): 0.55,
	key("GBPUSD", "USDCHF"): -0.80,
	key("GBPUSD", "USDCAD"): -0.50,
	key("GBPUSD", "EURGBP"): -0.60,
	key("AUDUSD", "NZDUSD"): 0.90,
	key("AUDUSD", "USDCAD"): -0.60,
	key("AUDUSD", "USDCHF"): -0.65,
	key("NZDUSD", "USDCHF"): -0.60,
	key("USDJPY", "USDCHF"): 0.60,
	key("USDJPY", "EURJPY"): 0.75,
	key("USDJPY", "GBPJPY"): 0.70,
	key("EURJPY", "GBPJPY"): 0.90,
	key("USDCAD", "USDCHF"): 0.45,
}

// Correlation is symmetric; unknown pairs are treated as uncorrelated.
func Correlation(a, b string) float64 {
	a, b = domain.NormalizeSymbol(a), domain.NormalizeSymbol(b)
	if a == b {
		return 1
	}
	return correlations[key(a, b)]
}

// Conflicts lists the open signals that would add exposure in the same direction as the candidate.
func Conflicts(symbol string, dir domain.Direction, open []domain.MonitoredSignal) []domain.MonitoredSignal {
	var out []domain.MonitoredSignal
	for _, s := range open {
		corr := Correlation(symbol, s.Symbol)
		switch {
		case corr > ConflictThreshold && s.Direction == dir:
			out = append(out, s)
		case corr < -ConflictThreshold && s.Direction == dir.Opposite():
			out = append(out, s)
		}
	}
	return out
}
