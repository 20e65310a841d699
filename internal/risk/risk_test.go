package risk

import (
	"testing"
	"time"

	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/ta"
)

func TestPositionSize(t *testing.T) {
	got := PositionSize(10000, 1, 50, "EURUSD")
	if got.RiskAmount != 100 {
		t.Fatalf("expected risk 100, got %v", got.RiskAmount)
	}
	if got.Units != 20000 || got.Lots != 0.2 {
		t.Fatalf("unexpected sizing: %+v", got)
	}

	jpy := PositionSize(10000, 1, 50, "USDJPY")
	if jpy.Units != 200 {
		t.Fatalf("expected 200 units for JPY pip value, got %+v", jpy)
	}

	if zero := PositionSize(10000, 1, 0, "EURUSD"); zero != (domain.PositionSizing{}) {
		t.Fatalf("expected zero sizing for zero stop, got %+v", zero)
	}
}

func TestCorrelation(t *testing.T) {
	if Correlation("EURUSD", "eur/usd") != 1 {
		t.Fatal("same pair must correlate fully")
	}
	if Correlation("EURUSD", "USDCHF") != Correlation("USDCHF", "EURUSD") {
		t.Fatal("correlation must be symmetric")
	}
	if Correlation("EURUSD", "XAUUSD") != 0 {
		t.Fatal("unknown pairs must be uncorrelated")
	}
}

func TestConflicts(t *testing.T) {
	open := []domain.MonitoredSignal{
		{ID: "a", Symbol: "GBPUSD", Direction: domain.DirectionBuy},
		{ID: "b", Symbol: "USDCHF", Direction: domain.DirectionSell},
		{ID: "c", Symbol: "USDJPY", Direction: domain.DirectionSell},
		{ID: "d", Symbol: "AUDUSD", Direction: domain.DirectionSell},
	}
	got := Conflicts("EURUSD", domain.DirectionBuy, open)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected conflicts: %+v", got)
	}
	if got := Conflicts("EURUSD", domain.DirectionBuy, nil); len(got) != 0 {
		t.Fatalf("expected no conflicts, got %+v", got)
	}
}

func TestSessions(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2024, 5, 6, h, 30, 0, 0, time.UTC) }

	if got := SessionsAt(at(13)); len(got) != 2 {
		t.Fatalf("expected London/NY overlap at 13:30, got %v", got)
	}
	if got := SessionsAt(at(22)); len(got) != 1 || got[0] != SessionSydney {
		t.Fatalf("expected only Sydney at 22:30, got %v", got)
	}
	if !FavorableSession("EURUSD", at(14)) {
		t.Fatal("EURUSD should be favorable during London")
	}
	if FavorableSession("EURUSD", at(3)) {
		t.Fatal("EURUSD should not be favorable during Tokyo")
	}
	if !FavorableSession("USDJPY", at(3)) {
		t.Fatal("USDJPY should be favorable during Tokyo")
	}
}

func TestAssess(t *testing.T) {
	calm := make([]domain.Candle, 20)
	for i := range calm {
		calm[i] = domain.Candle{Open: 1.1, High: 1.1003, Low: 1.0997, Close: 1.1}
	}
	a := Assess("EURUSD", calm, time.Date(2024, 5, 6, 3, 0, 0, 0, time.UTC))
	if a.Blocked || a.ConfidenceAdjustment != UnfavorableSessionPenalty {
		t.Fatalf("unexpected assessment: %+v", a)
	}

	wild := make([]domain.Candle, 20)
	for i := range wild {
		wild[i] = domain.Candle{Open: 1.1, High: 1.12, Low: 1.08, Close: 1.1}
	}
	a = Assess("EURUSD", wild, time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC))
	if a.Volatility != ta.VolatilityExtreme || !a.Blocked {
		t.Fatalf("expected extreme volatility to block: %+v", a)
	}
	if a.ConfidenceAdjustment != 0 {
		t.Fatalf("expected no penalty in London, got %d", a.ConfidenceAdjustment)
	}
}
