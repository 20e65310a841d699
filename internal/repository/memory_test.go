package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"forex-signal-engine/internal/domain"
)

func memSignal(id, symbol string, created time.Time) domain.MonitoredSignal {
	return domain.MonitoredSignal{
		ID:          id,
		Symbol:      symbol,
		Direction:   domain.DirectionBuy,
		EntryPrice:  1.1,
		StopLoss:    1.09,
		TakeProfits: []float64{1.12, 1.13},
		Status:      domain.StatusActive,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestMemorySignalStoreQueryOrdersAndLimits(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySignalStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.Insert(ctx, memSignal(id, "EURUSD", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := store.Insert(ctx, memSignal("d", "USDJPY", base)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.Query(ctx, domain.SignalFilter{Symbol: "eurusd", Limit: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("expected [c b], got %+v", got)
	}
}

func TestMemorySignalStoreRejectsDuplicateID(t *testing.T) {
	store := NewMemorySignalStore()
	s := memSignal("a", "EURUSD", time.Now())
	if err := store.Insert(context.Background(), s); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Insert(context.Background(), s); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestMemorySignalStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySignalStore()
	_ = store.Insert(ctx, memSignal("a", "EURUSD", time.Now()))

	s, _ := store.Get(ctx, "a")
	s.TakeProfits[0] = 99
	again, _ := store.Get(ctx, "a")
	if again.TakeProfits[0] != 1.12 {
		t.Fatalf("stored signal was mutated through a returned copy")
	}
}

func TestMemorySignalStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySignalStore()
	_ = store.Insert(ctx, memSignal("a", "EURUSD", time.Now()))

	first := domain.NewTargetSet(1)
	if err := store.Update(ctx, "a", domain.SignalPatch{TargetsHit: &first}); err != nil {
		t.Fatalf("update: %v", err)
	}
	// A stale writer cannot shrink the stored set.
	empty := domain.NewTargetSet()
	if err := store.Update(ctx, "a", domain.SignalPatch{TargetsHit: &empty}); err != nil {
		t.Fatalf("update: %v", err)
	}
	s, _ := store.Get(ctx, "a")
	if !s.TargetsHit.Contains(1) {
		t.Fatalf("expected target 1 to remain, got %v", s.TargetsHit.Slice())
	}

	expired := domain.StatusExpired
	if err := store.Update(ctx, "a", domain.SignalPatch{Status: &expired}); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if err := store.Update(ctx, "a", domain.SignalPatch{Status: &expired}); err != nil {
		t.Fatalf("repeat expire should be a no-op, got %v", err)
	}
	active := domain.StatusActive
	if err := store.Update(ctx, "a", domain.SignalPatch{Status: &active}); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if err := store.Update(ctx, "missing", domain.SignalPatch{Status: &expired}); !errors.Is(err, domain.ErrSignalNotFound) {
		t.Fatalf("expected ErrSignalNotFound, got %v", err)
	}
}

func TestMemoryOutcomeStoreSingleInsertUnderContention(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOutcomeStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Insert(ctx, domain.SignalOutcome{SignalID: "a", PnLPips: 10})
			if err != nil {
				t.Errorf("insert: %v", err)
			}
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if inserted != 1 {
		t.Fatalf("expected exactly one insert, got %d", inserted)
	}
	if ok, _ := store.ExistsBySignalID(ctx, "a"); !ok {
		t.Fatal("expected outcome to exist")
	}
}

func TestMemoryOutcomeStoreListAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOutcomeStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, _ = store.Insert(ctx, domain.SignalOutcome{SignalID: "old", ExitTimestamp: base})
	_, _ = store.Insert(ctx, domain.SignalOutcome{SignalID: "new", ExitTimestamp: base.Add(time.Hour)})

	list, _ := store.List(ctx, 1)
	if len(list) != 1 || list[0].SignalID != "new" {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if _, err := store.GetBySignalID(ctx, "nope"); !errors.Is(err, domain.ErrOutcomeNotFound) {
		t.Fatalf("expected ErrOutcomeNotFound, got %v", err)
	}
}

func TestMemoryCandleStoreUpsertAndNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCandleStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(h int, close float64) domain.Candle {
		return domain.Candle{Symbol: "EURUSD", Timeframe: domain.TimeframeFourHour, OpenTime: base.Add(time.Duration(h) * 4 * time.Hour), Close: close}
	}

	_ = store.UpsertCandles(ctx, []domain.Candle{mk(2, 1.3), mk(0, 1.1), mk(1, 1.2)})
	_ = store.UpsertCandles(ctx, []domain.Candle{mk(1, 1.25)})

	got, _ := store.GetCandles(ctx, "eurusd", domain.TimeframeFourHour, 2)
	if len(got) != 2 || got[0].Close != 1.3 || got[1].Close != 1.25 {
		t.Fatalf("expected [1.3 1.25], got %+v", got)
	}
	all, _ := store.GetCandles(ctx, "EURUSD", domain.TimeframeFourHour, 0)
	if len(all) != 3 {
		t.Fatalf("expected 3 candles after upsert, got %d", len(all))
	}
	none, _ := store.GetCandles(ctx, "EURUSD", domain.TimeframeDaily, 10)
	if len(none) != 0 {
		t.Fatalf("expected no daily candles, got %d", len(none))
	}
}
