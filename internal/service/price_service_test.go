package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"forex-signal-engine/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

var testSymbols = []string{"EURUSD", "USDJPY"}

func TestPriceService_IngestWithoutStoreNotifiesLocally(t *testing.T) {
	t.Parallel()

	rec := &priceRecorder{}
	svc := NewPriceService(testTracer, nil, &mockCandleRepo{}, rec, testSymbols)
	var got []domain.PriceUpdate
	svc.OnLocalUpdate(func(u domain.PriceUpdate) { got = append(got, u) })

	if err := svc.Ingest(context.Background(), domain.PriceUpdate{Symbol: "eur/usd", Price: 1.1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Symbol != "EURUSD" || got[0].Timestamp.IsZero() {
		t.Fatalf("unexpected notifications: %+v", got)
	}
	if rec.last["EURUSD"] != 1.1 {
		t.Fatalf("expected gauge update, got %v", rec.last)
	}

	snap, _ := svc.Snapshot(context.Background())
	if snap["EURUSD"] != 1.1 || len(snap) != 1 {
		t.Fatalf("unexpected snapshot %v", snap)
	}
}

func TestPriceService_IngestRejectsNonPositive(t *testing.T) {
	t.Parallel()

	svc := NewPriceService(testTracer, nil, &mockCandleRepo{}, nil, testSymbols)
	if err := svc.Ingest(context.Background(), domain.PriceUpdate{Symbol: "EURUSD", Price: 0}); err == nil {
		t.Fatal("expected error for zero price")
	}
}

func TestPriceService_IngestPublishesToStore(t *testing.T) {
	t.Parallel()

	store := &mockPriceStore{}
	svc := NewPriceService(testTracer, store, &mockCandleRepo{}, nil, testSymbols)
	notified := false
	svc.OnLocalUpdate(func(domain.PriceUpdate) { notified = true })

	if err := svc.Ingest(context.Background(), domain.PriceUpdate{Symbol: "USDJPY", Price: 150.1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.published) != 1 || store.published[0].Symbol != "USDJPY" {
		t.Fatalf("expected publish, got %+v", store.published)
	}
	if notified {
		t.Fatal("local notifier must not fire when a shared store delivers updates")
	}
}

func TestPriceService_SnapshotFallsBackOnStoreError(t *testing.T) {
	t.Parallel()

	store := &mockPriceStore{snapErr: errors.New("down")}
	svc := NewPriceService(testTracer, store, &mockCandleRepo{}, nil, testSymbols)
	svc.Observe(domain.PriceUpdate{Symbol: "USDJPY", Price: 151})

	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap["USDJPY"] != 151 {
		t.Fatalf("expected local quote, got %v", snap)
	}
}

func TestPriceService_PriceUnavailable(t *testing.T) {
	t.Parallel()

	svc := NewPriceService(testTracer, nil, &mockCandleRepo{}, nil, testSymbols)
	if _, err := svc.Price(context.Background(), "EURUSD"); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestPriceService_PriceReadsStore(t *testing.T) {
	t.Parallel()

	store := &mockPriceStore{snap: domain.PriceSnapshot{"EURUSD": 1.2}}
	svc := NewPriceService(testTracer, store, &mockCandleRepo{}, nil, testSymbols)
	p, err := svc.Price(context.Background(), "eurusd")
	if err != nil || p != 1.2 {
		t.Fatalf("expected 1.2, got %v %v", p, err)
	}
}

func TestPriceService_IngestCandlesSeedsQuote(t *testing.T) {
	t.Parallel()

	repo := &mockCandleRepo{}
	svc := NewPriceService(testTracer, nil, repo, nil, testSymbols)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []domain.Candle{
		{Symbol: "eurusd", Timeframe: domain.TimeframeFourHour, OpenTime: base.Add(4 * time.Hour), Close: 1.12},
		{Symbol: "eurusd", Timeframe: domain.TimeframeFourHour, OpenTime: base, Close: 1.11},
	}
	if err := svc.IngestCandles(context.Background(), candles); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.upserted != 2 {
		t.Fatalf("expected 2 candles upserted, got %d", repo.upserted)
	}
	p, err := svc.Price(context.Background(), "EURUSD")
	if err != nil || p != 1.12 {
		t.Fatalf("expected seeded price 1.12, got %v %v", p, err)
	}
}

func TestPriceService_Supported(t *testing.T) {
	t.Parallel()

	svc := NewPriceService(testTracer, nil, &mockCandleRepo{}, nil, testSymbols)
	if !svc.Supported("usd/jpy") || svc.Supported("BTCUSD") {
		t.Fatal("unexpected support result")
	}
}

type mockPriceStore struct {
	mu        sync.Mutex
	published []domain.PriceUpdate
	snap      domain.PriceSnapshot
	snapErr   error
}

func (m *mockPriceStore) Publish(_ context.Context, u domain.PriceUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, u)
	return nil
}

func (m *mockPriceStore) Snapshot(_ context.Context, symbols []string) (domain.PriceSnapshot, error) {
	if m.snapErr != nil {
		return nil, m.snapErr
	}
	out := domain.PriceSnapshot{}
	for _, s := range symbols {
		if p, ok := m.snap[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

type mockCandleRepo struct {
	mu       sync.Mutex
	candles  map[domain.Timeframe][]domain.Candle
	err      error
	upserted int
}

func (m *mockCandleRepo) GetCandles(_ context.Context, _ string, tf domain.Timeframe, _ int) ([]domain.Candle, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.candles[tf]
	out := make([]domain.Candle, len(src))
	copy(out, src)
	return out, nil
}

func (m *mockCandleRepo) UpsertCandles(_ context.Context, candles []domain.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted += len(candles)
	return m.err
}

type priceRecorder struct {
	last map[string]float64
}

func (r *priceRecorder) RecordLastPrice(symbol string, price float64) {
	if r.last == nil {
		r.last = map[string]float64{}
	}
	r.last[symbol] = price
}
