package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/generator"
)

var analysisNow = time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC)

type stubGenerator struct {
	mu     sync.Mutex
	inputs []generator.Input
	signal map[string]domain.GeneratedSignal
}

func (g *stubGenerator) Generate(in generator.Input) (domain.GeneratedSignal, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inputs = append(g.inputs, in)
	sig, ok := g.signal[in.Symbol]
	return sig, ok
}

type stubSignalStore struct {
	mu        sync.Mutex
	active    []domain.MonitoredSignal
	inserted  []domain.MonitoredSignal
	insertErr error
	queryErr  error
}

func (s *stubSignalStore) Insert(_ context.Context, sig domain.MonitoredSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, sig)
	return nil
}

func (s *stubSignalStore) Query(context.Context, domain.SignalFilter) ([]domain.MonitoredSignal, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.MonitoredSignal(nil), s.active...), nil
}

type analysisRecorder struct {
	mu      sync.Mutex
	results map[string]int
	emitted map[domain.StrategyTag]int
}

func (r *analysisRecorder) RecordSignal(tag domain.StrategyTag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emitted == nil {
		r.emitted = map[domain.StrategyTag]int{}
	}
	r.emitted[tag]++
}

func (r *analysisRecorder) RecordAnalysis(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string]int{}
	}
	r.results[result]++
}

type stubPrices map[string]float64

func (p stubPrices) Price(_ context.Context, symbol string) (float64, error) {
	if v, ok := p[symbol]; ok {
		return v, nil
	}
	return 0, ErrPriceUnavailable
}

func newestFirst(n int, tf domain.Timeframe) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{
			Symbol:    "EURUSD",
			Timeframe: tf,
			OpenTime:  analysisNow.Add(-time.Duration(i) * time.Hour),
			Close:     1.1 + float64(n-i)*0.0001,
		}
	}
	return out
}

func buySignal(symbol string) domain.GeneratedSignal {
	return domain.GeneratedSignal{
		Symbol:         symbol,
		Direction:      domain.DirectionBuy,
		EntryPrice:     1.1,
		StopLoss:       1.095,
		TakeProfits:    []float64{1.11},
		Confidence:     70,
		Strategy:       domain.StrategyTrendContinuation,
		EntryTimeframe: domain.TimeframeFourHour,
	}
}

func newAnalysis(gen SignalGenerator, store SignalStore, candles CandleSource, prices PriceReader, rec AnalysisRecorder, symbols ...string) *AnalysisService {
	id := 0
	return NewAnalysisService(testTracer, candles, prices, store, gen, symbols, AnalysisOptions{
		Lookback: 50,
		Recorder: rec,
		Now:      func() time.Time { return analysisNow },
		NewID: func() string {
			id++
			return fmt.Sprintf("sig-%d", id)
		},
	})
}

func TestAnalysisService_AnalyzeReversesCandlesAndUsesLivePrice(t *testing.T) {
	t.Parallel()

	repo := &mockCandleRepo{candles: map[domain.Timeframe][]domain.Candle{
		domain.TimeframeWeekly:   newestFirst(5, domain.TimeframeWeekly),
		domain.TimeframeDaily:    newestFirst(5, domain.TimeframeDaily),
		domain.TimeframeFourHour: newestFirst(5, domain.TimeframeFourHour),
	}}
	gen := &stubGenerator{}
	store := &stubSignalStore{active: []domain.MonitoredSignal{
		{ID: "a", Symbol: "EURUSD", Direction: domain.DirectionSell},
		{ID: "b", Symbol: "GBPUSD", Direction: domain.DirectionBuy},
	}}
	svc := newAnalysis(gen, store, repo, stubPrices{"EURUSD": 1.2345}, nil, "EURUSD")

	report, err := svc.Analyze(context.Background(), "eurusd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Signal != nil || report.Price != 1.2345 {
		t.Fatalf("unexpected report %+v", report)
	}

	in := gen.inputs[0]
	h := in.Series.FourHour
	if !h[0].OpenTime.Before(h[len(h)-1].OpenTime) {
		t.Fatal("series must be oldest first")
	}
	if len(in.Open) != 1 || in.Open[0].ID != "b" {
		t.Fatalf("same-pair signals must be excluded from correlation context, got %+v", in.Open)
	}
}

func TestAnalysisService_AnalyzeFallsBackToLastClose(t *testing.T) {
	t.Parallel()

	repo := &mockCandleRepo{candles: map[domain.Timeframe][]domain.Candle{
		domain.TimeframeFourHour: newestFirst(3, domain.TimeframeFourHour),
	}}
	svc := newAnalysis(&stubGenerator{}, &stubSignalStore{}, repo, stubPrices{}, nil, "EURUSD")

	report, err := svc.Analyze(context.Background(), "EURUSD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Price != repo.candles[domain.TimeframeFourHour][0].Close {
		t.Fatalf("expected newest close, got %v", report.Price)
	}
	if report.Confluence.TradingBias != domain.BiasNoTrade {
		t.Fatalf("expected NO_TRADE on thin data, got %s", report.Confluence.TradingBias)
	}
}

func TestAnalysisService_AnalyzeHandsConfluenceToGenerator(t *testing.T) {
	t.Parallel()

	repo := &mockCandleRepo{candles: map[domain.Timeframe][]domain.Candle{
		domain.TimeframeFourHour: newestFirst(3, domain.TimeframeFourHour),
	}}
	gen := &stubGenerator{}
	svc := newAnalysis(gen, &stubSignalStore{}, repo, stubPrices{}, nil, "EURUSD")

	report, err := svc.Analyze(context.Background(), "EURUSD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := gen.inputs[0]
	if in.Confluence == nil {
		t.Fatal("expected the report's confluence to be passed to the generator")
	}
	got := in.Confluence.Analysis
	if got.TradingBias != report.Confluence.TradingBias || got.ConfluenceScore != report.Confluence.ConfluenceScore {
		t.Fatalf("generator saw %+v, report has %+v", got, report.Confluence)
	}
}

func TestAnalysisService_RunEmitsAndSkipsDuplicates(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{signal: map[string]domain.GeneratedSignal{
		"EURUSD": buySignal("EURUSD"),
		"USDJPY": buySignal("USDJPY"),
	}}
	store := &stubSignalStore{active: []domain.MonitoredSignal{
		{ID: "open", Symbol: "USDJPY", Direction: domain.DirectionBuy, Status: domain.StatusActive},
	}}
	rec := &analysisRecorder{}
	svc := newAnalysis(gen, store, &mockCandleRepo{}, stubPrices{}, rec, "EURUSD", "USDJPY", "GBPUSD")

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Analyzed != 3 || len(res.Emitted) != 1 || res.Skipped != 1 || res.NoSignal != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(store.inserted))
	}
	got := store.inserted[0]
	if got.ID != "sig-1" || got.Symbol != "EURUSD" || got.Status != domain.StatusActive || !got.CreatedAt.Equal(analysisNow) {
		t.Fatalf("unexpected stored signal %+v", got)
	}
	if rec.emitted[domain.StrategyTrendContinuation] != 1 || rec.results[analysisDuplicate] != 1 {
		t.Fatalf("unexpected metrics %+v %+v", rec.emitted, rec.results)
	}
}

func TestAnalysisService_RunCountsErrors(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{signal: map[string]domain.GeneratedSignal{"EURUSD": buySignal("EURUSD")}}
	store := &stubSignalStore{insertErr: errors.New("db down")}
	rec := &analysisRecorder{}
	svc := newAnalysis(gen, store, &mockCandleRepo{}, nil, rec, "EURUSD")

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Errors != 1 || len(res.Emitted) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if rec.results[analysisError] != 1 {
		t.Fatalf("expected error metric, got %+v", rec.results)
	}
}

func TestAnalysisService_AnalyzePropagatesCandleErrors(t *testing.T) {
	t.Parallel()

	svc := newAnalysis(&stubGenerator{}, &stubSignalStore{}, &mockCandleRepo{err: errors.New("timeout")}, nil, nil, "EURUSD")
	if _, err := svc.Analyze(context.Background(), "EURUSD"); err == nil {
		t.Fatal("expected error")
	}
}
