package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"forex-signal-engine/internal/domain"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

var ErrPriceUnavailable = errors.New("price not available")

// PriceStore is the shared quote cache. It is nil when Redis is not configured.
type PriceStore interface {
	Publish(ctx context.Context, u domain.PriceUpdate) error
	Snapshot(ctx context.Context, symbols []string) (domain.PriceSnapshot, error)
}

type CandleRepository interface {
	GetCandles(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error)
	UpsertCandles(ctx context.Context, candles []domain.Candle) error
}

type PriceRecorder interface {
	RecordLastPrice(symbol string, price float64)
}

// PriceService owns live quotes and candle ingestion.
type PriceService struct {
	tracer   trace.Tracer
	store    PriceStore
	repo     CandleRepository
	recorder PriceRecorder
	symbols  []string

	mu     sync.RWMutex
	latest domain.PriceSnapshot
	notify func(domain.PriceUpdate)
}

func NewPriceService(
	tracer trace.Tracer,
	store PriceStore,
	repo CandleRepository,
	recorder PriceRecorder,
	symbols []string,
) *PriceService {
	return &PriceService{
		tracer:   tracer,
		store:    store,
		repo:     repo,
		recorder: recorder,
		symbols:  symbols,
		latest:   domain.PriceSnapshot{},
	}
}

// OnLocalUpdate registers fn for updates ingested while no shared store is configured.
// With a store, updates arrive through its subscription instead.
func (s *PriceService) OnLocalUpdate(fn func(domain.PriceUpdate)) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

func (s *PriceService) Symbols() []string {
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

func (s *PriceService) Supported(symbol string) bool {
	symbol = domain.NormalizeSymbol(symbol)
	for _, sym := range s.symbols {
		if sym == symbol {
			return true
		}
	}
	return false
}

// Ingest records a new quote and makes it visible to the monitor.
func (s *PriceService) Ingest(ctx context.Context, u domain.PriceUpdate) error {
	ctx, span := s.tracer.Start(ctx, "price-service.ingest")
	defer span.End()

	u.Symbol = domain.NormalizeSymbol(u.Symbol)
	if u.Price <= 0 {
		return fmt.Errorf("invalid price %v for %s", u.Price, u.Symbol)
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now().UTC()
	}

	s.Observe(u)
	if s.store != nil {
		return s.store.Publish(ctx, u)
	}

	s.mu.RLock()
	notify := s.notify
	s.mu.RUnlock()
	if notify != nil {
		notify(u)
	}
	return nil
}

// Observe updates the in-process view without publishing. Subscribers call it for
// updates that arrive from the shared channel.
func (s *PriceService) Observe(u domain.PriceUpdate) {
	s.mu.Lock()
	s.latest[u.Symbol] = u.Price
	s.mu.Unlock()
	if s.recorder != nil {
		s.recorder.RecordLastPrice(u.Symbol, u.Price)
	}
}

// Snapshot returns the latest price of every configured pair that has one.
func (s *PriceService) Snapshot(ctx context.Context) (domain.PriceSnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "price-service.snapshot")
	defer span.End()

	if s.store != nil {
		snap, err := s.store.Snapshot(ctx, s.symbols)
		if err == nil {
			return snap, nil
		}
		log.Warn().Err(err).Msg("price store read failed, using local quotes")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(domain.PriceSnapshot, len(s.latest))
	for _, sym := range s.symbols {
		if p, ok := s.latest[sym]; ok {
			out[sym] = p
		}
	}
	return out, nil
}

func (s *PriceService) Price(ctx context.Context, symbol string) (float64, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if s.store != nil {
		snap, err := s.store.Snapshot(ctx, []string{symbol})
		if err == nil && snap[symbol] > 0 {
			return snap[symbol], nil
		}
	}
	s.mu.RLock()
	p, ok := s.latest[symbol]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	return p, nil
}

// GetCandles returns up to limit candles, newest first.
func (s *PriceService) GetCandles(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	return s.repo.GetCandles(ctx, domain.NormalizeSymbol(symbol), tf, limit)
}

// IngestCandles stores candles. The close of the newest candle per pair seeds the quote
// when no live price has been seen yet.
func (s *PriceService) IngestCandles(ctx context.Context, candles []domain.Candle) error {
	ctx, span := s.tracer.Start(ctx, "price-service.ingest-candles")
	defer span.End()

	newest := map[string]domain.Candle{}
	for i := range candles {
		candles[i].Symbol = domain.NormalizeSymbol(candles[i].Symbol)
		c := candles[i]
		if prev, ok := newest[c.Symbol]; !ok || c.OpenTime.After(prev.OpenTime) {
			newest[c.Symbol] = c
		}
	}
	if err := s.repo.UpsertCandles(ctx, candles); err != nil {
		return fmt.Errorf("upsert candles: %w", err)
	}

	s.mu.Lock()
	for sym, c := range newest {
		if _, ok := s.latest[sym]; !ok && c.Close > 0 {
			s.latest[sym] = c.Close
		}
	}
	s.mu.Unlock()

	log.Debug().Int("candles", len(candles)).Int("symbols", len(newest)).Msg("ingested candles")
	return nil
}
