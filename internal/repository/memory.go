package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"forex-signal-engine/internal/domain"
)

// MemorySignalStore keeps signals in process. It is used when DATABASE_URL is unset.
type MemorySignalStore struct {
	mu      sync.RWMutex
	signals map[string]domain.MonitoredSignal
	now     func() time.Time
}

func NewMemorySignalStore() *MemorySignalStore {
	return &MemorySignalStore{
		signals: make(map[string]domain.MonitoredSignal),
		now:     time.Now,
	}
}

func (m *MemorySignalStore) Insert(_ context.Context, s domain.MonitoredSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.signals[s.ID]; ok {
		return fmt.Errorf("insert signal: duplicate id %s", s.ID)
	}
	m.signals[s.ID] = cloneSignal(s)
	return nil
}

func (m *MemorySignalStore) Get(_ context.Context, id string) (domain.MonitoredSignal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.signals[id]
	if !ok {
		return domain.MonitoredSignal{}, domain.ErrSignalNotFound
	}
	return cloneSignal(s), nil
}

func (m *MemorySignalStore) Query(_ context.Context, filter domain.SignalFilter) ([]domain.MonitoredSignal, error) {
	m.mu.RLock()
	out := []domain.MonitoredSignal{}
	for _, s := range m.signals {
		if filter.Matches(s) {
			out = append(out, cloneSignal(s))
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemorySignalStore) Update(_ context.Context, id string, patch domain.SignalPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signals[id]
	if !ok {
		return domain.ErrSignalNotFound
	}
	if patch.Status != nil && *patch.Status != s.Status && !s.Status.CanTransition(*patch.Status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStatus, s.Status, *patch.Status)
	}
	if patch.TargetsHit != nil {
		s.TargetsHit = s.TargetsHit.Union(*patch.TargetsHit)
	}
	if patch.Status != nil {
		s.Status = *patch.Status
	}
	s.UpdatedAt = m.now().UTC()
	m.signals[id] = s
	return nil
}

func cloneSignal(s domain.MonitoredSignal) domain.MonitoredSignal {
	tps := make([]float64, len(s.TakeProfits))
	copy(tps, s.TakeProfits)
	s.TakeProfits = tps
	return s
}

// MemoryOutcomeStore holds at most one outcome per signal.
type MemoryOutcomeStore struct {
	mu       sync.RWMutex
	outcomes map[string]domain.SignalOutcome
}

func NewMemoryOutcomeStore() *MemoryOutcomeStore {
	return &MemoryOutcomeStore{outcomes: make(map[string]domain.SignalOutcome)}
}

func (m *MemoryOutcomeStore) Insert(_ context.Context, o domain.SignalOutcome) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.outcomes[o.SignalID]; ok {
		return false, nil
	}
	m.outcomes[o.SignalID] = o
	return true, nil
}

func (m *MemoryOutcomeStore) ExistsBySignalID(_ context.Context, signalID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.outcomes[signalID]
	return ok, nil
}

func (m *MemoryOutcomeStore) GetBySignalID(_ context.Context, signalID string) (domain.SignalOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.outcomes[signalID]
	if !ok {
		return domain.SignalOutcome{}, domain.ErrOutcomeNotFound
	}
	return o, nil
}

func (m *MemoryOutcomeStore) List(_ context.Context, limit int) ([]domain.SignalOutcome, error) {
	m.mu.RLock()
	out := make([]domain.SignalOutcome, 0, len(m.outcomes))
	for _, o := range m.outcomes {
		out = append(out, o)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ExitTimestamp.After(out[j].ExitTimestamp)
	})
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryCandleStore keeps candles per symbol and timeframe ordered by open time.
type MemoryCandleStore struct {
	mu      sync.RWMutex
	candles map[string][]domain.Candle
}

func NewMemoryCandleStore() *MemoryCandleStore {
	return &MemoryCandleStore{candles: make(map[string][]domain.Candle)}
}

func candleKey(symbol string, tf domain.Timeframe) string {
	return domain.NormalizeSymbol(symbol) + "|" + string(tf)
}

func (m *MemoryCandleStore) UpsertCandles(_ context.Context, candles []domain.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range candles {
		key := candleKey(c.Symbol, c.Timeframe)
		series := m.candles[key]
		i := sort.Search(len(series), func(i int) bool { return !series[i].OpenTime.Before(c.OpenTime) })
		if i < len(series) && series[i].OpenTime.Equal(c.OpenTime) {
			series[i] = c
			continue
		}
		series = append(series, domain.Candle{})
		copy(series[i+1:], series[i:])
		series[i] = c
		m.candles[key] = series
	}
	return nil
}

// GetCandles returns up to limit candles, newest first, matching CandleRepository.
func (m *MemoryCandleStore) GetCandles(_ context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	series := m.candles[candleKey(symbol, tf)]
	n := len(series)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.Candle, 0, n)
	for i := len(series) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, series[i])
	}
	return out, nil
}
