// Package monitor advances active signals against live prices and records exactly one
// outcome per signal.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/pips"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type Trigger string

const (
	TriggerTimer      Trigger = "timer"
	TriggerPriceEvent Trigger = "price_event"
	TriggerManual     Trigger = "manual"
)

type SignalStore interface {
	Query(ctx context.Context, filter domain.SignalFilter) ([]domain.MonitoredSignal, error)
	Update(ctx context.Context, id string, patch domain.SignalPatch) error
}

type OutcomeStore interface {
	ExistsBySignalID(ctx context.Context, signalID string) (bool, error)
	// Insert writes the outcome unless one already exists for the signal.
	Insert(ctx context.Context, outcome domain.SignalOutcome) (bool, error)
}

// Recorder receives pass statistics. A nil Recorder is valid.
type Recorder interface {
	RecordPass(result PassResult, elapsed time.Duration)
}

type PassResult struct {
	Trigger         Trigger `json:"trigger"`
	Evaluated       int     `json:"evaluated"`
	Skipped         int     `json:"skipped"`
	TargetsRecorded int     `json:"targets_recorded"`
	Closed          int     `json:"closed"`
	Recovered       int     `json:"recovered"`
	Duplicates      int     `json:"duplicates"`
	Errors          int     `json:"errors"`
}

type Options struct {
	// Concurrency bounds how many symbols are processed at once.
	Concurrency int
	Recorder    Recorder
	Now         func() time.Time
}

type Monitor struct {
	tracer      trace.Tracer
	signals     SignalStore
	outcomes    OutcomeStore
	recorder    Recorder
	concurrency int
	now         func() time.Time
}

func New(tracer trace.Tracer, signals SignalStore, outcomes OutcomeStore, opts Options) *Monitor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Monitor{
		tracer:      tracer,
		signals:     signals,
		outcomes:    outcomes,
		recorder:    opts.Recorder,
		concurrency: opts.Concurrency,
		now:         opts.Now,
	}
}

// step is the result of evaluating one signal.
type step struct {
	targets   int
	closed    bool
	recovered bool
	duplicate bool
}

// RunPass evaluates every active signal once. Only a failure to list signals is returned;
// per-signal failures are logged, counted and retried on the next pass.
func (m *Monitor) RunPass(ctx context.Context, trigger Trigger, prices domain.PriceSnapshot) (PassResult, error) {
	ctx, span := m.tracer.Start(ctx, "monitor.run-pass")
	defer span.End()
	started := time.Now()

	result := PassResult{Trigger: trigger}
	active, err := m.signals.Query(ctx, domain.ActiveFilter())
	if err != nil {
		span.RecordError(err)
		return result, fmt.Errorf("list active signals: %w", err)
	}

	bySymbol := make(map[string][]domain.MonitoredSignal)
	for _, s := range active {
		bySymbol[s.Symbol] = append(bySymbol[s.Symbol], s)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for symbol, sigs := range bySymbol {
		price, ok := prices[symbol]
		if !ok || price <= 0 {
			mu.Lock()
			result.Skipped += len(sigs)
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			for _, sig := range sigs {
				st, err := m.evaluate(gctx, sig, price)
				mu.Lock()
				result.Evaluated++
				if err != nil {
					result.Errors++
					log.Error().Err(err).Str("signal_id", sig.ID).Str("symbol", sig.Symbol).Msg("monitor: evaluate signal")
				}
				result.TargetsRecorded += st.targets
				if st.closed {
					result.Closed++
				}
				if st.recovered {
					result.Recovered++
				}
				if st.duplicate {
					result.Duplicates++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(
		attribute.String("trigger", string(trigger)),
		attribute.Int("evaluated", result.Evaluated),
		attribute.Int("closed", result.Closed),
		attribute.Int("errors", result.Errors),
	)
	if m.recorder != nil {
		m.recorder.RecordPass(result, time.Since(started))
	}
	return result, nil
}

// evaluate checks one signal against this pass's price. Overlapping passes each evaluate
// their own price; the conditional outcome insert keeps the result single.
func (m *Monitor) evaluate(ctx context.Context, sig domain.MonitoredSignal, price float64) (step, error) {
	var st step

	exists, err := m.outcomes.ExistsBySignalID(ctx, sig.ID)
	if err != nil {
		return st, fmt.Errorf("check outcome: %w", err)
	}
	if exists {
		if err := m.expire(ctx, sig.ID); err != nil {
			return st, err
		}
		st.recovered = true
		return st, nil
	}

	stopped := StopHit(sig.Direction, sig.StopLoss, price)
	hit := sig.TargetsHit
	if !stopped {
		next := hit
		for i, tp := range sig.TakeProfits {
			if !hit.Contains(i+1) && TargetHit(sig.Direction, tp, price) {
				next = next.Insert(i + 1)
			}
		}
		if next.Len() > hit.Len() {
			if err := m.signals.Update(ctx, sig.ID, domain.SignalPatch{TargetsHit: &next}); err != nil {
				return st, fmt.Errorf("record targets: %w", err)
			}
			st.targets = next.Len() - hit.Len()
			hit = next
		}
	}

	if !stopped && !hit.CoversAll(len(sig.TakeProfits)) {
		return st, nil
	}

	outcome := BuildOutcome(sig, hit, stopped, m.now())
	inserted, err := m.outcomes.Insert(ctx, outcome)
	if err != nil {
		return st, fmt.Errorf("insert outcome: %w", err)
	}
	if !inserted {
		st.duplicate = true
	} else {
		st.closed = true
		log.Info().
			Str("signal_id", sig.ID).
			Str("symbol", sig.Symbol).
			Bool("hit_target", outcome.HitTarget).
			Int("pnl_pips", outcome.PnLPips).
			Msg("signal closed")
	}
	if err := m.expire(ctx, sig.ID); err != nil {
		return st, err
	}
	return st, nil
}

func (m *Monitor) expire(ctx context.Context, id string) error {
	status := domain.StatusExpired
	if err := m.signals.Update(ctx, id, domain.SignalPatch{Status: &status}); err != nil {
		return fmt.Errorf("expire signal: %w", err)
	}
	return nil
}

// StopHit reports whether price has reached the protective stop.
func StopHit(dir domain.Direction, stop, price float64) bool {
	switch dir {
	case domain.DirectionBuy:
		return price <= stop
	case domain.DirectionSell:
		return price >= stop
	}
	return false
}

// TargetHit reports whether price has reached a take-profit level.
func TargetHit(dir domain.Direction, target, price float64) bool {
	switch dir {
	case domain.DirectionBuy:
		return price >= target
	case domain.DirectionSell:
		return price <= target
	}
	return false
}

// BuildOutcome derives the terminal record. A stop always wins over targets.
func BuildOutcome(sig domain.MonitoredSignal, hit domain.TargetSet, stopped bool, at time.Time) domain.SignalOutcome {
	out := domain.SignalOutcome{SignalID: sig.ID, ExitTimestamp: at}
	if stopped {
		out.ExitPrice = sig.StopLoss
		out.Notes = fmt.Sprintf("stop loss hit at %s", pips.Format(sig.StopLoss, sig.Symbol))
		if hit.Len() > 0 {
			out.Notes += fmt.Sprintf(" after targets %s", formatTargets(hit))
		}
	} else {
		level := hit.Max()
		out.HitTarget = true
		out.TargetHitLevel = &level
		out.ExitPrice = sig.TakeProfits[level-1]
		out.Notes = fmt.Sprintf("all %d take-profit targets hit, closed at TP%d", len(sig.TakeProfits), level)
	}
	out.PnLPips = pips.Signed(sig.EntryPrice, out.ExitPrice, sig.Direction, sig.Symbol)
	return out
}

func formatTargets(s domain.TargetSet) string {
	idx := s.Slice()
	sort.Ints(idx)
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = fmt.Sprintf("TP%d", v)
	}
	return strings.Join(parts, ", ")
}
