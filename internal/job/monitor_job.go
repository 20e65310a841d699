package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/monitor"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type PassRunner interface {
	RunPass(ctx context.Context, trigger monitor.Trigger, prices domain.PriceSnapshot) (monitor.PassResult, error)
}

type SnapshotSource interface {
	Snapshot(ctx context.Context) (domain.PriceSnapshot, error)
}

// MonitorJob consumes scheduler ticks with a fixed set of workers.
type MonitorJob struct {
	tracer      trace.Tracer
	runner      PassRunner
	prices      SnapshotSource
	workers     int
	passTimeout time.Duration
}

func NewMonitorJob(tracer trace.Tracer, runner PassRunner, prices SnapshotSource, workers int, passTimeout time.Duration) *MonitorJob {
	if workers <= 0 {
		workers = 2
	}
	if passTimeout <= 0 {
		passTimeout = 30 * time.Second
	}
	return &MonitorJob{
		tracer:      tracer,
		runner:      runner,
		prices:      prices,
		workers:     workers,
		passTimeout: passTimeout,
	}
}

// Start returns once ticks is closed and every in-flight pass has finished.
func (j *MonitorJob) Start(ctx context.Context, ticks <-chan Tick) {
	var wg sync.WaitGroup
	for i := 0; i < j.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for t := range ticks {
				if _, err := j.RunOnce(ctx, t); err != nil {
					log.Error().Err(err).Int("worker", worker).Str("trigger", string(t.Trigger)).Msg("monitor pass failed")
				}
			}
		}(i)
	}
	wg.Wait()
	log.Info().Msg("monitor job stopped")
}

// RunOnce executes a single pass. Cancelling ctx does not interrupt it; the pass timeout
// bounds it instead.
func (j *MonitorJob) RunOnce(ctx context.Context, t Tick) (monitor.PassResult, error) {
	passCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.passTimeout)
	defer cancel()

	passCtx, span := j.tracer.Start(passCtx, "monitor-job.run-once")
	defer span.End()
	span.SetAttributes(attribute.String("trigger", string(t.Trigger)))

	prices := t.Prices
	if prices == nil {
		snap, err := j.prices.Snapshot(passCtx)
		if err != nil {
			return monitor.PassResult{Trigger: t.Trigger}, fmt.Errorf("read price snapshot: %w", err)
		}
		prices = snap
	}
	return j.runner.RunPass(passCtx, t.Trigger, prices)
}
