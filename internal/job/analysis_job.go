package job

import (
	"context"
	"time"

	"forex-signal-engine/internal/service"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

type AnalysisRunner interface {
	Run(ctx context.Context) (service.RunResult, error)
}

// AnalysisJob runs the analysis service immediately and then on every interval.
type AnalysisJob struct {
	tracer   trace.Tracer
	runner   AnalysisRunner
	interval time.Duration
}

func NewAnalysisJob(tracer trace.Tracer, runner AnalysisRunner, interval time.Duration) *AnalysisJob {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &AnalysisJob{tracer: tracer, runner: runner, interval: interval}
}

func (j *AnalysisJob) Start(ctx context.Context) {
	if j.runner == nil {
		log.Warn().Msg("analysis job disabled: no runner")
		<-ctx.Done()
		return
	}

	j.runOnce(ctx)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *AnalysisJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "analysis-job.run-once")
	defer span.End()

	res, err := j.runner.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("analysis cycle error")
		return
	}
	if len(res.Emitted) > 0 {
		log.Info().Int("emitted", len(res.Emitted)).Msg("analysis cycle emitted signals")
	}
}
