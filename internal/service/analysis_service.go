package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"forex-signal-engine/internal/confluence"
	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/generator"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	analysisEmitted   = "emitted"
	analysisNoSignal  = "no_signal"
	analysisDuplicate = "duplicate"
	analysisError     = "error"
)

type CandleSource interface {
	GetCandles(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error)
}

type PriceReader interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

type SignalStore interface {
	Insert(ctx context.Context, s domain.MonitoredSignal) error
	Query(ctx context.Context, filter domain.SignalFilter) ([]domain.MonitoredSignal, error)
}

type SignalGenerator interface {
	Generate(in generator.Input) (domain.GeneratedSignal, bool)
}

type AnalysisRecorder interface {
	RecordSignal(strategy domain.StrategyTag)
	RecordAnalysis(result string)
}

type AnalysisOptions struct {
	Lookback    int
	Concurrency int
	Recorder    AnalysisRecorder
	Now         func() time.Time
	NewID       func() string
}

// AnalysisReport is the outcome of evaluating one pair.
type AnalysisReport struct {
	Symbol     string                        `json:"symbol"`
	Price      float64                       `json:"price"`
	Confluence domain.MultiTimeframeAnalysis `json:"confluence"`
	Signal     *domain.GeneratedSignal       `json:"signal,omitempty"`
	Duplicate  bool                          `json:"duplicate"`
	AnalyzedAt time.Time                     `json:"analyzed_at"`
}

type RunResult struct {
	Analyzed int                      `json:"analyzed"`
	Emitted  []domain.MonitoredSignal `json:"emitted"`
	NoSignal int                      `json:"no_signal"`
	Skipped  int                      `json:"skipped"`
	Errors   int                      `json:"errors"`
}

// AnalysisService turns stored candles into persisted signals.
type AnalysisService struct {
	tracer  trace.Tracer
	candles CandleSource
	prices  PriceReader
	signals SignalStore
	gen     SignalGenerator
	symbols []string
	opts    AnalysisOptions

	// runs are serialized so two triggers cannot emit the same signal twice.
	runMu sync.Mutex
}

func NewAnalysisService(
	tracer trace.Tracer,
	candles CandleSource,
	prices PriceReader,
	signals SignalStore,
	gen SignalGenerator,
	symbols []string,
	opts AnalysisOptions,
) *AnalysisService {
	if opts.Lookback <= 0 {
		opts.Lookback = 200
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &AnalysisService{
		tracer:  tracer,
		candles: candles,
		prices:  prices,
		signals: signals,
		gen:     gen,
		symbols: symbols,
		opts:    opts,
	}
}

// Analyze evaluates symbol without persisting anything.
func (s *AnalysisService) Analyze(ctx context.Context, symbol string) (AnalysisReport, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.analyze")
	defer span.End()

	symbol = domain.NormalizeSymbol(symbol)
	span.SetAttributes(attribute.String("symbol", symbol))

	series, err := s.loadSeries(ctx, symbol)
	if err != nil {
		return AnalysisReport{}, err
	}

	active, err := s.signals.Query(ctx, domain.ActiveFilter())
	if err != nil {
		return AnalysisReport{}, fmt.Errorf("load active signals: %w", err)
	}
	var others, same []domain.MonitoredSignal
	for _, sig := range active {
		if sig.Symbol == symbol {
			same = append(same, sig)
		} else {
			others = append(others, sig)
		}
	}

	now := s.opts.Now()
	price := s.currentPrice(ctx, symbol, series.FourHour)
	conf := confluence.Analyze(series)
	report := AnalysisReport{
		Symbol:     symbol,
		Price:      price,
		Confluence: conf.Analysis,
		AnalyzedAt: now,
	}

	sig, ok := s.gen.Generate(generator.Input{
		Symbol:     symbol,
		Series:     series,
		Price:      price,
		Now:        now,
		Open:       others,
		Confluence: &conf,
	})
	if !ok {
		return report, nil
	}
	report.Signal = &sig
	report.Duplicate = slices.ContainsFunc(same, func(m domain.MonitoredSignal) bool {
		return m.Direction == sig.Direction
	})
	return report, nil
}

// Run analyzes every configured pair and stores new signals.
func (s *AnalysisService) Run(ctx context.Context) (RunResult, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.run")
	defer span.End()

	s.runMu.Lock()
	defer s.runMu.Unlock()

	var (
		mu  sync.Mutex
		res RunResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for _, symbol := range s.symbols {
		g.Go(func() error {
			outcome, emitted := s.runSymbol(gctx, symbol)

			mu.Lock()
			defer mu.Unlock()
			res.Analyzed++
			switch outcome {
			case analysisEmitted:
				res.Emitted = append(res.Emitted, emitted)
			case analysisNoSignal:
				res.NoSignal++
			case analysisDuplicate:
				res.Skipped++
			default:
				res.Errors++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	span.SetAttributes(attribute.Int("emitted", len(res.Emitted)), attribute.Int("errors", res.Errors))
	log.Info().
		Int("analyzed", res.Analyzed).
		Int("emitted", len(res.Emitted)).
		Int("skipped", res.Skipped).
		Int("errors", res.Errors).
		Msg("analysis run complete")
	return res, ctx.Err()
}

func (s *AnalysisService) runSymbol(ctx context.Context, symbol string) (string, domain.MonitoredSignal) {
	logger := log.With().Str("symbol", symbol).Logger()

	report, err := s.Analyze(ctx, symbol)
	if err != nil {
		logger.Error().Err(err).Msg("analysis failed")
		s.record(analysisError)
		return analysisError, domain.MonitoredSignal{}
	}
	if report.Signal == nil {
		s.record(analysisNoSignal)
		return analysisNoSignal, domain.MonitoredSignal{}
	}
	if report.Duplicate {
		logger.Debug().Str("direction", string(report.Signal.Direction)).Msg("active signal already open")
		s.record(analysisDuplicate)
		return analysisDuplicate, domain.MonitoredSignal{}
	}

	stored := domain.NewMonitoredSignal(s.opts.NewID(), *report.Signal, s.opts.Now())
	if err := s.signals.Insert(ctx, stored); err != nil {
		logger.Error().Err(err).Msg("store signal failed")
		s.record(analysisError)
		return analysisError, domain.MonitoredSignal{}
	}

	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordSignal(stored.Strategy)
	}
	s.record(analysisEmitted)
	logger.Info().
		Str("signal_id", stored.ID).
		Str("direction", string(stored.Direction)).
		Str("strategy", string(stored.Strategy)).
		Int("confidence", stored.Confidence).
		Float64("entry", stored.EntryPrice).
		Msg("signal emitted")
	return analysisEmitted, stored
}

func (s *AnalysisService) record(result string) {
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordAnalysis(result)
	}
}

// loadSeries fetches the three timeframes concurrently and returns them oldest first.
func (s *AnalysisService) loadSeries(ctx context.Context, symbol string) (confluence.Series, error) {
	tfs := []domain.Timeframe{domain.TimeframeWeekly, domain.TimeframeDaily, domain.TimeframeFourHour}
	loaded := make([][]domain.Candle, len(tfs))

	g, gctx := errgroup.WithContext(ctx)
	for i, tf := range tfs {
		g.Go(func() error {
			candles, err := s.candles.GetCandles(gctx, symbol, tf, s.opts.Lookback)
			if err != nil {
				return fmt.Errorf("load %s %s candles: %w", symbol, tf, err)
			}
			slices.Reverse(candles)
			loaded[i] = candles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return confluence.Series{}, err
	}
	return confluence.Series{Weekly: loaded[0], Daily: loaded[1], FourHour: loaded[2]}, nil
}

func (s *AnalysisService) currentPrice(ctx context.Context, symbol string, fourHour []domain.Candle) float64 {
	if s.prices != nil {
		if p, err := s.prices.Price(ctx, symbol); err == nil && p > 0 {
			return p
		}
	}
	if n := len(fourHour); n > 0 {
		return fourHour[n-1].Close
	}
	return 0
}
