package handler

import (
	"context"
	"net/http"

	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/job"
	"forex-signal-engine/internal/monitor"
	"forex-signal-engine/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type SignalReader interface {
	Query(ctx context.Context, filter domain.SignalFilter) ([]domain.MonitoredSignal, error)
	Get(ctx context.Context, id string) (domain.MonitoredSignal, error)
}

type OutcomeReader interface {
	GetBySignalID(ctx context.Context, signalID string) (domain.SignalOutcome, error)
	List(ctx context.Context, limit int) ([]domain.SignalOutcome, error)
}

type PriceAPI interface {
	Symbols() []string
	Supported(symbol string) bool
	Snapshot(ctx context.Context) (domain.PriceSnapshot, error)
	Ingest(ctx context.Context, u domain.PriceUpdate) error
	GetCandles(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error)
	IngestCandles(ctx context.Context, candles []domain.Candle) error
}

type Analyzer interface {
	Analyze(ctx context.Context, symbol string) (service.AnalysisReport, error)
	Run(ctx context.Context) (service.RunResult, error)
}

type MonitorRunner interface {
	RunOnce(ctx context.Context, t job.Tick) (monitor.PassResult, error)
}

type Handler struct {
	tracer   trace.Tracer
	signals  SignalReader
	outcomes OutcomeReader
	prices   PriceAPI
	analyzer Analyzer
	monitor  MonitorRunner
	metrics  http.Handler
	backends Backends
}

func New(tracer trace.Tracer, signals SignalReader, outcomes OutcomeReader, prices PriceAPI) *Handler {
	return &Handler{
		tracer:   tracer,
		signals:  signals,
		outcomes: outcomes,
		prices:   prices,
	}
}

func (h *Handler) SetAnalyzer(a Analyzer)           { h.analyzer = a }
func (h *Handler) SetMonitorRunner(m MonitorRunner) { h.monitor = m }
func (h *Handler) SetMetricsHandler(m http.Handler) { h.metrics = m }
func (h *Handler) SetBackends(b Backends)           { h.backends = b }

// RegisterRoutes mounts the API. Mutating routes require the API key when apiKey is set.
func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}

	api := r.Group("/api")
	api.GET("/signals", h.ListSignals)
	api.GET("/signals/:id", h.GetSignal)
	api.GET("/signals/:id/outcome", h.GetSignalOutcome)
	api.GET("/outcomes", h.ListOutcomes)
	api.GET("/analysis/:symbol", h.AnalyzeSymbol)
	api.GET("/prices", h.GetPrices)
	api.GET("/candles/:symbol", h.GetCandles)

	protected := api.Group("", APIKeyAuth(apiKey))
	protected.POST("/analysis/run", h.RunAnalysis)
	protected.POST("/monitor/run", h.RunMonitor)
	protected.POST("/prices", h.PostPrice)
	protected.POST("/candles", h.PostCandles)
}
