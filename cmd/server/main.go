package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forex-signal-engine/internal/bot"
	"forex-signal-engine/internal/cache"
	"forex-signal-engine/internal/config"
	"forex-signal-engine/internal/db"
	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/generator"
	"forex-signal-engine/internal/handler"
	"forex-signal-engine/internal/job"
	"forex-signal-engine/internal/logging"
	"forex-signal-engine/internal/metrics"
	"forex-signal-engine/internal/monitor"
	"forex-signal-engine/internal/repository"
	"forex-signal-engine/internal/service"
	"forex-signal-engine/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	tele "gopkg.in/telebot.v3"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type signalStore interface {
	Insert(ctx context.Context, s domain.MonitoredSignal) error
	Get(ctx context.Context, id string) (domain.MonitoredSignal, error)
	Query(ctx context.Context, filter domain.SignalFilter) ([]domain.MonitoredSignal, error)
	Update(ctx context.Context, id string, patch domain.SignalPatch) error
}

type outcomeStore interface {
	Insert(ctx context.Context, o domain.SignalOutcome) (bool, error)
	ExistsBySignalID(ctx context.Context, signalID string) (bool, error)
	GetBySignalID(ctx context.Context, signalID string) (domain.SignalOutcome, error)
	List(ctx context.Context, limit int) ([]domain.SignalOutcome, error)
}

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	setupLoggingFunc       = logging.Setup
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	startTelegramBotFunc   = bot.StartTelegramBot
	newRouterFunc          = gin.New
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

func main() {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()
	if err := setupLoggingFunc(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Warn().Err(err).Msg("invalid log settings, keeping defaults")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuration rejected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, tracing.Options{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
		Version:     version,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer")
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	if err := initPostgresFunc(ctx, cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize postgres")
	}
	defer db.Close()
	defer cache.Close()
	if err := initRedisFunc(ctx, cfg.RedisURL); err != nil {
		log.Error().Err(err).Msg("redis unavailable, using in-process prices")
	}

	recorder := metrics.New()
	signals, outcomes, candles := newStores(tracer)

	var priceStore *cache.PriceStore
	if cache.Client != nil {
		priceStore = cache.NewPriceStore(tracer, cache.Client, cfg.PriceChannel)
	}
	var sharedPrices service.PriceStore
	if priceStore != nil {
		sharedPrices = priceStore
	}
	priceService := service.NewPriceService(tracer, sharedPrices, candles, recorder, cfg.Symbols)

	gen := generator.New(generator.Config{
		StopBufferPips: cfg.StopBufferPips,
		MinRewardRisk:  cfg.MinRewardRisk,
		MaxTargets:     generator.DefaultConfig().MaxTargets,
		AccountBalance: cfg.AccountBalance,
		RiskPercent:    cfg.RiskPercent,
	})
	analysisService := service.NewAnalysisService(tracer, candles, priceService, signals, gen, cfg.Symbols, service.AnalysisOptions{
		Lookback: cfg.CandleLookback,
		Recorder: recorder,
	})

	mon := monitor.New(tracer, signals, outcomes, monitor.Options{
		Concurrency: cfg.MonitorConcurrency,
		Recorder:    recorder,
	})
	scheduler := job.NewScheduler(time.Duration(cfg.MonitorIntervalSecs)*time.Second, job.DefaultQueueSize)
	monitorJob := job.NewMonitorJob(tracer, mon, priceService, cfg.MonitorWorkers, time.Duration(cfg.MonitorPassTimeoutSecs)*time.Second)
	analysisJob := job.NewAnalysisJob(tracer, analysisService, time.Duration(cfg.AnalysisIntervalMins)*time.Minute)

	notify := func(u domain.PriceUpdate) { scheduler.NotifyPrice(u) }
	if priceStore != nil {
		feed := job.NewPriceFeed(priceStore, 5*time.Second, priceService.Observe, notify)
		go feed.Start(ctx)
	} else {
		priceService.OnLocalUpdate(notify)
	}

	go scheduler.Start(ctx)
	monitorDone := make(chan struct{})
	go func() {
		monitorJob.Start(ctx, scheduler.Ticks())
		close(monitorDone)
	}()
	go analysisJob.Start(ctx)

	telegram, err := startTelegramBotFunc(cfg.TelegramBotToken, bot.Replies{
		Signals:  signals,
		Outcomes: outcomes,
		Prices:   priceService,
	})
	if err != nil {
		log.Error().Err(err).Msg("telegram bot disabled")
	}

	h := handler.New(tracer, signals, outcomes, priceService)
	h.SetAnalyzer(analysisService)
	h.SetMonitorRunner(monitorJob)
	h.SetMetricsHandler(recorder.Handler())
	h.SetBackends(backendsFor(priceStore))

	r := newRouterFunc()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(tracing.ServiceName))
	r.Use(handler.RequestLogger())
	h.RegisterRoutes(r, cfg.APIKey)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("version", version).Msg("http server listening")
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info().Msg("shutting down server")

	cancel()
	stopTelegram(telegram)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// In-flight monitor passes finish on their own timeout.
	select {
	case <-monitorDone:
	case <-time.After(time.Duration(cfg.MonitorPassTimeoutSecs) * time.Second):
		log.Warn().Msg("monitor passes still running at exit")
	}

	log.Info().Msg("server exiting")
}

func newStores(tracer trace.Tracer) (signalStore, outcomeStore, service.CandleRepository) {
	if db.Pool == nil {
		return repository.NewMemorySignalStore(), repository.NewMemoryOutcomeStore(), repository.NewMemoryCandleStore()
	}
	return repository.NewSignalRepository(db.Pool, tracer),
		repository.NewOutcomeRepository(db.Pool, tracer),
		repository.NewCandleRepository(db.Pool, tracer)
}

func stopTelegram(b *tele.Bot) {
	if b != nil {
		b.Stop()
	}
}

func backendsFor(prices *cache.PriceStore) handler.Backends {
	b := handler.Backends{Signals: "postgres", Prices: "redis"}
	if db.Pool == nil {
		b.Signals = "memory"
	}
	if prices == nil {
		b.Prices = "local"
	}
	return b
}
