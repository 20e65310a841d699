package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"forex-signal-engine/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

type Config struct {
	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string
	HTTPAddr         string `validate:"required"`
	APIKey           string

	Symbols []string `validate:"min=1,dive,len=6,alpha"`

	MonitorIntervalSecs    int    `validate:"min=5,max=15"`
	MonitorWorkers         int    `validate:"min=1,max=16"`
	MonitorPassTimeoutSecs int    `validate:"min=1"`
	MonitorConcurrency     int    `validate:"min=1"`
	PriceChannel           string `validate:"required"`

	AnalysisIntervalMins int `validate:"min=1"`
	CandleLookback       int `validate:"min=50,max=1000"`

	AccountBalance float64 `validate:"gt=0"`
	RiskPercent    float64 `validate:"gt=0,lte=10"`
	StopBufferPips int     `validate:"min=0,max=100"`
	MinRewardRisk  float64 `validate:"gte=1"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json console"`

	TracingEnabled   bool
	OTLPEndpoint     string
	TraceSampleRatio float64 `validate:"gte=0,lte=1"`
}

var validate = validator.New()

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		APIKey:           strings.TrimSpace(os.Getenv("API_KEY")),
	}

	if cfg.TelegramBotToken == "" {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, bot disabled")
	}
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory signal store")
	}
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.HTTPAddr = envString("HTTP_ADDR", ":8080")
	cfg.PriceChannel = envString("PRICE_CHANNEL", "fx:prices")
	cfg.LogLevel = strings.ToLower(envString("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(envString("LOG_FORMAT", "json"))

	cfg.Symbols = append([]string(nil), domain.DefaultSymbols...)
	if v := strings.TrimSpace(os.Getenv("FX_SYMBOLS")); v != "" {
		var symbols []string
		for _, s := range strings.Split(v, ",") {
			if s = domain.NormalizeSymbol(s); s != "" {
				symbols = append(symbols, s)
			}
		}
		if len(symbols) > 0 {
			cfg.Symbols = symbols
		}
	}

	cfg.MonitorIntervalSecs = envInt("MONITOR_INTERVAL_SECS", 10, func(n int) bool { return n >= 5 && n <= 15 })
	cfg.MonitorWorkers = envInt("MONITOR_WORKERS", 2, positive)
	cfg.MonitorPassTimeoutSecs = envInt("MONITOR_PASS_TIMEOUT_SECS", 30, positive)
	cfg.MonitorConcurrency = envInt("MONITOR_CONCURRENCY", 4, positive)
	cfg.AnalysisIntervalMins = envInt("ANALYSIS_INTERVAL_MINS", 15, positive)
	cfg.CandleLookback = envInt("CANDLE_LOOKBACK", 200, func(n int) bool { return n >= 50 && n <= 1000 })
	cfg.StopBufferPips = envInt("STOP_BUFFER_PIPS", 10, func(n int) bool { return n >= 0 && n <= 100 })

	cfg.AccountBalance = envFloat("ACCOUNT_BALANCE", 10000, func(f float64) bool { return f > 0 })
	cfg.RiskPercent = envFloat("RISK_PERCENT", 1, func(f float64) bool { return f > 0 && f <= 10 })
	cfg.MinRewardRisk = envFloat("MIN_REWARD_RISK", 2.0, func(f float64) bool { return f >= 1 })

	cfg.TracingEnabled = !strings.EqualFold(strings.TrimSpace(os.Getenv("TRACING_ENABLED")), "false")
	cfg.OTLPEndpoint = envString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	cfg.TraceSampleRatio = envFloat("TRACE_SAMPLE_RATIO", 1, func(f float64) bool { return f >= 0 && f <= 1 })

	return cfg
}

// Validate checks the loaded values against their allowed ranges.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func positive(n int) bool { return n > 0 }

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int, ok func(int) bool) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || !ok(n) {
		log.Warn().Str("key", key).Str("value", v).Int("default", def).Msg("invalid config value, using default")
		return def
	}
	return n
}

func envFloat(key string, def float64, ok func(float64) bool) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !ok(f) {
		log.Warn().Str("key", key).Str("value", v).Float64("default", def).Msg("invalid config value, using default")
		return def
	}
	return f
}
