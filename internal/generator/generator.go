// Package generator turns multi-timeframe analysis into trade signals.
package generator

import (
	"time"

	"forex-signal-engine/internal/confluence"
	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/patterns"
	"forex-signal-engine/internal/risk"
	"forex-signal-engine/internal/ta"
	"forex-signal-engine/internal/zones"

	"github.com/rs/zerolog/log"
)

const (
	IndicatorBonus          = 5
	CandlestickBonus        = 5
	ConfluenceReversalBonus = 10
	HeadAndShouldersBase    = 70
)

type Config struct {
	StopBufferPips int     `json:"stop_buffer_pips"`
	MinRewardRisk  float64 `json:"min_reward_risk"`
	MaxTargets     int     `json:"max_targets"`
	AccountBalance float64 `json:"account_balance"`
	RiskPercent    float64 `json:"risk_percent"`
}

func DefaultConfig() Config {
	return Config{
		StopBufferPips: 10,
		MinRewardRisk:  2.0,
		MaxTargets:     3,
		AccountBalance: 10000,
		RiskPercent:    1,
	}
}

// Input is everything needed to evaluate one symbol on one pass.
type Input struct {
	Symbol string
	Series confluence.Series
	Price  float64
	Now    time.Time
	// Open are the currently active signals, used for correlation checks.
	Open []domain.MonitoredSignal
	// Confluence, when set, is the caller's analysis of Series and is used instead of
	// recomputing it.
	Confluence *confluence.Result
}

// Context is the precomputed view every strategy reads from.
type Context struct {
	Symbol       string
	Price        float64
	Now          time.Time
	Config       Config
	Confluence   confluence.Result
	Entry        []domain.Candle
	Zones        []domain.Zone
	InZone       []domain.Zone
	Overlaps     []domain.ZoneOverlap
	Pattern      patterns.HeadAndShoulders
	HasPattern   bool
	Candlesticks []patterns.Candlestick
	Risk         risk.Assessment
	MACD         ta.MACDResult
	RSI          float64
}

// NewContext runs every analysis stage once so strategies share the results.
func NewContext(in Input, cfg Config) Context {
	var conf confluence.Result
	if in.Confluence != nil {
		conf = *in.Confluence
	} else {
		conf = confluence.Analyze(in.Series)
	}
	w := conf.Structure(domain.TimeframeWeekly)
	d := conf.Structure(domain.TimeframeDaily)
	h := conf.Structure(domain.TimeframeFourHour)

	wz := zones.Detect(w.Points, domain.TimeframeWeekly, in.Symbol, in.Price)
	dz := zones.Detect(d.Points, domain.TimeframeDaily, in.Symbol, in.Price)
	hz := zones.Detect(h.Points, domain.TimeframeFourHour, in.Symbol, in.Price)
	all := make([]domain.Zone, 0, len(wz)+len(dz)+len(hz))
	all = append(append(append(all, wz...), dz...), hz...)

	entry := in.Series.FourHour
	closes := domain.Closes(entry)
	pattern, ok := patterns.DetectHeadAndShoulders(h.Points, entry)

	return Context{
		Symbol:       in.Symbol,
		Price:        in.Price,
		Now:          in.Now,
		Config:       cfg,
		Confluence:   conf,
		Entry:        entry,
		Zones:        all,
		InZone:       zones.Containing(all, in.Price),
		Overlaps:     zones.FindOverlaps(wz, dz, in.Symbol),
		Pattern:      pattern,
		HasPattern:   ok,
		Candlesticks: patterns.DetectRecent(entry, patterns.ConfirmationWindow),
		Risk:         risk.Assess(in.Symbol, entry, in.Now),
		MACD:         ta.MACD(closes, 12, 26, 9),
		RSI:          ta.RSI(closes, 14),
	}
}

// Strategy is one way of building a signal. Strategies are tried in order.
type Strategy interface {
	Tag() domain.StrategyTag
	Eligible(Context) bool
	Build(Context) (domain.GeneratedSignal, bool)
}

type Generator struct {
	cfg        Config
	strategies []Strategy
}

func New(cfg Config) *Generator {
	return &Generator{
		cfg:        cfg,
		strategies: []Strategy{TrendContinuation{}, HeadAndShouldersReversal{}},
	}
}

// Generate returns the first signal any strategy can build, or false when none qualifies.
func (g *Generator) Generate(in Input) (domain.GeneratedSignal, bool) {
	if in.Price <= 0 {
		return domain.GeneratedSignal{}, false
	}
	ctx := NewContext(in, g.cfg)
	logger := log.With().Str("symbol", in.Symbol).Logger()

	if ctx.Confluence.Analysis.TradingBias == domain.BiasNoTrade {
		logger.Debug().Msg("no trade bias")
		return domain.GeneratedSignal{}, false
	}
	if ctx.Risk.Blocked {
		logger.Debug().Str("volatility", string(ctx.Risk.Volatility)).Msg("blocked by volatility")
		return domain.GeneratedSignal{}, false
	}

	for _, s := range g.strategies {
		if !s.Eligible(ctx) {
			continue
		}
		sig, ok := s.Build(ctx)
		if !ok {
			continue
		}
		if conflicts := risk.Conflicts(in.Symbol, sig.Direction, in.Open); len(conflicts) > 0 {
			logger.Debug().Str("strategy", string(s.Tag())).Str("conflict", conflicts[0].Symbol).Msg("correlated exposure")
			return domain.GeneratedSignal{}, false
		}
		return finalize(ctx, sig), true
	}
	logger.Debug().Msg("no qualifying signal")
	return domain.GeneratedSignal{}, false
}

// finalize applies the shared confidence adjustments and sizing.
func finalize(ctx Context, sig domain.GeneratedSignal) domain.GeneratedSignal {
	conf, notes := adjustConfidence(ctx, sig.Direction, sig.Confidence)
	sig.Confidence = conf
	sig.Notes = append(sig.Notes, notes...)
	sig.Symbol = ctx.Symbol
	sig.EntryTimeframe = domain.TimeframeFourHour
	sig.Confluence = ctx.Confluence.Analysis
	sig.Structure = ctx.Confluence.Structure(domain.TimeframeFourHour)
	sig.Sizing = risk.PositionSize(ctx.Config.AccountBalance, ctx.Config.RiskPercent, sig.RiskPips, ctx.Symbol)
	sig.CreatedAt = ctx.Now
	return sig
}

func adjustConfidence(ctx Context, dir domain.Direction, base int) (int, []string) {
	var notes []string
	conf := base
	if n := len(ctx.Overlaps); n > 0 {
		conf += n * zones.OverlapBonus
		notes = append(notes, "weekly/daily zone overlap")
	}
	if indicatorsAgree(ctx, dir) {
		conf += IndicatorBonus
		notes = append(notes, "MACD and RSI agree")
	}
	if patterns.Confirms(ctx.Candlesticks, dir) {
		conf += CandlestickBonus
		notes = append(notes, "candlestick confirmation")
	}
	if ctx.Risk.ConfidenceAdjustment != 0 {
		conf += ctx.Risk.ConfidenceAdjustment
		notes = append(notes, "outside favorable session")
	}
	return clamp(conf), notes
}

func indicatorsAgree(ctx Context, dir domain.Direction) bool {
	switch dir {
	case domain.DirectionBuy:
		return ctx.MACD.Histogram > 0 && ctx.RSI < 70
	case domain.DirectionSell:
		return ctx.MACD.Histogram < 0 && ctx.RSI > 30
	}
	return false
}

func clamp(v int) int {
	return max(0, min(domain.MaxConfidence, v))
}
