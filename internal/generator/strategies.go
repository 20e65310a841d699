package generator

import (
	"math"
	"sort"

	"forex-signal-engine/internal/confluence"
	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/pips"
	"forex-signal-engine/internal/structure"
)

// TrendContinuation trades in the bias direction from inside an area of interest.
type TrendContinuation struct{}

func (TrendContinuation) Tag() domain.StrategyTag { return domain.StrategyTrendContinuation }

func (TrendContinuation) Eligible(ctx Context) bool {
	a := ctx.Confluence.Analysis
	return len(ctx.InZone) > 0 && a.ConfluenceScore >= confluence.MinScore && a.TradingBias != domain.BiasNoTrade
}

func (TrendContinuation) Build(ctx Context) (domain.GeneratedSignal, bool) {
	dir, ok := ctx.Confluence.Analysis.TradingBias.Direction()
	if !ok {
		return domain.GeneratedSignal{}, false
	}
	points := ctx.Confluence.Structure(domain.TimeframeFourHour).Points
	buffer := float64(ctx.Config.StopBufferPips)
	entry := pips.Round(ctx.Price, ctx.Symbol)

	var stop float64
	switch dir {
	case domain.DirectionBuy:
		p, found := structure.LastOfKind(points, domain.PointHL)
		if !found {
			return domain.GeneratedSignal{}, false
		}
		stop = pips.Offset(p.Price, -buffer, ctx.Symbol)
		if stop >= entry {
			return domain.GeneratedSignal{}, false
		}
	case domain.DirectionSell:
		p, found := structure.LastOfKind(points, domain.PointLH)
		if !found {
			return domain.GeneratedSignal{}, false
		}
		stop = pips.Offset(p.Price, buffer, ctx.Symbol)
		if stop <= entry {
			return domain.GeneratedSignal{}, false
		}
	}

	var levels []float64
	for _, z := range ctx.Zones {
		levels = append(levels, z.PriceLevel)
	}
	for _, tf := range domain.AnalysisTimeframes {
		for _, p := range ctx.Confluence.Structure(tf).Points {
			levels = append(levels, p.Price)
		}
	}
	targets := selectTargets(ctx.Symbol, dir, entry, stop, levels, ctx.Config)
	if len(targets) == 0 {
		return domain.GeneratedSignal{}, false
	}

	return newSignal(ctx, dir, stop, targets, ctx.Confluence.Analysis.ConfluenceScore, domain.StrategyTrendContinuation), true
}

// HeadAndShouldersReversal trades a confirmed neckline break toward the measured target.
type HeadAndShouldersReversal struct{}

func (HeadAndShouldersReversal) Tag() domain.StrategyTag { return domain.StrategyHeadAndShoulders }

func (HeadAndShouldersReversal) Eligible(ctx Context) bool {
	return ctx.HasPattern && ctx.Pattern.Confirmed && ctx.Confluence.Analysis.TradingBias != domain.BiasNoTrade
}

func (HeadAndShouldersReversal) Build(ctx Context) (domain.GeneratedSignal, bool) {
	p := ctx.Pattern
	buffer := float64(ctx.Config.StopBufferPips)
	entry := pips.Round(ctx.Price, ctx.Symbol)

	var stop float64
	switch p.Direction {
	case domain.DirectionSell:
		stop = pips.Offset(p.RightShoulder.Price, buffer, ctx.Symbol)
		if stop <= entry || p.Target >= entry {
			return domain.GeneratedSignal{}, false
		}
	case domain.DirectionBuy:
		stop = pips.Offset(p.RightShoulder.Price, -buffer, ctx.Symbol)
		if stop >= entry || p.Target <= entry {
			return domain.GeneratedSignal{}, false
		}
	default:
		return domain.GeneratedSignal{}, false
	}

	target := pips.Round(p.Target, ctx.Symbol)
	if pips.RewardRisk(entry, stop, target, ctx.Symbol) < ctx.Config.MinRewardRisk {
		return domain.GeneratedSignal{}, false
	}

	sig := newSignal(ctx, p.Direction, stop, []float64{target}, HeadAndShouldersBase, domain.StrategyHeadAndShoulders)
	if len(ctx.InZone) > 0 {
		sig.Confidence += ConfluenceReversalBonus
		sig.Strategy = domain.StrategyConfluenceReversal
		sig.Notes = append(sig.Notes, "reversal inside area of interest")
	}
	return sig, true
}

func newSignal(ctx Context, dir domain.Direction, stop float64, targets []float64, confidence int, tag domain.StrategyTag) domain.GeneratedSignal {
	entry := pips.Round(ctx.Price, ctx.Symbol)
	return domain.GeneratedSignal{
		Symbol:      ctx.Symbol,
		Direction:   dir,
		EntryPrice:  entry,
		StopLoss:    stop,
		TakeProfits: targets,
		Confidence:  confidence,
		Strategy:    tag,
		RiskPips:    pips.Between(entry, stop, ctx.Symbol),
		RewardRisk:  math.Round(pips.RewardRisk(entry, stop, targets[0], ctx.Symbol)*100) / 100,
	}
}

// selectTargets keeps levels beyond entry that pay at least MinRewardRisk, nearest first.
func selectTargets(symbol string, dir domain.Direction, entry, stop float64, levels []float64, cfg Config) []float64 {
	beyond := levels[:0:0]
	for _, l := range levels {
		if (dir == domain.DirectionBuy && l > entry) || (dir == domain.DirectionSell && l < entry) {
			beyond = append(beyond, l)
		}
	}
	sort.Slice(beyond, func(i, j int) bool {
		return math.Abs(beyond[i]-entry) < math.Abs(beyond[j]-entry)
	})

	limit := min(cfg.MaxTargets, domain.MaxTakeProfits)
	var out []float64
	for _, l := range beyond {
		if len(out) == limit {
			break
		}
		if len(out) > 0 && pips.Between(out[len(out)-1], l, symbol) <= 1 {
			continue
		}
		if pips.RewardRisk(entry, stop, l, symbol) < cfg.MinRewardRisk {
			continue
		}
		out = append(out, pips.Round(l, symbol))
	}
	return out
}
