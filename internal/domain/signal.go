package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrSignalNotFound  = errors.New("signal not found")
	ErrOutcomeNotFound = errors.New("outcome not found")
	ErrInvalidStatus   = errors.New("invalid signal status")
)

// MaxTakeProfits bounds the number of targets a signal may carry.
const MaxTakeProfits = 5

// MaxConfidence is the ceiling applied to every generated confidence.
const MaxConfidence = 95

type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Opposite returns the other side of the trade.
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}
	return DirectionBuy
}

// ParseDirection accepts BUY/SELL case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case DirectionBuy:
		return DirectionBuy, nil
	case DirectionSell:
		return DirectionSell, nil
	}
	return "", fmt.Errorf("invalid direction %q", s)
}

type StrategyTag string

const (
	StrategyTrendContinuation  StrategyTag = "trend_continuation"
	StrategyHeadAndShoulders   StrategyTag = "head_and_shoulders"
	StrategyConfluenceReversal StrategyTag = "confluence_reversal"
)

// SignalStatus is the monitor lifecycle state. Expired is terminal.
type SignalStatus string

const (
	StatusActive  SignalStatus = "active"
	StatusExpired SignalStatus = "expired"
)

// ParseSignalStatus rejects anything outside the closed set.
func ParseSignalStatus(s string) (SignalStatus, error) {
	switch SignalStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, nil
	case StatusExpired:
		return StatusExpired, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// IsTerminal reports whether no further transition is allowed.
func (s SignalStatus) IsTerminal() bool {
	switch s {
	case StatusActive:
		return false
	case StatusExpired:
		return true
	}
	return true
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
func (s SignalStatus) CanTransition(next SignalStatus) bool {
	switch s {
	case StatusActive:
		return next == StatusActive || next == StatusExpired
	case StatusExpired:
		return false
	}
	return false
}

// PositionSizing is the risk module's suggested exposure for a trade.
type PositionSizing struct {
	RiskAmount float64 `json:"risk_amount"`
	Units      float64 `json:"units"`
	Lots       float64 `json:"lots"`
}

// GeneratedSignal is a fully specified candidate produced by the generator.
type GeneratedSignal struct {
	Symbol         string                 `json:"symbol"`
	Direction      Direction              `json:"direction"`
	EntryPrice     float64                `json:"entry_price"`
	StopLoss       float64                `json:"stop_loss"`
	TakeProfits    []float64              `json:"take_profits"`
	Confidence     int                    `json:"confidence"`
	Strategy       StrategyTag            `json:"strategy"`
	EntryTimeframe Timeframe              `json:"entry_timeframe"`
	Confluence     MultiTimeframeAnalysis `json:"confluence"`
	Structure      MarketStructure        `json:"structure"`
	RiskPips       int                    `json:"risk_pips"`
	RewardRisk     float64                `json:"reward_risk"`
	Sizing         PositionSizing         `json:"sizing"`
	Notes          []string               `json:"notes,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// MonitoredSignal is the persisted view of a signal the outcome monitor tracks.
type MonitoredSignal struct {
	ID             string       `json:"id"`
	Symbol         string       `json:"symbol"`
	Direction      Direction    `json:"direction"`
	EntryPrice     float64      `json:"entry_price"`
	StopLoss       float64      `json:"stop_loss"`
	TakeProfits    []float64    `json:"take_profits"`
	Confidence     int          `json:"confidence"`
	Strategy       StrategyTag  `json:"strategy"`
	EntryTimeframe Timeframe    `json:"entry_timeframe"`
	Status         SignalStatus `json:"status"`
	TargetsHit     TargetSet    `json:"targets_hit"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// NewMonitoredSignal builds the initial active record for a generated signal.
func NewMonitoredSignal(id string, g GeneratedSignal, now time.Time) MonitoredSignal {
	tps := make([]float64, len(g.TakeProfits))
	copy(tps, g.TakeProfits)
	return MonitoredSignal{
		ID:             id,
		Symbol:         g.Symbol,
		Direction:      g.Direction,
		EntryPrice:     g.EntryPrice,
		StopLoss:       g.StopLoss,
		TakeProfits:    tps,
		Confidence:     g.Confidence,
		Strategy:       g.Strategy,
		EntryTimeframe: g.EntryTimeframe,
		Status:         StatusActive,
		TargetsHit:     TargetSet{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// SignalOutcome is the single terminal record of a signal.
type SignalOutcome struct {
	SignalID       string    `json:"signal_id"`
	HitTarget      bool      `json:"hit_target"`
	ExitPrice      float64   `json:"exit_price"`
	ExitTimestamp  time.Time `json:"exit_timestamp"`
	TargetHitLevel *int      `json:"target_hit_level"`
	PnLPips        int       `json:"pnl_pips"`
	Notes          string    `json:"notes"`
}

// SignalFilter narrows a signal store query. Zero values match everything.
type SignalFilter struct {
	Symbol    string
	Status    *SignalStatus
	Direction *Direction
	Limit     int
}

// Matches reports whether s satisfies the filter.
func (f SignalFilter) Matches(s MonitoredSignal) bool {
	if f.Symbol != "" && !strings.EqualFold(f.Symbol, s.Symbol) {
		return false
	}
	if f.Status != nil && *f.Status != s.Status {
		return false
	}
	if f.Direction != nil && *f.Direction != s.Direction {
		return false
	}
	return true
}

// SignalPatch carries the fields the monitor is allowed to write.
type SignalPatch struct {
	TargetsHit *TargetSet
	Status     *SignalStatus
}

// ActiveFilter is the monitor's standard query.
func ActiveFilter() SignalFilter {
	st := StatusActive
	return SignalFilter{Status: &st}
}
