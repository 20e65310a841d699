package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/pips"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

const (
	queryTimeout  = 5 * time.Second
	signalsListed = 10
)

type SignalReader interface {
	Query(ctx context.Context, filter domain.SignalFilter) ([]domain.MonitoredSignal, error)
	Get(ctx context.Context, id string) (domain.MonitoredSignal, error)
}

type OutcomeReader interface {
	GetBySignalID(ctx context.Context, signalID string) (domain.SignalOutcome, error)
}

type PriceReader interface {
	Symbols() []string
	Supported(symbol string) bool
	Price(ctx context.Context, symbol string) (float64, error)
}

// Replies builds the text for each command. Kept apart from telebot so it can be tested
// without a bot token.
type Replies struct {
	Signals  SignalReader
	Outcomes OutcomeReader
	Prices   PriceReader
}

// StartTelegramBot registers the query commands and starts polling in the background.
// An empty token disables the bot and returns nil.
func StartTelegramBot(token string, r Replies) (*tele.Bot, error) {
	if token == "" {
		log.Info().Msg("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil, nil
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})
	b.Handle("/signals", reply(func(ctx context.Context, args []string) string { return r.ActiveSignals(ctx, args) }))
	b.Handle("/signal", reply(func(ctx context.Context, args []string) string { return r.Signal(ctx, args) }))
	b.Handle("/outcome", reply(func(ctx context.Context, args []string) string { return r.Outcome(ctx, args) }))
	b.Handle("/price", reply(func(ctx context.Context, args []string) string { return r.Price(ctx, args) }))

	log.Info().Msg("Telegram bot started")
	go b.Start()
	return b, nil
}

func reply(fn func(ctx context.Context, args []string) string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		return c.Send(fn(ctx, c.Args()))
	}
}

// ActiveSignals answers /signals [SYMBOL].
func (r Replies) ActiveSignals(ctx context.Context, args []string) string {
	filter := domain.ActiveFilter()
	filter.Limit = signalsListed
	if len(args) > 0 {
		filter.Symbol = domain.NormalizeSymbol(args[0])
	}
	signals, err := r.Signals.Query(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("telegram signals query failed")
		return "Could not load signals, try again later."
	}
	if len(signals) == 0 {
		return "No active signals."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Active signals (%d)\n", len(signals))
	for _, s := range signals {
		fmt.Fprintf(&sb, "\n%s %s @ %s | SL %s | %d%% | id %s",
			s.Symbol, s.Direction, pips.Format(s.EntryPrice, s.Symbol), pips.Format(s.StopLoss, s.Symbol), s.Confidence, s.ID)
	}
	return sb.String()
}

// Signal answers /signal ID.
func (r Replies) Signal(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: /signal <id>"
	}
	s, err := r.Signals.Get(ctx, args[0])
	if errors.Is(err, domain.ErrSignalNotFound) {
		return "Signal not found: " + args[0]
	}
	if err != nil {
		log.Error().Err(err).Str("signal_id", args[0]).Msg("telegram signal lookup failed")
		return "Could not load signal, try again later."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s (%s, %s)\n", s.Symbol, s.Direction, s.Strategy, s.Status)
	fmt.Fprintf(&sb, "Entry: %s\nStop: %s\n", pips.Format(s.EntryPrice, s.Symbol), pips.Format(s.StopLoss, s.Symbol))
	for i, tp := range s.TakeProfits {
		mark := ""
		if s.TargetsHit.Contains(i + 1) {
			mark = " (hit)"
		}
		fmt.Fprintf(&sb, "TP%d: %s%s\n", i+1, pips.Format(tp, s.Symbol), mark)
	}
	fmt.Fprintf(&sb, "Confidence: %d%%", s.Confidence)
	return sb.String()
}

// Outcome answers /outcome ID.
func (r Replies) Outcome(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: /outcome <id>"
	}
	id := args[0]
	s, err := r.Signals.Get(ctx, id)
	if errors.Is(err, domain.ErrSignalNotFound) {
		return "Signal not found: " + id
	}
	if err != nil {
		log.Error().Err(err).Str("signal_id", id).Msg("telegram signal lookup failed")
		return "Could not load signal, try again later."
	}

	o, err := r.Outcomes.GetBySignalID(ctx, id)
	if errors.Is(err, domain.ErrOutcomeNotFound) {
		return fmt.Sprintf("%s %s is still open (%d of %d targets hit).", s.Symbol, s.Direction, s.TargetsHit.Len(), len(s.TakeProfits))
	}
	if err != nil {
		log.Error().Err(err).Str("signal_id", id).Msg("telegram outcome lookup failed")
		return "Could not load outcome, try again later."
	}

	result := "STOPPED"
	if o.HitTarget {
		result = "TARGET"
	}
	return fmt.Sprintf("%s %s closed: %s\nExit: %s\nP&L: %+d pips\n%s",
		s.Symbol, s.Direction, result, pips.Format(o.ExitPrice, s.Symbol), o.PnLPips, o.Notes)
}

// Price answers /price SYMBOL.
func (r Replies) Price(ctx context.Context, args []string) string {
	supported := strings.Join(r.Prices.Symbols(), ", ")
	if len(args) == 0 {
		return fmt.Sprintf("Usage: /price EURUSD\nSupported: %s", supported)
	}
	symbol := domain.NormalizeSymbol(args[0])
	if !r.Prices.Supported(symbol) {
		return fmt.Sprintf("Unknown symbol: %s\nSupported: %s", symbol, supported)
	}
	p, err := r.Prices.Price(ctx, symbol)
	if err != nil {
		return fmt.Sprintf("No live price for %s yet.", symbol)
	}
	return fmt.Sprintf("%s\nPrice: %s", symbol, pips.Format(p, symbol))
}
