package job

import (
	"context"
	"time"

	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/monitor"

	"github.com/rs/zerolog/log"
)

const (
	DefaultMonitorInterval = 10 * time.Second
	DefaultQueueSize       = 64
)

// Tick asks for one monitor pass. Prices is nil for timer ticks; the consumer then reads a
// full snapshot.
type Tick struct {
	Trigger monitor.Trigger
	Prices  domain.PriceSnapshot
	At      time.Time
}

// Scheduler turns the monitor timer and live price events into a bounded queue of ticks.
type Scheduler struct {
	interval time.Duration
	events   chan domain.PriceUpdate
	ticks    chan Tick
	now      func() time.Time
}

func NewScheduler(interval time.Duration, queueSize int) *Scheduler {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Scheduler{
		interval: interval,
		events:   make(chan domain.PriceUpdate, queueSize),
		ticks:    make(chan Tick, queueSize),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ticks is closed when Start returns.
func (s *Scheduler) Ticks() <-chan Tick { return s.ticks }

// NotifyPrice queues a price event without blocking. Events are dropped when the queue is
// full; the next timer pass still sees the latest price.
func (s *Scheduler) NotifyPrice(u domain.PriceUpdate) bool {
	select {
	case s.events <- u:
		return true
	default:
		log.Debug().Str("symbol", u.Symbol).Msg("price event dropped, queue full")
		return false
	}
}

// Start blocks until ctx is cancelled, then closes the tick queue.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.ticks)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("monitor scheduler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("monitor scheduler stopped")
			return
		case <-ticker.C:
			s.enqueue(Tick{Trigger: monitor.TriggerTimer, At: s.now()})
		case u := <-s.events:
			s.enqueue(Tick{
				Trigger: monitor.TriggerPriceEvent,
				Prices:  domain.PriceSnapshot{u.Symbol: u.Price},
				At:      s.now(),
			})
		}
	}
}

func (s *Scheduler) enqueue(t Tick) {
	select {
	case s.ticks <- t:
	default:
		log.Warn().Str("trigger", string(t.Trigger)).Msg("monitor busy, tick dropped")
	}
}
