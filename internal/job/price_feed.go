package job

import (
	"context"
	"time"

	"forex-signal-engine/internal/domain"

	"github.com/rs/zerolog/log"
)

type PriceSubscriber interface {
	Subscribe(ctx context.Context, fn func(domain.PriceUpdate)) error
}

// PriceFeed forwards pub/sub quotes to the price service and the scheduler, resubscribing
// after failures.
type PriceFeed struct {
	source PriceSubscriber
	sinks  []func(domain.PriceUpdate)
	retry  time.Duration
}

func NewPriceFeed(source PriceSubscriber, retry time.Duration, sinks ...func(domain.PriceUpdate)) *PriceFeed {
	if retry <= 0 {
		retry = 5 * time.Second
	}
	return &PriceFeed{source: source, sinks: sinks, retry: retry}
}

func (f *PriceFeed) Start(ctx context.Context) {
	for {
		err := f.source.Subscribe(ctx, f.dispatch)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Error().Err(err).Dur("retry", f.retry).Msg("price subscription failed")
		} else {
			log.Warn().Dur("retry", f.retry).Msg("price subscription closed")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(f.retry):
		}
	}
}

func (f *PriceFeed) dispatch(u domain.PriceUpdate) {
	for _, sink := range f.sinks {
		sink(u)
	}
}
