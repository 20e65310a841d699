package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"forex-signal-engine/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const (
	priceKeyPrefix = "fx:price:"
	// Quotes older than this are treated as missing by readers.
	PriceTTL = 10 * time.Minute
)

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

func PriceKey(symbol string) string {
	return priceKeyPrefix + domain.NormalizeSymbol(symbol)
}

// PriceStore keeps the latest quote per pair in Redis and fans updates out over pub/sub.
type PriceStore struct {
	tracer  trace.Tracer
	client  RedisClient
	channel string
}

func NewPriceStore(tracer trace.Tracer, client RedisClient, channel string) *PriceStore {
	return &PriceStore{tracer: tracer, client: client, channel: channel}
}

func (s *PriceStore) Set(ctx context.Context, u domain.PriceUpdate) error {
	_, span := s.tracer.Start(ctx, "price-store.set")
	defer span.End()

	u.Symbol = domain.NormalizeSymbol(u.Symbol)
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode price: %w", err)
	}
	if err := s.client.Set(ctx, PriceKey(u.Symbol), payload, PriceTTL).Err(); err != nil {
		return fmt.Errorf("store price %s: %w", u.Symbol, err)
	}
	return nil
}

// Publish stores the update and announces it on the price channel.
func (s *PriceStore) Publish(ctx context.Context, u domain.PriceUpdate) error {
	if err := s.Set(ctx, u); err != nil {
		return err
	}

	_, span := s.tracer.Start(ctx, "price-store.publish")
	defer span.End()

	u.Symbol = domain.NormalizeSymbol(u.Symbol)
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode price: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish price %s: %w", u.Symbol, err)
	}
	return nil
}

// Snapshot reads the latest prices for symbols with a single MGET. Missing or unreadable
// entries are left out.
func (s *PriceStore) Snapshot(ctx context.Context, symbols []string) (domain.PriceSnapshot, error) {
	_, span := s.tracer.Start(ctx, "price-store.snapshot")
	defer span.End()

	out := domain.PriceSnapshot{}
	if len(symbols) == 0 {
		return out, nil
	}
	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = PriceKey(sym)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read prices: %w", err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var u domain.PriceUpdate
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			log.Warn().Err(err).Str("key", keys[i]).Msg("skipping malformed price")
			continue
		}
		if u.Price > 0 {
			out[domain.NormalizeSymbol(symbols[i])] = u.Price
		}
	}
	return out, nil
}

// Subscribe delivers decoded updates to fn until ctx is cancelled.
func (s *PriceStore) Subscribe(ctx context.Context, fn func(domain.PriceUpdate)) error {
	ps := s.client.Subscribe(ctx, s.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	defer ps.Close()

	log.Info().Str("channel", s.channel).Msg("subscribed to price updates")
	consume(ctx, ps.Channel(), fn)
	return nil
}

func consume(ctx context.Context, msgs <-chan *redis.Message, fn func(domain.PriceUpdate)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			u, err := DecodeUpdate(msg.Payload)
			if err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping price message")
				continue
			}
			fn(u)
		}
	}
}

func DecodeUpdate(payload string) (domain.PriceUpdate, error) {
	var u domain.PriceUpdate
	if err := json.Unmarshal([]byte(payload), &u); err != nil {
		return u, fmt.Errorf("decode price update: %w", err)
	}
	u.Symbol = domain.NormalizeSymbol(u.Symbol)
	if u.Symbol == "" || u.Price <= 0 {
		return u, fmt.Errorf("invalid price update %q", payload)
	}
	return u, nil
}
