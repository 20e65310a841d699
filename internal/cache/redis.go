package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Client is nil until InitRedis succeeds; callers treat nil as "no shared price cache".
var Client *redis.Client

const (
	dialTimeout = 3 * time.Second
	ioTimeout   = 2 * time.Second
)

var (
	newRedisClient = func(opts *redis.Options) *redis.Client {
		return redis.NewClient(opts)
	}
	pingRedis = func(ctx context.Context, client *redis.Client) error {
		return client.Ping(ctx).Err()
	}
	parseRedisURL = redis.ParseURL
)

// InitRedis accepts either host:port or a redis:// URL. An empty addr leaves Client nil.
func InitRedis(ctx context.Context, addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		log.Warn().Msg("REDIS_URL not set, live prices disabled")
		return nil
	}

	opts, err := redisOptions(addr)
	if err != nil {
		return err
	}

	client := newRedisClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := pingRedis(pingCtx, client); err != nil {
		_ = client.Close()
		return fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}
	Client = client
	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("connected to redis")
	return nil
}

func redisOptions(addr string) (*redis.Options, error) {
	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := parseRedisURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = dialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = ioTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = ioTimeout
	}
	return opts, nil
}

// Close releases the client. Safe to call when Redis was never configured.
func Close() {
	if Client == nil {
		return
	}
	if err := Client.Close(); err != nil {
		log.Error().Err(err).Msg("close redis")
	}
	Client = nil
}
