package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Pool is nil when no DATABASE_URL is configured; callers then fall back to in-memory stores.
var Pool *pgxpool.Pool

var (
	newPool = func(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
		return pgxpool.NewWithConfig(ctx, cfg)
	}
	pingPool = func(ctx context.Context, pool *pgxpool.Pool) error {
		return pool.Ping(ctx)
	}
	parseConfig = pgxpool.ParseConfig
)

// InitPostgres connects to dsn and stores the pool in Pool. An empty dsn leaves Pool nil.
func InitPostgres(ctx context.Context, dsn string) error {
	if dsn == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory stores")
		return nil
	}

	cfg, err := parseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse DATABASE_URL: %w", err)
	}

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pingPool(ctx, pool); err != nil {
		pool.Close()
		return fmt.Errorf("connect to postgres: %w", err)
	}

	Pool = pool
	log.Info().Int32("max_conns", cfg.MaxConns).Msg("connected to postgres")
	return nil
}

func Close() {
	if Pool != nil {
		Pool.Close()
		Pool = nil
	}
}
