package repository

import (
	"context"
	"fmt"

	"forex-signal-engine/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxCandleBatch bounds one round trip; larger ingests are split.
const maxCandleBatch = 500

const upsertCandleSQL = `INSERT INTO candles (symbol, timeframe, open_time, open, high, low, close, volume)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	 ON CONFLICT (symbol, timeframe, open_time) DO UPDATE SET
	   open = EXCLUDED.open,
	   high = EXCLUDED.high,
	   low = EXCLUDED.low,
	   close = EXCLUDED.close,
	   volume = EXCLUDED.volume`

type CandleRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewCandleRepository(pool PgxPool, tracer trace.Tracer) *CandleRepository {
	return &CandleRepository{pool: pool, tracer: tracer}
}

// UpsertCandles writes candles keyed by (symbol, timeframe, open_time). The whole slice is
// checked before anything is sent, so a bad bar never leaves a partial write.
func (r *CandleRepository) UpsertCandles(ctx context.Context, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	ctx, span := r.tracer.Start(ctx, "candle-repo.upsert-candles")
	defer span.End()
	span.SetAttributes(attribute.Int("candles", len(candles)))

	for i, c := range candles {
		if err := checkCandle(c); err != nil {
			return fmt.Errorf("candle %d: %w", i, err)
		}
	}

	for start := 0; start < len(candles); start += maxCandleBatch {
		end := min(start+maxCandleBatch, len(candles))
		if err := r.sendChunk(ctx, candles[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *CandleRepository) sendChunk(ctx context.Context, chunk []domain.Candle) error {
	batch := &pgx.Batch{}
	for _, c := range chunk {
		batch.Queue(upsertCandleSQL,
			c.Symbol, string(c.Timeframe), c.OpenTime.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range chunk {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert candle: %w", err)
		}
	}
	return nil
}

func checkCandle(c domain.Candle) error {
	if c.Symbol == "" {
		return fmt.Errorf("missing symbol")
	}
	if _, err := domain.ParseTimeframe(string(c.Timeframe)); err != nil {
		return err
	}
	if c.Low <= 0 || c.High < c.Low {
		return fmt.Errorf("%s %s: invalid range low=%v high=%v", c.Symbol, c.Timeframe, c.Low, c.High)
	}
	if c.Open < c.Low || c.Open > c.High || c.Close < c.Low || c.Close > c.High {
		return fmt.Errorf("%s %s: open/close outside range", c.Symbol, c.Timeframe)
	}
	return nil
}

// GetCandles returns up to limit candles, newest first.
func (r *CandleRepository) GetCandles(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	ctx, span := r.tracer.Start(ctx, "candle-repo.get-candles")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.String("timeframe", string(tf)))

	rows, err := r.pool.Query(ctx,
		`SELECT symbol, timeframe, open_time, open, high, low, close, volume
		 FROM candles
		 WHERE symbol = $1 AND timeframe = $2
		 ORDER BY open_time DESC
		 LIMIT $3`,
		symbol, string(tf), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var candles []domain.Candle
	for rows.Next() {
		c, err := scanCandle(rows)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

func scanCandle(s scanner) (domain.Candle, error) {
	var c domain.Candle
	var tf string
	if err := s.Scan(&c.Symbol, &tf, &c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
		return c, fmt.Errorf("scan candle: %w", err)
	}
	c.Timeframe = domain.Timeframe(tf)
	return c, nil
}
