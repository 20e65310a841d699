package repository

import (
	"context"
	"errors"
	"fmt"

	"forex-signal-engine/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const signalColumns = `id, symbol, direction, entry_price, stop_loss, take_profits, confidence,
       strategy, entry_timeframe, status, targets_hit, created_at, updated_at`

type SignalRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewSignalRepository(pool PgxPool, tracer trace.Tracer) *SignalRepository {
	return &SignalRepository{pool: pool, tracer: tracer}
}

func (r *SignalRepository) Insert(ctx context.Context, s domain.MonitoredSignal) error {
	_, span := r.tracer.Start(ctx, "signal-repo.insert")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
INSERT INTO signals (
    id, symbol, direction, entry_price, stop_loss, take_profits, confidence,
    strategy, entry_timeframe, status, targets_hit, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.Symbol, string(s.Direction), s.EntryPrice, s.StopLoss, s.TakeProfits, s.Confidence,
		string(s.Strategy), string(s.EntryTimeframe), string(s.Status), toInt32s(s.TargetsHit.Slice()),
		s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

func (r *SignalRepository) Get(ctx context.Context, id string) (domain.MonitoredSignal, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.get")
	defer span.End()

	row := r.pool.QueryRow(ctx, `SELECT `+signalColumns+` FROM signals WHERE id = $1`, id)
	s, err := scanSignal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MonitoredSignal{}, domain.ErrSignalNotFound
	}
	return s, err
}

func (r *SignalRepository) Query(ctx context.Context, filter domain.SignalFilter) ([]domain.MonitoredSignal, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.query")
	defer span.End()

	sql, args := buildSignalQuery(filter)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	out := []domain.MonitoredSignal{}
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	span.SetAttributes(attribute.Int("rows", len(out)))
	return out, rows.Err()
}

func buildSignalQuery(f domain.SignalFilter) (string, []any) {
	sql := `SELECT ` + signalColumns + ` FROM signals WHERE 1=1`
	var args []any
	if f.Symbol != "" {
		args = append(args, domain.NormalizeSymbol(f.Symbol))
		sql += fmt.Sprintf(" AND symbol = $%d", len(args))
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		sql += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Direction != nil {
		args = append(args, string(*f.Direction))
		sql += fmt.Sprintf(" AND direction = $%d", len(args))
	}
	sql += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return sql, args
}

// Update applies a patch. Hit targets are merged with the stored set so concurrent writers can
// only grow it, and an expired signal never returns to active.
func (r *SignalRepository) Update(ctx context.Context, id string, patch domain.SignalPatch) error {
	_, span := r.tracer.Start(ctx, "signal-repo.update")
	defer span.End()

	if patch.TargetsHit != nil {
		tag, err := r.pool.Exec(ctx, `
UPDATE signals
SET targets_hit = ARRAY(SELECT DISTINCT t FROM unnest(targets_hit || $2::int[]) AS t ORDER BY t),
    updated_at = NOW()
WHERE id = $1`, id, toInt32s(patch.TargetsHit.Slice()))
		if err != nil {
			return fmt.Errorf("update targets: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrSignalNotFound
		}
	}
	if patch.Status != nil {
		tag, err := r.pool.Exec(ctx, `
UPDATE signals
SET status = $2, updated_at = NOW()
WHERE id = $1
  AND (status = 'active' OR status = $2)`, id, string(*patch.Status))
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", domain.ErrSignalNotFound, id)
		}
	}
	return nil
}

func scanSignal(s scanner) (domain.MonitoredSignal, error) {
	var out domain.MonitoredSignal
	var direction, strategy, tf, status string
	var hit []int32
	if err := s.Scan(
		&out.ID,
		&out.Symbol,
		&direction,
		&out.EntryPrice,
		&out.StopLoss,
		&out.TakeProfits,
		&out.Confidence,
		&strategy,
		&tf,
		&status,
		&hit,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return out, err
		}
		return out, fmt.Errorf("scan signal: %w", err)
	}
	st, err := domain.ParseSignalStatus(status)
	if err != nil {
		return out, err
	}
	out.Direction = domain.Direction(direction)
	out.Strategy = domain.StrategyTag(strategy)
	out.EntryTimeframe = domain.Timeframe(tf)
	out.Status = st
	idx := make([]int, len(hit))
	for i, v := range hit {
		idx[i] = int(v)
	}
	out.TargetsHit = domain.NewTargetSet(idx...)
	return out, nil
}

func toInt32s(in []int) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}
