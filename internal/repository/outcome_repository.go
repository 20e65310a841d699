package repository

import (
	"context"
	"errors"
	"fmt"

	"forex-signal-engine/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

const outcomeColumns = `signal_id, hit_target, exit_price, exit_timestamp, target_hit_level, pnl_pips, notes`

type OutcomeRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewOutcomeRepository(pool PgxPool, tracer trace.Tracer) *OutcomeRepository {
	return &OutcomeRepository{pool: pool, tracer: tracer}
}

// Insert writes the outcome unless the signal already has one. The unique key on signal_id
// makes the second writer a no-op.
func (r *OutcomeRepository) Insert(ctx context.Context, o domain.SignalOutcome) (bool, error) {
	_, span := r.tracer.Start(ctx, "outcome-repo.insert")
	defer span.End()

	var level pgtype.Int4
	if o.TargetHitLevel != nil {
		level = pgtype.Int4{Int32: int32(*o.TargetHitLevel), Valid: true}
	}
	tag, err := r.pool.Exec(ctx, `
INSERT INTO signal_outcomes (`+outcomeColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (signal_id) DO NOTHING`,
		o.SignalID, o.HitTarget, o.ExitPrice, o.ExitTimestamp.UTC(), level, o.PnLPips, o.Notes,
	)
	if err != nil {
		return false, fmt.Errorf("insert outcome: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OutcomeRepository) ExistsBySignalID(ctx context.Context, signalID string) (bool, error) {
	_, span := r.tracer.Start(ctx, "outcome-repo.exists")
	defer span.End()

	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM signal_outcomes WHERE signal_id = $1)`, signalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check outcome: %w", err)
	}
	return exists, nil
}

func (r *OutcomeRepository) GetBySignalID(ctx context.Context, signalID string) (domain.SignalOutcome, error) {
	_, span := r.tracer.Start(ctx, "outcome-repo.get")
	defer span.End()

	row := r.pool.QueryRow(ctx, `SELECT `+outcomeColumns+` FROM signal_outcomes WHERE signal_id = $1`, signalID)
	o, err := scanOutcome(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SignalOutcome{}, domain.ErrOutcomeNotFound
	}
	return o, err
}

// List returns the most recent outcomes first.
func (r *OutcomeRepository) List(ctx context.Context, limit int) ([]domain.SignalOutcome, error) {
	_, span := r.tracer.Start(ctx, "outcome-repo.list")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+outcomeColumns+` FROM signal_outcomes ORDER BY exit_timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	out := []domain.SignalOutcome{}
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOutcome(s scanner) (domain.SignalOutcome, error) {
	var o domain.SignalOutcome
	var level pgtype.Int4
	if err := s.Scan(&o.SignalID, &o.HitTarget, &o.ExitPrice, &o.ExitTimestamp, &level, &o.PnLPips, &o.Notes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, err
		}
		return o, fmt.Errorf("scan outcome: %w", err)
	}
	if level.Valid {
		v := int(level.Int32)
		o.TargetHitLevel = &v
	}
	return o, nil
}
