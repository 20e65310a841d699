package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

func stubPool(t *testing.T, pingErr error) *string {
	t.Helper()
	origNew, origPing := newPool, pingPool
	t.Cleanup(func() {
		newPool = origNew
		pingPool = origPing
		Pool = nil
	})

	var host string
	newPool = func(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
		host = cfg.ConnConfig.Host
		return pgxpool.NewWithConfig(ctx, cfg)
	}
	pingPool = func(context.Context, *pgxpool.Pool) error { return pingErr }
	return &host
}

func TestInitPostgresEmptyDSN(t *testing.T) {
	stubPool(t, nil)
	if err := InitPostgres(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Pool != nil {
		t.Fatal("expected nil pool without DSN")
	}
}

func TestInitPostgresConnects(t *testing.T) {
	host := stubPool(t, nil)
	if err := InitPostgres(context.Background(), "postgres://fx:fx@db.internal:5432/fx"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *host != "db.internal" {
		t.Fatalf("expected host db.internal, got %q", *host)
	}
	if Pool == nil {
		t.Fatal("expected pool to be set")
	}
	Close()
	if Pool != nil {
		t.Fatal("expected Close to reset pool")
	}
}

func TestInitPostgresPingFailure(t *testing.T) {
	stubPool(t, errors.New("refused"))
	if err := InitPostgres(context.Background(), "postgres://fx:fx@localhost:5432/fx"); err == nil {
		t.Fatal("expected ping error")
	}
	if Pool != nil {
		t.Fatal("pool must stay nil after failed ping")
	}
}

func TestInitPostgresBadDSN(t *testing.T) {
	stubPool(t, nil)
	if err := InitPostgres(context.Background(), "postgres://fx:fx@localhost:5432/%zz"); err == nil {
		t.Fatal("expected parse error")
	}
}
