// Package migrate applies the embedded SQL migrations with goose.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

const dir = "migrations"

// Migrator wraps goose over a pgx pool.
type Migrator struct {
	db  *sql.DB
	log *zap.Logger
}

func New(pool *pgxpool.Pool, log *zap.Logger) (*Migrator, error) {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	// goose needs database/sql; the pool stays owned by the caller
	return &Migrator{db: stdlib.OpenDBFromPool(pool), log: log}, nil
}

func (m *Migrator) Up(ctx context.Context) error {
	m.log.Info("applying database migrations")
	if err := goose.UpContext(ctx, m.db, dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	v, err := m.Version(ctx)
	if err != nil {
		return err
	}
	m.log.Info("migrations applied", zap.Int64("version", v))
	return nil
}

func (m *Migrator) Status(ctx context.Context) error {
	return goose.StatusContext(ctx, m.db, dir)
}

func (m *Migrator) Version(ctx context.Context) (int64, error) {
	v, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

func (m *Migrator) Close() error {
	return m.db.Close()
}
