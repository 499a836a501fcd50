// Package store is the PostgreSQL persistence layer: one pgx pool shared
// by the job, staging, issue, and contact repositories, plus embedded
// schema migrations.
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpdevelops/data-ingestion-api/internal/config"
	"github.com/rpdevelops/data-ingestion-api/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Store bundles all repositories over a single connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pgx pool against the configured database and verifies
// the connection with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MaxConnLifetime = cfg.ConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports whether the database is reachable, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Migrate applies embedded SQL migrations using golang-migrate with the
// pgx5 driver.
func Migrate(ctx context.Context, cfg config.DatabaseConfig) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	// golang-migrate selects the pgx5 driver by URL scheme.
	dbURL := cfg.URL
	if rest, ok := strings.CutPrefix(dbURL, "postgres://"); ok {
		dbURL = "pgx5://" + rest
	} else if rest, ok := strings.CutPrefix(dbURL, "postgresql://"); ok {
		dbURL = "pgx5://" + rest
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logging.FromContext(ctx).Info("migrations applied", "version", version, "dirty", dirty)

	return nil
}
