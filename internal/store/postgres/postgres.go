// Package postgres is an alternate reference LocalStore/StateStore
// implementation for hosts that centralize sync state in Postgres rather
// than an embedded sqlite file (§6.4, "hosts may swap in their own").
//
// Grounded in the teacher's internal/storage/postgres package: same
// pgxpool-backed Store shape, same query style (positional $N params,
// explicit ::uuid/::text casts replaced here by plain text columns since
// import_id/href are caller-supplied strings, not database-generated
// uuids). Schema migrations are new: the teacher's postgres package
// applies its schema out of band (a bootstrap SQL file) rather than via
// golang-migrate, so this package adds golang-migrate/migrate/v4 wiring
// modeled on the sibling internal/store/sqlite package instead, since the
// spec calls for a migration-driven reference store for both backends.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New connects to dsn (a postgres connection string) and applies pending
// migrations before returning.
func New(ctx context.Context, dsn string, logger zerolog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	store := &Store{pool: pool, logger: logger.With().Str("component", "store.postgres").Logger()}

	if err := store.runMigrations(dsn); err != nil {
		store.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return store, nil
}

func (s *Store) runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	sourceDriver, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("source driver: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("version: %w", err)
	}
	if dirty {
		s.logger.Warn().Uint("version", version).Msg("database is in dirty state, forcing version")
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("force: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("up: %w", err)
	}
	return nil
}

func (s *Store) Close() { s.pool.Close() }
