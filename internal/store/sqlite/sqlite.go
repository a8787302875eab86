// Package sqlite is a reference LocalStore/StateStore implementation
// (internal/syncengine's injected collaborators, §1/§6.4) backed by
// github.com/ncruces/go-sqlite3, a pure-Go (no cgo) sqlite3 driver.
//
// Grounded directly in the teacher's internal/storage/sqlite package: same
// driver, same golang-migrate/migrate/v4 iofs migration wiring, same
// single-connection-plus-WAL pragma set, same database/sql transaction
// helper. The schema and queries are new (the teacher stores server-side
// calendar objects; this stores a client's local mirror plus sync
// bookkeeping), but the plumbing around them is carried over unchanged.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rs/zerolog"
)

type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New opens (and migrates) a sqlite database at dsn, a plain filesystem
// path or "" for an in-memory database useful in tests.
func New(dsn string, logger zerolog.Logger) (*Store, error) {
	path := dsn
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := configureSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: configure: %w", err)
	}

	store := &Store{db: db, logger: logger.With().Str("component", "store.sqlite").Logger()}

	if err := store.runMigrations(); err != nil {
		store.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	return store, nil
}

func configureSQLite(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) runMigrations() error {
	sourceDriver, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("source driver: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
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

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) Close() {
	_ = s.db.Close()
}
