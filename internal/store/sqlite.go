package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/bikerent/internal/model"
)

// SQLiteStore implements ProfileCache using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveProfile replaces the cached profile. Only one user is cached at a
// time, so any other row is removed in the same transaction.
func (s *SQLiteStore) SaveProfile(ctx context.Context, p model.Profile) error {
	if p.ID == "" {
		return fmt.Errorf("profile id must not be empty")
	}
	if p.Role == "" {
		p.Role = model.RoleRenter
	}
	p.CachedAt = time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM profiles WHERE id <> ?", p.ID); err != nil {
		return fmt.Errorf("clearing previous profiles: %w", err)
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO profiles (id, email, name, role, cached_at)
		VALUES (:id, :email, :name, :role, :cached_at)`, p)
	if err != nil {
		return fmt.Errorf("saving profile %s: %w", p.ID, err)
	}

	return tx.Commit()
}

// GetProfile returns the cached profile, or ErrNoProfile.
func (s *SQLiteStore) GetProfile(ctx context.Context) (*model.Profile, error) {
	var p model.Profile
	err := s.db.GetContext(ctx, &p,
		"SELECT id, email, name, role, cached_at FROM profiles ORDER BY cached_at DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoProfile
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return &p, nil
}

// ClearProfiles removes every cached profile.
func (s *SQLiteStore) ClearProfiles(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM profiles"); err != nil {
		return fmt.Errorf("clearing profiles: %w", err)
	}
	return nil
}
