// Package sqlite implements store.Store on top of SQLite, for local
// development and tests. The production backend is store/postgres.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/go-mizu/blueprints/sentinel/store"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, letting RegistryStore,
// CheckStore and HeartbeatStore run unchanged against either the top-level
// connection pool or a transaction opened by Store.WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB

	registry   *RegistryStore
	checks     *CheckStore
	heartbeats *HeartbeatStore
}

// New opens (creating if necessary) a SQLite database under dataDir.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "sentinel.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	s.registry = &RegistryStore{db: db}
	s.checks = &CheckStore{db: db}
	s.heartbeats = &HeartbeatStore{db: db}

	return s, nil
}

// Ensure creates the schema.
func (s *Store) Ensure(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS subdomains (
		subdomain TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		discovered_at DATETIME NOT NULL,
		last_seen DATETIME NOT NULL,
		active INTEGER NOT NULL DEFAULT 0,
		platform TEXT NOT NULL DEFAULT '',
		last_platform_check DATETIME,
		discovery_method TEXT NOT NULL DEFAULT '',
		current_status TEXT NOT NULL DEFAULT 'UNKNOWN',
		consecutive_up_count INTEGER NOT NULL DEFAULT 0,
		consecutive_down_count INTEGER NOT NULL DEFAULT 0,
		is_flapping INTEGER NOT NULL DEFAULT 0,
		last_status_change DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_subdomains_domain ON subdomains(domain);
	CREATE INDEX IF NOT EXISTS idx_subdomains_active ON subdomains(active);

	CREATE TABLE IF NOT EXISTS uptime_checks (
		id TEXT PRIMARY KEY,
		time DATETIME NOT NULL,
		subdomain TEXT NOT NULL REFERENCES subdomains(subdomain) ON DELETE CASCADE,
		status_code INTEGER,
		response_time_ms REAL,
		up INTEGER NOT NULL,
		platform TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL,
		headers TEXT NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_checks_subdomain_time ON uptime_checks(subdomain, time DESC);

	CREATE TABLE IF NOT EXISTS agent_heartbeats (
		location TEXT PRIMARY KEY,
		last_seen DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Registry() store.RegistryStore   { return s.registry }
func (s *Store) Checks() store.CheckStore         { return s.checks }
func (s *Store) Heartbeats() store.HeartbeatStore { return s.heartbeats }

// WithTx runs fn against a Store bound to a single transaction, committing
// on a nil return and rolling back otherwise. Grounded on the blueprints/
// forum DuckDB store's Tx helper, generalized so the capability groups
// (registry/checks/heartbeats) are reachable through the store.Store
// interface rather than a raw *sql.Tx.
func (s *Store) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		txStore := &Store{
			db:         s.db,
			registry:   &RegistryStore{db: tx},
			checks:     &CheckStore{db: tx},
			heartbeats: &HeartbeatStore{db: tx},
		}
		if err := fn(txStore); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// DB exposes the underlying *sql.DB for tooling (e.g. migrations, the init
// CLI command).
func (s *Store) DB() *sql.DB { return s.db }
