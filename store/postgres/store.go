// Package postgres implements store.Store on top of PostgreSQL via pgx's
// database/sql driver, for production deployments. store/sqlite is the
// local-development and test backend.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

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

// Store implements store.Store using PostgreSQL.
type Store struct {
	db *sql.DB

	registry   *RegistryStore
	checks     *CheckStore
	heartbeats *HeartbeatStore
}

// New opens a connection pool against dsn (a postgres:// URL or libpq
// keyword string).
func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
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
		discovered_at TIMESTAMPTZ NOT NULL,
		last_seen TIMESTAMPTZ NOT NULL,
		active BOOLEAN NOT NULL DEFAULT FALSE,
		platform TEXT NOT NULL DEFAULT '',
		last_platform_check TIMESTAMPTZ,
		discovery_method TEXT NOT NULL DEFAULT '',
		current_status TEXT NOT NULL DEFAULT 'UNKNOWN',
		consecutive_up_count INTEGER NOT NULL DEFAULT 0,
		consecutive_down_count INTEGER NOT NULL DEFAULT 0,
		is_flapping BOOLEAN NOT NULL DEFAULT FALSE,
		last_status_change TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_subdomains_domain ON subdomains(domain);
	CREATE INDEX IF NOT EXISTS idx_subdomains_active ON subdomains(active);

	CREATE TABLE IF NOT EXISTS uptime_checks (
		id TEXT PRIMARY KEY,
		time TIMESTAMPTZ NOT NULL,
		subdomain TEXT NOT NULL REFERENCES subdomains(subdomain) ON DELETE CASCADE,
		status_code INTEGER,
		response_time_ms DOUBLE PRECISION,
		up BOOLEAN NOT NULL,
		platform TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL,
		headers TEXT NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_checks_subdomain_time ON uptime_checks(subdomain, time DESC);

	CREATE TABLE IF NOT EXISTS agent_heartbeats (
		location TEXT PRIMARY KEY,
		last_seen TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying connection pool.
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

// DB exposes the underlying *sql.DB for tooling.
func (s *Store) DB() *sql.DB { return s.db }
