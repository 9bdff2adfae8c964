package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"
)

const (
	writeRetryAttempts = 3
	writeRetryBackoff  = 20 * time.Millisecond
)

// withRetry runs fn up to writeRetryAttempts times, retrying only on a
// transient SQLITE_BUSY/SQLITE_LOCKED error (another writer held the lock
// longer than busy_timeout). Any other error, or the caller's ctx being
// done, aborts immediately.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < writeRetryAttempts; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(writeRetryBackoff * time.Duration(attempt+1)):
		}
	}
	return err
}

func isTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// execRetryable runs fn with retry when db is the top-level connection
// pool, and directly when db is already a transaction: an enclosing
// Store.WithTx owns that transaction's retry and commit/rollback.
func execRetryable(ctx context.Context, db dbtx, fn func() error) error {
	if _, ok := db.(*sql.Tx); ok {
		return fn()
	}
	return withRetry(ctx, fn)
}

// beginState starts CommitState's read-modify-write transaction: a fresh
// one against the top-level pool, or the enclosing transaction directly
// when db is already a *sql.Tx, in which case owned is false and the
// caller must not commit or roll it back.
func beginState(ctx context.Context, db dbtx) (tx *sql.Tx, owned bool, err error) {
	if t, ok := db.(*sql.Tx); ok {
		return t, false, nil
	}
	t, err := db.(*sql.DB).BeginTx(ctx, nil)
	return t, true, err
}
