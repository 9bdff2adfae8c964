package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	writeRetryAttempts = 3
	writeRetryBackoff  = 20 * time.Millisecond
)

// serialization_failure and deadlock_detected per the Postgres error code
// table (class 40: transaction rollback).
const (
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
)

// withRetry runs fn up to writeRetryAttempts times, retrying only on a
// transient serialization/deadlock error from concurrent SELECT ... FOR
// UPDATE callers. Any other error, or the caller's ctx being done, aborts
// immediately.
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
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgCodeSerializationFailure || pgErr.Code == pgCodeDeadlockDetected
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
