package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-mizu/blueprints/sentinel/store"
)

// CheckStore implements store.CheckStore.
type CheckStore struct {
	db dbtx
}

func (s *CheckStore) Append(ctx context.Context, rec *store.CheckRecord) error {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	return execRetryable(ctx, s.db, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO uptime_checks (id, time, subdomain, status_code, response_time_ms, up, platform, error_message, location, headers)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, generateID(), rec.Time, rec.Subdomain, rec.StatusCode, rec.ResponseTimeMs, rec.Up, rec.Platform, rec.ErrorMessage, rec.Location, toJSON(rec.Headers))
		return err
	})
}

func (s *CheckStore) Recent(ctx context.Context, subdomain string, n int) ([]*store.CheckRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectCheckSQL+`
		WHERE subdomain = ? ORDER BY time DESC LIMIT ?
	`, subdomain, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChecks(rows)
}

func (s *CheckStore) Range(ctx context.Context, subdomain string, since time.Time) ([]*store.CheckRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectCheckSQL+`
		WHERE subdomain = ? AND time >= ? ORDER BY time DESC
	`, subdomain, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChecks(rows)
}

const selectCheckSQL = `
	SELECT time, subdomain, status_code, response_time_ms, up, platform, error_message, location, headers
	FROM uptime_checks
`

func scanChecks(rows *sql.Rows) ([]*store.CheckRecord, error) {
	var result []*store.CheckRecord
	for rows.Next() {
		var rec store.CheckRecord
		var statusCode sql.NullInt64
		var responseMs sql.NullFloat64
		var headers string

		if err := rows.Scan(&rec.Time, &rec.Subdomain, &statusCode, &responseMs, &rec.Up, &rec.Platform, &rec.ErrorMessage, &rec.Location, &headers); err != nil {
			return nil, err
		}
		if statusCode.Valid {
			v := int(statusCode.Int64)
			rec.StatusCode = &v
		}
		if responseMs.Valid {
			rec.ResponseTimeMs = &responseMs.Float64
		}
		fromJSON(headers, &rec.Headers)

		result = append(result, &rec)
	}
	return result, rows.Err()
}
