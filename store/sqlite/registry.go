package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-mizu/blueprints/sentinel/store"
)

// RegistryStore implements store.RegistryStore.
type RegistryStore struct {
	db dbtx
}

func (s *RegistryStore) Upsert(ctx context.Context, sub *store.Subdomain) error {
	now := time.Now()
	if sub.DiscoveredAt.IsZero() {
		sub.DiscoveredAt = now
	}
	if sub.LastSeen.IsZero() {
		sub.LastSeen = now
	}

	return execRetryable(ctx, s.db, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO subdomains (
				subdomain, domain, discovered_at, last_seen, active, platform,
				last_platform_check, discovery_method, current_status,
				consecutive_up_count, consecutive_down_count, is_flapping, last_status_change
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'UNKNOWN', 0, 0, 0, NULL)
			ON CONFLICT(subdomain) DO UPDATE SET
				last_seen = excluded.last_seen,
				active = MAX(subdomains.active, excluded.active)
		`,
			sub.Subdomain, sub.Domain, sub.DiscoveredAt, sub.LastSeen, sub.Active, sub.Platform,
			nullTime(sub.LastPlatformCheck), sub.DiscoveryMethod,
		)
		return err
	})
}

func (s *RegistryStore) GetByName(ctx context.Context, subdomain string) (*store.Subdomain, error) {
	row := s.db.QueryRowContext(ctx, selectSubdomainSQL+` WHERE subdomain = ?`, subdomain)
	sub, err := scanSubdomain(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sub, err
}

func (s *RegistryStore) ListActive(ctx context.Context) ([]*store.Subdomain, error) {
	rows, err := s.db.QueryContext(ctx, selectSubdomainSQL+` WHERE active = 1 ORDER BY subdomain`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubdomains(rows)
}

func (s *RegistryStore) ListNonUp(ctx context.Context) ([]*store.Subdomain, error) {
	rows, err := s.db.QueryContext(ctx, selectSubdomainSQL+` WHERE active = 1 AND current_status != 'UP' ORDER BY subdomain`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubdomains(rows)
}

func (s *RegistryStore) ListInactive(ctx context.Context) ([]*store.Subdomain, error) {
	rows, err := s.db.QueryContext(ctx, selectSubdomainSQL+` WHERE active = 0 ORDER BY subdomain`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubdomains(rows)
}

func (s *RegistryStore) ListActiveWithStats(ctx context.Context, now time.Time) ([]*store.SubdomainStats, error) {
	since := now.Add(-24 * time.Hour)

	rows, err := s.db.QueryContext(ctx, selectSubdomainSQL+`
		WHERE active = 1 ORDER BY subdomain`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs, err := scanSubdomains(rows)
	if err != nil {
		return nil, err
	}

	result := make([]*store.SubdomainStats, 0, len(subs))
	for _, sub := range subs {
		stat := &store.SubdomainStats{Subdomain: *sub}

		var total, up sql.NullInt64
		var avgMs sql.NullFloat64
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*), COALESCE(SUM(up), 0), AVG(response_time_ms)
			FROM uptime_checks WHERE subdomain = ? AND time >= ?
		`, sub.Subdomain, since).Scan(&total, &up, &avgMs)
		if err != nil {
			return nil, err
		}

		stat.ChecksLast24h = int(total.Int64)
		stat.UpLast24h = int(up.Int64)
		if total.Int64 > 0 {
			stat.UptimePct24h = 100 * float64(up.Int64) / float64(total.Int64)
		}
		stat.AvgResponseMs = avgMs.Float64

		result = append(result, stat)
	}
	return result, nil
}

func (s *RegistryStore) SetPlatform(ctx context.Context, subdomain, platform string, checkedAt time.Time) error {
	return execRetryable(ctx, s.db, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE subdomains SET platform = ?, last_platform_check = ? WHERE subdomain = ?
		`, platform, checkedAt, subdomain)
		return err
	})
}

// CommitState performs the read-modify-write under a single transaction;
// SQLite's busy_timeout serializes concurrent writers instead of an
// in-memory lock, per the "transactional SELECT...UPDATE, not in-memory
// locks" design note. When s is already running inside a Store.WithTx
// transaction, the read-modify-write joins that transaction instead of
// opening its own.
func (s *RegistryStore) CommitState(ctx context.Context, subdomain string, fn func(store.StateFields) store.StateFields) error {
	return withRetry(ctx, func() error {
		tx, owned, err := beginState(ctx, s.db)
		if err != nil {
			return err
		}
		if owned {
			defer tx.Rollback()
		}

		var fields store.StateFields
		var statusChange sql.NullTime
		err = tx.QueryRowContext(ctx, `
			SELECT current_status, consecutive_up_count, consecutive_down_count, is_flapping, last_status_change
			FROM subdomains WHERE subdomain = ?
		`, subdomain).Scan(&fields.CurrentStatus, &fields.ConsecutiveUpCount, &fields.ConsecutiveDownCount, &fields.IsFlapping, &statusChange)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		if statusChange.Valid {
			fields.LastStatusChange = statusChange.Time
		}

		next := fn(fields)

		res, err := tx.ExecContext(ctx, `
			UPDATE subdomains SET
				current_status = ?, consecutive_up_count = ?, consecutive_down_count = ?,
				is_flapping = ?, last_status_change = ?, last_seen = ?, active = 1
			WHERE subdomain = ?
		`, next.CurrentStatus, next.ConsecutiveUpCount, next.ConsecutiveDownCount,
			next.IsFlapping, nullTime(next.LastStatusChange), time.Now(), subdomain)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("sqlite: commit state: subdomain %q not registered", subdomain)
		}

		if owned {
			return tx.Commit()
		}
		return nil
	})
}

const selectSubdomainSQL = `
	SELECT subdomain, domain, discovered_at, last_seen, active, platform,
		last_platform_check, discovery_method, current_status,
		consecutive_up_count, consecutive_down_count, is_flapping, last_status_change
	FROM subdomains
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubdomain(row rowScanner) (*store.Subdomain, error) {
	var sub store.Subdomain
	var lastPlatformCheck, lastStatusChange sql.NullTime

	err := row.Scan(
		&sub.Subdomain, &sub.Domain, &sub.DiscoveredAt, &sub.LastSeen, &sub.Active, &sub.Platform,
		&lastPlatformCheck, &sub.DiscoveryMethod, &sub.CurrentStatus,
		&sub.ConsecutiveUpCount, &sub.ConsecutiveDownCount, &sub.IsFlapping, &lastStatusChange,
	)
	if err != nil {
		return nil, err
	}
	if lastPlatformCheck.Valid {
		sub.LastPlatformCheck = lastPlatformCheck.Time
	}
	if lastStatusChange.Valid {
		sub.LastStatusChange = lastStatusChange.Time
	}
	return &sub, nil
}

func scanSubdomains(rows *sql.Rows) ([]*store.Subdomain, error) {
	var result []*store.Subdomain
	for rows.Next() {
		sub, err := scanSubdomain(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
