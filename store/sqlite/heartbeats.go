package sqlite

import (
	"context"
	"time"

	"github.com/go-mizu/blueprints/sentinel/store"
)

// HeartbeatStore implements store.HeartbeatStore.
type HeartbeatStore struct {
	db dbtx
}

func (s *HeartbeatStore) Touch(ctx context.Context, location string, at time.Time) error {
	return execRetryable(ctx, s.db, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO agent_heartbeats (location, last_seen, status)
			VALUES (?, ?, 'online')
			ON CONFLICT(location) DO UPDATE SET last_seen = excluded.last_seen, status = 'online'
		`, location, at)
		return err
	})
}

func (s *HeartbeatStore) List(ctx context.Context) ([]*store.Heartbeat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT location, last_seen, status FROM agent_heartbeats ORDER BY location`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*store.Heartbeat
	for rows.Next() {
		var hb store.Heartbeat
		if err := rows.Scan(&hb.Location, &hb.LastSeen, &hb.Status); err != nil {
			return nil, err
		}
		result = append(result, &hb)
	}
	return result, rows.Err()
}
