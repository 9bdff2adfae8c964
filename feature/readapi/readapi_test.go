package readapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-mizu/blueprints/sentinel/store"
	"github.com/go-mizu/blueprints/sentinel/store/sqlite"
)

func testStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Ensure(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNonUpSubdomainsPartitionsCounts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "down.example.com", Domain: "example.com", Active: true}))
	require.NoError(t, s.Registry().CommitState(ctx, "down.example.com", func(f store.StateFields) store.StateFields {
		f.CurrentStatus = store.StatusDown
		return f
	}))

	require.NoError(t, s.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "flap.example.com", Domain: "example.com", Active: true}))
	require.NoError(t, s.Registry().CommitState(ctx, "flap.example.com", func(f store.StateFields) store.StateFields {
		f.CurrentStatus = store.StatusFlapping
		return f
	}))

	svc := New(s, 0)
	result, err := svc.NonUpSubdomains(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Counts.Down)
	assert.Equal(t, 1, result.Counts.Flapping)
	assert.Equal(t, 0, result.Counts.Unknown)
}

func TestAgentStatusesOnlineWindow(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Heartbeats().Touch(ctx, "EU", time.Now()))
	require.NoError(t, s.Heartbeats().Touch(ctx, "SG", time.Now().Add(-20*time.Minute)))

	svc := New(s, 10*time.Minute)
	statuses, err := svc.AgentStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	byLocation := map[string]AgentStatus{}
	for _, st := range statuses {
		byLocation[st.Location] = st
	}
	assert.True(t, byLocation["EU"].Online)
	assert.False(t, byLocation["SG"].Online)
}

func TestCheckHistoryDefaultsTo24Hours(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "a.example.com", Domain: "example.com", Active: true}))
	require.NoError(t, s.Checks().Append(ctx, &store.CheckRecord{Subdomain: "a.example.com", Up: true, Location: "EU"}))

	svc := New(s, 0)
	recs, err := svc.CheckHistory(ctx, "a.example.com", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestActiveSubdomainsWithStats(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "a.example.com", Domain: "example.com", Active: true}))

	svc := New(s, 0)
	stats, err := svc.ActiveSubdomainsWithStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
}

func TestInactiveSubdomains(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "a.example.com", Domain: "example.com", Active: false}))

	svc := New(s, 0)
	subs, err := svc.InactiveSubdomains(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
}
