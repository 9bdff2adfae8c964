package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-mizu/blueprints/sentinel/store"
)

// testStore creates a new store for testing with a temporary database.
func testStore(t *testing.T) *Store {
	t.Helper()

	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := s.Ensure(ctx); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func testContext() context.Context {
	return context.Background()
}

func TestStoreEnsure(t *testing.T) {
	s := testStore(t)
	ctx := testContext()

	for _, table := range []string{"subdomains", "uptime_checks", "agent_heartbeats"} {
		var count int
		err := s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		assert.NoError(t, err, "table %s should exist", table)
	}
}

func TestStoreEnsureIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := testContext()
	require.NoError(t, s.Ensure(ctx))
}

func TestRegistryUpsertAndGet(t *testing.T) {
	s := testStore(t)
	ctx := testContext()

	sub := &store.Subdomain{
		Subdomain:       "app.example.com",
		Domain:          "example.com",
		Active:          true,
		DiscoveryMethod: store.DiscoverySeedList,
	}
	require.NoError(t, s.Registry().Upsert(ctx, sub))

	got, err := s.Registry().GetByName(ctx, "app.example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "example.com", got.Domain)
	assert.True(t, got.Active)
	assert.Equal(t, store.StatusUnknown, got.CurrentStatus)
	assert.False(t, got.DiscoveredAt.IsZero())
}

func TestRegistryGetByNameMissing(t *testing.T) {
	s := testStore(t)
	got, err := s.Registry().GetByName(testContext(), "nope.example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRegistryUpsertDoesNotResetState(t *testing.T) {
	s := testStore(t)
	ctx := testContext()

	sub := &store.Subdomain{Subdomain: "x.example.com", Domain: "example.com", Active: true}
	require.NoError(t, s.Registry().Upsert(ctx, sub))

	require.NoError(t, s.Registry().CommitState(ctx, "x.example.com", func(f store.StateFields) store.StateFields {
		f.CurrentStatus = store.StatusUp
		f.ConsecutiveUpCount = 3
		return f
	}))

	// re-discovering the same host must not wipe the state machine
	require.NoError(t, s.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "x.example.com", Domain: "example.com", Active: true}))

	got, err := s.Registry().GetByName(ctx, "x.example.com")
	require.NoError(t, err)
	assert.Equal(t, store.StatusUp, got.CurrentStatus)
	assert.Equal(t, 3, got.ConsecutiveUpCount)
}

func TestRegistryUpsertPreservesActiveOnceTrue(t *testing.T) {
	s := testStore(t)
	ctx := testContext()

	require.NoError(t, s.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "y.example.com", Domain: "example.com", Active: true}))
	require.NoError(t, s.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "y.example.com", Domain: "example.com", Active: false}))

	got, err := s.Registry().GetByName(ctx, "y.example.com")
	require.NoError(t, err)
	assert.True(t, got.Active)
}

func TestRegistryListActiveAndInactive(t *testing.T) {
	s := testStore(t)
	ctx := testContext()

	require.NoError(t, s.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "a.example.com", Domain: "example.com", Active: true}))
	require.NoError(t, s.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "b.example.com", Domain: "example.com", Active: false}))

	active, err := s.Registry().ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a.example.com", active[0].Subdomain)

	inactive, err := s.Registry().ListInactive(ctx)
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, "b.example.com", inactive[0].Subdomain)
}

func TestRegistryListNonUp(t *testing.T) {
	s := testStore(t)
	ctx := testContext()

	require.NoError(t, s.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "up.example.com", Domain: "example.com", Active: true}))
	require.NoError(t, s.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "down.example.com", Domain: "example.com", Active: true}))

	require.NoError(t, s.Registry().CommitState(ctx, "up.example.com", func(f store.StateFields) store.StateFields {
		f.CurrentStatus = store.StatusUp
		return f
	}))
	require.NoError(t, s.Registry().CommitState(ctx, "down.example.com", func(f store.StateFields) store.StateFields {
		f.CurrentStatus = store.StatusDown
		return f
	}))

	nonUp, err := s.Registry().ListNonUp(ctx)
	require.NoError(t, err)
	require.Len(t, nonUp, 1)
	assert.Equal(t, "down.example.com", nonUp[0].Subdomain)
}

func TestRegistryListActiveWithStats(t *testing.T) {
	s := testStore(t)
	ctx := testContext()

	require.NoError(t, s.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "a.example.com", Domain: "example.com", Active: true}))

	code := 200
	ms := 12.5
	require.NoError(t, s.Checks().Append(ctx, &store.CheckRecord{
		Subdomain: "a.example.com", Up: true, StatusCode: &code, ResponseTimeMs: &ms, Location: "EU",
	}))
	require.NoError(t, s.Checks().Append(ctx, &store.CheckRecord{
		Subdomain: "a.example.com", Up: false, Location: "SG",
	}))

	stats, err := s.Registry().ListActiveWithStats(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].ChecksLast24h)
	assert.Equal(t, 1, stats[0].UpLast24h)
	assert.InDelta(t, 50.0, stats[0].UptimePct24h, 0.01)
}

func TestRegistrySetPlatform(t *testing.T) {
	s := testStore(t)
	ctx := testContext()

	require.NoError(t, s.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "a.example.com", Domain: "example.com", Active: true}))
	now := time.Now()
	require.NoError(t, s.Registry().SetPlatform(ctx, "a.example.com", "Vercel", now))

	got, err := s.Registry().GetByName(ctx, "a.example.com")
	require.NoError(t, err)
	assert.Equal(t, "Vercel", got.Platform)
	assert.WithinDuration(t, now, got.LastPlatformCheck, time.Second)
}

func TestRegistryCommitStateUnknownSubdomain(t *testing.T) {
	s := testStore(t)
	err := s.Registry().CommitState(testContext(), "ghost.example.com", func(f store.StateFields) store.StateFields {
		return f
	})
	assert.Error(t, err)
}

func TestCheckAppendAndRecent(t *testing.T) {
	s := testStore(t)
	ctx := testContext()

	require.NoError(t, s.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "a.example.com", Domain: "example.com", Active: true}))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Checks().Append(ctx, &store.CheckRecord{
			Subdomain: "a.example.com", Up: i%2 == 0, Location: "EU",
			Headers: map[string]string{"server": "nginx"},
		}))
	}

	recs, err := s.Checks().Recent(ctx, "a.example.com", 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "nginx", recs[0].Headers["server"])
}

func TestCheckRange(t *testing.T) {
	s := testStore(t)
	ctx := testContext()

	require.NoError(t, s.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "a.example.com", Domain: "example.com", Active: true}))
	require.NoError(t, s.Checks().Append(ctx, &store.CheckRecord{Subdomain: "a.example.com", Up: true, Location: "EU"}))

	recs, err := s.Checks().Range(ctx, "a.example.com", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "EU", recs[0].Location)

	future, err := s.Checks().Range(ctx, "a.example.com", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, future)
}

func TestHeartbeatTouchAndList(t *testing.T) {
	s := testStore(t)
	ctx := testContext()

	require.NoError(t, s.Heartbeats().Touch(ctx, "EU", time.Now()))
	require.NoError(t, s.Heartbeats().Touch(ctx, "SG", time.Now().Add(-20*time.Minute)))

	list, err := s.Heartbeats().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "online", list[0].Status)
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	s := testStore(t)
	ctx := testContext()

	err := s.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "a.example.com", Domain: "example.com", Active: true}); err != nil {
			return err
		}
		return tx.Heartbeats().Touch(ctx, "EU", time.Now())
	})
	require.NoError(t, err)

	got, err := s.Registry().GetByName(ctx, "a.example.com")
	require.NoError(t, err)
	assert.NotNil(t, got)

	hbs, err := s.Heartbeats().List(ctx)
	require.NoError(t, err)
	assert.Len(t, hbs, 1)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := testStore(t)
	ctx := testContext()

	errBoom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Heartbeats().Touch(ctx, "EU", time.Now()); err != nil {
			return err
		}
		if err := tx.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "a.example.com", Domain: "example.com", Active: true}); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	hbs, err := s.Heartbeats().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, hbs, "a failed transaction must leave no partial writes")

	got, err := s.Registry().GetByName(ctx, "a.example.com")
	require.NoError(t, err)
	assert.Nil(t, got, "a failed transaction must leave no partial writes")
}

func TestWithTxCommitStateJoinsEnclosingTransaction(t *testing.T) {
	s := testStore(t)
	ctx := testContext()

	require.NoError(t, s.Registry().Upsert(ctx, &store.Subdomain{Subdomain: "a.example.com", Domain: "example.com", Active: true}))

	errBoom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Registry().CommitState(ctx, "a.example.com", func(f store.StateFields) store.StateFields {
			f.CurrentStatus = store.StatusUp
			return f
		}); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	got, err := s.Registry().GetByName(ctx, "a.example.com")
	require.NoError(t, err)
	assert.Equal(t, store.StatusUnknown, got.CurrentStatus, "CommitState's write must roll back with the rest of the transaction")
}

func TestHeartbeatTouchUpdatesExisting(t *testing.T) {
	s := testStore(t)
	ctx := testContext()

	first := time.Now().Add(-time.Hour)
	require.NoError(t, s.Heartbeats().Touch(ctx, "EU", first))

	second := time.Now()
	require.NoError(t, s.Heartbeats().Touch(ctx, "EU", second))

	list, err := s.Heartbeats().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.WithinDuration(t, second, list[0].LastSeen, time.Second)
}
