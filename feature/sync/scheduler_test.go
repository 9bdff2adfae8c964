package sync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndStatus(t *testing.T) {
	s := NewScheduler(nil)
	s.Register("probe", time.Minute, 30*time.Second, func(ctx context.Context) error { return nil })
	s.Register("discovery", 6*time.Hour, 5*time.Minute, func(ctx context.Context) error { return nil })

	status := s.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "probe", status[0].Name)
	assert.Equal(t, "discovery", status[1].Name)
	assert.False(t, status[0].Running)
}

func TestRunNowExecutesImmediately(t *testing.T) {
	s := NewScheduler(nil)
	var calls int32
	s.Register("probe", time.Hour, time.Minute, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	require.NoError(t, s.RunNow(context.Background(), "probe"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRunNowRejectsUnknownJob(t *testing.T) {
	s := NewScheduler(nil)
	err := s.RunNow(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestRunNowRejectsConcurrentInvocation(t *testing.T) {
	s := NewScheduler(nil)
	release := make(chan struct{})
	started := make(chan struct{})
	s.Register("probe", time.Hour, time.Minute, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	errCh := make(chan error, 1)
	go func() { errCh <- s.RunNow(context.Background(), "probe") }()

	<-started
	err := s.RunNow(context.Background(), "probe")
	assert.Error(t, err, "max_instances=1 must reject a second concurrent firing")

	close(release)
	require.NoError(t, <-errCh)
}

func TestSchedulerFiresDueJobAutomatically(t *testing.T) {
	s := NewScheduler(nil)
	fired := make(chan struct{}, 1)
	s.Register("probe", 0, 0, func(ctx context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(time.Second)

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job never fired")
	}
}

func TestCheckAndRunJobsFiresWithinMisfireGrace(t *testing.T) {
	s := NewScheduler(nil)
	var calls int32
	s.Register("probe", time.Hour, time.Minute, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	s.mu.Lock()
	job := s.jobs["probe"]
	job.NextRun = time.Now().Add(-30 * time.Second)
	s.mu.Unlock()

	s.checkAndRunJobs(context.Background())
	s.wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a firing within its misfire grace window must still run")
}

func TestCheckAndRunJobsSkipsPastMisfireGrace(t *testing.T) {
	s := NewScheduler(nil)
	var calls int32
	s.Register("probe", time.Hour, time.Minute, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	overdue := time.Now().Add(-2 * time.Hour)
	s.mu.Lock()
	job := s.jobs["probe"]
	job.NextRun = overdue
	s.mu.Unlock()

	s.checkAndRunJobs(context.Background())
	s.wg.Wait()

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "a firing overdue past its misfire grace window must be skipped")

	s.mu.Lock()
	next := job.NextRun
	s.mu.Unlock()
	assert.True(t, next.After(overdue), "skipped job's NextRun must be advanced past the missed firing")
	assert.False(t, next.Before(time.Now()), "advanced NextRun must not itself be in the past")
}

func TestStopDrainsInFlightJob(t *testing.T) {
	s := NewScheduler(nil)
	done := make(chan struct{})
	s.Register("probe", time.Hour, time.Minute, func(ctx context.Context) error {
		close(done)
		return nil
	})

	ctx := context.Background()
	go s.RunNow(ctx, "probe")
	<-done
	s.Stop(time.Second)
}
