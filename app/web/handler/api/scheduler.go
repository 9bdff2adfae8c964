package api

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"github.com/go-mizu/mizu"

	"github.com/go-mizu/blueprints/sentinel/feature/sync"
)

var errSchedulerRunning = errors.New("scheduler: already running")

// Scheduler handles scheduler control and status endpoints.
type Scheduler struct {
	scheduler *sync.Scheduler

	mu      stdsync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewScheduler creates a Scheduler handler. The background loop is not
// running until StartLoop is called, either by the server at startup or
// by a POST /api/scheduler/start request.
func NewScheduler(scheduler *sync.Scheduler) *Scheduler {
	return &Scheduler{scheduler: scheduler}
}

// StartLoop begins the scheduler's background loop, rescheduling the
// probe job first if interval is positive. It is the single entry point
// for starting the loop, called by the server at startup and by the
// start HTTP handler, so the two never race to call Scheduler.Start
// twice.
func (h *Scheduler) StartLoop(interval time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return errSchedulerRunning
	}

	if interval > 0 {
		if err := h.scheduler.Reschedule("probe", interval); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.running = true
	h.scheduler.Start(ctx)
	return nil
}

// StopLoop halts the scheduler's background loop, draining in-flight
// jobs for up to 30 seconds. It is a no-op if the loop isn't running.
func (h *Scheduler) StopLoop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return
	}
	h.scheduler.Stop(30 * time.Second)
	h.cancel()
	h.running = false
	h.cancel = nil
}

type startRequest struct {
	IntervalMinutes int `json:"interval_minutes"`
}

// Start handles POST /api/scheduler/start. An optional interval_minutes
// field reschedules the probe job before the loop starts.
func (h *Scheduler) Start(c *mizu.Ctx) error {
	var req startRequest
	if err := c.BindJSON(&req, 1<<20); err != nil {
		req = startRequest{}
	}

	err := h.StartLoop(time.Duration(req.IntervalMinutes) * time.Minute)
	switch {
	case err == errSchedulerRunning:
		return writeError(c, 409, KindConflict, "scheduler already running")
	case err != nil:
		return writeError(c, 409, KindConflict, err.Error())
	}

	return c.JSON(202, map[string]string{"status": "started"})
}

// Stop handles POST /api/scheduler/stop.
func (h *Scheduler) Stop(c *mizu.Ctx) error {
	h.mu.Lock()
	running := h.running
	h.mu.Unlock()

	if !running {
		return writeError(c, 409, KindConflict, "scheduler not running")
	}

	h.StopLoop()
	return c.JSON(200, map[string]string{"status": "stopped"})
}

// Status handles GET /api/scheduler/status.
func (h *Scheduler) Status(c *mizu.Ctx) error {
	return c.JSON(200, map[string]any{"jobs": h.scheduler.Status()})
}

// RunChecks handles POST /api/checks/run: a manual trigger for one
// discovery+probe cycle, each subject to the same max_instances = 1 guard
// as its scheduled firing. A job already running is reported but does not
// fail the other job's trigger.
func (h *Scheduler) RunChecks(c *mizu.Ctx) error {
	ctx := c.Request().Context()

	result := map[string]string{}

	if err := h.scheduler.RunNow(ctx, "discovery"); err != nil {
		result["discovery"] = err.Error()
	} else {
		result["discovery"] = "started"
	}

	if err := h.scheduler.RunNow(ctx, "probe"); err != nil {
		result["probe"] = err.Error()
	} else {
		result["probe"] = "started"
	}

	return c.JSON(202, result)
}
