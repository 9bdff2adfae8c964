package api

import (
	"github.com/go-mizu/mizu"

	"github.com/go-mizu/blueprints/sentinel/feature/sync"
	"github.com/go-mizu/blueprints/sentinel/store"
)

// Health handles the liveness endpoint.
type Health struct {
	store     store.Store
	scheduler *sync.Scheduler
}

// NewHealth creates a Health handler.
func NewHealth(s store.Store, scheduler *sync.Scheduler) *Health {
	return &Health{store: s, scheduler: scheduler}
}

// Status handles GET /api/health.
func (h *Health) Status(c *mizu.Ctx) error {
	ctx := c.Request().Context()

	active, err := h.store.Registry().ListActive(ctx)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(200, map[string]any{
		"status":          "ok",
		"monitored_hosts": len(active),
		"scheduler_jobs":  h.scheduler.Status(),
	})
}
