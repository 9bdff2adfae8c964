package api

import (
	"strconv"

	"github.com/go-mizu/mizu"

	"github.com/go-mizu/blueprints/sentinel/feature/readapi"
)

// Checks handles check-history read endpoints.
type Checks struct {
	readapi *readapi.Service
}

// NewChecks creates a Checks handler.
func NewChecks(readapi *readapi.Service) *Checks {
	return &Checks{readapi: readapi}
}

// History handles GET /api/subdomains/{host}/checks?hours=N.
func (h *Checks) History(c *mizu.Ctx) error {
	host := c.Param("host")
	if host == "" {
		return badRequest(c, "missing host")
	}

	hours := 24
	if raw := c.Query("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return badRequest(c, "hours must be a positive integer")
		}
		hours = n
	}

	recs, err := h.readapi.CheckHistory(c.Request().Context(), host, hours)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(200, recs)
}

// AgentStatus handles GET /api/agent-status.
func (h *Checks) AgentStatus(c *mizu.Ctx) error {
	statuses, err := h.readapi.AgentStatuses(c.Request().Context())
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(200, statuses)
}
