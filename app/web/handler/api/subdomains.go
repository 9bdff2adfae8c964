package api

import (
	"github.com/go-mizu/mizu"

	"github.com/go-mizu/blueprints/sentinel/feature/readapi"
)

// Subdomains handles the registry read endpoints.
type Subdomains struct {
	readapi *readapi.Service
}

// NewSubdomains creates a Subdomains handler.
func NewSubdomains(readapi *readapi.Service) *Subdomains {
	return &Subdomains{readapi: readapi}
}

// List handles GET /api/subdomains.
func (h *Subdomains) List(c *mizu.Ctx) error {
	stats, err := h.readapi.ActiveSubdomainsWithStats(c.Request().Context())
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(200, stats)
}

// NonUp handles GET /api/subdomains/non-up.
func (h *Subdomains) NonUp(c *mizu.Ctx) error {
	result, err := h.readapi.NonUpSubdomains(c.Request().Context())
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(200, result)
}

// Inactive handles GET /api/subdomains/inactive.
func (h *Subdomains) Inactive(c *mizu.Ctx) error {
	subs, err := h.readapi.InactiveSubdomains(c.Request().Context())
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(200, subs)
}
