package api

import (
	"errors"

	"github.com/go-mizu/mizu"

	"github.com/go-mizu/blueprints/sentinel/feature/geoingest"
)

// GeoIngest handles the remote agent ingestion endpoint.
type GeoIngest struct {
	service *geoingest.Service
}

// NewGeoIngest creates a GeoIngest handler.
func NewGeoIngest(service *geoingest.Service) *GeoIngest {
	return &GeoIngest{service: service}
}

// Report handles POST /api/geo-report.
func (h *GeoIngest) Report(c *mizu.Ctx) error {
	var report geoingest.Report
	if err := c.BindJSON(&report, 1<<20); err != nil {
		return badRequest(c, "invalid request body")
	}

	received, err := h.service.Ingest(c.Request().Context(), report)
	if err != nil {
		var unknownLoc *geoingest.ErrUnknownLocation
		var malformed *geoingest.ErrMalformedResult
		switch {
		case errors.As(err, &unknownLoc):
			return writeError(c, 403, "unauthorized_location", err.Error())
		case errors.As(err, &malformed):
			return badRequest(c, err.Error())
		default:
			return internalError(c, err)
		}
	}

	return c.JSON(200, map[string]any{"status": "success", "received": received})
}
