// Package api implements the monitoring engine's read/write HTTP surface.
package api

import (
	"github.com/go-mizu/mizu"
)

// ErrorResponse is the structured error envelope returned by every
// handler: a machine-readable kind plus a human message, never a stack
// trace.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

const (
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindConflict   = "conflict"
	KindInternal   = "internal"
)

func writeError(c *mizu.Ctx, status int, kind, message string) error {
	return c.JSON(status, ErrorResponse{Kind: kind, Message: message})
}

func badRequest(c *mizu.Ctx, message string) error {
	return writeError(c, 400, KindValidation, message)
}

func notFound(c *mizu.Ctx, message string) error {
	return writeError(c, 404, KindNotFound, message)
}

func internalError(c *mizu.Ctx, err error) error {
	return writeError(c, 500, KindInternal, err.Error())
}
