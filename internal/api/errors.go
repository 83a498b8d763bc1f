package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wolfeidau/payroll/internal/roster"
)

// JSONError writes an error body and records the error for request logging.
func JSONError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Type:    http.StatusText(status),
			Message: err.Error(),
		},
	})
}

// writeRosterError maps roster errors onto HTTP statuses. Storage failures are
// reported without detail.
func writeRosterError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, roster.ErrNotFound):
		JSONError(c, http.StatusNotFound, roster.ErrNotFound)
	case errors.Is(err, roster.ErrForbidden):
		JSONError(c, http.StatusForbidden, roster.ErrForbidden)
	case errors.Is(err, roster.ErrConcurrencyConflict):
		status := http.StatusConflict
		if c.GetHeader("If-Match") != "" {
			status = http.StatusPreconditionFailed
		}
		JSONError(c, status, roster.ErrConcurrencyConflict)
	default:
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorBody{
				Type:    http.StatusText(http.StatusInternalServerError),
				Message: "internal server error",
			},
		})
	}
}
