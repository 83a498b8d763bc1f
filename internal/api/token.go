package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wolfeidau/payroll/internal/auth"
)

// issueToken exchanges HTTP Basic credentials for a bearer token.
func (h *handlers) issueToken(c *gin.Context) {
	name, password, ok := c.Request.BasicAuth()
	if !ok {
		c.Header("WWW-Authenticate", `Basic realm="payroll"`)
		JSONError(c, http.StatusUnauthorized, auth.ErrUnauthenticated)
		return
	}

	principal, err := h.tokens.CheckPassword(c.Request.Context(), name, password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			JSONError(c, http.StatusUnauthorized, errors.New("invalid name or password"))
			return
		}
		writeRosterError(c, err)
		return
	}

	token, expiresAt, err := h.tokens.IssueToken(principal)
	if err != nil {
		writeRosterError(c, err)
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
	})
}
