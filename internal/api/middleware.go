package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wolfeidau/payroll/internal/auth"
	"github.com/wolfeidau/payroll/internal/models"
)

// Authenticator resolves the principal of a request.
type Authenticator interface {
	Authenticate(r *http.Request) (*auth.Principal, error)
}

// TokenIssuer exchanges a password for a bearer token.
type TokenIssuer interface {
	CheckPassword(ctx context.Context, name, password string) (*auth.Principal, error)
	IssueToken(principal *auth.Principal) (string, time.Time, error)
}

// requireManager authenticates the request and rejects principals without the
// MANAGER role.
func requireManager(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := authn.Authenticate(c.Request)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				c.Header("WWW-Authenticate", `Basic realm="payroll"`)
				JSONError(c, http.StatusUnauthorized, err)
				return
			}
			writeRosterError(c, err)
			return
		}

		if !principal.HasRole(models.RoleManager) {
			JSONError(c, http.StatusForbidden, fmt.Errorf("%s lacks the %s role", principal.Name, models.RoleManager))
			return
		}

		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

// principalName returns the name of the authenticated caller.
func principalName(c *gin.Context) string {
	if p := auth.PrincipalFromContext(c.Request.Context()); p != nil {
		return p.Name
	}
	return ""
}
