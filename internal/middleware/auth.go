package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/pkg/errors"
	"github.com/jwalitptl/report-assistant/pkg/httputil"
)

const (
	ContextPrincipal = "principal"
	ContextUserID    = "userID"
)

// Authenticator resolves a bearer token to the signed-in user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Principal, error)
}

type AuthMiddleware struct {
	authService Authenticator
}

func NewAuthMiddleware(authService Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Authenticate verifies the JWT token and sets the principal in context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, errors.Auth("missing authorization header", nil))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			httputil.RespondWithError(c, errors.Auth("invalid authorization format", nil))
			return
		}

		principal, err := m.authService.Authenticate(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		c.Set(ContextPrincipal, principal)
		c.Set(ContextUserID, principal.UserID.String())
		c.Next()
	}
}

// PrincipalFrom returns the principal set by Authenticate.
func PrincipalFrom(c *gin.Context) (*model.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*model.Principal)
	return p, ok && p != nil
}

// UserID returns the authenticated user's id, or uuid.Nil.
func UserID(c *gin.Context) uuid.UUID {
	if p, ok := PrincipalFrom(c); ok {
		return p.UserID
	}
	return uuid.Nil
}
