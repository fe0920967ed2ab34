package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-shop-account/internal/domain/entity"
	"github.com/oksasatya/go-shop-account/pkg/helpers"
	"github.com/oksasatya/go-shop-account/pkg/response"
)

const (
	CtxUserIDKey   = "userID"
	CtxUserRoleKey = "userRole"
)

// TokenParser is satisfied by helpers.JWTManager.
type TokenParser interface {
	Parse(token string) (string, error)
}

// UserLoader is satisfied by application.Service.
type UserLoader interface {
	GetProfile(ctx context.Context, userID string) (*entity.User, error)
}

// Auth accepts the session token from the token cookie or an
// Authorization: Bearer header and puts the user id in the Gin context.
func Auth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			response.Error[any](c, http.StatusUnauthorized, "login first to access this resource", nil)
			return
		}
		userID, err := tokens.Parse(token)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "invalid or expired token", nil)
			return
		}
		c.Set(CtxUserIDKey, userID)
		c.Next()
	}
}

// RequireRole loads the authenticated user and rejects other roles with 403.
func RequireRole(users UserLoader, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := users.GetProfile(c.Request.Context(), c.GetString(CtxUserIDKey))
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "user no longer exists", nil)
			return
		}
		for _, r := range roles {
			if u.Role == r {
				c.Set(CtxUserRoleKey, u.Role)
				c.Next()
				return
			}
		}
		response.Error[any](c, http.StatusForbidden, "role ("+u.Role+") is not allowed to access this resource", nil)
	}
}

func tokenFromRequest(c *gin.Context) string {
	if t, err := c.Cookie(helpers.TokenCookieName); err == nil && t != "" {
		return t
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
