package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-shop-account/internal/domain/entity"
	"github.com/oksasatya/go-shop-account/pkg/apperror"
	"github.com/oksasatya/go-shop-account/pkg/helpers"
)

type staticUsers map[string]*entity.User

func (s staticUsers) GetProfile(_ context.Context, id string) (*entity.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, apperror.ErrNotFound
}

func newEngine(t *testing.T, mw ...gin.HandlerFunc) (*gin.Engine, *helpers.JWTManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	jwt, err := helpers.NewJWTManager("secret", time.Hour)
	require.NoError(t, err)
	r := gin.New()
	chain := append([]gin.HandlerFunc{Auth(jwt)}, mw...)
	chain = append(chain, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxUserIDKey))
	})
	r.GET("/p", chain...)
	return r, jwt
}

func TestAuth(t *testing.T) {
	r, jwt := newEngine(t)
	token, _, err := jwt.Generate("u1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		setup  func(*http.Request)
		status int
		body   string
	}{
		{"missing", func(*http.Request) {}, http.StatusUnauthorized, ""},
		{"cookie", func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: helpers.TokenCookieName, Value: token})
		}, http.StatusOK, "u1"},
		{"bearer", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK, "u1"},
		{"garbage", func(req *http.Request) { req.Header.Set("Authorization", "Bearer abc.def.ghi") }, http.StatusUnauthorized, ""},
		{"basic scheme", func(req *http.Request) { req.Header.Set("Authorization", "Basic "+token) }, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	users := staticUsers{
		"admin": {ID: "admin", Role: entity.RoleAdmin},
		"ann":   {ID: "ann", Role: entity.RoleUser},
	}
	r, jwt := newEngine(t, RequireRole(users, entity.RoleAdmin))

	for id, status := range map[string]int{"admin": http.StatusOK, "ann": http.StatusForbidden, "gone": http.StatusUnauthorized} {
		token, _, err := jwt.Generate(id)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/p", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code, id)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/p", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	const incoming = "5b0d3c52-8f5e-4f7e-9a55-0f5f1ad0f6b3"
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set(RequestIDHeader, incoming)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, incoming, w.Body.String())
	assert.Equal(t, incoming, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set(RequestIDHeader, "not a uuid")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "not a uuid", w.Body.String())
	assert.NotEmpty(t, w.Body.String())
}

