package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-shop-account/config"
	"github.com/oksasatya/go-shop-account/internal/application"
	"github.com/oksasatya/go-shop-account/internal/container"
	"github.com/oksasatya/go-shop-account/internal/domain/entity"
	"github.com/oksasatya/go-shop-account/internal/infrastructure/memory"
	"github.com/oksasatya/go-shop-account/internal/interface/middleware"
	"github.com/oksasatya/go-shop-account/pkg/helpers"
	"github.com/oksasatya/go-shop-account/pkg/validation"
)

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
	Meta    json.RawMessage `json:"meta"`
}

type testServer struct {
	engine *gin.Engine
	repo   *memory.UserRepository
	svc    *application.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Init()

	cfg := &config.Config{Env: "development", CookieDomain: "localhost", ResetPasswordURL: "http://shop.test/reset"}
	logger := helpers.NewDiscardLogger()
	jwt, err := helpers.NewJWTManager("router-secret", time.Hour)
	require.NoError(t, err)
	repo := memory.NewUserRepository()
	hasher := helpers.NewHasher(4, 2)
	creds := application.NewCredentialStore(repo, hasher, jwt)
	svc := application.NewService(repo, creds, logger, application.ServiceOptions{ResetURL: cfg.ResetPasswordURL})

	c := &container.Container{Config: cfg, Logger: logger, JWT: jwt, Hasher: hasher, Repo: repo, Credentials: creds, Service: svc}

	engine := gin.New()
	reg := NewRegistry(engine)
	reg.Use(middleware.RequestIDMiddleware(), middleware.RealIP())
	InitModules(reg, c)
	reg.RegisterAll()
	return &testServer{engine: engine, repo: repo, svc: svc}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

type session struct {
	User  map[string]any `json:"user"`
	Token string         `json:"token"`
}

func (s *testServer) register(t *testing.T, name, email string) session {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"name": name, "email": email, "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sess session
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	return sess
}

func TestRegisterLoginMe(t *testing.T) {
	s := newTestServer(t)
	sess := s.register(t, "Ann", "ann@x.io")
	assert.NotEmpty(t, sess.Token)
	assert.NotContains(t, sess.User, "password")

	w, _ := s.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"name": "Ann", "email": "ann@x.io", "password": "hunter22",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env := s.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"name": "Bob", "email": "bob@x.io", "password": "abc",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, string(env.Error), "password")

	w, _ = s.do(t, http.MethodPost, "/api/users/login", "", map[string]string{"email": "ann@x.io", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = s.do(t, http.MethodPost, "/api/users/login", "", map[string]string{"email": "ann@x.io", "password": "hunter22"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("Set-Cookie"))
	var login session
	require.NoError(t, json.Unmarshal(env.Data, &login))

	w, env = s.do(t, http.MethodGet, "/api/users/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"email":"ann@x.io"`)
	assert.NotContains(t, string(env.Data), "password")

	w, _ = s.do(t, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfileAndAddresses(t *testing.T) {
	s := newTestServer(t)
	ann := s.register(t, "Ann", "ann@x.io")
	bob := s.register(t, "Bob", "bob@x.io")

	w, _ := s.do(t, http.MethodPut, "/api/users/me", ann.Token, map[string]any{"name": "Ann B.", "currentPassword": "bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = s.do(t, http.MethodPut, "/api/users/me", ann.Token, map[string]any{"name": "Ann B.", "currentPassword": "hunter22"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := s.do(t, http.MethodPost, "/api/users/me/addresses", ann.Token, map[string]any{"city": "Oslo", "addressType": "home"})
	require.Equal(t, http.StatusCreated, w.Code)
	var u struct {
		Addresses []entity.Address `json:"addresses"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &u))
	require.Len(t, u.Addresses, 1)

	w, _ = s.do(t, http.MethodPost, "/api/users/me/addresses", ann.Token, map[string]any{"city": "Oslo", "addressType": "home"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/users/me/addresses/"+u.Addresses[0].ID, ann.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/users/"+ann.User["id"].(string), bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"name":"Ann B."`)
	assert.NotContains(t, string(env.Data), "email")
}

func TestChangePassword(t *testing.T) {
	s := newTestServer(t)
	ann := s.register(t, "Ann", "ann@x.io")

	w, _ := s.do(t, http.MethodPut, "/api/users/me/password", ann.Token, map[string]string{
		"oldPassword": "hunter22", "newPassword": "newpass1", "confirmPassword": "other",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPut, "/api/users/me/password", ann.Token, map[string]string{
		"oldPassword": "hunter22", "newPassword": "newpass1", "confirmPassword": "newpass1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/users/login", "", map[string]string{"email": "ann@x.io", "password": "newpass1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestForgotAndResetPassword(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Ann", "ann@x.io")

	w, env := s.do(t, http.MethodPost, "/api/password/forgot", "", map[string]string{"email": "nobody@x.io"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, string(env.Data), "reset_link")

	w, env = s.do(t, http.MethodPost, "/api/password/forgot", "", map[string]string{"email": "ann@x.io"})
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		ResetLink string `json:"reset_link"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Contains(t, data.ResetLink, "http://shop.test/reset/")
	token := data.ResetLink[len("http://shop.test/reset/"):]

	w, _ = s.do(t, http.MethodPost, "/api/password/reset", "", map[string]string{
		"token": "bogus", "password": "fresh123", "confirmPassword": "fresh123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/password/reset", "", map[string]string{
		"token": token, "password": "fresh123", "confirmPassword": "fresh123",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/users/login", "", map[string]string{"email": "ann@x.io", "password": "fresh123"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadAvatarWithoutStorage(t *testing.T) {
	s := newTestServer(t)
	ann := s.register(t, "Ann", "ann@x.io")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="me.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/users/me/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ann.Token)
	w, _ := s.serve(t, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/users/me/avatar", nil)
	req.Header.Set("Authorization", "Bearer "+ann.Token)
	w, _ = s.serve(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(t, "Admin", "admin@x.io")
	ann := s.register(t, "Ann", "ann@x.io")

	w, _ := s.do(t, http.MethodGet, "/api/admin/users", ann.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminID := admin.User["id"].(string)
	u, err := s.repo.GetByID(context.Background(), adminID)
	require.NoError(t, err)
	u.Role = entity.RoleAdmin
	require.NoError(t, s.repo.Update(context.Background(), u))

	w, env := s.do(t, http.MethodGet, "/api/admin/users?limit=10", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &users))
	assert.Len(t, users, 2)

	w, env = s.do(t, http.MethodGet, "/api/admin/users?limit=500&offset=-3", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var meta struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(env.Meta, &meta))
	assert.Equal(t, 20, meta.Limit)
	assert.Equal(t, 0, meta.Offset)

	w, _ = s.do(t, http.MethodGet, "/api/admin/users/search?q=ann", admin.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/admin/users/"+adminID, admin.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/admin/users/"+ann.User["id"].(string), admin.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/users/me", ann.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
}
