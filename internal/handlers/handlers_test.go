package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"exchange/internal/middleware"
	"exchange/internal/models"
	"exchange/internal/repositories/repotest"
	"exchange/internal/services/auth"
	"exchange/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGate struct {
	mock.Mock
}

func (m *MockGate) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResult, error) {
	args := m.Called(req.Username, req.IP, req.Header("X-Client-Type"))
	res, _ := args.Get(0).(*auth.LoginResult)
	return res, args.Error(1)
}

func (m *MockGate) Logout(ctx context.Context, sessionID string) error {
	return m.Called(sessionID).Error(0)
}

func TestLoginUser_SetsCookie(t *testing.T) {
	gate := new(MockGate)
	expires := time.Now().Add(time.Hour)
	gate.On("Login", "alice", "10.1.1.1", "mobile-app").Return(&auth.LoginResult{
		User:      models.PublicUser{ID: 1, Username: "alice"},
		Token:     "signed-token",
		ExpiresAt: expires,
	}, nil)

	app := fiber.New(fiber.Config{ProxyHeader: fiber.HeaderXForwardedFor})
	app.Post("/login", NewAuthHandler(gate, true).LoginUser)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"alice","password":"pw"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderXForwardedFor, "10.1.1.1")
	req.Header.Set("X-Client-Type", "mobile-app")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == middleware.AccessTokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, "signed-token", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "signed-token", body["token"])
	assert.Equal(t, "alice", body["user"].(map[string]any)["username"])
	gate.AssertExpectations(t)
}

func TestLoginUser_RendersGateError(t *testing.T) {
	gate := new(MockGate)
	gate.On("Login", "alice", mock.Anything, "").Return(nil, auth.ErrCaptchaRequired)

	app := fiber.New()
	app.Post("/login", NewAuthHandler(gate, false).LoginUser)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"alice","password":"pw"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["requireCaptcha"])
}

func TestLogoutUser_ClearsCookie(t *testing.T) {
	gate := new(MockGate)
	gate.On("Logout", "sess-1").Return(nil)

	app := fiber.New()
	app.Post("/logout", func(c *fiber.Ctx) error {
		c.Locals(utils.ClaimsKey, &models.UserClaims{UserID: 1, SessionID: "sess-1"})
		return c.Next()
	}, NewAuthHandler(gate, false).LogoutUser)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	for _, c := range resp.Cookies() {
		if c.Name == middleware.AccessTokenCookie {
			assert.Empty(t, c.Value)
		}
	}
	gate.AssertExpectations(t)
}

func TestHealthCheck(t *testing.T) {
	db := repotest.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	app := fiber.New()
	app.Get("/health", NewHealthHandler(db, rdb).HealthCheck)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	mr.Close()
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "unavailable", body["services"].(map[string]any)["redis"])
}
