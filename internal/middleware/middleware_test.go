package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "exchange/internal/errors"
	"exchange/internal/models"
	"exchange/internal/services/abuse"
	"exchange/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, token string) (*models.UserClaims, error) {
	args := m.Called(token)
	claims, _ := args.Get(0).(*models.UserClaims)
	return claims, args.Error(1)
}

func newProtectedApp(auth Authenticator) *fiber.App {
	app := fiber.New()
	mw := NewAuthMiddleware(auth)
	app.Get("/me", mw.Handler, func(c *fiber.Ctx) error {
		claims, err := utils.GetUserClaims(c)
		if err != nil {
			return utils.Error(c, err)
		}
		return c.SendString(claims.Username)
	})
	app.Get("/admin", mw.Handler, AdminAuthMiddleware, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	auth := new(MockAuthenticator)
	auth.On("Authenticate", "good").Return(&models.UserClaims{UserID: 1, Username: "alice", Role: models.RoleUser}, nil)
	auth.On("Authenticate", "admin").Return(&models.UserClaims{UserID: 2, Username: "root", Role: models.RoleAdmin}, nil)
	auth.On("Authenticate", "bad").Return(nil, apperrors.New(apperrors.CodeAuthentication, "Invalid or expired token", 401))
	app := newProtectedApp(auth)

	tests := []struct {
		name   string
		path   string
		header string
		cookie string
		want   int
	}{
		{"missing token", "/me", "", "", fiber.StatusUnauthorized},
		{"bearer token", "/me", "Bearer good", "", fiber.StatusOK},
		{"cookie token", "/me", "", "good", fiber.StatusOK},
		{"rejected token", "/me", "Bearer bad", "", fiber.StatusUnauthorized},
		{"non admin", "/admin", "Bearer good", "", fiber.StatusForbidden},
		{"admin", "/admin", "Bearer admin", "", fiber.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.Header.Set("Cookie", AccessTokenCookie+"="+tt.cookie)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHasRequiredRole(t *testing.T) {
	assert.True(t, hasRequiredRole(models.RoleAdmin, models.RoleEmployee))
	assert.True(t, hasRequiredRole(models.RoleEmployee, models.RoleEmployee))
	assert.False(t, hasRequiredRole(models.RoleContractor, models.RoleEmployee))
	assert.False(t, hasRequiredRole("", models.RoleUser))
}

func TestLoginLimiter_BlocksAfterMaxAndLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abuse.log")
	audit, err := abuse.NewFileLogger(path)
	require.NoError(t, err)

	app := fiber.New()
	app.Post("/login", LoginLimiter(LoginLimiterConfig{Max: 2, Window: time.Minute, Abuse: audit}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/login", nil))
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	resp, err := app.Test(httptest.NewRequest("POST", "/login", nil))
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, ErrTooManyLogins.Message, body["message"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Login rate limit exceeded for IP")
}


type MockBanChecker struct {
	mock.Mock
}

func (m *MockBanChecker) IsBanned(ctx context.Context, ip string) (bool, error) {
	args := m.Called(ip)
	return args.Bool(0), args.Error(1)
}

func TestBanCheck(t *testing.T) {
	tests := []struct {
		name       string
		banned     bool
		err        error
		wantStatus int
		wantBanned any
	}{
		{"banned ip", true, nil, fiber.StatusForbidden, true},
		{"clean ip", false, nil, fiber.StatusOK, nil},
		{"store failure", false, errors.New("redis down"), fiber.StatusInternalServerError, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bans := new(MockBanChecker)
			bans.On("IsBanned", mock.Anything).Return(tt.banned, tt.err)

			app := fiber.New()
			app.Use(BanCheck(bans))
			app.Post("/orders", func(c *fiber.Ctx) error {
				return c.JSON(fiber.Map{"ok": true})
			})

			resp, err := app.Test(httptest.NewRequest("POST", "/orders", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantBanned, body["banned"])
			bans.AssertExpectations(t)
		})
	}
}
