package utils

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	apperrors "exchange/internal/errors"
	"exchange/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	now := time.Now()
	token, err := GenerateToken("secret", time.Hour, &models.UserClaims{
		UserID:    7,
		Username:  "alice",
		Role:      models.RoleAdmin,
		SessionID: "sess-1",
	}, now)
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	_, err = ParseToken("other", token)
	assert.Error(t, err)
}

func TestParseToken_Expired(t *testing.T) {
	token, err := GenerateToken("secret", time.Minute, &models.UserClaims{UserID: 1}, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = ParseToken("secret", token)
	assert.Error(t, err)
}

func TestGenerateToken_RequiresSecret(t *testing.T) {
	_, err := GenerateToken("", time.Minute, &models.UserClaims{}, time.Now())
	assert.ErrorIs(t, err, ErrJWTSecretMissing)
}

func TestGenerateTxHash(t *testing.T) {
	now := time.UnixMilli(0x18f2a3b4c5d)
	hash, err := GenerateTxHash(now)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^18f2a3b4c5d-[0-9a-f]{16}$`), hash)

	other, err := GenerateTxHash(now)
	require.NoError(t, err)
	assert.NotEqual(t, hash, other)
}

func TestError_RendersMessageAndFields(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return Error(c, apperrors.Authorization("IP blocked").With("banned", true))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "IP blocked", got["message"])
	assert.Equal(t, true, got["banned"])
}

func TestParsePage(t *testing.T) {
	app := fiber.New()
	var got Page
	app.Get("/", func(c *fiber.Ctx) error {
		got = ParsePage(c, 20)
		return nil
	})

	_, err := app.Test(httptest.NewRequest("GET", "/?page=3&limit=500", nil))
	require.NoError(t, err)
	assert.Equal(t, Page{Number: 3, Limit: 100}, got)
	assert.Equal(t, 200, got.Offset())

	_, err = app.Test(httptest.NewRequest("GET", "/?page=-1&limit=x", nil))
	require.NoError(t, err)
	assert.Equal(t, Page{Number: 1, Limit: 20}, got)
	assert.Zero(t, got.Offset())
}

func TestNewPaged(t *testing.T) {
	paged := NewPaged([]string{"a", "b"}, Page{Number: 3, Limit: 20}, 41)
	assert.Equal(t, PageInfo{Page: 3, Limit: 20, Total: 41, LastPage: 3}, paged.Pagination)
	assert.Len(t, paged.Data, 2)

	empty := NewPaged([]string{}, Page{Number: 1, Limit: 20}, 0)
	assert.Zero(t, empty.Pagination.LastPage)
}
