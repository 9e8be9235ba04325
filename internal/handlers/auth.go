package handlers

import (
	"context"
	"time"

	apperrors "exchange/internal/errors"
	"exchange/internal/middleware"
	"exchange/internal/services/auth"
	"exchange/internal/utils"
	"exchange/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// LoginGate is the part of auth.Gate the handler drives.
type LoginGate interface {
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
}

type AuthHandler struct {
	gate          LoginGate
	secureCookies bool
}

func NewAuthHandler(gate LoginGate, secureCookies bool) *AuthHandler {
	return &AuthHandler{gate: gate, secureCookies: secureCookies}
}

type loginRequest struct {
	Username string `json:"username" validate:"required,notblank,max=64"`
	Password string `json:"password" validate:"required,max=128"`
	Captcha  string `json:"g-recaptcha-response"`
}

// LoginUser handles POST /api/login.
func (h *AuthHandler) LoginUser(c *fiber.Ctx) error {
	var input loginRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.Error(c, apperrors.Validation("Invalid request body"))
	}
	if err := validation.Validate(input); err != nil {
		return utils.Error(c, err)
	}

	res, err := h.gate.Login(c.UserContext(), auth.LoginRequest{
		Username:     input.Username,
		Password:     input.Password,
		CaptchaToken: input.Captcha,
		IP:           c.IP(),
		UserAgent:    c.Get(fiber.HeaderUserAgent),
		Header:       func(key string) string { return c.Get(key) },
	})
	if err != nil {
		return utils.Error(c, err)
	}

	h.setAccessCookie(c, res.Token, res.ExpiresAt)
	return utils.Success(c, fiber.Map{
		"message":   "Login successful",
		"user":      res.User,
		"token":     res.Token,
		"expiresAt": res.ExpiresAt,
	})
}

// LogoutUser handles POST /api/logout.
func (h *AuthHandler) LogoutUser(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return utils.Error(c, err)
	}
	if err := h.gate.Logout(c.UserContext(), claims.SessionID); err != nil {
		return utils.Error(c, err)
	}

	h.setAccessCookie(c, "", time.Now().Add(-time.Hour))
	return utils.Message(c, fiber.StatusOK, "Successfully logged out")
}

func (h *AuthHandler) setAccessCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    token,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteStrictMode,
		Path:     "/",
	})
}
