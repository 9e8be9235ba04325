// Package captcha verifies reCAPTCHA v3 tokens against the provider's
// siteverify endpoint.
package captcha

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"

	"exchange/internal/config"
	"exchange/internal/metrics"
	"exchange/internal/services/abuse"

	"github.com/gofiber/fiber/v2"
)

// Rejection reasons, also used as metric labels.
const (
	ReasonMissingToken   = "missing_token"
	ReasonInvalidToken   = "invalid_token"
	ReasonLowScore       = "low_score"
	ReasonActionMismatch = "action_mismatch"
	ReasonServiceError   = "service_error"
)

const ActionLogin = "login"

// HeaderFunc reads a request header. fiber's Ctx.Get fits after wrapping.
type HeaderFunc func(key string) string

type verifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

type Validator struct {
	cfg     config.CaptchaConfig
	abuse   abuse.Logger
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Validator)

func WithAbuseLogger(l abuse.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.abuse = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Validator) { v.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

func NewValidator(cfg config.CaptchaConfig, opts ...Option) *Validator {
	v := &Validator{cfg: cfg, abuse: abuse.Nop{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate reports whether token is acceptable for expectedAction. Every
// rejection is written to the abuse log with its cause.
func (v *Validator) Validate(ctx context.Context, token, expectedAction, ip string, header HeaderFunc) bool {
	if v.trustedClient(header) {
		v.logger.DebugContext(ctx, "captcha bypassed for trusted client", "ip", ip)
		return true
	}
	if v.cfg.Disabled && !v.cfg.Production {
		return true
	}
	if token == "" {
		v.reject(ctx, ip, ReasonMissingToken, "missing token")
		return false
	}
	if v.cfg.Secret == "" {
		return v.serviceFailure(ctx, ip, fmt.Errorf("captcha secret is not configured"))
	}

	res, err := v.verify(token, ip)
	if err != nil {
		return v.serviceFailure(ctx, ip, err)
	}
	if !res.Success {
		v.reject(ctx, ip, ReasonInvalidToken, fmt.Sprintf("verification failed %v", res.ErrorCodes))
		return false
	}
	if res.Score < v.cfg.MinScore {
		v.reject(ctx, ip, ReasonLowScore, fmt.Sprintf("low score %.2f (min %.2f)", res.Score, v.cfg.MinScore))
		return false
	}
	if res.Action != expectedAction {
		v.reject(ctx, ip, ReasonActionMismatch, fmt.Sprintf("action mismatch %q (expected %q)", res.Action, expectedAction))
		return false
	}
	return true
}

// trustedClient requires both the client marker and the shared app key, so
// the marker header alone cannot skip the check.
func (v *Validator) trustedClient(header HeaderFunc) bool {
	if header == nil || v.cfg.AppKey == "" || v.cfg.TrustedHeader == "" {
		return false
	}
	if header(v.cfg.TrustedHeader) != v.cfg.TrustedValue {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header(v.cfg.AppKeyHeader)), []byte(v.cfg.AppKey)) == 1
}

func (v *Validator) verify(token, ip string) (*verifyResponse, error) {
	agent := fiber.Post(v.cfg.VerifyURL)
	agent.Timeout(v.cfg.Timeout)

	args := fiber.AcquireArgs()
	args.Set("secret", v.cfg.Secret)
	args.Set("response", token)
	if ip != "" {
		args.Set("remoteip", ip)
	}
	agent.Form(args)
	fiber.ReleaseArgs(args)

	var res verifyResponse
	code, _, errs := agent.Struct(&res)
	if len(errs) > 0 {
		return nil, fmt.Errorf("captcha verify request: %w", errs[0])
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("captcha verify responded with status %d", code)
	}
	return &res, nil
}

// serviceFailure fails closed unless fail-open was explicitly enabled
// outside production.
func (v *Validator) serviceFailure(ctx context.Context, ip string, err error) bool {
	v.logger.ErrorContext(ctx, "captcha verification unavailable", "ip", ip, "error", err)
	if v.cfg.FailOpen && !v.cfg.Production {
		v.abuse.LogAbuse(ctx, fmt.Sprintf("CAPTCHA service error for IP %s, allowed (fail-open): %v", ip, err))
		return true
	}
	v.reject(ctx, ip, ReasonServiceError, err.Error())
	return false
}

func (v *Validator) reject(ctx context.Context, ip, reason, detail string) {
	v.metrics.CaptchaRejected(reason)
	v.abuse.LogAbuse(ctx, fmt.Sprintf("CAPTCHA rejected for IP %s: %s", ip, detail))
}
