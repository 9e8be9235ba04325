// Package auth is the login gate: ban check, CAPTCHA requirement,
// credential verification and failed-attempt bookkeeping.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"exchange/internal/config"
	apperrors "exchange/internal/errors"
	"exchange/internal/metrics"
	"exchange/internal/models"
	"exchange/internal/repositories"
	"exchange/internal/services/attempts"
	"exchange/internal/services/captcha"
	"exchange/internal/utils"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Login outcomes, also used as metric labels.
const (
	OutcomeSuccess        = "success"
	OutcomeBanned         = "banned"
	OutcomeCaptchaFailed  = "captcha_failed"
	OutcomeInvalid        = "invalid_credentials"
	OutcomeBannedOnFailed = "banned_on_failure"
)

var (
	ErrIPBanned             = apperrors.Authorization("Access denied. Your IP address has been temporarily blocked.").With("banned", true)
	ErrBlockedAfterFailures = apperrors.Authorization("Too many failed login attempts. Your IP address has been blocked.").With("banned", true)
	ErrCaptchaRequired      = apperrors.Validation("CAPTCHA verification failed. Please complete the CAPTCHA.").With("requireCaptcha", true)
	ErrInvalidCredentials   = apperrors.Authentication("Invalid username or password")
	ErrUnauthorized         = apperrors.New(apperrors.CodeAuthentication, "Invalid or expired token", http.StatusUnauthorized)
)

type BanChecker interface {
	IsBanned(ctx context.Context, ip string) (bool, error)
}

type AttemptTracker interface {
	RecordFailedLoginAttempt(ctx context.Context, ip string) (attempts.Outcome, error)
	Reset(ctx context.Context, ip string) error
	ShouldShowCaptcha(ctx context.Context, ip string) (bool, error)
}

type CaptchaValidator interface {
	Validate(ctx context.Context, token, expectedAction, ip string, header captcha.HeaderFunc) bool
}

type LoginRequest struct {
	Username     string
	Password     string
	CaptchaToken string
	IP           string
	UserAgent    string
	Header       captcha.HeaderFunc
}

type LoginResult struct {
	User      models.PublicUser `json:"user"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	SessionID string            `json:"-"`
}

type Gate struct {
	users    repositories.UserRepository
	sessions repositories.SessionRepository
	bans     BanChecker
	tracker  AttemptTracker
	captcha  CaptchaValidator
	jwt      config.JWTConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Gate)

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func NewGate(
	users repositories.UserRepository,
	sessions repositories.SessionRepository,
	bans BanChecker,
	tracker AttemptTracker,
	captcha CaptchaValidator,
	jwtCfg config.JWTConfig,
	opts ...Option,
) *Gate {
	g := &Gate{
		users:    users,
		sessions: sessions,
		bans:     bans,
		tracker:  tracker,
		captcha:  captcha,
		jwt:      jwtCfg,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Login runs one attempt through ban check, CAPTCHA gate and credential
// verification. Rate limiting happens in front of it in the HTTP layer.
func (g *Gate) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	banned, err := g.bans.IsBanned(ctx, req.IP)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if banned {
		g.metrics.LoginAttempt(OutcomeBanned)
		return nil, ErrIPBanned
	}

	captchaRequired, err := g.tracker.ShouldShowCaptcha(ctx, req.IP)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	// A token sent before it is required is still checked.
	if captchaRequired || req.CaptchaToken != "" {
		if !g.captcha.Validate(ctx, req.CaptchaToken, captcha.ActionLogin, req.IP, req.Header) {
			g.metrics.LoginAttempt(OutcomeCaptchaFailed)
			return nil, ErrCaptchaRequired
		}
	}

	user, err := g.verifyCredentials(ctx, req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			return nil, err
		}
		return nil, g.recordFailure(ctx, req)
	}

	if err := g.tracker.Reset(ctx, req.IP); err != nil {
		g.logger.ErrorContext(ctx, "failed to reset login attempts", "ip", req.IP, "error", err)
	}
	result, err := g.startSession(ctx, user, req)
	if err != nil {
		return nil, err
	}
	g.metrics.LoginAttempt(OutcomeSuccess)
	g.logger.InfoContext(ctx, "user logged in", "user_id", user.ID, "ip", req.IP)
	return result, nil
}

// verifyCredentials answers ErrInvalidCredentials for both unknown users and
// wrong passwords, spending a bcrypt comparison in each case.
func (g *Gate) verifyCredentials(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		compareDummy(password)
		return nil, ErrInvalidCredentials
	}

	user, err := g.users.GetByUsername(ctx, username)
	if errors.Is(err, repositories.ErrUserNotFound) {
		compareDummy(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (g *Gate) recordFailure(ctx context.Context, req LoginRequest) error {
	outcome, err := g.tracker.RecordFailedLoginAttempt(ctx, req.IP)
	if err != nil {
		return apperrors.Internal(err)
	}
	g.logger.WarnContext(ctx, "login failed",
		"ip", req.IP,
		"show_captcha", outcome.ShowCaptcha,
		"banned", outcome.Banned,
	)
	if outcome.Banned {
		g.metrics.LoginAttempt(OutcomeBannedOnFailed)
		return ErrBlockedAfterFailures
	}
	g.metrics.LoginAttempt(OutcomeInvalid)
	if outcome.ShowCaptcha {
		return ErrInvalidCredentials.With("requireCaptcha", true)
	}
	return ErrInvalidCredentials
}

func (g *Gate) startSession(ctx context.Context, user *models.User, req LoginRequest) (*LoginResult, error) {
	now := g.now()
	device, meta := describeDevice(req.UserAgent)
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		IPAddress: req.IP,
		UserAgent: truncate(req.UserAgent, 512),
		Device:    device,
		Metadata:  meta,
		CreatedAt: now,
		ExpiresAt: now.Add(g.jwt.TokenTTL),
	}
	if err := g.sessions.Create(ctx, session); err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := g.users.RecordLogin(ctx, user.ID, req.IP); err != nil {
		g.logger.ErrorContext(ctx, "failed to record last login", "user_id", user.ID, "error", err)
	}

	token, err := utils.GenerateToken(g.jwt.Secret, g.jwt.TokenTTL, &models.UserClaims{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      models.RoleFor(user),
		SessionID: session.ID,
	}, now)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &LoginResult{
		User:      user.Public(),
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		SessionID: session.ID,
	}, nil
}

// Logout deletes the session. A missing session is not an error.
func (g *Gate) Logout(ctx context.Context, sessionID string) error {
	err := g.sessions.Delete(ctx, sessionID)
	if err != nil && !errors.Is(err, repositories.ErrSessionNotFound) {
		return apperrors.Internal(err)
	}
	return nil
}

// Authenticate validates a bearer token and that its session still exists.
func (g *Gate) Authenticate(ctx context.Context, token string) (*models.UserClaims, error) {
	claims, err := utils.ParseToken(g.jwt.Secret, token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	session, err := g.sessions.Get(ctx, claims.SessionID)
	if errors.Is(err, repositories.ErrSessionNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if session.UserID != claims.UserID || !session.ExpiresAt.After(g.now()) {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

func compareDummy(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
