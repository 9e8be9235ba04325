// Package attempts tracks failed logins per IP and escalates to CAPTCHA and
// then to a ban.
package attempts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"exchange/internal/services/ban"
)

const (
	DefaultCaptchaThreshold = 3
	DefaultBanThreshold     = 5
	DefaultStaleAfter       = 10 * time.Minute
)

// Banner is the slice of the ban service the tracker needs.
type Banner interface {
	Ban(ctx context.Context, ip, reason string) (*ban.Result, error)
}

type Outcome struct {
	ShowCaptcha bool
	Banned      bool
}

type Tracker struct {
	store            Store
	banner           Banner
	captchaThreshold int
	banThreshold     int
	staleAfter       time.Duration
	logger           *slog.Logger
	now              func() time.Time
}

type Option func(*Tracker)

func WithThresholds(captcha, ban int) Option {
	return func(t *Tracker) {
		if captcha > 0 {
			t.captchaThreshold = captcha
		}
		if ban > 0 {
			t.banThreshold = ban
		}
	}
}

func WithStaleAfter(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.staleAfter = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func NewTracker(store Store, banner Banner, opts ...Option) *Tracker {
	t := &Tracker{
		store:            store,
		banner:           banner,
		captchaThreshold: DefaultCaptchaThreshold,
		banThreshold:     DefaultBanThreshold,
		staleAfter:       DefaultStaleAfter,
		logger:           slog.Default(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordFailedLoginAttempt counts one failure for ip. Reaching the ban
// threshold bans the IP and clears its entry.
func (t *Tracker) RecordFailedLoginAttempt(ctx context.Context, ip string) (Outcome, error) {
	entry, err := t.store.Increment(ctx, ip, t.now().UnixMilli())
	if err != nil {
		return Outcome{}, err
	}

	if entry.Count >= t.banThreshold {
		reason := fmt.Sprintf("%d failed login attempts", entry.Count)
		if _, err := t.banner.Ban(ctx, ip, reason); err != nil {
			return Outcome{}, err
		}
		if err := t.store.Delete(ctx, ip); err != nil {
			t.logger.ErrorContext(ctx, "failed to clear attempts after ban", "ip", ip, "error", err)
		}
		return Outcome{ShowCaptcha: true, Banned: true}, nil
	}

	if entry.Count >= t.captchaThreshold && !entry.ShowCaptcha {
		if err := t.store.MarkCaptcha(ctx, ip); err != nil {
			return Outcome{}, err
		}
		entry.ShowCaptcha = true
	}
	return Outcome{ShowCaptcha: entry.ShowCaptcha}, nil
}

// Reset clears the entry for ip after a successful login.
func (t *Tracker) Reset(ctx context.Context, ip string) error {
	return t.store.Delete(ctx, ip)
}

func (t *Tracker) ShouldShowCaptcha(ctx context.Context, ip string) (bool, error) {
	entry, ok, err := t.store.Get(ctx, ip)
	if err != nil || !ok {
		return false, err
	}
	return entry.ShowCaptcha, nil
}

// Sweep removes entries whose first attempt is older than the staleness window.
func (t *Tracker) Sweep(ctx context.Context) (int, error) {
	cutoff := t.now().Add(-t.staleAfter).UnixMilli()
	return t.store.DeleteStale(ctx, cutoff)
}
