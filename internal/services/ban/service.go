// Package ban maintains the banned-IP map and escalates ban duration for
// repeat offenders.
package ban

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"
	"time"

	apperrors "exchange/internal/errors"
	"exchange/internal/metrics"
	"exchange/internal/services/abuse"
	"exchange/internal/services/notification"
)

const (
	SourceAuto   = "auto"
	SourceManual = "manual"
)

type Config struct {
	BaseDuration    time.Duration
	MaxMultiplier   int
	NotifyThreshold int
}

func DefaultConfig() Config {
	return Config{BaseDuration: time.Hour, MaxMultiplier: 6, NotifyThreshold: 2}
}

// Ban is one active entry as returned to admins.
type Ban struct {
	IPAddress string    `json:"ipAddress"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Result describes a ban that was just issued.
type Result struct {
	IPAddress string
	Offenses  int
	Duration  time.Duration
	ExpiresAt time.Time
}

type Service struct {
	store     Store
	offenders OffenderCounter
	abuse     abuse.Logger
	notifier  notification.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithNotifier(p notification.Publisher) Option {
	return func(s *Service) { s.notifier = p }
}

func WithAbuseLogger(l abuse.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.abuse = l
		}
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		if cfg.BaseDuration > 0 {
			s.cfg.BaseDuration = cfg.BaseDuration
		}
		if cfg.MaxMultiplier > 0 {
			s.cfg.MaxMultiplier = cfg.MaxMultiplier
		}
		if cfg.NotifyThreshold > 0 {
			s.cfg.NotifyThreshold = cfg.NotifyThreshold
		}
	}
}

func NewService(store Store, offenders OffenderCounter, opts ...Option) *Service {
	if offenders == nil {
		offenders = NewMemoryOffenders()
	}
	s := &Service{
		store:     store,
		offenders: offenders,
		abuse:     abuse.Nop{},
		logger:    slog.Default(),
		cfg:       DefaultConfig(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsBanned reports whether ip has an unexpired ban. An expired entry is
// removed as a side effect.
func (s *Service) IsBanned(ctx context.Context, ip string) (bool, error) {
	expiresAt, found, err := s.store.Get(ctx, ip)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if expiresAt > s.now().UnixMilli() {
		return true, nil
	}

	if _, err := s.store.Delete(ctx, ip); err != nil {
		s.logger.ErrorContext(ctx, "failed to remove expired ban", "ip", ip, "error", err)
		return false, nil
	}
	s.metrics.IPUnbanned()
	s.abuse.LogAbuse(ctx, fmt.Sprintf("Ban expired for IP %s", ip))
	return false, nil
}

// Ban issues an automatic ban for ip with an escalating duration.
func (s *Service) Ban(ctx context.Context, ip, reason string) (*Result, error) {
	return s.ban(ctx, ip, reason, SourceAuto)
}

// ManualBan is the admin-issued variant. The actor is recorded in the abuse log.
func (s *Service) ManualBan(ctx context.Context, ip, actor, reason string) (*Result, error) {
	ip = strings.TrimSpace(ip)
	if net.ParseIP(ip) == nil {
		return nil, apperrors.Validation("Invalid IP address").With("fields", []string{"ipAddress"})
	}
	if reason == "" {
		reason = "manual ban"
	}
	return s.ban(ctx, ip, fmt.Sprintf("%s (by %s)", reason, actorOrSystem(actor)), SourceManual)
}

func (s *Service) ban(ctx context.Context, ip, reason, source string) (*Result, error) {
	offenses, err := s.offenders.Increment(ctx, ip)
	if err != nil {
		return nil, err
	}
	if offenses < 1 {
		offenses = 1
	}

	multiplier := offenses
	if multiplier > s.cfg.MaxMultiplier {
		multiplier = s.cfg.MaxMultiplier
	}
	duration := s.cfg.BaseDuration * time.Duration(multiplier)
	expiresAt := s.now().Add(duration)

	if err := s.store.Put(ctx, ip, expiresAt.UnixMilli(), reason); err != nil {
		return nil, err
	}

	s.metrics.IPBanned(source)
	s.abuse.LogAbuse(ctx, fmt.Sprintf("Banned IP %s for %s (offense #%d): %s", ip, duration, offenses, reason))
	s.logger.WarnContext(ctx, "ip_banned",
		"ip", ip,
		"offenses", offenses,
		"duration", duration.String(),
		"expires_at", expiresAt.UTC(),
		"source", source,
	)

	if s.notifier != nil {
		payload := map[string]any{
			"ipAddress": ip,
			"offenses":  offenses,
			"expiresAt": expiresAt.UTC(),
			"reason":    reason,
		}
		s.notifier.Publish(ctx, notification.EventIPBanned, payload)
		if offenses >= s.cfg.NotifyThreshold {
			s.notifier.Publish(ctx, notification.EventRepeatOffenderAlert, payload)
		}
	}

	return &Result{IPAddress: ip, Offenses: offenses, Duration: duration, ExpiresAt: expiresAt}, nil
}

// Unban removes the ban for ip and reports whether one existed.
func (s *Service) Unban(ctx context.Context, ip, actor string) (bool, error) {
	ip = strings.TrimSpace(ip)
	existed, err := s.store.Delete(ctx, ip)
	if err != nil {
		return false, err
	}
	if existed {
		s.metrics.IPUnbanned()
		s.abuse.LogAbuse(ctx, fmt.Sprintf("Unbanned IP %s by %s", ip, actorOrSystem(actor)))
	}
	return existed, nil
}

// List returns active bans ordered by expiry. Expired entries are skipped
// and left for IsBanned to clean up.
func (s *Service) List(ctx context.Context) ([]Ban, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	nowMs := s.now().UnixMilli()
	bans := make([]Ban, 0, len(all))
	for ip, expiry := range all {
		if expiry <= nowMs {
			continue
		}
		bans = append(bans, Ban{IPAddress: ip, ExpiresAt: time.UnixMilli(expiry).UTC()})
	}
	sort.Slice(bans, func(i, j int) bool {
		if bans[i].ExpiresAt.Equal(bans[j].ExpiresAt) {
			return bans[i].IPAddress < bans[j].IPAddress
		}
		return bans[i].ExpiresAt.Before(bans[j].ExpiresAt)
	})
	return bans, nil
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return "system"
	}
	return actor
}
