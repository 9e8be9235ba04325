package attempts

import (
	"context"
	"log/slog"
	"time"

	"exchange/internal/metrics"
)

const DefaultSweepInterval = 30 * time.Minute

// SessionPurger drops login sessions that expired before now.
type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically drops stale tracker entries. Its interval is
// independent of the tracker's staleness window, so an entry may outlive
// that window by up to one interval.
type Sweeper struct {
	tracker  *Tracker
	sessions SessionPurger
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type SweeperOption func(*Sweeper)

func WithInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithSweeperLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSweeperMetrics(m *metrics.Metrics) SweeperOption {
	return func(s *Sweeper) { s.metrics = m }
}

// WithExpiredSessions makes every sweep also purge expired sessions.
func WithExpiredSessions(p SessionPurger) SweeperOption {
	return func(s *Sweeper) { s.sessions = p }
}

func NewSweeper(tracker *Tracker, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		tracker:  tracker,
		interval: DefaultSweepInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			removed, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.Error("failed_attempts_sweep_failed",
					"error", err,
					"duration_ms", time.Since(start).Milliseconds(),
				)
				continue
			}
			s.logger.Info("failed_attempts_sweep_completed",
				"removed", removed,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		case <-ctx.Done():
			s.logger.Info("failed attempts sweeper stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce executes a single sweep. Logging is handled by Start.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	removed, err := s.tracker.Sweep(ctx)
	if err != nil {
		return 0, err
	}
	s.metrics.AttemptsSwept(removed)

	if s.sessions != nil {
		purged, err := s.sessions.DeleteExpired(ctx, s.tracker.now())
		if err != nil {
			return removed, err
		}
		if purged > 0 {
			s.logger.Info("expired_sessions_purged", "removed", purged)
		}
	}
	return removed, nil
}
