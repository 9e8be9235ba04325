// Package abuse is the append-only audit sink for security events: bans,
// unbans, rate-limit hits and CAPTCHA rejections. It has no read API; the
// file is consumed by external tooling and the optional table by dashboards.
package abuse

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"exchange/internal/models"

	"gorm.io/gorm"
)

// Logger is implemented by every abuse sink.
type Logger interface {
	LogAbuse(ctx context.Context, message string)
}

// FileLogger appends "<RFC3339 timestamp> <message>" lines to a file.
type FileLogger struct {
	mu     sync.Mutex
	path   string
	now    func() time.Time
	logger *slog.Logger
}

type FileOption func(*FileLogger)

func WithClock(now func() time.Time) FileOption {
	return func(l *FileLogger) { l.now = now }
}

func WithLogger(logger *slog.Logger) FileOption {
	return func(l *FileLogger) { l.logger = logger }
}

func NewFileLogger(path string, opts ...FileOption) (*FileLogger, error) {
	if path == "" {
		return nil, fmt.Errorf("abuse log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create abuse log dir: %w", err)
	}
	l := &FileLogger{path: path, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// LogAbuse never fails the caller; write errors go to the structured log.
func (l *FileLogger) LogAbuse(ctx context.Context, message string) {
	line := fmt.Sprintf("%s %s\n", l.now().UTC().Format(time.RFC3339), sanitize(message))

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		l.logger.ErrorContext(ctx, "abuse_log_open_failed", "error", err, "path", l.path)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		l.logger.ErrorContext(ctx, "abuse_log_write_failed", "error", err, "path", l.path)
	}
}

// DBLogger mirrors events into the abuse_events table.
type DBLogger struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewDBLogger(db *gorm.DB, logger *slog.Logger) *DBLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &DBLogger{db: db, logger: logger}
}

func (l *DBLogger) LogAbuse(ctx context.Context, message string) {
	event := &models.AbuseEvent{Message: sanitize(message)}
	if err := l.db.WithContext(ctx).Create(event).Error; err != nil {
		l.logger.ErrorContext(ctx, "abuse_event_insert_failed", "error", err)
	}
}

// SlogLogger forwards events to the structured log with log_type=abuse.
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) LogAbuse(ctx context.Context, message string) {
	l.logger.WarnContext(ctx, message, "log_type", "abuse")
}

// Multi fans out to every sink.
type Multi []Logger

func (m Multi) LogAbuse(ctx context.Context, message string) {
	for _, l := range m {
		if l != nil {
			l.LogAbuse(ctx, message)
		}
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) LogAbuse(context.Context, string) {}

// sanitize keeps one event per line; newlines in attacker-controlled input
// would otherwise forge entries.
func sanitize(message string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(message)
}
