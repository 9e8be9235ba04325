package logger

import (
	"log/slog"
	"os"
)

// New returns a structured JSON logger using slog. Debug output is enabled
// outside production.
func New(production bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if !production {
		opts.Level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
