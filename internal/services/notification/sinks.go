package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// LogSink writes events to the structured log. It is always installed so
// events stay visible when no external collaborator is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "notification",
		"event_id", event.ID,
		"event_type", event.Type,
		"payload", event.Payload,
	)
	return nil
}

// WebhookSink POSTs the event as JSON. The chat bot and mail relay consume
// this endpoint.
type WebhookSink struct {
	url     string
	timeout time.Duration
}

func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{url: url, timeout: timeout}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Deliver(_ context.Context, event Event) error {
	agent := fiber.Post(s.url)
	agent.Timeout(s.timeout)
	agent.JSON(event)

	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("webhook request failed: %w", errs[0])
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("webhook responded with status %d", code)
	}
	return nil
}
