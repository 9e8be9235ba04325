package notification

import (
	"context"
	"time"
)

// Event types published by the order and security flows.
const (
	EventOrderCreated        = "order.created"
	EventOrderStatusChanged  = "order.status_changed"
	EventIPBanned            = "security.ip_banned"
	EventRepeatOffenderAlert = "security.repeat_offender"
)

type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurredAt"`
	Payload    map[string]any `json:"payload"`
}

// Sink delivers one event to an external collaborator (webhook, e-mail relay, chat bot).
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event Event) error
}

// Publisher is what producers depend on. Publish must never block the caller.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]any) bool
}
