package port

import "context"

// Message is one outbound IM delivery of a persisted notification
type Message struct {
	Recipient string
	Title     string
	Body      string
	RequestID string
}

// MessageChannel delivers notifications to an external IM surface. Delivery
// is best-effort: failures are logged by the caller and never propagate into
// the transition that produced the notification.
type MessageChannel interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}
