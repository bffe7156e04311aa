package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is an immutable record of something that happened to a request.
// Handlers receive the same instance, so they must not mutate Payload.
type Event struct {
	ID         string                 `json:"id"`
	Type       Type                   `json:"type"`
	RequestID  string                 `json:"request_id"`
	Actor      string                 `json:"actor"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// New stamps a fresh event with an ID and the current time. A nil payload
// is allowed for events that carry no extra data.
func New(t Type, requestID, actor string, payload map[string]interface{}) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       t,
		RequestID:  requestID,
		Actor:      actor,
		Payload:    payload,
		OccurredAt: time.Now(),
	}
}

// PayloadString returns the payload value under key when it is a string,
// otherwise the empty string.
func (e *Event) PayloadString(key string) string {
	s, _ := e.Payload[key].(string)
	return s
}

// PayloadInt returns the payload value under key coerced to int64. Numeric
// payloads arrive as int, int64, or float64 depending on how the event was
// built; anything else yields zero.
func (e *Event) PayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}
