package entity

import (
	"time"

	"github.com/procurahq/procura/internal/domain/workflow"
)

// StatusHistory is the audit trail of a request: one row per creation or
// applied transition, including the background ones (actor "system").
// Action holds the trigger name, or "CREATE" for the initial row.
type StatusHistory struct {
	ID             int64          `json:"id"`
	RequestID      string         `json:"request_id"`
	PreviousStatus workflow.State `json:"previous_status,omitempty"`
	NewStatus      workflow.State `json:"new_status"`
	Action         string         `json:"action"`
	Actor          string         `json:"actor"`
	Note           string         `json:"note,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
