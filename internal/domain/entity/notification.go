package entity

import (
	"time"

	"github.com/procurahq/procura/internal/domain/identity"
)

// Notification type tags. One notification record is produced as a side
// effect of every request transition; the read path groups the feed by
// these.
const (
	NotificationReviewRequested    = "REVIEW_REQUESTED"
	NotificationRequestApproved    = "REQUEST_APPROVED"
	NotificationRequestRejected    = "REQUEST_REJECTED"
	NotificationBiddingStarted     = "BIDDING_STARTED"
	NotificationRequestExpired     = "REQUEST_EXPIRED"
	NotificationEvaluationReady    = "EVALUATION_READY"
	NotificationOfferSubmitted     = "OFFER_SUBMITTED"
	NotificationOfferRecommended   = "OFFER_RECOMMENDED"
	NotificationOrderRequested     = "ORDER_REQUESTED"
	NotificationOrderPlaced        = "ORDER_PLACED"
	NotificationRequestReactivated = "REQUEST_REACTIVATED"
)

// Notification is a persisted alert addressed to either a single user or
// everyone holding a role. DedupeKey, when set, collapses repeated emissions
// of the same logical alert into one record.
type Notification struct {
	ID            string        `json:"id"`
	DedupeKey     string        `json:"dedupe_key,omitempty"`
	Recipient     string        `json:"recipient,omitempty"`
	RecipientRole identity.Role `json:"recipient_role,omitempty"`
	Type          string        `json:"type"`
	Title         string        `json:"title"`
	Message       string        `json:"message"`
	RequestID     string        `json:"request_id,omitempty"`
	Read          bool          `json:"read"`
	CreatedAt     time.Time     `json:"created_at"`
}
