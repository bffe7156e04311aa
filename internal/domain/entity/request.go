package entity

import (
	"time"

	"github.com/procurahq/procura/internal/domain/workflow"
)

// DefaultBiddingCycleDays is applied at creation when the payload does not
// set its own cycle length. A cycle of 0 is legal and means the bidding
// window closes as soon as it is read.
const DefaultBiddingCycleDays = 7

// RoleSlot describes one staffing need within a request
type RoleSlot struct {
	Role     string `json:"role"`
	Language string `json:"language,omitempty"`
	Level    string `json:"level,omitempty"`
	Count    int    `json:"count"`
}

// RequestDetails is the structured free-form payload of a request
type RequestDetails struct {
	RoleSlots   []RoleSlot `json:"role_slots,omitempty"`
	Criteria    []string   `json:"criteria,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	SupplierRef string     `json:"supplier_ref,omitempty"`
	ContractRef string     `json:"contract_ref,omitempty"`
}

// Request represents a procurement request moving through the lifecycle
type Request struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Description        string         `json:"description,omitempty"`
	Details            RequestDetails `json:"details"`
	Status             workflow.State `json:"status"`
	CreatedBy          string         `json:"created_by"`
	MaxOffers          int            `json:"max_offers"`
	BiddingCycleDays   int            `json:"bidding_cycle_days"`
	RejectionReason    string         `json:"rejection_reason,omitempty"`
	RecommendedOfferID *string        `json:"recommended_offer_id,omitempty"`
	OrderID            *string        `json:"order_id,omitempty"`

	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	SubmittedBy      string     `json:"submitted_by,omitempty"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	RejectedAt       *time.Time `json:"rejected_at,omitempty"`
	ReviewedBy       string     `json:"reviewed_by,omitempty"`
	BiddingStartedAt *time.Time `json:"bidding_started_at,omitempty"`
	BidEvaluationAt  *time.Time `json:"bid_evaluation_at,omitempty"`
	RecommendedAt    *time.Time `json:"recommended_at,omitempty"`
	RecommendedBy    string     `json:"recommended_by,omitempty"`
	SentToOrderingAt *time.Time `json:"sent_to_ordering_at,omitempty"`
	SentToOrderingBy string     `json:"sent_to_ordering_by,omitempty"`
	OrderedAt        *time.Time `json:"ordered_at,omitempty"`
	OrderedBy        string     `json:"ordered_by,omitempty"`
	ExpiredAt        *time.Time `json:"expired_at,omitempty"`
	ReactivatedAt    *time.Time `json:"reactivated_at,omitempty"`
	ReactivatedBy    string     `json:"reactivated_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BiddingDeadline returns the instant the bidding window closes. Zero value
// when bidding has not started.
func (r *Request) BiddingDeadline() time.Time {
	if r.BiddingStartedAt == nil {
		return time.Time{}
	}
	return r.BiddingStartedAt.Add(time.Duration(r.BiddingCycleDays) * 24 * time.Hour)
}

// MaybeExpire flips a BIDDING request whose bidding window has closed to
// EXPIRED and stamps ExpiredAt. It reports whether it changed the request;
// re-applying it to the result is a no-op.
func (r *Request) MaybeExpire(now time.Time) bool {
	if r.Status != workflow.StateBidding || r.BiddingStartedAt == nil {
		return false
	}
	if now.Before(r.BiddingDeadline()) {
		return false
	}
	r.Status = workflow.StateExpired
	r.ExpiredAt = &now
	return true
}

// MaybeAutoAdvance flips a BIDDING request to BID_EVALUATION once the offer
// count reaches MaxOffers and stamps BidEvaluationAt. MaxOffers 0 disables
// the check. Idempotent like MaybeExpire.
func (r *Request) MaybeAutoAdvance(offerCount int, now time.Time) bool {
	if r.Status != workflow.StateBidding || r.MaxOffers <= 0 {
		return false
	}
	if offerCount < r.MaxOffers {
		return false
	}
	r.Status = workflow.StateBidEvaluation
	r.BidEvaluationAt = &now
	return true
}

// ClearBiddingFields resets the bidding round on reactivation so a fresh
// submit-for-bidding starts a clean window.
func (r *Request) ClearBiddingFields() {
	r.BiddingStartedAt = nil
	r.BidEvaluationAt = nil
	r.ExpiredAt = nil
}
