package engine

import (
	"context"

	"github.com/procurahq/procura/internal/domain/entity"
	"github.com/procurahq/procura/internal/domain/identity"
	"github.com/procurahq/procura/internal/domain/workflow"
)

// CreateRequestInput carries the caller-supplied fields for a new request.
// A nil BiddingCycleDays means the default cycle applies; an explicit 0 is a
// zero-length window that expires on the first read after bidding starts.
type CreateRequestInput struct {
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	Details          entity.RequestDetails `json:"details"`
	MaxOffers        int                   `json:"max_offers"`
	BiddingCycleDays *int                  `json:"bidding_cycle_days"`
}

// UpdateRequestInput is a partial edit of a draft. Nil fields are left
// untouched.
type UpdateRequestInput struct {
	Title            *string                `json:"title"`
	Description      *string                `json:"description"`
	Details          *entity.RequestDetails `json:"details"`
	MaxOffers        *int                   `json:"max_offers"`
	BiddingCycleDays *int                   `json:"bidding_cycle_days"`
}

// ListRequestsInput narrows and pages the request listing.
type ListRequestsInput struct {
	Status    *workflow.State
	CreatedBy string
	Limit     int
	Offset    int
}

// Engine owns the request lifecycle. Every status mutation, explicit or
// background-triggered, goes through it; read paths apply any due background
// transition before returning.
type Engine interface {
	// Create inserts a new DRAFT request owned by the caller
	Create(ctx context.Context, actor identity.Actor, in CreateRequestInput) (*entity.Request, error)

	// Get returns one request, applying due background transitions first
	Get(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error)

	// List returns a page of requests plus the total match count
	List(ctx context.Context, actor identity.Actor, in ListRequestsInput) ([]*entity.Request, int, error)

	// Update edits a draft's fields; only the owner may call it
	Update(ctx context.Context, actor identity.Actor, id string, in UpdateRequestInput) (*entity.Request, error)

	// Delete removes a draft; only the owner may call it
	Delete(ctx context.Context, actor identity.Actor, id string) error

	// History returns the audit trail of a request, oldest first
	History(ctx context.Context, actor identity.Actor, id string) ([]*entity.StatusHistory, error)

	SubmitForReview(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error)
	Approve(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error)
	Reject(ctx context.Context, actor identity.Actor, id, reason string) (*entity.Request, error)
	SubmitForBidding(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error)
	Reactivate(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error)

	// Recommend marks one offer as the recommendation and returns the updated
	// request together with the request's offers
	Recommend(ctx context.Context, actor identity.Actor, id, offerID string) (*entity.Request, []*entity.Offer, error)

	SendToOrdering(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error)

	// PlaceOrder finalizes the request. An empty offerID falls back to the
	// recommended offer recorded on the request.
	PlaceOrder(ctx context.Context, actor identity.Actor, id, offerID string) (*entity.Request, *entity.PurchaseOrder, error)

	// Refresh applies any due background transition and returns the current
	// document. Read paths call it implicitly; the periodic sweep calls it
	// directly.
	Refresh(ctx context.Context, id string) (*entity.Request, error)
}
