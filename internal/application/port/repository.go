package port

import (
	"context"

	"github.com/procurahq/procura/internal/domain/entity"
	"github.com/procurahq/procura/internal/domain/identity"
	"github.com/procurahq/procura/internal/domain/workflow"
)

// RequestFilter narrows List queries
type RequestFilter struct {
	Status    *workflow.State
	CreatedBy string
	Limit     int
	Offset    int
}

// RequestRepository defines persistence operations for Request.
// UpdateIfStatus is the only way a status mutation reaches the store: it
// writes the full document guarded by the expected prior status and returns
// workflow.ErrConflict when the precondition no longer holds.
type RequestRepository interface {
	Create(ctx context.Context, req *entity.Request) error
	GetByID(ctx context.Context, id string) (*entity.Request, error)
	List(ctx context.Context, filter RequestFilter) ([]*entity.Request, error)
	Count(ctx context.Context, filter RequestFilter) (int, error)
	Update(ctx context.Context, req *entity.Request) error
	UpdateIfStatus(ctx context.Context, req *entity.Request, expected workflow.State) error
	Delete(ctx context.Context, id string) error
}

// OfferRepository defines persistence operations for Offer
type OfferRepository interface {
	Create(ctx context.Context, offer *entity.Offer) error
	GetByID(ctx context.Context, id string) (*entity.Offer, error)
	ListByRequestID(ctx context.Context, requestID string) ([]*entity.Offer, error)
	ListByProvider(ctx context.Context, requestID, provider string) ([]*entity.Offer, error)
	CountByRequestID(ctx context.Context, requestID string) (int, error)
	UpdateStatus(ctx context.Context, id string, status entity.OfferStatus) error
	// DemoteRecommended resets every RECOMMENDED offer of the request except
	// keepID back to SUBMITTED, healing any stray double-recommendation.
	DemoteRecommended(ctx context.Context, requestID, keepID string) error
}

// PurchaseOrderRepository defines persistence operations for PurchaseOrder.
// Purchase orders are immutable; the only post-insert write is attaching the
// generated document path.
type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *entity.PurchaseOrder) error
	GetByID(ctx context.Context, id string) (*entity.PurchaseOrder, error)
	GetByRequestID(ctx context.Context, requestID string) (*entity.PurchaseOrder, error)
	SetDocumentPath(ctx context.Context, id, path string) error
}

// NotificationRepository defines persistence operations for Notification.
// Create reports whether a row was actually inserted: a dedupe-key collision
// is absorbed by the store and surfaces as inserted=false, not an error.
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) (inserted bool, err error)
	GetByID(ctx context.Context, id string) (*entity.Notification, error)
	ListForUser(ctx context.Context, user string, roles []identity.Role, limit, offset int) ([]*entity.Notification, error)
	CountUnread(ctx context.Context, user string, roles []identity.Role) (int, error)
	MarkRead(ctx context.Context, id string) error
}

// HistoryRepository defines persistence operations for StatusHistory
type HistoryRepository interface {
	Create(ctx context.Context, h *entity.StatusHistory) error
	ListByRequestID(ctx context.Context, requestID string) ([]*entity.StatusHistory, error)
}

// TransactionManager runs a function inside one database transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
