package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/procurahq/procura/internal/application/dispatcher"
	"github.com/procurahq/procura/internal/application/port"
	"github.com/procurahq/procura/internal/domain/entity"
	"github.com/procurahq/procura/internal/domain/event"
	"github.com/procurahq/procura/internal/domain/identity"
	"github.com/procurahq/procura/internal/domain/workflow"
	"github.com/procurahq/procura/pkg/utils"
)

// Logger is the small logging surface the engine depends on.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	requestRepo port.RequestRepository
	offerRepo   port.OfferRepository
	poRepo      port.PurchaseOrderRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	logger      Logger

	defaultCycleDays int
	now              func() time.Time
}

// EngineOption configures the lifecycle engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting domain events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithNow overrides the engine's clock
func WithNow(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithDefaultBiddingCycleDays sets the cycle length applied when a new
// request does not carry its own
func WithDefaultBiddingCycleDays(days int) EngineOption {
	return func(e *engineImpl) {
		if days >= 0 {
			e.defaultCycleDays = days
		}
	}
}

// NewEngine creates a new request lifecycle engine
func NewEngine(
	requestRepo port.RequestRepository,
	offerRepo port.OfferRepository,
	poRepo port.PurchaseOrderRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		requestRepo:      requestRepo,
		offerRepo:        offerRepo,
		poRepo:           poRepo,
		historyRepo:      historyRepo,
		txManager:        txManager,
		logger:           logger,
		defaultCycleDays: entity.DefaultBiddingCycleDays,
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Create inserts a new DRAFT request owned by the caller
func (e *engineImpl) Create(ctx context.Context, actor identity.Actor, in CreateRequestInput) (*entity.Request, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if actor.Role != identity.RoleInitiator {
		return nil, fmt.Errorf("%w: role %s cannot create requests", workflow.ErrForbidden, actor.Role)
	}

	title := strings.TrimSpace(utils.SanitizeString(in.Title))
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", workflow.ErrValidation)
	}
	if in.MaxOffers < 0 {
		return nil, fmt.Errorf("%w: max_offers must not be negative", workflow.ErrValidation)
	}
	cycle := e.defaultCycleDays
	if in.BiddingCycleDays != nil {
		if *in.BiddingCycleDays < 0 {
			return nil, fmt.Errorf("%w: bidding_cycle_days must not be negative", workflow.ErrValidation)
		}
		cycle = *in.BiddingCycleDays
	}
	if err := utils.ValidateDateRange(in.Details.StartDate, in.Details.EndDate); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}

	now := e.now()
	req := &entity.Request{
		ID:               uuid.NewString(),
		Title:            title,
		Description:      in.Description,
		Details:          in.Details,
		Status:           workflow.StateDraft,
		CreatedBy:        actor.User,
		MaxOffers:        in.MaxOffers,
		BiddingCycleDays: cycle,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.requestRepo.Create(txCtx, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		history := &entity.StatusHistory{
			RequestID: req.ID,
			NewStatus: workflow.StateDraft,
			Action:    "CREATE",
			Actor:     actor.User,
			CreatedAt: now,
		}
		if err := e.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history: %w", err)
		}

		return nil
	})
	if err != nil {
		e.logger.Error("Failed to create request", "error", err, "created_by", actor.User)
		return nil, err
	}

	e.emit(ctx, event.New(event.TypeRequestCreated, req.ID, actor.User, map[string]interface{}{
		"title": req.Title,
	}))

	e.logger.Info("Request created", "request_id", req.ID, "created_by", actor.User)
	return req, nil
}

// Get returns one request, applying due background transitions first
func (e *engineImpl) Get(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	return e.Refresh(ctx, id)
}

// List returns a page of requests plus the total match count
func (e *engineImpl) List(ctx context.Context, actor identity.Actor, in ListRequestsInput) ([]*entity.Request, int, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, 0, err
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := in.Offset
	if offset < 0 {
		offset = 0
	}

	filter := port.RequestFilter{
		Status:    in.Status,
		CreatedBy: in.CreatedBy,
		Limit:     limit,
		Offset:    offset,
	}

	reqs, err := e.requestRepo.List(ctx, filter)
	if err != nil {
		e.logger.Error("Failed to list requests", "error", err)
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	total, err := e.requestRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	// Listing is a read, so each returned document gets its due background
	// transition applied. A failed check keeps the stored row as-is.
	for i := range reqs {
		refreshed, rerr := e.applyTimers(ctx, reqs[i])
		if rerr != nil {
			e.logger.Error("Background check failed", "error", rerr, "request_id", reqs[i].ID)
			continue
		}
		reqs[i] = refreshed
	}

	return reqs, total, nil
}

// Update edits a draft's fields; only the owner may call it
func (e *engineImpl) Update(ctx context.Context, actor identity.Actor, id string, in UpdateRequestInput) (*entity.Request, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}

	req, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := workflow.AuthorizeDraftEdit(req.Status, req.CreatedBy, actor); err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(utils.SanitizeString(*in.Title))
		if title == "" {
			return nil, fmt.Errorf("%w: title is required", workflow.ErrValidation)
		}
		req.Title = title
	}
	if in.Description != nil {
		req.Description = *in.Description
	}
	if in.Details != nil {
		if err := utils.ValidateDateRange(in.Details.StartDate, in.Details.EndDate); err != nil {
			return nil, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
		}
		req.Details = *in.Details
	}
	if in.MaxOffers != nil {
		if *in.MaxOffers < 0 {
			return nil, fmt.Errorf("%w: max_offers must not be negative", workflow.ErrValidation)
		}
		req.MaxOffers = *in.MaxOffers
	}
	if in.BiddingCycleDays != nil {
		if *in.BiddingCycleDays < 0 {
			return nil, fmt.Errorf("%w: bidding_cycle_days must not be negative", workflow.ErrValidation)
		}
		req.BiddingCycleDays = *in.BiddingCycleDays
	}
	req.UpdatedAt = e.now()

	if err := e.requestRepo.UpdateIfStatus(ctx, req, workflow.StateDraft); err != nil {
		e.logger.Error("Failed to update request", "error", err, "request_id", id)
		return nil, err
	}

	e.logger.Info("Request updated", "request_id", id, "updated_by", actor.User)
	return req, nil
}

// Delete removes a draft; only the owner may call it
func (e *engineImpl) Delete(ctx context.Context, actor identity.Actor, id string) error {
	if err := requireIdentity(actor); err != nil {
		return err
	}

	req, err := e.load(ctx, id)
	if err != nil {
		return err
	}
	if err := workflow.AuthorizeDraftEdit(req.Status, req.CreatedBy, actor); err != nil {
		return err
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := e.requestRepo.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("get request: %w", err)
		}
		if current == nil {
			return fmt.Errorf("%w: request %s", workflow.ErrNotFound, id)
		}
		if current.Status != workflow.StateDraft {
			return fmt.Errorf("%w: request left DRAFT before delete", workflow.ErrConflict)
		}
		if err := e.requestRepo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("delete request: %w", err)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("Failed to delete request", "error", err, "request_id", id)
		return err
	}

	e.logger.Info("Request deleted", "request_id", id, "deleted_by", actor.User)
	return nil
}

// History returns the audit trail of a request, oldest first
func (e *engineImpl) History(ctx context.Context, actor identity.Actor, id string) ([]*entity.StatusHistory, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if _, err := e.load(ctx, id); err != nil {
		return nil, err
	}

	entries, err := e.historyRepo.ListByRequestID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// SubmitForReview moves a draft into review
func (e *engineImpl) SubmitForReview(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error) {
	return e.fire(ctx, actor, id, transition{
		trigger: workflow.TriggerSubmitForReview,
		mutate: func(req *entity.Request, now time.Time) {
			req.SubmittedAt = &now
			req.SubmittedBy = actor.User
		},
	})
}

// Approve accepts a request under review
func (e *engineImpl) Approve(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error) {
	return e.fire(ctx, actor, id, transition{
		trigger: workflow.TriggerApprove,
		mutate: func(req *entity.Request, now time.Time) {
			req.ApprovedAt = &now
			req.ReviewedBy = actor.User
		},
	})
}

// Reject declines a request under review and records the reason
func (e *engineImpl) Reject(ctx context.Context, actor identity.Actor, id, reason string) (*entity.Request, error) {
	return e.fire(ctx, actor, id, transition{
		trigger: workflow.TriggerReject,
		note:    reason,
		mutate: func(req *entity.Request, now time.Time) {
			req.RejectedAt = &now
			req.ReviewedBy = actor.User
			req.RejectionReason = reason
		},
		payload: map[string]interface{}{"reason": reason},
	})
}

// SubmitForBidding opens the bidding window
func (e *engineImpl) SubmitForBidding(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error) {
	return e.fire(ctx, actor, id, transition{
		trigger: workflow.TriggerSubmitForBidding,
		mutate: func(req *entity.Request, now time.Time) {
			req.BiddingStartedAt = &now
		},
	})
}

// Reactivate returns an expired request to the pre-bidding state
func (e *engineImpl) Reactivate(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error) {
	return e.fire(ctx, actor, id, transition{
		trigger: workflow.TriggerReactivate,
		mutate: func(req *entity.Request, now time.Time) {
			req.ClearBiddingFields()
			req.ReactivatedAt = &now
			req.ReactivatedBy = actor.User
		},
	})
}

// Recommend marks one offer as the recommendation. A prior recommendation on
// the same request is demoted back to SUBMITTED in the same transaction.
func (e *engineImpl) Recommend(ctx context.Context, actor identity.Actor, id, offerID string) (*entity.Request, []*entity.Offer, error) {
	if strings.TrimSpace(offerID) == "" {
		return nil, nil, fmt.Errorf("%w: offer_id is required", workflow.ErrValidation)
	}

	payload := map[string]interface{}{"offer_id": offerID}
	req, err := e.fire(ctx, actor, id, transition{
		trigger: workflow.TriggerRecommend,
		guard: func(ctx context.Context, req *entity.Request) error {
			offer, err := e.offerRepo.GetByID(ctx, offerID)
			if err != nil {
				return fmt.Errorf("get offer: %w", err)
			}
			if offer == nil {
				return fmt.Errorf("%w: offer %s", workflow.ErrNotFound, offerID)
			}
			if offer.RequestID != req.ID {
				return fmt.Errorf("%w: offer %s does not belong to request %s", workflow.ErrInvalidState, offerID, req.ID)
			}
			if !offer.Status.Recommendable() {
				return fmt.Errorf("%w: offer %s is %s", workflow.ErrInvalidState, offerID, offer.Status)
			}
			payload["provider"] = offer.Provider
			return nil
		},
		mutate: func(req *entity.Request, now time.Time) {
			req.RecommendedOfferID = &offerID
			req.RecommendedAt = &now
			req.RecommendedBy = actor.User
		},
		inTx: func(txCtx context.Context, req *entity.Request) error {
			if err := e.offerRepo.DemoteRecommended(txCtx, req.ID, offerID); err != nil {
				return fmt.Errorf("demote offers: %w", err)
			}
			if err := e.offerRepo.UpdateStatus(txCtx, offerID, entity.OfferRecommended); err != nil {
				return fmt.Errorf("promote offer: %w", err)
			}
			return nil
		},
		payload: payload,
	})
	if err != nil {
		return nil, nil, err
	}

	offers, err := e.offerRepo.ListByRequestID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list offers: %w", err)
	}
	return req, offers, nil
}

// SendToOrdering hands the recommended request to the ordering role
func (e *engineImpl) SendToOrdering(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error) {
	return e.fire(ctx, actor, id, transition{
		trigger: workflow.TriggerSendToOrdering,
		mutate: func(req *entity.Request, now time.Time) {
			req.SentToOrderingAt = &now
			req.SentToOrderingBy = actor.User
		},
	})
}

// PlaceOrder finalizes the request: it snapshots the chosen offer into a
// purchase order, marks that offer ORDERED and moves the request to ORDERED.
// An empty offerID falls back to the recorded recommendation.
func (e *engineImpl) PlaceOrder(ctx context.Context, actor identity.Actor, id, offerID string) (*entity.Request, *entity.PurchaseOrder, error) {
	var chosen *entity.Offer
	var po *entity.PurchaseOrder
	payload := map[string]interface{}{}

	req, err := e.fire(ctx, actor, id, transition{
		trigger: workflow.TriggerPlaceOrder,
		guard: func(ctx context.Context, req *entity.Request) error {
			offer, err := e.resolveOrderOffer(ctx, req, offerID)
			if err != nil {
				return err
			}
			chosen = offer
			po = &entity.PurchaseOrder{
				ID:        uuid.NewString(),
				RequestID: req.ID,
				OfferID:   chosen.ID,
				OrderedBy: actor.User,
				Price:     chosen.Price,
				Currency:  chosen.Currency,
				Coverage:  chosen.Coverage,
				CreatedAt: e.now(),
			}
			payload["offer_id"] = chosen.ID
			payload["provider"] = chosen.Provider
			payload["purchase_order_id"] = po.ID
			return nil
		},
		mutate: func(req *entity.Request, now time.Time) {
			req.OrderedAt = &now
			req.OrderedBy = actor.User
			req.OrderID = &po.ID
		},
		inTx: func(txCtx context.Context, req *entity.Request) error {
			if err := e.poRepo.Create(txCtx, po); err != nil {
				return fmt.Errorf("create purchase order: %w", err)
			}
			if err := e.offerRepo.UpdateStatus(txCtx, po.OfferID, entity.OfferOrdered); err != nil {
				return fmt.Errorf("mark offer ordered: %w", err)
			}
			return nil
		},
		payload: payload,
	})
	if err != nil {
		return nil, nil, err
	}

	e.emit(ctx, event.New(event.TypeOrderPlaced, req.ID, actor.User, map[string]interface{}{
		"purchase_order_id": po.ID,
		"offer_id":          po.OfferID,
		"provider":          chosen.Provider,
		"price":             po.Price,
		"currency":          po.Currency,
	}))

	return req, po, nil
}

// Refresh applies any due background transition and returns the current
// document
func (e *engineImpl) Refresh(ctx context.Context, id string) (*entity.Request, error) {
	req, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.applyTimers(ctx, req)
}

// resolveOrderOffer picks the offer a purchase order is placed against: the
// explicitly named one, or the recorded recommendation
func (e *engineImpl) resolveOrderOffer(ctx context.Context, req *entity.Request, offerID string) (*entity.Offer, error) {
	if offerID == "" {
		if req.RecommendedOfferID == nil {
			return nil, fmt.Errorf("%w: request has no recommended offer", workflow.ErrInvalidState)
		}
		offerID = *req.RecommendedOfferID
	}

	offer, err := e.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("get offer: %w", err)
	}
	if offer == nil || offer.RequestID != req.ID {
		return nil, fmt.Errorf("%w: offer %s is not among the request's offers", workflow.ErrValidation, offerID)
	}
	return offer, nil
}

// transition describes one explicit lifecycle operation: the trigger to fire
// plus hooks that run once the transition is authorized and legal.
type transition struct {
	trigger workflow.Trigger
	// note is stored on the history row (e.g. a rejection reason)
	note string
	// guard may veto the transition after the state change is validated but
	// before anything is written
	guard func(ctx context.Context, req *entity.Request) error
	// mutate stamps transition fields on the request
	mutate func(req *entity.Request, now time.Time)
	// inTx runs extra writes inside the same transaction as the status update
	inTx func(txCtx context.Context, req *entity.Request) error
	// payload adds operation data to the emitted status-changed event
	payload map[string]interface{}
}

// fire runs one explicit transition end to end: load and refresh the request,
// authorize the caller, validate the state change, apply it, persist under a
// status precondition and emit the status-changed event after commit.
func (e *engineImpl) fire(ctx context.Context, actor identity.Actor, id string, tr transition) (*entity.Request, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}

	req, err := e.Refresh(ctx, id)
	if err != nil {
		return nil, err
	}

	rule, ok := workflow.RuleFor(tr.trigger)
	if !ok {
		return nil, fmt.Errorf("no rule for trigger %s", tr.trigger)
	}
	if err := workflow.Authorize(rule, req.CreatedBy, actor); err != nil {
		return nil, err
	}

	machine := BuildRequestStateMachine(req.Status)
	previous := req.Status
	if err := machine.Fire(tr.trigger); err != nil {
		return nil, err
	}

	if tr.guard != nil {
		if err := tr.guard(ctx, req); err != nil {
			return nil, err
		}
	}

	now := e.now()
	req.Status = machine.State()
	req.UpdatedAt = now
	if tr.mutate != nil {
		tr.mutate(req, now)
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.requestRepo.UpdateIfStatus(txCtx, req, previous); err != nil {
			return fmt.Errorf("update request: %w", err)
		}

		history := &entity.StatusHistory{
			RequestID:      req.ID,
			PreviousStatus: previous,
			NewStatus:      req.Status,
			Action:         tr.trigger.String(),
			Actor:          actor.User,
			Note:           tr.note,
			CreatedAt:      now,
		}
		if err := e.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history: %w", err)
		}

		if tr.inTx != nil {
			return tr.inTx(txCtx, req)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("Transition failed", "error", err, "request_id", id, "trigger", tr.trigger.String())
		return nil, err
	}

	payload := map[string]interface{}{
		"previous_status": previous.String(),
		"new_status":      req.Status.String(),
		"trigger":         tr.trigger.String(),
		"title":           req.Title,
		"owner":           req.CreatedBy,
	}
	for k, v := range tr.payload {
		payload[k] = v
	}
	e.emit(ctx, event.New(event.TypeStatusChanged, req.ID, actor.User, payload))

	e.logger.Info("Request transitioned",
		"request_id", req.ID,
		"from", previous.String(),
		"to", req.Status.String(),
		"trigger", tr.trigger.String(),
		"actor", actor.User)
	return req, nil
}

// applyTimers applies the two background checks to a loaded document. Expiry
// is evaluated before offer-count advancement, so a request whose window has
// closed expires even when enough offers arrived after the deadline.
func (e *engineImpl) applyTimers(ctx context.Context, req *entity.Request) (*entity.Request, error) {
	if req.Status != workflow.StateBidding {
		return req, nil
	}

	now := e.now()
	if req.MaybeExpire(now) {
		return e.applySystemTransition(ctx, req, workflow.StateBidding, workflow.TriggerExpire, event.TypeRequestExpired, nil)
	}

	count, err := e.offerRepo.CountByRequestID(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("count offers: %w", err)
	}
	if req.MaybeAutoAdvance(count, now) {
		return e.applySystemTransition(ctx, req, workflow.StateBidding, workflow.TriggerAdvanceToEvaluation, event.TypeEvaluationReady, map[string]interface{}{
			"offer_count": count,
		})
	}

	return req, nil
}

// applySystemTransition persists a background transition already applied to
// the in-memory document. Losing the status precondition is not an error
// here: some other writer advanced the request first and its version wins.
func (e *engineImpl) applySystemTransition(ctx context.Context, req *entity.Request, previous workflow.State, trigger workflow.Trigger, evtType event.Type, payload map[string]interface{}) (*entity.Request, error) {
	now := e.now()
	req.UpdatedAt = now

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.requestRepo.UpdateIfStatus(txCtx, req, previous); err != nil {
			return err
		}

		history := &entity.StatusHistory{
			RequestID:      req.ID,
			PreviousStatus: previous,
			NewStatus:      req.Status,
			Action:         trigger.String(),
			Actor:          identity.SystemActor,
			CreatedAt:      now,
		}
		return e.historyRepo.Create(txCtx, history)
	})
	if errors.Is(err, workflow.ErrConflict) {
		return e.load(ctx, req.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("apply %s: %w", trigger, err)
	}

	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["title"] = req.Title
	payload["owner"] = req.CreatedBy
	e.emit(ctx, event.New(evtType, req.ID, identity.SystemActor, payload))

	e.logger.Info("Background transition applied",
		"request_id", req.ID,
		"trigger", trigger.String(),
		"status", req.Status.String())
	return req, nil
}

// load fetches a request or reports NotFound
func (e *engineImpl) load(ctx context.Context, id string) (*entity.Request, error) {
	req, err := e.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: request %s", workflow.ErrNotFound, id)
	}
	return req, nil
}

// emit dispatches a domain event when a dispatcher is wired
func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}

// requireIdentity rejects calls without a usable caller assertion. Role and
// ownership checks are per-rule; this is the floor every operation shares.
func requireIdentity(actor identity.Actor) error {
	if actor.User == "" || !actor.Role.IsValid() {
		return fmt.Errorf("%w: caller identity required", workflow.ErrUnauthenticated)
	}
	return nil
}
