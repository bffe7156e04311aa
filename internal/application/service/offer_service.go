package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/procurahq/procura/internal/application/dispatcher"
	"github.com/procurahq/procura/internal/application/engine"
	"github.com/procurahq/procura/internal/application/port"
	"github.com/procurahq/procura/internal/domain/entity"
	"github.com/procurahq/procura/internal/domain/event"
	"github.com/procurahq/procura/internal/domain/identity"
	"github.com/procurahq/procura/internal/domain/workflow"
	"github.com/procurahq/procura/pkg/utils"
)

// Logger is the small logging surface the services depend on.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SubmitOfferInput carries a provider's bid against a request.
type SubmitOfferInput struct {
	Price        float64           `json:"price"`
	Currency     string            `json:"currency"`
	DeliveryDays int               `json:"delivery_days"`
	Coverage     []entity.Coverage `json:"coverage"`
	Notes        string            `json:"notes"`
}

// OfferService handles offer submission and role-scoped listing. Offer
// status changes driven by recommend and place-order live in the lifecycle
// engine, not here.
type OfferService interface {
	SubmitOffer(ctx context.Context, actor identity.Actor, requestID string, in SubmitOfferInput) (*entity.Offer, error)
	ListOffers(ctx context.Context, actor identity.Actor, requestID string) ([]*entity.Offer, error)
}

type offerServiceImpl struct {
	offerRepo  port.OfferRepository
	engine     engine.Engine
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
}

// OfferServiceOption configures optional behavior of the offer service.
type OfferServiceOption func(*offerServiceImpl)

// WithOfferClock overrides the time source, mainly for tests.
func WithOfferClock(now func() time.Time) OfferServiceOption {
	return func(s *offerServiceImpl) {
		s.now = now
	}
}

// NewOfferService creates a new OfferService. The dispatcher may be nil when
// no event consumers are wired.
func NewOfferService(
	offerRepo port.OfferRepository,
	eng engine.Engine,
	d dispatcher.Dispatcher,
	logger Logger,
	opts ...OfferServiceOption,
) OfferService {
	s := &offerServiceImpl{
		offerRepo:  offerRepo,
		engine:     eng,
		dispatcher: d,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitOffer inserts a SUBMITTED offer while the parent request is still in
// its bidding window. The window is re-checked just before the insert, so an
// elapsed deadline rejects the offer rather than racing it, and the request
// is refreshed again afterwards so reaching the offer cap advances it to
// BID_EVALUATION without waiting for the next read.
func (s *offerServiceImpl) SubmitOffer(ctx context.Context, actor identity.Actor, requestID string, in SubmitOfferInput) (*entity.Offer, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if actor.Role != identity.RoleProvider {
		return nil, fmt.Errorf("%w: role %s cannot submit offers", workflow.ErrForbidden, actor.Role)
	}

	req, err := s.engine.Refresh(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != workflow.StateBidding {
		return nil, fmt.Errorf("%w: request is %s, offers are only accepted during BIDDING", workflow.ErrInvalidState, req.Status)
	}

	if err := validateOffer(in); err != nil {
		return nil, err
	}

	now := s.now()
	offer := &entity.Offer{
		ID:           uuid.NewString(),
		RequestID:    req.ID,
		Provider:     actor.User,
		Price:        in.Price,
		Currency:     strings.ToUpper(strings.TrimSpace(in.Currency)),
		DeliveryDays: in.DeliveryDays,
		Coverage:     in.Coverage,
		Notes:        in.Notes,
		Status:       entity.OfferSubmitted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if offer.Currency == "" {
		offer.Currency = entity.DefaultCurrency
	}

	if err := s.offerRepo.Create(ctx, offer); err != nil {
		s.logger.Error("Failed to store offer", "error", err, "request_id", req.ID, "provider", actor.User)
		return nil, fmt.Errorf("create offer: %w", err)
	}

	s.emit(ctx, event.New(event.TypeOfferSubmitted, req.ID, actor.User, map[string]interface{}{
		"offer_id": offer.ID,
		"provider": offer.Provider,
		"price":    offer.Price,
		"currency": offer.Currency,
		"title":    req.Title,
		"owner":    req.CreatedBy,
	}))

	// The insert may have been the one that hits the offer cap.
	if _, err := s.engine.Refresh(ctx, requestID); err != nil {
		s.logger.Error("Failed to refresh request after offer", "error", err, "request_id", req.ID)
	}

	s.logger.Info("Offer submitted",
		"offer_id", offer.ID,
		"request_id", req.ID,
		"provider", offer.Provider,
		"price", offer.Price,
	)
	return offer, nil
}

// ListOffers returns the offers visible to the caller. The request owner and
// the evaluating, ordering and reviewing roles see every offer; a provider
// sees only its own submissions.
func (s *offerServiceImpl) ListOffers(ctx context.Context, actor identity.Actor, requestID string) ([]*entity.Offer, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}

	req, err := s.engine.Refresh(ctx, requestID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case identity.RoleEvaluator, identity.RoleOrdering, identity.RoleReviewer, identity.RoleAdmin:
		return s.offerRepo.ListByRequestID(ctx, req.ID)
	case identity.RoleProvider:
		return s.offerRepo.ListByProvider(ctx, req.ID, actor.User)
	case identity.RoleInitiator:
		if req.CreatedBy == actor.User {
			return s.offerRepo.ListByRequestID(ctx, req.ID)
		}
	}
	return nil, fmt.Errorf("%w: offers of request %s are not visible to %s", workflow.ErrForbidden, req.ID, actor.User)
}

func (s *offerServiceImpl) emit(ctx context.Context, evt *event.Event) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.DispatchAsync(ctx, evt)
}

// validateOffer checks the structural requirements of a bid.
func validateOffer(in SubmitOfferInput) error {
	if in.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", workflow.ErrValidation)
	}
	if in.DeliveryDays < 0 {
		return fmt.Errorf("%w: delivery_days must not be negative", workflow.ErrValidation)
	}
	// Currency is optional, an empty value falls back to the default.
	if cur := strings.ToUpper(strings.TrimSpace(in.Currency)); cur != "" {
		if err := utils.ValidateCurrency(cur); err != nil {
			return fmt.Errorf("%w: %v", workflow.ErrValidation, err)
		}
	}
	if len(in.Coverage) == 0 {
		return fmt.Errorf("%w: coverage must not be empty", workflow.ErrValidation)
	}
	for _, c := range in.Coverage {
		if strings.TrimSpace(c.Role) == "" || c.Count <= 0 {
			return fmt.Errorf("%w: each coverage entry needs a role and a positive count", workflow.ErrValidation)
		}
	}
	return nil
}

// requireIdentity rejects calls without a usable caller assertion.
func requireIdentity(actor identity.Actor) error {
	if actor.User == "" || !actor.Role.IsValid() {
		return fmt.Errorf("%w: caller identity required", workflow.ErrUnauthenticated)
	}
	return nil
}
