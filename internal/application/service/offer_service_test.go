package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/procurahq/procura/internal/application/dispatcher"
	"github.com/procurahq/procura/internal/application/engine"
	"github.com/procurahq/procura/internal/application/port"
	"github.com/procurahq/procura/internal/domain/entity"
	"github.com/procurahq/procura/internal/domain/event"
	"github.com/procurahq/procura/internal/domain/identity"
	"github.com/procurahq/procura/internal/domain/workflow"
)

// Mock dependencies

type mockOfferRepo struct {
	mu                  sync.Mutex
	created             []*entity.Offer
	createFunc          func(ctx context.Context, offer *entity.Offer) error
	listByRequestIDFunc func(ctx context.Context, requestID string) ([]*entity.Offer, error)
	listByProviderFunc  func(ctx context.Context, requestID, provider string) ([]*entity.Offer, error)
}

func (m *mockOfferRepo) Create(ctx context.Context, offer *entity.Offer) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, offer)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, offer)
	return nil
}

func (m *mockOfferRepo) GetByID(ctx context.Context, id string) (*entity.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.created {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, nil
}

func (m *mockOfferRepo) ListByRequestID(ctx context.Context, requestID string) ([]*entity.Offer, error) {
	if m.listByRequestIDFunc != nil {
		return m.listByRequestIDFunc(ctx, requestID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Offer
	for _, o := range m.created {
		if o.RequestID == requestID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOfferRepo) ListByProvider(ctx context.Context, requestID, provider string) ([]*entity.Offer, error) {
	if m.listByProviderFunc != nil {
		return m.listByProviderFunc(ctx, requestID, provider)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Offer
	for _, o := range m.created {
		if o.RequestID == requestID && o.Provider == provider {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOfferRepo) CountByRequestID(ctx context.Context, requestID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, o := range m.created {
		if o.RequestID == requestID {
			count++
		}
	}
	return count, nil
}

func (m *mockOfferRepo) UpdateStatus(ctx context.Context, id string, status entity.OfferStatus) error {
	return nil
}

func (m *mockOfferRepo) DemoteRecommended(ctx context.Context, requestID, keepID string) error {
	return nil
}

// mockEngine satisfies engine.Engine; only Refresh matters to the offer
// service, the rest return zero values.
type mockEngine struct {
	refreshFunc  func(ctx context.Context, id string) (*entity.Request, error)
	refreshCalls int
}

func (m *mockEngine) Refresh(ctx context.Context, id string) (*entity.Request, error) {
	m.refreshCalls++
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx, id)
	}
	return &entity.Request{
		ID:        id,
		Title:     "GPU servers",
		Status:    workflow.StateBidding,
		CreatedBy: "alice",
	}, nil
}

func (m *mockEngine) Create(ctx context.Context, actor identity.Actor, in engine.CreateRequestInput) (*entity.Request, error) {
	return nil, nil
}

func (m *mockEngine) Get(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error) {
	return nil, nil
}

func (m *mockEngine) List(ctx context.Context, actor identity.Actor, in engine.ListRequestsInput) ([]*entity.Request, int, error) {
	return nil, 0, nil
}

func (m *mockEngine) Update(ctx context.Context, actor identity.Actor, id string, in engine.UpdateRequestInput) (*entity.Request, error) {
	return nil, nil
}

func (m *mockEngine) Delete(ctx context.Context, actor identity.Actor, id string) error {
	return nil
}

func (m *mockEngine) History(ctx context.Context, actor identity.Actor, id string) ([]*entity.StatusHistory, error) {
	return nil, nil
}

func (m *mockEngine) SubmitForReview(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error) {
	return nil, nil
}

func (m *mockEngine) Approve(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error) {
	return nil, nil
}

func (m *mockEngine) Reject(ctx context.Context, actor identity.Actor, id, reason string) (*entity.Request, error) {
	return nil, nil
}

func (m *mockEngine) SubmitForBidding(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error) {
	return nil, nil
}

func (m *mockEngine) Reactivate(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error) {
	return nil, nil
}

func (m *mockEngine) Recommend(ctx context.Context, actor identity.Actor, id, offerID string) (*entity.Request, []*entity.Offer, error) {
	return nil, nil, nil
}

func (m *mockEngine) SendToOrdering(ctx context.Context, actor identity.Actor, id string) (*entity.Request, error) {
	return nil, nil
}

func (m *mockEngine) PlaceOrder(ctx context.Context, actor identity.Actor, id, offerID string) (*entity.Request, *entity.PurchaseOrder, error) {
	return nil, nil, nil
}

// mockDispatcher records dispatched events synchronously.
type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler)              {}
func (m *mockDispatcher) SubscribeNamed(t event.Type, name string, handler dispatcher.Handler)    {}
func (m *mockDispatcher) Unsubscribe(eventType event.Type, name string)                           {}
func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo              { return nil }
func (m *mockDispatcher) Close() error                                                           { return nil }

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) byType(t event.Type) []*event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*event.Event
	for _, evt := range m.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

func validCoverage() []entity.Coverage {
	return []entity.Coverage{{Role: "developer", Count: 2}}
}

func TestOfferService_SubmitOffer(t *testing.T) {
	provider := identity.Actor{User: "vendor-a", Role: identity.RoleProvider}

	tests := []struct {
		name        string
		actor       identity.Actor
		in          SubmitOfferInput
		refreshFunc func(ctx context.Context, id string) (*entity.Request, error)
		createFunc  func(ctx context.Context, offer *entity.Offer) error
		wantErr     error
	}{
		{
			name:  "provider submits during bidding",
			actor: provider,
			in:    SubmitOfferInput{Price: 1200, Currency: "eur", DeliveryDays: 14, Coverage: validCoverage()},
		},
		{
			name:    "initiator cannot submit",
			actor:   identity.Actor{User: "alice", Role: identity.RoleInitiator},
			in:      SubmitOfferInput{Price: 1200, Coverage: validCoverage()},
			wantErr: workflow.ErrForbidden,
		},
		{
			name:    "missing identity",
			actor:   identity.Actor{},
			in:      SubmitOfferInput{Price: 1200, Coverage: validCoverage()},
			wantErr: workflow.ErrUnauthenticated,
		},
		{
			name:  "request no longer bidding",
			actor: provider,
			in:    SubmitOfferInput{Price: 1200, Coverage: validCoverage()},
			refreshFunc: func(ctx context.Context, id string) (*entity.Request, error) {
				return &entity.Request{ID: id, Status: workflow.StateBidEvaluation, CreatedBy: "alice"}, nil
			},
			wantErr: workflow.ErrInvalidState,
		},
		{
			name:  "window already expired",
			actor: provider,
			in:    SubmitOfferInput{Price: 1200, Coverage: validCoverage()},
			refreshFunc: func(ctx context.Context, id string) (*entity.Request, error) {
				return &entity.Request{ID: id, Status: workflow.StateExpired, CreatedBy: "alice"}, nil
			},
			wantErr: workflow.ErrInvalidState,
		},
		{
			name:  "unknown request",
			actor: provider,
			in:    SubmitOfferInput{Price: 1200, Coverage: validCoverage()},
			refreshFunc: func(ctx context.Context, id string) (*entity.Request, error) {
				return nil, workflow.ErrNotFound
			},
			wantErr: workflow.ErrNotFound,
		},
		{
			name:    "zero price",
			actor:   provider,
			in:      SubmitOfferInput{Price: 0, Coverage: validCoverage()},
			wantErr: workflow.ErrValidation,
		},
		{
			name:    "negative delivery days",
			actor:   provider,
			in:      SubmitOfferInput{Price: 900, DeliveryDays: -1, Coverage: validCoverage()},
			wantErr: workflow.ErrValidation,
		},
		{
			name:    "empty coverage",
			actor:   provider,
			in:      SubmitOfferInput{Price: 900, Coverage: nil},
			wantErr: workflow.ErrValidation,
		},
		{
			name:    "coverage entry without role",
			actor:   provider,
			in:      SubmitOfferInput{Price: 900, Coverage: []entity.Coverage{{Role: "  ", Count: 1}}},
			wantErr: workflow.ErrValidation,
		},
		{
			name:    "coverage entry with zero count",
			actor:   provider,
			in:      SubmitOfferInput{Price: 900, Coverage: []entity.Coverage{{Role: "tester", Count: 0}}},
			wantErr: workflow.ErrValidation,
		},
		{
			name:    "malformed currency code",
			actor:   provider,
			in:      SubmitOfferInput{Price: 900, Currency: "EURO", Coverage: validCoverage()},
			wantErr: workflow.ErrValidation,
		},
		{
			name:  "store failure",
			actor: provider,
			in:    SubmitOfferInput{Price: 900, Coverage: validCoverage()},
			createFunc: func(ctx context.Context, offer *entity.Offer) error {
				return errors.New("disk full")
			},
			wantErr: errors.New("disk full"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offerRepo := &mockOfferRepo{createFunc: tt.createFunc}
			eng := &mockEngine{refreshFunc: tt.refreshFunc}
			d := &mockDispatcher{}
			svc := NewOfferService(offerRepo, eng, d, &mockLogger{})

			offer, err := svc.SubmitOffer(context.Background(), tt.actor, "req-1", tt.in)

			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("expected error %v, got nil", tt.wantErr)
				}
				var sentinel = tt.wantErr
				if errors.Is(sentinel, workflow.ErrForbidden) ||
					errors.Is(sentinel, workflow.ErrUnauthenticated) ||
					errors.Is(sentinel, workflow.ErrInvalidState) ||
					errors.Is(sentinel, workflow.ErrNotFound) ||
					errors.Is(sentinel, workflow.ErrValidation) {
					if !errors.Is(err, sentinel) {
						t.Fatalf("expected %v, got %v", sentinel, err)
					}
				} else if !strings.Contains(err.Error(), sentinel.Error()) {
					t.Fatalf("expected error containing %q, got %v", sentinel.Error(), err)
				}
				if got := d.byType(event.TypeOfferSubmitted); len(got) != 0 {
					t.Fatalf("expected no offer.submitted event on failure, got %d", len(got))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if offer.ID == "" {
				t.Error("expected generated offer ID")
			}
			if offer.RequestID != "req-1" {
				t.Errorf("expected request ID req-1, got %s", offer.RequestID)
			}
			if offer.Provider != tt.actor.User {
				t.Errorf("expected provider %s, got %s", tt.actor.User, offer.Provider)
			}
			if offer.Status != entity.OfferSubmitted {
				t.Errorf("expected status SUBMITTED, got %s", offer.Status)
			}
			if offer.Currency != "EUR" {
				t.Errorf("expected currency folded to EUR, got %s", offer.Currency)
			}
			if len(offerRepo.created) != 1 {
				t.Fatalf("expected 1 stored offer, got %d", len(offerRepo.created))
			}

			events := d.byType(event.TypeOfferSubmitted)
			if len(events) != 1 {
				t.Fatalf("expected 1 offer.submitted event, got %d", len(events))
			}
			if got := events[0].PayloadString("provider"); got != tt.actor.User {
				t.Errorf("expected event provider %s, got %s", tt.actor.User, got)
			}
			if got := events[0].PayloadString("owner"); got != "alice" {
				t.Errorf("expected event owner alice, got %s", got)
			}

			// One refresh before the insert, one after.
			if eng.refreshCalls != 2 {
				t.Errorf("expected 2 refresh calls, got %d", eng.refreshCalls)
			}
		})
	}
}

func TestOfferService_SubmitOfferDefaultsCurrency(t *testing.T) {
	offerRepo := &mockOfferRepo{}
	svc := NewOfferService(offerRepo, &mockEngine{}, &mockDispatcher{}, &mockLogger{})
	actor := identity.Actor{User: "vendor-a", Role: identity.RoleProvider}

	offer, err := svc.SubmitOffer(context.Background(), actor, "req-1", SubmitOfferInput{
		Price:    500,
		Coverage: validCoverage(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if offer.Currency != entity.DefaultCurrency {
		t.Errorf("expected default currency %s, got %s", entity.DefaultCurrency, offer.Currency)
	}
}

func TestOfferService_SubmitOfferRefreshesForAutoAdvance(t *testing.T) {
	// The post-insert refresh is what promotes the request when this offer
	// was the one hitting the cap.
	statuses := []workflow.State{workflow.StateBidding, workflow.StateBidEvaluation}
	calls := 0
	eng := &mockEngine{
		refreshFunc: func(ctx context.Context, id string) (*entity.Request, error) {
			status := statuses[calls]
			calls++
			return &entity.Request{ID: id, Title: "GPU servers", Status: status, CreatedBy: "alice"}, nil
		},
	}
	offerRepo := &mockOfferRepo{}
	svc := NewOfferService(offerRepo, eng, &mockDispatcher{}, &mockLogger{})

	_, err := svc.SubmitOffer(context.Background(), identity.Actor{User: "vendor-a", Role: identity.RoleProvider}, "req-1", SubmitOfferInput{
		Price:    750,
		Coverage: validCoverage(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected the engine to be refreshed again after the insert, got %d calls", calls)
	}
	if len(offerRepo.created) != 1 {
		t.Fatalf("expected the offer stored before the second refresh, got %d", len(offerRepo.created))
	}
}

func TestOfferService_ListOffers(t *testing.T) {
	seed := func(repo *mockOfferRepo) {
		now := time.Now()
		repo.created = []*entity.Offer{
			{ID: "offer-1", RequestID: "req-1", Provider: "vendor-a", Status: entity.OfferSubmitted, CreatedAt: now},
			{ID: "offer-2", RequestID: "req-1", Provider: "vendor-b", Status: entity.OfferSubmitted, CreatedAt: now},
			{ID: "offer-3", RequestID: "req-2", Provider: "vendor-a", Status: entity.OfferSubmitted, CreatedAt: now},
		}
	}

	tests := []struct {
		name      string
		actor     identity.Actor
		wantIDs   []string
		wantErr   error
	}{
		{
			name:    "owner sees all offers",
			actor:   identity.Actor{User: "alice", Role: identity.RoleInitiator},
			wantIDs: []string{"offer-1", "offer-2"},
		},
		{
			name:    "evaluator sees all offers",
			actor:   identity.Actor{User: "eve", Role: identity.RoleEvaluator},
			wantIDs: []string{"offer-1", "offer-2"},
		},
		{
			name:    "ordering sees all offers",
			actor:   identity.Actor{User: "omar", Role: identity.RoleOrdering},
			wantIDs: []string{"offer-1", "offer-2"},
		},
		{
			name:    "reviewer sees all offers",
			actor:   identity.Actor{User: "rhonda", Role: identity.RoleReviewer},
			wantIDs: []string{"offer-1", "offer-2"},
		},
		{
			name:    "admin sees all offers",
			actor:   identity.Actor{User: "root", Role: identity.RoleAdmin},
			wantIDs: []string{"offer-1", "offer-2"},
		},
		{
			name:    "provider sees only its own offers",
			actor:   identity.Actor{User: "vendor-a", Role: identity.RoleProvider},
			wantIDs: []string{"offer-1"},
		},
		{
			name:    "provider without offers sees empty list",
			actor:   identity.Actor{User: "vendor-c", Role: identity.RoleProvider},
			wantIDs: nil,
		},
		{
			name:    "non-owner initiator is rejected",
			actor:   identity.Actor{User: "bob", Role: identity.RoleInitiator},
			wantErr: workflow.ErrForbidden,
		},
		{
			name:    "missing identity",
			actor:   identity.Actor{},
			wantErr: workflow.ErrUnauthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offerRepo := &mockOfferRepo{}
			seed(offerRepo)
			svc := NewOfferService(offerRepo, &mockEngine{}, &mockDispatcher{}, &mockLogger{})

			offers, err := svc.ListOffers(context.Background(), tt.actor, "req-1")

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(offers) != len(tt.wantIDs) {
				t.Fatalf("expected %d offers, got %d", len(tt.wantIDs), len(offers))
			}
			for i, id := range tt.wantIDs {
				if offers[i].ID != id {
					t.Errorf("offer %d: expected %s, got %s", i, id, offers[i].ID)
				}
			}
		})
	}
}

func TestOfferService_ListOffersUnknownRequest(t *testing.T) {
	eng := &mockEngine{
		refreshFunc: func(ctx context.Context, id string) (*entity.Request, error) {
			return nil, workflow.ErrNotFound
		},
	}
	svc := NewOfferService(&mockOfferRepo{}, eng, &mockDispatcher{}, &mockLogger{})

	_, err := svc.ListOffers(context.Background(), identity.Actor{User: "eve", Role: identity.RoleEvaluator}, "ghost")
	if !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

var _ port.OfferRepository = (*mockOfferRepo)(nil)
var _ engine.Engine = (*mockEngine)(nil)
var _ dispatcher.Dispatcher = (*mockDispatcher)(nil)
