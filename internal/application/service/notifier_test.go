package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/procurahq/procura/internal/application/dispatcher"
	"github.com/procurahq/procura/internal/application/port"
	"github.com/procurahq/procura/internal/domain/entity"
	"github.com/procurahq/procura/internal/domain/event"
	"github.com/procurahq/procura/internal/domain/identity"
	"github.com/procurahq/procura/internal/domain/workflow"
)

type mockNotificationRepo struct {
	mu              sync.Mutex
	stored          []*entity.Notification
	seenKeys        map[string]bool
	createFunc      func(ctx context.Context, n *entity.Notification) (bool, error)
	listForUserFunc func(ctx context.Context, user string, roles []identity.Role, limit, offset int) ([]*entity.Notification, error)
	countUnreadFunc func(ctx context.Context, user string, roles []identity.Role) (int, error)
	markReadFunc    func(ctx context.Context, id string) error
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.Notification) (bool, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.DedupeKey != "" {
		if m.seenKeys == nil {
			m.seenKeys = make(map[string]bool)
		}
		if m.seenKeys[n.DedupeKey] {
			return false, nil
		}
		m.seenKeys[n.DedupeKey] = true
	}
	m.stored = append(m.stored, n)
	return true, nil
}

func (m *mockNotificationRepo) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.stored {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, nil
}

func (m *mockNotificationRepo) ListForUser(ctx context.Context, user string, roles []identity.Role, limit, offset int) ([]*entity.Notification, error) {
	if m.listForUserFunc != nil {
		return m.listForUserFunc(ctx, user, roles, limit, offset)
	}
	roleSet := make(map[identity.Role]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Notification
	for _, n := range m.stored {
		if n.Recipient == user || (n.RecipientRole != "" && roleSet[n.RecipientRole]) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, user string, roles []identity.Role) (int, error) {
	if m.countUnreadFunc != nil {
		return m.countUnreadFunc(ctx, user, roles)
	}
	all, _ := m.ListForUser(ctx, user, roles, 0, 0)
	count := 0
	for _, n := range all {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id string) error {
	if m.markReadFunc != nil {
		return m.markReadFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.stored {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return nil
}

func (m *mockNotificationRepo) byType(typ string) []*entity.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Notification
	for _, n := range m.stored {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

type mockChannel struct {
	mu       sync.Mutex
	sent     []port.Message
	sendFunc func(ctx context.Context, msg port.Message) error
}

func (c *mockChannel) Send(ctx context.Context, msg port.Message) error {
	if c.sendFunc != nil {
		return c.sendFunc(ctx, msg)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *mockChannel) Name() string {
	return "mock-channel"
}

func statusChangedEvent(requestID string, trigger workflow.Trigger, extra map[string]interface{}) *event.Event {
	payload := map[string]interface{}{
		"previous_status": "IN_REVIEW",
		"new_status":      "APPROVED_FOR_SUBMISSION",
		"trigger":         trigger.String(),
		"title":           "GPU servers",
		"owner":           "alice",
	}
	for k, v := range extra {
		payload[k] = v
	}
	return event.New(event.TypeStatusChanged, requestID, "someone", payload)
}

func TestNotifier_HandleStatusChanged(t *testing.T) {
	tests := []struct {
		name          string
		trigger       workflow.Trigger
		extra         map[string]interface{}
		wantCount     int
		wantType      string
		wantRecipient string
		wantRole      identity.Role
		wantInMessage string
	}{
		{
			name:      "submit for review alerts reviewers",
			trigger:   workflow.TriggerSubmitForReview,
			wantCount: 1,
			wantType:  entity.NotificationReviewRequested,
			wantRole:  identity.RoleReviewer,
		},
		{
			name:          "approval alerts the owner",
			trigger:       workflow.TriggerApprove,
			wantCount:     1,
			wantType:      entity.NotificationRequestApproved,
			wantRecipient: "alice",
		},
		{
			name:          "rejection carries the reason",
			trigger:       workflow.TriggerReject,
			extra:         map[string]interface{}{"reason": "budget exceeded"},
			wantCount:     1,
			wantType:      entity.NotificationRequestRejected,
			wantRecipient: "alice",
			wantInMessage: "budget exceeded",
		},
		{
			name:      "bidding start alerts providers",
			trigger:   workflow.TriggerSubmitForBidding,
			wantCount: 1,
			wantType:  entity.NotificationBiddingStarted,
			wantRole:  identity.RoleProvider,
		},
		{
			name:          "recommendation alerts the owner",
			trigger:       workflow.TriggerRecommend,
			extra:         map[string]interface{}{"offer_id": "offer-1", "provider": "vendor-a"},
			wantCount:     1,
			wantType:      entity.NotificationOfferRecommended,
			wantRecipient: "alice",
			wantInMessage: "vendor-a",
		},
		{
			name:      "send to ordering alerts the ordering role",
			trigger:   workflow.TriggerSendToOrdering,
			wantCount: 1,
			wantType:  entity.NotificationOrderRequested,
			wantRole:  identity.RoleOrdering,
		},
		{
			name:          "placed order alerts owner and winning provider",
			trigger:       workflow.TriggerPlaceOrder,
			extra:         map[string]interface{}{"provider": "vendor-b", "purchase_order_id": "po-1"},
			wantCount:     2,
			wantType:      entity.NotificationOrderPlaced,
			wantRecipient: "alice",
		},
		{
			name:          "reactivation alerts the owner",
			trigger:       workflow.TriggerReactivate,
			wantCount:     1,
			wantType:      entity.NotificationRequestReactivated,
			wantRecipient: "alice",
		},
		{
			name:      "background triggers produce nothing here",
			trigger:   workflow.TriggerExpire,
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockNotificationRepo{}
			n := NewNotifier(repo, &mockLogger{})

			err := n.HandleStatusChanged(context.Background(), statusChangedEvent("req-1", tt.trigger, tt.extra))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(repo.stored) != tt.wantCount {
				t.Fatalf("expected %d notifications, got %d", tt.wantCount, len(repo.stored))
			}
			if tt.wantCount == 0 {
				return
			}

			first := repo.stored[0]
			if first.Type != tt.wantType {
				t.Errorf("expected type %s, got %s", tt.wantType, first.Type)
			}
			if first.RequestID != "req-1" {
				t.Errorf("expected request ID req-1, got %s", first.RequestID)
			}
			if tt.wantRecipient != "" && first.Recipient != tt.wantRecipient {
				t.Errorf("expected recipient %s, got %s", tt.wantRecipient, first.Recipient)
			}
			if tt.wantRole != "" && first.RecipientRole != tt.wantRole {
				t.Errorf("expected recipient role %s, got %s", tt.wantRole, first.RecipientRole)
			}
			if tt.wantInMessage != "" && !strings.Contains(first.Message, tt.wantInMessage) {
				t.Errorf("expected message containing %q, got %q", tt.wantInMessage, first.Message)
			}
		})
	}
}

func TestNotifier_PlacedOrderNotifiesProvider(t *testing.T) {
	repo := &mockNotificationRepo{}
	n := NewNotifier(repo, &mockLogger{})

	evt := statusChangedEvent("req-1", workflow.TriggerPlaceOrder, map[string]interface{}{
		"provider":          "vendor-b",
		"purchase_order_id": "po-1",
	})
	if err := n.HandleStatusChanged(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	placed := repo.byType(entity.NotificationOrderPlaced)
	if len(placed) != 2 {
		t.Fatalf("expected 2 order-placed notifications, got %d", len(placed))
	}
	recipients := map[string]bool{}
	for _, notification := range placed {
		recipients[notification.Recipient] = true
	}
	if !recipients["alice"] || !recipients["vendor-b"] {
		t.Errorf("expected owner and winning provider notified, got %v", recipients)
	}
}

func TestNotifier_ExpiredNotificationDeduped(t *testing.T) {
	repo := &mockNotificationRepo{}
	n := NewNotifier(repo, &mockLogger{})

	evt := event.New(event.TypeRequestExpired, "req-1", identity.SystemActor, map[string]interface{}{
		"title": "GPU servers",
		"owner": "alice",
	})

	// Expiry can be detected by several readers; only one feed entry may
	// survive.
	for i := 0; i < 3; i++ {
		if err := n.HandleRequestExpired(context.Background(), evt); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	expired := repo.byType(entity.NotificationRequestExpired)
	if len(expired) != 1 {
		t.Fatalf("expected exactly 1 expired notification, got %d", len(expired))
	}
	if expired[0].DedupeKey != "req-1:EXPIRED" {
		t.Errorf("expected dedupe key req-1:EXPIRED, got %s", expired[0].DedupeKey)
	}
	if expired[0].Recipient != "alice" {
		t.Errorf("expected owner alice, got %s", expired[0].Recipient)
	}
}

func TestNotifier_EvaluationReadyFanout(t *testing.T) {
	repo := &mockNotificationRepo{}
	n := NewNotifier(repo, &mockLogger{})

	evt := event.New(event.TypeEvaluationReady, "req-1", identity.SystemActor, map[string]interface{}{
		"title":       "GPU servers",
		"owner":       "alice",
		"offer_count": 3,
	})

	for i := 0; i < 2; i++ {
		if err := n.HandleEvaluationReady(context.Background(), evt); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	ready := repo.byType(entity.NotificationEvaluationReady)
	if len(ready) != 2 {
		t.Fatalf("expected owner and evaluator notifications once each, got %d", len(ready))
	}

	var ownerSeen, evaluatorSeen bool
	for _, notification := range ready {
		switch {
		case notification.Recipient == "alice":
			ownerSeen = true
		case notification.RecipientRole == identity.RoleEvaluator:
			evaluatorSeen = true
		}
		if !strings.Contains(notification.Message, "3 offers") {
			t.Errorf("message %q does not carry the offer count", notification.Message)
		}
	}
	if !ownerSeen || !evaluatorSeen {
		t.Errorf("expected both audiences, got owner=%v evaluator=%v", ownerSeen, evaluatorSeen)
	}
}

func TestNotifier_OfferSubmitted(t *testing.T) {
	repo := &mockNotificationRepo{}
	n := NewNotifier(repo, &mockLogger{})

	evt := event.New(event.TypeOfferSubmitted, "req-1", "vendor-a", map[string]interface{}{
		"offer_id": "offer-1",
		"provider": "vendor-a",
		"title":    "GPU servers",
		"owner":    "alice",
	})
	if err := n.HandleOfferSubmitted(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	submitted := repo.byType(entity.NotificationOfferSubmitted)
	if len(submitted) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(submitted))
	}
	if submitted[0].Recipient != "alice" {
		t.Errorf("expected owner alice, got %s", submitted[0].Recipient)
	}
	if !strings.Contains(submitted[0].Message, "vendor-a") {
		t.Errorf("expected provider in message, got %q", submitted[0].Message)
	}
}

func TestNotifier_PushesToChannels(t *testing.T) {
	repo := &mockNotificationRepo{}
	ch := &mockChannel{}
	n := NewNotifier(repo, &mockLogger{}, WithChannels(ch))

	evt := statusChangedEvent("req-1", workflow.TriggerApprove, nil)
	if err := n.HandleStatusChanged(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ch.sent) != 1 {
		t.Fatalf("expected 1 pushed message, got %d", len(ch.sent))
	}
	if ch.sent[0].Recipient != "alice" {
		t.Errorf("expected recipient alice, got %s", ch.sent[0].Recipient)
	}
	if ch.sent[0].RequestID != "req-1" {
		t.Errorf("expected request ID req-1, got %s", ch.sent[0].RequestID)
	}
}

func TestNotifier_DedupedNotificationNotPushed(t *testing.T) {
	repo := &mockNotificationRepo{}
	ch := &mockChannel{}
	n := NewNotifier(repo, &mockLogger{}, WithChannels(ch))

	evt := event.New(event.TypeRequestExpired, "req-1", identity.SystemActor, map[string]interface{}{
		"title": "GPU servers",
		"owner": "alice",
	})
	for i := 0; i < 2; i++ {
		if err := n.HandleRequestExpired(context.Background(), evt); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(ch.sent) != 1 {
		t.Fatalf("expected the duplicate to be skipped, got %d pushes", len(ch.sent))
	}
}

func TestNotifier_FailuresAreSwallowed(t *testing.T) {
	t.Run("store failure", func(t *testing.T) {
		repo := &mockNotificationRepo{
			createFunc: func(ctx context.Context, n *entity.Notification) (bool, error) {
				return false, errors.New("db locked")
			},
		}
		n := NewNotifier(repo, &mockLogger{})

		if err := n.HandleStatusChanged(context.Background(), statusChangedEvent("req-1", workflow.TriggerApprove, nil)); err != nil {
			t.Fatalf("expected store failure to be swallowed, got %v", err)
		}
	})

	t.Run("channel failure", func(t *testing.T) {
		repo := &mockNotificationRepo{}
		ch := &mockChannel{
			sendFunc: func(ctx context.Context, msg port.Message) error {
				return errors.New("gateway timeout")
			},
		}
		n := NewNotifier(repo, &mockLogger{}, WithChannels(ch))

		if err := n.HandleStatusChanged(context.Background(), statusChangedEvent("req-1", workflow.TriggerApprove, nil)); err != nil {
			t.Fatalf("expected channel failure to be swallowed, got %v", err)
		}
		if len(repo.stored) != 1 {
			t.Fatalf("expected notification still stored, got %d", len(repo.stored))
		}
	})
}

func TestNotifier_Register(t *testing.T) {
	d := dispatcher.NewDispatcher()
	defer d.Close()

	n := NewNotifier(&mockNotificationRepo{}, &mockLogger{})
	n.Register(d)

	for _, typ := range []event.Type{
		event.TypeStatusChanged,
		event.TypeRequestExpired,
		event.TypeEvaluationReady,
		event.TypeOfferSubmitted,
	} {
		handlers := d.ListHandlers(typ)
		if len(handlers) != 1 {
			t.Errorf("expected 1 handler for %s, got %d", typ, len(handlers))
		}
	}
}

var _ port.NotificationRepository = (*mockNotificationRepo)(nil)
var _ port.MessageChannel = (*mockChannel)(nil)
