package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/procurahq/procura/internal/application/dispatcher"
	"github.com/procurahq/procura/internal/application/port"
	"github.com/procurahq/procura/internal/domain/entity"
	"github.com/procurahq/procura/internal/domain/event"
	"github.com/procurahq/procura/internal/domain/identity"
	"github.com/procurahq/procura/internal/domain/workflow"
)

// Notifier listens on the event dispatcher and turns lifecycle events into
// persisted notifications, optionally pushing each stored one to the
// configured message channels. Delivery is best-effort end to end: a failed
// insert or send is logged and never propagates back into the transition
// that produced the event.
type Notifier struct {
	notificationRepo port.NotificationRepository
	channels         []port.MessageChannel
	logger           Logger
	now              func() time.Time
}

// NotifierOption configures optional behavior of the notifier.
type NotifierOption func(*Notifier)

// WithChannels adds outbound message channels to push stored notifications to.
func WithChannels(channels ...port.MessageChannel) NotifierOption {
	return func(n *Notifier) {
		n.channels = append(n.channels, channels...)
	}
}

// WithNotifierClock overrides the time source, mainly for tests.
func WithNotifierClock(now func() time.Time) NotifierOption {
	return func(n *Notifier) {
		n.now = now
	}
}

// NewNotifier creates a new Notifier.
func NewNotifier(notificationRepo port.NotificationRepository, logger Logger, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		notificationRepo: notificationRepo,
		logger:           logger,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Register subscribes the notifier's handlers on the dispatcher.
func (n *Notifier) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeStatusChanged, "notify-status-changed", n.HandleStatusChanged)
	d.SubscribeNamed(event.TypeRequestExpired, "notify-request-expired", n.HandleRequestExpired)
	d.SubscribeNamed(event.TypeEvaluationReady, "notify-evaluation-ready", n.HandleEvaluationReady)
	d.SubscribeNamed(event.TypeOfferSubmitted, "notify-offer-submitted", n.HandleOfferSubmitted)
}

// HandleStatusChanged fans a user-driven transition out to the parties that
// have to act on or know about it.
func (n *Notifier) HandleStatusChanged(ctx context.Context, evt *event.Event) error {
	title := evt.PayloadString("title")
	owner := evt.PayloadString("owner")

	var notifications []*entity.Notification
	switch workflow.Trigger(evt.PayloadString("trigger")) {
	case workflow.TriggerSubmitForReview:
		notifications = append(notifications, n.roleNotification(identity.RoleReviewer,
			entity.NotificationReviewRequested,
			"Review requested",
			fmt.Sprintf("Request %q is awaiting review", title),
			evt.RequestID))
	case workflow.TriggerApprove:
		notifications = append(notifications, n.userNotification(owner,
			entity.NotificationRequestApproved,
			"Request approved",
			fmt.Sprintf("Request %q was approved and can be sent to bidding", title),
			evt.RequestID))
	case workflow.TriggerReject:
		message := fmt.Sprintf("Request %q was rejected", title)
		if reason := evt.PayloadString("reason"); reason != "" {
			message = fmt.Sprintf("Request %q was rejected: %s", title, reason)
		}
		notifications = append(notifications, n.userNotification(owner,
			entity.NotificationRequestRejected,
			"Request rejected",
			message,
			evt.RequestID))
	case workflow.TriggerSubmitForBidding:
		notifications = append(notifications, n.roleNotification(identity.RoleProvider,
			entity.NotificationBiddingStarted,
			"Bidding open",
			fmt.Sprintf("Request %q is open for offers", title),
			evt.RequestID))
	case workflow.TriggerRecommend:
		notifications = append(notifications, n.userNotification(owner,
			entity.NotificationOfferRecommended,
			"Offer recommended",
			fmt.Sprintf("An offer by %s was recommended for %q", evt.PayloadString("provider"), title),
			evt.RequestID))
	case workflow.TriggerSendToOrdering:
		notifications = append(notifications, n.roleNotification(identity.RoleOrdering,
			entity.NotificationOrderRequested,
			"Order requested",
			fmt.Sprintf("Request %q is ready for ordering", title),
			evt.RequestID))
	case workflow.TriggerPlaceOrder:
		notifications = append(notifications, n.userNotification(owner,
			entity.NotificationOrderPlaced,
			"Order placed",
			fmt.Sprintf("A purchase order was placed for %q", title),
			evt.RequestID))
		if provider := evt.PayloadString("provider"); provider != "" {
			notifications = append(notifications, n.userNotification(provider,
				entity.NotificationOrderPlaced,
				"Order placed",
				fmt.Sprintf("Your offer for %q was ordered", title),
				evt.RequestID))
		}
	case workflow.TriggerReactivate:
		notifications = append(notifications, n.userNotification(owner,
			entity.NotificationRequestReactivated,
			"Request reactivated",
			fmt.Sprintf("Request %q returned to the submission queue", title),
			evt.RequestID))
	default:
		return nil
	}

	n.deliver(ctx, notifications...)
	return nil
}

// HandleRequestExpired tells the owner the bidding window closed without an
// outcome. The dedupe key keeps repeated expiry detections down to a single
// notification per request.
func (n *Notifier) HandleRequestExpired(ctx context.Context, evt *event.Event) error {
	notification := n.userNotification(evt.PayloadString("owner"),
		entity.NotificationRequestExpired,
		"Bidding window expired",
		fmt.Sprintf("Request %q expired before collecting enough offers", evt.PayloadString("title")),
		evt.RequestID)
	notification.DedupeKey = evt.RequestID + ":EXPIRED"

	n.deliver(ctx, notification)
	return nil
}

// HandleEvaluationReady alerts the owner and the evaluating role that the
// offer cap was reached, once per recipient.
func (n *Notifier) HandleEvaluationReady(ctx context.Context, evt *event.Event) error {
	title := evt.PayloadString("title")
	owner := evt.PayloadString("owner")
	message := fmt.Sprintf("Request %q collected enough offers and is ready for evaluation", title)
	if count := evt.PayloadInt("offer_count"); count > 0 {
		message = fmt.Sprintf("Request %q collected %d offers and is ready for evaluation", title, count)
	}

	toOwner := n.userNotification(owner, entity.NotificationEvaluationReady, "Offers ready for evaluation", message, evt.RequestID)
	toOwner.DedupeKey = fmt.Sprintf("%s:BID_EVALUATION:%s", evt.RequestID, owner)

	toEvaluators := n.roleNotification(identity.RoleEvaluator, entity.NotificationEvaluationReady, "Offers ready for evaluation", message, evt.RequestID)
	toEvaluators.DedupeKey = fmt.Sprintf("%s:BID_EVALUATION:%s", evt.RequestID, identity.RoleEvaluator)

	n.deliver(ctx, toOwner, toEvaluators)
	return nil
}

// HandleOfferSubmitted tells the owner a new bid arrived.
func (n *Notifier) HandleOfferSubmitted(ctx context.Context, evt *event.Event) error {
	notification := n.userNotification(evt.PayloadString("owner"),
		entity.NotificationOfferSubmitted,
		"New offer",
		fmt.Sprintf("%s submitted an offer for %q", evt.PayloadString("provider"), evt.PayloadString("title")),
		evt.RequestID)

	n.deliver(ctx, notification)
	return nil
}

// deliver stores each notification and pushes the freshly inserted ones to
// the message channels. Dedupe-key collisions are silently skipped.
func (n *Notifier) deliver(ctx context.Context, notifications ...*entity.Notification) {
	for _, notification := range notifications {
		inserted, err := n.notificationRepo.Create(ctx, notification)
		if err != nil {
			n.logger.Error("Failed to store notification",
				"error", err,
				"request_id", notification.RequestID,
				"type", notification.Type)
			continue
		}
		if !inserted {
			continue
		}

		for _, ch := range n.channels {
			msg := port.Message{
				Recipient: notification.Recipient,
				Title:     notification.Title,
				Body:      notification.Message,
				RequestID: notification.RequestID,
			}
			if msg.Recipient == "" {
				msg.Recipient = notification.RecipientRole.String()
			}
			if err := ch.Send(ctx, msg); err != nil {
				n.logger.Error("Failed to push notification",
					"error", err,
					"channel", ch.Name(),
					"recipient", msg.Recipient,
					"type", notification.Type)
			}
		}

		n.logger.Info("Notification stored",
			"notification_id", notification.ID,
			"request_id", notification.RequestID,
			"type", notification.Type,
			"recipient", notification.Recipient,
			"recipient_role", notification.RecipientRole.String(),
		)
	}
}

func (n *Notifier) userNotification(recipient, typ, title, message, requestID string) *entity.Notification {
	return &entity.Notification{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Type:      typ,
		Title:     title,
		Message:   message,
		RequestID: requestID,
		CreatedAt: n.now(),
	}
}

func (n *Notifier) roleNotification(role identity.Role, typ, title, message, requestID string) *entity.Notification {
	return &entity.Notification{
		ID:            uuid.NewString(),
		RecipientRole: role,
		Type:          typ,
		Title:         title,
		Message:       message,
		RequestID:     requestID,
		CreatedAt:     n.now(),
	}
}
