package service

import (
	"context"
	"fmt"

	"github.com/procurahq/procura/internal/application/port"
	"github.com/procurahq/procura/internal/domain/entity"
	"github.com/procurahq/procura/internal/domain/identity"
	"github.com/procurahq/procura/internal/domain/workflow"
)

const (
	defaultFeedPageSize = 20
	maxFeedPageSize     = 100
)

// NotificationService is the read side of the notification feed. A caller
// sees notifications addressed to them directly plus those addressed to
// their asserted role.
type NotificationService interface {
	List(ctx context.Context, actor identity.Actor, limit, offset int) ([]*entity.Notification, error)
	CountUnread(ctx context.Context, actor identity.Actor) (int, error)
	MarkRead(ctx context.Context, actor identity.Actor, id string) error
}

type notificationServiceImpl struct {
	notificationRepo port.NotificationRepository
	logger           Logger
}

func NewNotificationService(notificationRepo port.NotificationRepository, logger Logger) NotificationService {
	return &notificationServiceImpl{notificationRepo: notificationRepo, logger: logger}
}

// List returns the caller's notification feed, newest first.
func (s *notificationServiceImpl) List(ctx context.Context, actor identity.Actor, limit, offset int) ([]*entity.Notification, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultFeedPageSize
	}
	if limit > maxFeedPageSize {
		limit = maxFeedPageSize
	}
	if offset < 0 {
		offset = 0
	}

	notifications, err := s.notificationRepo.ListForUser(ctx, actor.User, s.audienceRoles(actor), limit, offset)
	if err != nil {
		s.logger.Error("Failed to list notifications", "error", err, "user", actor.User)
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// CountUnread returns how many notifications in the caller's feed are unread.
func (s *notificationServiceImpl) CountUnread(ctx context.Context, actor identity.Actor) (int, error) {
	if err := requireIdentity(actor); err != nil {
		return 0, err
	}

	count, err := s.notificationRepo.CountUnread(ctx, actor.User, s.audienceRoles(actor))
	if err != nil {
		s.logger.Error("Failed to count unread notifications", "error", err, "user", actor.User)
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one notification as read. Only a recipient of the
// notification, directly or through the addressed role, may mark it.
func (s *notificationServiceImpl) MarkRead(ctx context.Context, actor identity.Actor, id string) error {
	if err := requireIdentity(actor); err != nil {
		return err
	}

	notification, err := s.notificationRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get notification", "error", err, "notification_id", id)
		return fmt.Errorf("get notification: %w", err)
	}
	if notification == nil {
		return fmt.Errorf("%w: notification %s", workflow.ErrNotFound, id)
	}
	if !s.addressedTo(notification, actor) {
		return fmt.Errorf("%w: notification %s is not addressed to %s", workflow.ErrForbidden, id, actor.User)
	}

	if err := s.notificationRepo.MarkRead(ctx, id); err != nil {
		s.logger.Error("Failed to mark notification read", "error", err, "notification_id", id)
		return fmt.Errorf("mark notification read: %w", err)
	}

	s.logger.Info("Notification marked read", "notification_id", id, "user", actor.User)
	return nil
}

// audienceRoles lists the role audiences the caller belongs to. An admin
// reads every role-addressed notification.
func (s *notificationServiceImpl) audienceRoles(actor identity.Actor) []identity.Role {
	if actor.Role == identity.RoleAdmin {
		return []identity.Role{
			identity.RoleInitiator,
			identity.RoleReviewer,
			identity.RoleEvaluator,
			identity.RoleOrdering,
			identity.RoleProvider,
			identity.RoleAdmin,
		}
	}
	return []identity.Role{actor.Role}
}

func (s *notificationServiceImpl) addressedTo(n *entity.Notification, actor identity.Actor) bool {
	if n.Recipient != "" && n.Recipient == actor.User {
		return true
	}
	if n.RecipientRole != "" {
		if n.RecipientRole == actor.Role || actor.Role == identity.RoleAdmin {
			return true
		}
	}
	return false
}
