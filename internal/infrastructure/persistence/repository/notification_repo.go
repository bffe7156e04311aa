package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/procurahq/procura/internal/application/port"
	"github.com/procurahq/procura/internal/domain/entity"
	"github.com/procurahq/procura/internal/domain/identity"
	"github.com/procurahq/procura/internal/domain/workflow"
	"github.com/procurahq/procura/internal/infrastructure/persistence/sqlite"
)

const notificationColumns = `
	id, dedupe_key, recipient, recipient_role, type, title, message,
	request_id, is_read, created_at`

// NotificationRepository implements port.NotificationRepository on SQLite
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewNotificationRepository(db *sql.DB, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

// Create inserts a notification. A dedupe-key collision is absorbed by
// INSERT OR IGNORE against the UNIQUE index and reported as inserted=false,
// which is how repeated emissions of the same alert collapse to one row no
// matter how many writers race.
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) (bool, error) {
	query := `
		INSERT OR IGNORE INTO notifications (` + notificationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var dedupeKey interface{}
	if n.DedupeKey != "" {
		dedupeKey = n.DedupeKey
	}

	result, err := sqlite.From(ctx, r.db).ExecContext(ctx, query,
		n.ID,
		dedupeKey,
		n.Recipient,
		n.RecipientRole.String(),
		n.Type,
		n.Title,
		n.Message,
		n.RequestID,
		n.Read,
		n.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Notification insert failed",
			zap.String("request_id", n.RequestID),
			zap.String("type", n.Type),
			zap.Error(err))
		return false, fmt.Errorf("%w: create notification: %v", workflow.ErrUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: create notification: %v", workflow.ErrUnavailable, err)
	}

	return rows > 0, nil
}

// GetByID retrieves a notification by ID. A missing row is (nil, nil).
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`

	n, err := scanNotification(sqlite.From(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get notification", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: get notification: %v", workflow.ErrUnavailable, err)
	}

	return n, nil
}

// ListForUser retrieves the feed of a user: notifications addressed to them
// directly plus those addressed to any of the given roles, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, user string, roles []identity.Role, limit, offset int) ([]*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` + audienceClause(roles) +
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args := append(audienceArgs(user, roles), limit, offset)

	rows, err := sqlite.From(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.String("user", user), zap.Error(err))
		return nil, fmt.Errorf("%w: list notifications: %v", workflow.ErrUnavailable, err)
	}
	defer rows.Close()

	var notifications []*entity.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan notification: %v", workflow.ErrUnavailable, err)
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// CountUnread counts the unread part of a user's feed
func (r *NotificationRepository) CountUnread(ctx context.Context, user string, roles []identity.Role) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE (` + audienceClause(roles) + `) AND is_read = 0`

	var count int
	if err := sqlite.From(ctx, r.db).QueryRowContext(ctx, query, audienceArgs(user, roles)...).Scan(&count); err != nil {
		r.logger.Error("Failed to count unread notifications", zap.String("user", user), zap.Error(err))
		return 0, fmt.Errorf("%w: count unread notifications: %v", workflow.ErrUnavailable, err)
	}

	return count, nil
}

// MarkRead flags a notification as read
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	query := `UPDATE notifications SET is_read = 1 WHERE id = ?`

	result, err := sqlite.From(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to mark notification read", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("%w: mark notification read: %v", workflow.ErrUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: mark notification read: %v", workflow.ErrUnavailable, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: notification %s", workflow.ErrNotFound, id)
	}

	return nil
}

// audienceClause builds the recipient predicate for a user plus role list
func audienceClause(roles []identity.Role) string {
	if len(roles) == 0 {
		return `recipient = ?`
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(roles)), ", ")
	return `recipient = ? OR recipient_role IN (` + placeholders + `)`
}

func audienceArgs(user string, roles []identity.Role) []interface{} {
	args := []interface{}{user}
	for _, role := range roles {
		args = append(args, role.String())
	}
	return args
}

// scanNotification reads one row in notificationColumns order
func scanNotification(s rowScanner) (*entity.Notification, error) {
	var (
		n         entity.Notification
		dedupeKey sql.NullString
		role      string
	)

	err := s.Scan(
		&n.ID,
		&dedupeKey,
		&n.Recipient,
		&role,
		&n.Type,
		&n.Title,
		&n.Message,
		&n.RequestID,
		&n.Read,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.DedupeKey = dedupeKey.String
	n.RecipientRole = identity.Role(role)

	return &n, nil
}

var _ port.NotificationRepository = (*NotificationRepository)(nil)
