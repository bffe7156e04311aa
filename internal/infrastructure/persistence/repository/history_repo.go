package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/procurahq/procura/internal/application/port"
	"github.com/procurahq/procura/internal/domain/entity"
	"github.com/procurahq/procura/internal/domain/workflow"
	"github.com/procurahq/procura/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository on SQLite
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewHistoryRepository(db *sql.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Create appends one audit trail row
func (r *HistoryRepository) Create(ctx context.Context, h *entity.StatusHistory) error {
	query := `
		INSERT INTO status_history (
			request_id, previous_status, new_status, action, actor, note, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.From(ctx, r.db).ExecContext(ctx, query,
		h.RequestID,
		h.PreviousStatus.String(),
		h.NewStatus.String(),
		h.Action,
		h.Actor,
		h.Note,
		h.CreatedAt,
	)
	if err != nil {
		r.logger.Error("History insert failed",
			zap.String("request_id", h.RequestID),
			zap.String("action", h.Action),
			zap.Error(err))
		return fmt.Errorf("%w: create history: %v", workflow.ErrUnavailable, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: create history: %v", workflow.ErrUnavailable, err)
	}

	h.ID = id
	return nil
}

// ListByRequestID retrieves the audit trail of a request, oldest first
func (r *HistoryRepository) ListByRequestID(ctx context.Context, requestID string) ([]*entity.StatusHistory, error) {
	query := `
		SELECT id, request_id, previous_status, new_status, action, actor, note, created_at
		FROM status_history
		WHERE request_id = ?
		ORDER BY created_at, id
	`

	rows, err := sqlite.From(ctx, r.db).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to list history", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("%w: list history: %v", workflow.ErrUnavailable, err)
	}
	defer rows.Close()

	var entries []*entity.StatusHistory
	for rows.Next() {
		var (
			h              entity.StatusHistory
			previousStatus string
			newStatus      string
		)
		err := rows.Scan(
			&h.ID,
			&h.RequestID,
			&previousStatus,
			&newStatus,
			&h.Action,
			&h.Actor,
			&h.Note,
			&h.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scan history: %v", workflow.ErrUnavailable, err)
		}
		h.PreviousStatus = workflow.State(previousStatus)
		h.NewStatus = workflow.State(newStatus)
		entries = append(entries, &h)
	}

	return entries, rows.Err()
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
