package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/procurahq/procura/internal/application/port"
	"github.com/procurahq/procura/internal/domain/entity"
	"github.com/procurahq/procura/internal/domain/workflow"
	"github.com/procurahq/procura/internal/infrastructure/persistence/sqlite"
)

// requestColumns is the canonical column list every request SELECT uses, in
// the order scanRequest consumes them.
const requestColumns = `
	id, title, description, details, status, created_by,
	max_offers, bidding_cycle_days, rejection_reason,
	recommended_offer_id, order_id,
	submitted_at, submitted_by, approved_at, rejected_at, reviewed_by,
	bidding_started_at, bid_evaluation_at,
	recommended_at, recommended_by,
	sent_to_ordering_at, sent_to_ordering_by,
	ordered_at, ordered_by, expired_at,
	reactivated_at, reactivated_by,
	created_at, updated_at`

// RequestRepository implements port.RequestRepository on SQLite
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewRequestRepository(db *sql.DB, logger *zap.Logger) *RequestRepository {
	return &RequestRepository{db: db, logger: logger}
}

// Create inserts a new request
func (r *RequestRepository) Create(ctx context.Context, req *entity.Request) error {
	details, err := json.Marshal(req.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	query := `
		INSERT INTO requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = sqlite.From(ctx, r.db).ExecContext(ctx, query,
		req.ID,
		req.Title,
		req.Description,
		string(details),
		req.Status.String(),
		req.CreatedBy,
		req.MaxOffers,
		req.BiddingCycleDays,
		req.RejectionReason,
		nullString(req.RecommendedOfferID),
		nullString(req.OrderID),
		nullTime(req.SubmittedAt),
		req.SubmittedBy,
		nullTime(req.ApprovedAt),
		nullTime(req.RejectedAt),
		req.ReviewedBy,
		nullTime(req.BiddingStartedAt),
		nullTime(req.BidEvaluationAt),
		nullTime(req.RecommendedAt),
		req.RecommendedBy,
		nullTime(req.SentToOrderingAt),
		req.SentToOrderingBy,
		nullTime(req.OrderedAt),
		req.OrderedBy,
		nullTime(req.ExpiredAt),
		nullTime(req.ReactivatedAt),
		req.ReactivatedBy,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.String("id", req.ID), zap.Error(err))
		return fmt.Errorf("%w: create request: %v", workflow.ErrUnavailable, err)
	}

	return nil
}

// GetByID retrieves a request by ID. A missing row is (nil, nil).
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = ?`

	req, err := scanRequest(sqlite.From(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: get request: %v", workflow.ErrUnavailable, err)
	}

	return req, nil
}

// List retrieves requests matching the filter, newest first
func (r *RequestRepository) List(ctx context.Context, filter port.RequestFilter) ([]*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests`
	where, args := buildRequestWhere(filter)
	query += where + ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := sqlite.From(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("%w: list requests: %v", workflow.ErrUnavailable, err)
	}
	defer rows.Close()

	var requests []*entity.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan request: %v", workflow.ErrUnavailable, err)
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

// Count returns how many requests match the filter
func (r *RequestRepository) Count(ctx context.Context, filter port.RequestFilter) (int, error) {
	query := `SELECT COUNT(*) FROM requests`
	where, args := buildRequestWhere(filter)
	query += where

	var count int
	if err := sqlite.From(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count requests", zap.Error(err))
		return 0, fmt.Errorf("%w: count requests: %v", workflow.ErrUnavailable, err)
	}

	return count, nil
}

// Update writes the full document unconditionally. Lifecycle writes must use
// UpdateIfStatus instead; this exists for non-status maintenance.
func (r *RequestRepository) Update(ctx context.Context, req *entity.Request) error {
	result, err := r.update(ctx, req, "")
	if err != nil {
		r.logger.Error("Failed to update request", zap.String("id", req.ID), zap.Error(err))
		return fmt.Errorf("%w: update request: %v", workflow.ErrUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update request: %v", workflow.ErrUnavailable, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: request %s", workflow.ErrNotFound, req.ID)
	}

	return nil
}

// UpdateIfStatus writes the full document guarded by the expected current
// status. Zero affected rows means some other writer moved the request first
// and surfaces as ErrConflict.
func (r *RequestRepository) UpdateIfStatus(ctx context.Context, req *entity.Request, expected workflow.State) error {
	result, err := r.update(ctx, req, ` AND status = ?`, expected.String())
	if err != nil {
		r.logger.Error("Failed to update request",
			zap.String("id", req.ID),
			zap.String("expected_status", expected.String()),
			zap.Error(err))
		return fmt.Errorf("%w: update request: %v", workflow.ErrUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update request: %v", workflow.ErrUnavailable, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: request %s is no longer %s", workflow.ErrConflict, req.ID, expected)
	}

	return nil
}

// update runs the shared UPDATE statement with an optional extra WHERE clause
func (r *RequestRepository) update(ctx context.Context, req *entity.Request, extraWhere string, extraArgs ...interface{}) (sql.Result, error) {
	details, err := json.Marshal(req.Details)
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}

	query := `
		UPDATE requests SET
			title = ?, description = ?, details = ?, status = ?,
			max_offers = ?, bidding_cycle_days = ?, rejection_reason = ?,
			recommended_offer_id = ?, order_id = ?,
			submitted_at = ?, submitted_by = ?, approved_at = ?, rejected_at = ?, reviewed_by = ?,
			bidding_started_at = ?, bid_evaluation_at = ?,
			recommended_at = ?, recommended_by = ?,
			sent_to_ordering_at = ?, sent_to_ordering_by = ?,
			ordered_at = ?, ordered_by = ?, expired_at = ?,
			reactivated_at = ?, reactivated_by = ?,
			updated_at = ?
		WHERE id = ?` + extraWhere

	args := []interface{}{
		req.Title,
		req.Description,
		string(details),
		req.Status.String(),
		req.MaxOffers,
		req.BiddingCycleDays,
		req.RejectionReason,
		nullString(req.RecommendedOfferID),
		nullString(req.OrderID),
		nullTime(req.SubmittedAt),
		req.SubmittedBy,
		nullTime(req.ApprovedAt),
		nullTime(req.RejectedAt),
		req.ReviewedBy,
		nullTime(req.BiddingStartedAt),
		nullTime(req.BidEvaluationAt),
		nullTime(req.RecommendedAt),
		req.RecommendedBy,
		nullTime(req.SentToOrderingAt),
		req.SentToOrderingBy,
		nullTime(req.OrderedAt),
		req.OrderedBy,
		nullTime(req.ExpiredAt),
		nullTime(req.ReactivatedAt),
		req.ReactivatedBy,
		req.UpdatedAt,
		req.ID,
	}
	args = append(args, extraArgs...)

	return sqlite.From(ctx, r.db).ExecContext(ctx, query, args...)
}

// Delete removes a request row
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM requests WHERE id = ?`

	_, err := sqlite.From(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to delete request", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("%w: delete request: %v", workflow.ErrUnavailable, err)
	}

	return nil
}

// buildRequestWhere assembles the WHERE clause shared by List and Count
func buildRequestWhere(filter port.RequestFilter) (string, []interface{}) {
	var (
		where string
		args  []interface{}
	)
	if filter.Status != nil {
		where = ` WHERE status = ?`
		args = append(args, filter.Status.String())
	}
	if filter.CreatedBy != "" {
		if where == "" {
			where = ` WHERE created_by = ?`
		} else {
			where += ` AND created_by = ?`
		}
		args = append(args, filter.CreatedBy)
	}
	return where, args
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRequest reads one row in requestColumns order
func scanRequest(s rowScanner) (*entity.Request, error) {
	var (
		req                entity.Request
		details            string
		status             string
		recommendedOfferID sql.NullString
		orderID            sql.NullString
		submittedAt        sql.NullTime
		approvedAt         sql.NullTime
		rejectedAt         sql.NullTime
		biddingStartedAt   sql.NullTime
		bidEvaluationAt    sql.NullTime
		recommendedAt      sql.NullTime
		sentToOrderingAt   sql.NullTime
		orderedAt          sql.NullTime
		expiredAt          sql.NullTime
		reactivatedAt      sql.NullTime
	)

	err := s.Scan(
		&req.ID,
		&req.Title,
		&req.Description,
		&details,
		&status,
		&req.CreatedBy,
		&req.MaxOffers,
		&req.BiddingCycleDays,
		&req.RejectionReason,
		&recommendedOfferID,
		&orderID,
		&submittedAt,
		&req.SubmittedBy,
		&approvedAt,
		&rejectedAt,
		&req.ReviewedBy,
		&biddingStartedAt,
		&bidEvaluationAt,
		&recommendedAt,
		&req.RecommendedBy,
		&sentToOrderingAt,
		&req.SentToOrderingBy,
		&orderedAt,
		&req.OrderedBy,
		&expiredAt,
		&reactivatedAt,
		&req.ReactivatedBy,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if details != "" {
		if err := json.Unmarshal([]byte(details), &req.Details); err != nil {
			return nil, fmt.Errorf("unmarshal details: %w", err)
		}
	}
	req.Status = workflow.State(status)
	req.RecommendedOfferID = stringPtr(recommendedOfferID)
	req.OrderID = stringPtr(orderID)
	req.SubmittedAt = timePtr(submittedAt)
	req.ApprovedAt = timePtr(approvedAt)
	req.RejectedAt = timePtr(rejectedAt)
	req.BiddingStartedAt = timePtr(biddingStartedAt)
	req.BidEvaluationAt = timePtr(bidEvaluationAt)
	req.RecommendedAt = timePtr(recommendedAt)
	req.SentToOrderingAt = timePtr(sentToOrderingAt)
	req.OrderedAt = timePtr(orderedAt)
	req.ExpiredAt = timePtr(expiredAt)
	req.ReactivatedAt = timePtr(reactivatedAt)

	return &req, nil
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

var _ port.RequestRepository = (*RequestRepository)(nil)
