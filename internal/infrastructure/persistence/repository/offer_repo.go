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

const offerColumns = `
	id, request_id, provider, price, currency, delivery_days,
	coverage, notes, status, created_at, updated_at`

// OfferRepository implements port.OfferRepository on SQLite
type OfferRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOfferRepository(db *sql.DB, logger *zap.Logger) *OfferRepository {
	return &OfferRepository{db: db, logger: logger}
}

// Create inserts a new offer
func (r *OfferRepository) Create(ctx context.Context, offer *entity.Offer) error {
	coverage, err := json.Marshal(offer.Coverage)
	if err != nil {
		return fmt.Errorf("marshal coverage: %w", err)
	}

	query := `
		INSERT INTO offers (` + offerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = sqlite.From(ctx, r.db).ExecContext(ctx, query,
		offer.ID,
		offer.RequestID,
		offer.Provider,
		offer.Price,
		offer.Currency,
		offer.DeliveryDays,
		string(coverage),
		offer.Notes,
		offer.Status.String(),
		offer.CreatedAt,
		offer.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create offer",
			zap.String("id", offer.ID),
			zap.String("request_id", offer.RequestID),
			zap.Error(err))
		return fmt.Errorf("%w: create offer: %v", workflow.ErrUnavailable, err)
	}

	return nil
}

// GetByID retrieves an offer by ID. A missing row is (nil, nil).
func (r *OfferRepository) GetByID(ctx context.Context, id string) (*entity.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = ?`

	offer, err := scanOffer(sqlite.From(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get offer", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: get offer: %v", workflow.ErrUnavailable, err)
	}

	return offer, nil
}

// ListByRequestID retrieves all offers of a request, oldest first
func (r *OfferRepository) ListByRequestID(ctx context.Context, requestID string) ([]*entity.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE request_id = ? ORDER BY created_at, id`
	return r.list(ctx, query, requestID)
}

// ListByProvider retrieves a provider's own offers on a request
func (r *OfferRepository) ListByProvider(ctx context.Context, requestID, provider string) ([]*entity.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE request_id = ? AND provider = ? ORDER BY created_at, id`
	return r.list(ctx, query, requestID, provider)
}

// CountByRequestID returns the number of offers of a request
func (r *OfferRepository) CountByRequestID(ctx context.Context, requestID string) (int, error) {
	query := `SELECT COUNT(*) FROM offers WHERE request_id = ?`

	var count int
	if err := sqlite.From(ctx, r.db).QueryRowContext(ctx, query, requestID).Scan(&count); err != nil {
		r.logger.Error("Failed to count offers", zap.String("request_id", requestID), zap.Error(err))
		return 0, fmt.Errorf("%w: count offers: %v", workflow.ErrUnavailable, err)
	}

	return count, nil
}

// UpdateStatus updates the status of an offer
func (r *OfferRepository) UpdateStatus(ctx context.Context, id string, status entity.OfferStatus) error {
	query := `UPDATE offers SET status = ?, updated_at = ? WHERE id = ?`

	result, err := sqlite.From(ctx, r.db).ExecContext(ctx, query, status.String(), time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update offer status",
			zap.String("id", id),
			zap.String("status", status.String()),
			zap.Error(err))
		return fmt.Errorf("%w: update offer status: %v", workflow.ErrUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update offer status: %v", workflow.ErrUnavailable, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: offer %s", workflow.ErrNotFound, id)
	}

	return nil
}

// DemoteRecommended resets every RECOMMENDED offer of the request except
// keepID back to SUBMITTED. Run before promoting the new recommendation, it
// also heals a stray double-recommendation.
func (r *OfferRepository) DemoteRecommended(ctx context.Context, requestID, keepID string) error {
	query := `
		UPDATE offers SET status = ?, updated_at = ?
		WHERE request_id = ? AND status = ? AND id != ?
	`

	_, err := sqlite.From(ctx, r.db).ExecContext(ctx, query,
		entity.OfferSubmitted.String(),
		time.Now(),
		requestID,
		entity.OfferRecommended.String(),
		keepID,
	)
	if err != nil {
		r.logger.Error("Failed to demote recommended offers",
			zap.String("request_id", requestID),
			zap.String("keep_id", keepID),
			zap.Error(err))
		return fmt.Errorf("%w: demote recommended offers: %v", workflow.ErrUnavailable, err)
	}

	return nil
}

func (r *OfferRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Offer, error) {
	rows, err := sqlite.From(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list offers", zap.Error(err))
		return nil, fmt.Errorf("%w: list offers: %v", workflow.ErrUnavailable, err)
	}
	defer rows.Close()

	var offers []*entity.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan offer: %v", workflow.ErrUnavailable, err)
		}
		offers = append(offers, offer)
	}

	return offers, rows.Err()
}

// scanOffer reads one row in offerColumns order
func scanOffer(s rowScanner) (*entity.Offer, error) {
	var (
		offer    entity.Offer
		coverage string
		status   string
	)

	err := s.Scan(
		&offer.ID,
		&offer.RequestID,
		&offer.Provider,
		&offer.Price,
		&offer.Currency,
		&offer.DeliveryDays,
		&coverage,
		&offer.Notes,
		&status,
		&offer.CreatedAt,
		&offer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if coverage != "" {
		if err := json.Unmarshal([]byte(coverage), &offer.Coverage); err != nil {
			return nil, fmt.Errorf("unmarshal coverage: %w", err)
		}
	}
	offer.Status = entity.OfferStatus(status)

	return &offer, nil
}

var _ port.OfferRepository = (*OfferRepository)(nil)
