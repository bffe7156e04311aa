package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/procurahq/procura/internal/application/port"
	"github.com/procurahq/procura/internal/domain/entity"
	"github.com/procurahq/procura/internal/domain/workflow"
	"github.com/procurahq/procura/internal/infrastructure/persistence/sqlite"
)

const purchaseOrderColumns = `
	id, request_id, offer_id, ordered_by, price, currency,
	coverage, document_path, created_at`

// PurchaseOrderRepository implements port.PurchaseOrderRepository on SQLite.
// The table carries UNIQUE(request_id), so the schema itself enforces the
// one-order-per-request invariant behind the engine's state check.
type PurchaseOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPurchaseOrderRepository(db *sql.DB, logger *zap.Logger) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{db: db, logger: logger}
}

// Create inserts a new purchase order
func (r *PurchaseOrderRepository) Create(ctx context.Context, po *entity.PurchaseOrder) error {
	coverage, err := json.Marshal(po.Coverage)
	if err != nil {
		return fmt.Errorf("marshal coverage: %w", err)
	}

	query := `
		INSERT INTO purchase_orders (` + purchaseOrderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = sqlite.From(ctx, r.db).ExecContext(ctx, query,
		po.ID,
		po.RequestID,
		po.OfferID,
		po.OrderedBy,
		po.Price,
		po.Currency,
		string(coverage),
		po.DocumentPath,
		po.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create purchase order",
			zap.String("id", po.ID),
			zap.String("request_id", po.RequestID),
			zap.Error(err))
		return fmt.Errorf("%w: create purchase order: %v", workflow.ErrUnavailable, err)
	}

	return nil
}

// GetByID retrieves a purchase order by ID. A missing row is (nil, nil).
func (r *PurchaseOrderRepository) GetByID(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE id = ?`
	return r.get(ctx, query, id)
}

// GetByRequestID retrieves the purchase order of a request, if any
func (r *PurchaseOrderRepository) GetByRequestID(ctx context.Context, requestID string) (*entity.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE request_id = ?`
	return r.get(ctx, query, requestID)
}

// SetDocumentPath attaches the generated order document to the record
func (r *PurchaseOrderRepository) SetDocumentPath(ctx context.Context, id, path string) error {
	query := `UPDATE purchase_orders SET document_path = ? WHERE id = ?`

	result, err := sqlite.From(ctx, r.db).ExecContext(ctx, query, path, id)
	if err != nil {
		r.logger.Error("Failed to set document path", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("%w: set document path: %v", workflow.ErrUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: set document path: %v", workflow.ErrUnavailable, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: purchase order %s", workflow.ErrNotFound, id)
	}

	return nil
}

func (r *PurchaseOrderRepository) get(ctx context.Context, query string, arg interface{}) (*entity.PurchaseOrder, error) {
	var (
		po       entity.PurchaseOrder
		coverage string
	)

	err := sqlite.From(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(
		&po.ID,
		&po.RequestID,
		&po.OfferID,
		&po.OrderedBy,
		&po.Price,
		&po.Currency,
		&coverage,
		&po.DocumentPath,
		&po.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get purchase order", zap.Any("key", arg), zap.Error(err))
		return nil, fmt.Errorf("%w: get purchase order: %v", workflow.ErrUnavailable, err)
	}

	if coverage != "" {
		if err := json.Unmarshal([]byte(coverage), &po.Coverage); err != nil {
			return nil, fmt.Errorf("unmarshal coverage: %w", err)
		}
	}

	return &po, nil
}

var _ port.PurchaseOrderRepository = (*PurchaseOrderRepository)(nil)
