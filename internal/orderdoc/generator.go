// Package orderdoc renders purchase order spreadsheets. It listens for
// placed orders, writes the workbook to file storage and records the
// document path on the purchase order.
package orderdoc

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/procurahq/procura/internal/application/dispatcher"
	"github.com/procurahq/procura/internal/application/port"
	"github.com/procurahq/procura/internal/domain/entity"
	"github.com/procurahq/procura/internal/domain/event"
	"github.com/procurahq/procura/internal/infrastructure/storage"
)

const sheetName = "Purchase Order"

// Config holds document generation settings
type Config struct {
	CompanyName string
}

// Generator builds one workbook per placed order. Generation is
// best-effort and retriable: a failed run leaves the order without a
// document path and the next delivery of the event regenerates it.
type Generator struct {
	cfg         Config
	requestRepo port.RequestRepository
	offerRepo   port.OfferRepository
	poRepo      port.PurchaseOrderRepository
	storage     port.FileStorage
	logger      *zap.Logger
}

// NewGenerator creates a purchase order document generator
func NewGenerator(
	cfg Config,
	requestRepo port.RequestRepository,
	offerRepo port.OfferRepository,
	poRepo port.PurchaseOrderRepository,
	fileStorage port.FileStorage,
	logger *zap.Logger,
) *Generator {
	return &Generator{
		cfg:         cfg,
		requestRepo: requestRepo,
		offerRepo:   offerRepo,
		poRepo:      poRepo,
		storage:     fileStorage,
		logger:      logger,
	}
}

// Register subscribes the generator to placed-order events
func (g *Generator) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeOrderPlaced, "orderdoc-generate", g.HandleOrderPlaced)
}

// HandleOrderPlaced renders and stores the workbook for one order
func (g *Generator) HandleOrderPlaced(ctx context.Context, evt *event.Event) error {
	poID := evt.PayloadString("purchase_order_id")
	if poID == "" {
		return fmt.Errorf("order placed event without purchase_order_id")
	}

	po, err := g.poRepo.GetByID(ctx, poID)
	if err != nil {
		return fmt.Errorf("load purchase order %s: %w", poID, err)
	}
	if po == nil {
		return fmt.Errorf("purchase order %s not found", poID)
	}

	// Redelivered events regenerate only when the document is gone
	if po.DocumentPath != "" && g.storage.Exists(ctx, po.DocumentPath) {
		g.logger.Debug("Order document already present",
			zap.String("purchase_order_id", po.ID),
			zap.String("path", po.DocumentPath))
		return nil
	}

	req, err := g.requestRepo.GetByID(ctx, po.RequestID)
	if err != nil {
		return fmt.Errorf("load request %s: %w", po.RequestID, err)
	}
	if req == nil {
		return fmt.Errorf("request %s not found", po.RequestID)
	}

	offer, err := g.offerRepo.GetByID(ctx, po.OfferID)
	if err != nil {
		return fmt.Errorf("load offer %s: %w", po.OfferID, err)
	}
	if offer == nil {
		return fmt.Errorf("offer %s not found", po.OfferID)
	}

	content, err := g.render(req, offer, po)
	if err != nil {
		return fmt.Errorf("render document: %w", err)
	}

	path := storage.OrderDocumentPath(req.Title, po.ID, po.CreatedAt)
	if err := g.storage.Save(ctx, path, content); err != nil {
		return fmt.Errorf("store document: %w", err)
	}

	if err := g.poRepo.SetDocumentPath(ctx, po.ID, path); err != nil {
		return fmt.Errorf("record document path: %w", err)
	}

	g.logger.Info("Order document generated",
		zap.String("purchase_order_id", po.ID),
		zap.String("request_id", po.RequestID),
		zap.String("path", path),
		zap.Int("size", len(content)))
	return nil
}

// render builds the workbook in memory
func (g *Generator) render(req *entity.Request, offer *entity.Offer, po *entity.PurchaseOrder) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	g.setColWidths(f)

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		bold = 0
	}
	title, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}})
	if err != nil {
		title = 0
	}

	company := g.cfg.CompanyName
	if company == "" {
		company = "Procura"
	}

	g.setCell(f, "A1", company)
	g.style(f, "A1", "A1", title)
	g.setCell(f, "A2", "PURCHASE ORDER")
	g.style(f, "A2", "A2", bold)

	g.setCell(f, "A4", "Order")
	g.setCell(f, "B4", po.ID)
	g.setCell(f, "A5", "Date")
	g.setCell(f, "B5", po.CreatedAt.Format("2006-01-02"))
	g.setCell(f, "A6", "Request")
	g.setCell(f, "B6", req.Title)
	g.setCell(f, "A7", "Requested by")
	g.setCell(f, "B7", req.CreatedBy)
	g.setCell(f, "A8", "Ordered by")
	g.setCell(f, "B8", po.OrderedBy)
	g.setCell(f, "A9", "Provider")
	g.setCell(f, "B9", offer.Provider)

	row := 11
	g.setCell(f, fmt.Sprintf("A%d", row), "Role")
	g.setCell(f, fmt.Sprintf("B%d", row), "Count")
	g.style(f, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row), bold)
	for _, c := range po.Coverage {
		row++
		g.setCell(f, fmt.Sprintf("A%d", row), c.Role)
		g.setCell(f, fmt.Sprintf("B%d", row), fmt.Sprintf("%d", c.Count))
	}

	row += 2
	g.setCell(f, fmt.Sprintf("A%d", row), "Delivery")
	g.setCell(f, fmt.Sprintf("B%d", row), fmt.Sprintf("%d days", offer.DeliveryDays))
	row++
	g.setCell(f, fmt.Sprintf("A%d", row), "Total")
	g.setCell(f, fmt.Sprintf("B%d", row), fmt.Sprintf("%.2f %s", po.Price, po.Currency))
	g.style(f, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row), bold)

	if offer.Notes != "" {
		row += 2
		g.setCell(f, fmt.Sprintf("A%d", row), "Notes")
		g.setCell(f, fmt.Sprintf("B%d", row), offer.Notes)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// setCell sets a cell value, logging instead of failing on bad cells
func (g *Generator) setCell(f *excelize.File, cell, value string) {
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		g.logger.Warn("Cell write rejected",
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func (g *Generator) style(f *excelize.File, from, to string, styleID int) {
	if styleID == 0 {
		return
	}
	if err := f.SetCellStyle(sheetName, from, to, styleID); err != nil {
		g.logger.Warn("Failed to style cells",
			zap.String("from", from),
			zap.Error(err))
	}
}

func (g *Generator) setColWidths(f *excelize.File) {
	if err := f.SetColWidth(sheetName, "A", "A", 16); err != nil {
		g.logger.Warn("Failed to set column width", zap.Error(err))
	}
	if err := f.SetColWidth(sheetName, "B", "B", 40); err != nil {
		g.logger.Warn("Failed to set column width", zap.Error(err))
	}
}
