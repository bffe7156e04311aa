package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/procurahq/procura/internal/application/port"
	"github.com/procurahq/procura/internal/domain/entity"
	"github.com/procurahq/procura/internal/domain/workflow"
)

// Refresher applies any due background transition to one request and
// returns the current document. The workflow engine satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, id string) (*entity.Request, error)
}

// ExpirySweeperConfig holds configuration for the expiry sweeper
type ExpirySweeperConfig struct {
	SweepInterval time.Duration
	BatchSize     int
	SweepTimeout  time.Duration
}

// DefaultExpirySweeperConfig returns default configuration
func DefaultExpirySweeperConfig() ExpirySweeperConfig {
	return ExpirySweeperConfig{
		SweepInterval: time.Minute,
		BatchSize:     100,
		SweepTimeout:  30 * time.Second,
	}
}

// ExpirySweeper periodically applies due deadline transitions to requests
// sitting in BIDDING. Read paths already apply them lazily; the sweeper
// covers requests nobody is reading, so bids close and notifications go
// out without waiting for traffic.
type ExpirySweeper struct {
	config      ExpirySweeperConfig
	requestRepo port.RequestRepository
	refresher   Refresher
	logger      *zap.Logger

	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
	lastSweep time.Time
	lastError error
	swept     int
	closed    int
	failed    int
}

// NewExpirySweeper creates a sweeper over the given repository and engine.
// Zero config fields fall back to the defaults.
func NewExpirySweeper(
	config ExpirySweeperConfig,
	requestRepo port.RequestRepository,
	refresher Refresher,
	logger *zap.Logger,
) *ExpirySweeper {
	defaults := DefaultExpirySweeperConfig()
	if config.SweepInterval <= 0 {
		config.SweepInterval = defaults.SweepInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = defaults.SweepTimeout
	}
	return &ExpirySweeper{
		config:      config,
		requestRepo: requestRepo,
		refresher:   refresher,
		logger:      logger,
	}
}

// Start begins the sweep loop
func (w *ExpirySweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("expiry sweeper already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("ExpirySweeper started",
		zap.Duration("sweep_interval", w.config.SweepInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.sweepLoop()

	return nil
}

// Stop gracefully terminates the sweeper
func (w *ExpirySweeper) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}

	w.isRunning = false
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	w.logger.Info("ExpirySweeper stopped",
		zap.Int("swept", w.swept),
		zap.Int("closed", w.closed),
		zap.Int("failed", w.failed))

	return nil
}

// Name identifies the sweeper in manager logs
func (w *ExpirySweeper) Name() string {
	return "ExpirySweeper"
}

// SweepNow runs a single sweep immediately, outside the ticker schedule
func (w *ExpirySweeper) SweepNow() error {
	w.mu.RLock()
	parent := w.ctx
	w.mu.RUnlock()
	if parent == nil {
		parent = context.Background()
	}
	return w.sweep(parent)
}

func (w *ExpirySweeper) sweepLoop() {
	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Debug("Sweep loop context cancelled")
			return

		case <-ticker.C:
			if err := w.sweep(w.ctx); err != nil {
				w.mu.Lock()
				w.lastError = err
				w.mu.Unlock()
				w.logger.Error("Sweep failed", zap.Error(err))
			}

			w.mu.Lock()
			w.lastSweep = time.Now()
			w.mu.Unlock()
		}
	}
}

// sweep refreshes every request currently in BIDDING. IDs are collected
// up front so requests leaving BIDDING mid-sweep do not shift the pages
// under the iteration.
func (w *ExpirySweeper) sweep(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, w.config.SweepTimeout)
	defer cancel()

	ids, err := w.collectBidding(ctx)
	if err != nil {
		return fmt.Errorf("list bidding requests: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	var closed, failed int
	for _, id := range ids {
		req, err := w.refresher.Refresh(ctx, id)
		if err != nil {
			failed++
			w.logger.Error("Failed to refresh request",
				zap.String("request_id", id),
				zap.Error(err))
			continue
		}
		if req != nil && req.Status != workflow.StateBidding {
			closed++
		}
	}

	w.mu.Lock()
	w.swept += len(ids)
	w.closed += closed
	w.failed += failed
	w.mu.Unlock()

	if closed > 0 || failed > 0 {
		w.logger.Info("Sweep completed",
			zap.Int("checked", len(ids)),
			zap.Int("closed", closed),
			zap.Int("failed", failed))
	}

	return nil
}

func (w *ExpirySweeper) collectBidding(ctx context.Context) ([]string, error) {
	status := workflow.StateBidding
	var ids []string
	offset := 0
	for {
		page, err := w.requestRepo.List(ctx, port.RequestFilter{
			Status: &status,
			Limit:  w.config.BatchSize,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		for _, req := range page {
			ids = append(ids, req.ID)
		}
		if len(page) < w.config.BatchSize {
			return ids, nil
		}
		offset += w.config.BatchSize
	}
}
