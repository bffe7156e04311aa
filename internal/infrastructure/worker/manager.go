package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker is a long-running background task with a managed lifecycle.
// Start must not block: it launches the work and returns, and the worker
// runs until its context is cancelled or Stop is called.
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// Manager owns a set of workers and starts and stops them as a group.
// Workers are started in registration order and stopped in reverse.
type Manager struct {
	logger *zap.Logger

	mu      sync.RWMutex
	workers []Worker
	running bool
	cancel  context.CancelFunc
}

// NewManager creates an empty worker manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// Register adds a worker to the group. Registering after StartAll has no
// effect until the next StartAll.
func (m *Manager) Register(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workers = append(m.workers, w)
	m.logger.Info("Registered worker", zap.String("worker", w.Name()), zap.Int("total", len(m.workers)))
}

// StartAll starts every registered worker under a shared cancellable
// context. A worker that fails to start is logged and skipped so the rest
// of the group still comes up.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("worker manager already started")
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.running = true
	workers := m.workers
	m.mu.Unlock()

	m.logger.Info("Starting workers", zap.Int("count", len(workers)))

	for _, w := range workers {
		if err := w.Start(ctx); err != nil {
			m.logger.Error("Worker failed to start", zap.String("worker", w.Name()), zap.Error(err))
			continue
		}
		m.logger.Info("Worker started", zap.String("worker", w.Name()))
	}

	return nil
}

// StopAll cancels the shared context and stops workers in reverse
// registration order. It is safe to call when nothing is running.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}

	m.running = false
	cancel := m.cancel
	workers := m.workers
	m.mu.Unlock()

	m.logger.Info("Stopping workers", zap.Int("count", len(workers)))

	if cancel != nil {
		cancel()
	}

	var failed int
	for i := len(workers) - 1; i >= 0; i-- {
		w := workers[i]
		if err := w.Stop(); err != nil {
			m.logger.Error("Worker failed to stop", zap.String("worker", w.Name()), zap.Error(err))
			failed++
			continue
		}
		m.logger.Info("Worker stopped", zap.String("worker", w.Name()))
	}

	if failed > 0 {
		return fmt.Errorf("failed to stop %d workers", failed)
	}
	return nil
}

// Count returns how many workers are registered
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}

// Running reports whether the group has been started
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}
