package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/procurahq/procura/internal/application/port"
	"github.com/procurahq/procura/internal/domain/entity"
	"github.com/procurahq/procura/internal/domain/workflow"
)

// MockRequestRepository for testing
type MockRequestRepository struct {
	mu            sync.RWMutex
	bidding       []*entity.Request
	listCallCount int
	lastLimit     int
	listErr       error
}

func NewMockRequestRepository() *MockRequestRepository {
	return &MockRequestRepository{}
}

func (m *MockRequestRepository) AddBidding(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bidding = append(m.bidding, &entity.Request{ID: id, Status: workflow.StateBidding})
}

func (m *MockRequestRepository) ListCallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCallCount
}

func (m *MockRequestRepository) Create(ctx context.Context, req *entity.Request) error {
	return nil
}

func (m *MockRequestRepository) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	return nil, nil
}

func (m *MockRequestRepository) List(ctx context.Context, filter port.RequestFilter) ([]*entity.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCallCount++
	m.lastLimit = filter.Limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	if filter.Status == nil || *filter.Status != workflow.StateBidding {
		return nil, nil
	}
	if filter.Offset >= len(m.bidding) {
		return nil, nil
	}
	end := len(m.bidding)
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	page := make([]*entity.Request, end-filter.Offset)
	copy(page, m.bidding[filter.Offset:end])
	return page, nil
}

func (m *MockRequestRepository) Count(ctx context.Context, filter port.RequestFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bidding), nil
}

func (m *MockRequestRepository) Update(ctx context.Context, req *entity.Request) error {
	return nil
}

func (m *MockRequestRepository) UpdateIfStatus(ctx context.Context, req *entity.Request, expected workflow.State) error {
	return nil
}

func (m *MockRequestRepository) Delete(ctx context.Context, id string) error {
	return nil
}

// MockRefresher for testing
type MockRefresher struct {
	mu         sync.RWMutex
	refreshed  []string
	statusByID map[string]workflow.State
	errByID    map[string]error
}

func NewMockRefresher() *MockRefresher {
	return &MockRefresher{
		statusByID: make(map[string]workflow.State),
		errByID:    make(map[string]error),
	}
}

func (m *MockRefresher) Refresh(ctx context.Context, id string) (*entity.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed = append(m.refreshed, id)
	if err := m.errByID[id]; err != nil {
		return nil, err
	}
	status, ok := m.statusByID[id]
	if !ok {
		status = workflow.StateBidding
	}
	return &entity.Request{ID: id, Status: status}, nil
}

func (m *MockRefresher) Refreshed() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.refreshed))
	copy(out, m.refreshed)
	return out
}

func TestExpirySweeper_Initialize(t *testing.T) {
	sweeper := NewExpirySweeper(ExpirySweeperConfig{}, NewMockRequestRepository(), NewMockRefresher(), zap.NewNop())

	require.NotNil(t, sweeper)
	assert.Equal(t, time.Minute, sweeper.config.SweepInterval)
	assert.Equal(t, 100, sweeper.config.BatchSize)
	assert.Equal(t, 30*time.Second, sweeper.config.SweepTimeout)
	assert.False(t, sweeper.isRunning)
	assert.Equal(t, "ExpirySweeper", sweeper.Name())
}

func TestExpirySweeper_StartStop(t *testing.T) {
	sweeper := NewExpirySweeper(ExpirySweeperConfig{}, NewMockRequestRepository(), NewMockRefresher(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sweeper.Start(ctx))
	assert.True(t, sweeper.isRunning)

	err := sweeper.Start(ctx)
	assert.Error(t, err)

	require.NoError(t, sweeper.Stop())
	assert.False(t, sweeper.isRunning)

	// Stop is idempotent
	require.NoError(t, sweeper.Stop())
}

func TestExpirySweeper_SweepClosesDueRequests(t *testing.T) {
	repo := NewMockRequestRepository()
	repo.AddBidding("req-1")
	repo.AddBidding("req-2")

	refresher := NewMockRefresher()
	refresher.statusByID["req-1"] = workflow.StateExpired

	sweeper := NewExpirySweeper(ExpirySweeperConfig{}, repo, refresher, zap.NewNop())

	require.NoError(t, sweeper.SweepNow())

	assert.ElementsMatch(t, []string{"req-1", "req-2"}, refresher.Refreshed())
	assert.Equal(t, 2, sweeper.swept)
	assert.Equal(t, 1, sweeper.closed)
	assert.Equal(t, 0, sweeper.failed)
}

func TestExpirySweeper_NoBiddingRequests(t *testing.T) {
	refresher := NewMockRefresher()
	sweeper := NewExpirySweeper(ExpirySweeperConfig{}, NewMockRequestRepository(), refresher, zap.NewNop())

	require.NoError(t, sweeper.SweepNow())
	assert.Empty(t, refresher.Refreshed())
}

func TestExpirySweeper_ContinuesAfterRefreshFailure(t *testing.T) {
	repo := NewMockRequestRepository()
	repo.AddBidding("req-1")
	repo.AddBidding("req-2")

	refresher := NewMockRefresher()
	refresher.errByID["req-1"] = fmt.Errorf("store unavailable")
	refresher.statusByID["req-2"] = workflow.StateBidEvaluation

	sweeper := NewExpirySweeper(ExpirySweeperConfig{}, repo, refresher, zap.NewNop())

	// A failed refresh is logged and counted, not fatal to the sweep
	require.NoError(t, sweeper.SweepNow())

	assert.ElementsMatch(t, []string{"req-1", "req-2"}, refresher.Refreshed())
	assert.Equal(t, 1, sweeper.failed)
	assert.Equal(t, 1, sweeper.closed)
}

func TestExpirySweeper_PagesThroughBatches(t *testing.T) {
	repo := NewMockRequestRepository()
	for i := 1; i <= 5; i++ {
		repo.AddBidding(fmt.Sprintf("req-%d", i))
	}

	refresher := NewMockRefresher()
	sweeper := NewExpirySweeper(ExpirySweeperConfig{BatchSize: 2}, repo, refresher, zap.NewNop())

	require.NoError(t, sweeper.SweepNow())

	// Pages of 2, 2 and 1
	assert.Equal(t, 3, repo.ListCallCount())
	assert.Equal(t, 2, repo.lastLimit)
	assert.Len(t, refresher.Refreshed(), 5)
}

func TestExpirySweeper_ListFailure(t *testing.T) {
	repo := NewMockRequestRepository()
	repo.listErr = fmt.Errorf("database locked")

	sweeper := NewExpirySweeper(ExpirySweeperConfig{}, repo, NewMockRefresher(), zap.NewNop())

	err := sweeper.SweepNow()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list bidding requests")
}

func TestExpirySweeper_PollsAtInterval(t *testing.T) {
	repo := NewMockRequestRepository()
	repo.AddBidding("req-1")

	sweeper := NewExpirySweeper(ExpirySweeperConfig{SweepInterval: 50 * time.Millisecond}, repo, NewMockRefresher(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sweeper.Start(ctx))
	time.Sleep(180 * time.Millisecond)
	require.NoError(t, sweeper.Stop())

	assert.Greater(t, repo.ListCallCount(), 0)
}

var _ port.RequestRepository = (*MockRequestRepository)(nil)
var _ Refresher = (*MockRefresher)(nil)
