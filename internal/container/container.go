package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/procurahq/procura/internal/application/dispatcher"
	"github.com/procurahq/procura/internal/application/engine"
	"github.com/procurahq/procura/internal/application/port"
	"github.com/procurahq/procura/internal/application/service"
	"github.com/procurahq/procura/internal/domain/identity"
	"github.com/procurahq/procura/internal/evaluator"
	infraLark "github.com/procurahq/procura/internal/infrastructure/external/lark"
	"github.com/procurahq/procura/internal/infrastructure/persistence/sqlite"
	"github.com/procurahq/procura/internal/infrastructure/worker"
	"github.com/procurahq/procura/internal/orderdoc"
)

// Container owns every long-lived component of the process. Start builds
// them in dependency order, Close tears them down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	larkClient    *infraLark.Client
	larkMessenger *infraLark.Messenger
	fileStorage   port.FileStorage
	normalizer    *identity.Normalizer

	dispatcher dispatcher.Dispatcher
	engine     engine.Engine
	strategy   evaluator.Strategy
	services   *ServiceBundle
	notifier   *service.Notifier
	orderDocs  *orderdoc.Generator
	workers    *worker.Manager

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle is the set of repositories the container hands out as
// one unit.
type RepositoryBundle struct {
	Request       port.RequestRepository
	Offer         port.OfferRepository
	PurchaseOrder port.PurchaseOrderRepository
	History       port.HistoryRepository
	Notification  port.NotificationRepository
}

// ServiceBundle is the set of application services built over the engine.
type ServiceBundle struct {
	Offer        service.OfferService
	Notification service.NotificationService
	Evaluation   service.EvaluationService
}

// HealthStatus aggregates per-component readiness.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth is one component's entry in the health report.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer validates the configuration and returns an unstarted
// container. Nothing is connected until Start.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{config: cfg, logger: logger}, nil
}

// Start brings up all components. The order matters: repositories before the
// engine, the engine before its event handlers, workers last so everything
// they touch already exists.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("start on a closed container")
	}
	if c.ready.Load() {
		return fmt.Errorf("container started twice")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	steps := []struct {
		name string
		init func() error
	}{
		{"database", c.initDatabase},
		{"identity", c.initIdentity},
		{"storage", c.initStorage},
		{"external channels", c.initExternalChannels},
		{"dispatcher and engine", c.initDispatcherAndEngine},
		{"services", c.initServices},
		{"event handlers", c.initEventHandlers},
		{"workers", c.initWorkers},
	}
	for _, step := range steps {
		if err := step.init(); err != nil {
			return fmt.Errorf("initialize %s: %w", step.name, err)
		}
		c.logger.Info("Component initialized", zap.String("component", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started")
	return nil
}

// Close stops workers, drains the dispatcher, and closes the database, in
// that order. Later calls are rejected.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container closed twice")
	}
	c.logger.Info("Closing container")

	if c.cancel != nil {
		c.cancel()
	}

	var errs []error
	shut := func(name string, fn func() error) {
		if err := fn(); err != nil {
			c.logger.Error("Component shutdown failed", zap.String("component", name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if c.workers != nil {
		shut("workers", c.workers.StopAll)
	}
	if c.dispatcher != nil {
		shut("dispatcher", c.dispatcher.Close)
	}
	// Services, storage, and external channels hold no resources that need
	// explicit cleanup.
	if c.sqlDB != nil {
		shut("database", c.sqlDB.Close)
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		return fmt.Errorf("%d components failed to shut down cleanly", len(errs))
	}
	c.logger.Info("Container closed")
	return nil
}

// Health reports per-component readiness. Before Start everything shows as
// uninitialized; after Close the database check fails.
func (c *Container) Health() *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{Overall: true, Components: make(map[string]ComponentHealth)}
	report := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	if c.sqlDB == nil {
		report("database", false, "not initialized")
	} else if err := c.sqlDB.Ping(); err != nil {
		report("database", false, fmt.Sprintf("ping failed: %v", err))
	} else {
		report("database", true, "")
	}

	if c.workers == nil {
		report("workers", false, "not initialized")
	} else {
		report("workers", c.workers.Running(), fmt.Sprintf("worker count: %d", c.workers.Count()))
	}

	for name, present := range map[string]bool{
		"dispatcher":   c.dispatcher != nil,
		"repositories": c.repositories != nil,
	} {
		if present {
			report(name, true, "")
		} else {
			report(name, false, "not initialized")
		}
	}

	return status
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.sqlDB, c.logger)
	if err != nil {
		c.sqlDB.Close()
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initIdentity() error {
	normalizer, err := ProvideNormalizer(&c.config.Identity)
	if err != nil {
		return err
	}
	c.normalizer = normalizer
	return nil
}

func (c *Container) initStorage() error {
	fileStorage, err := ProvideStorage(c.config.OrderDoc.OutputDir, c.logger)
	if err != nil {
		return err
	}
	c.fileStorage = fileStorage
	return nil
}

// initExternalChannels connects Lark when it is enabled. With Lark disabled,
// notifications stay in-app only.
func (c *Container) initExternalChannels() error {
	if !c.config.Lark.Enabled {
		c.logger.Info("Lark channel disabled")
		return nil
	}

	larkBundle, err := ProvideLark(&c.config.Lark, c.logger)
	if err != nil {
		return err
	}
	c.larkClient = larkBundle.Client
	c.larkMessenger = larkBundle.Messenger
	return nil
}

func (c *Container) initDispatcherAndEngine() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	eng, err := ProvideEngine(&EngineDeps{
		Repos:       c.repositories,
		TxManager:   c.db,
		Dispatcher:  c.dispatcher,
		WorkflowCfg: &c.config.Workflow,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}
	c.engine = eng
	return nil
}

func (c *Container) initServices() error {
	strategy, err := ProvideStrategy(&c.config.Evaluator, c.logger)
	if err != nil {
		return err
	}
	c.strategy = strategy

	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		Engine:     c.engine,
		Dispatcher: c.dispatcher,
		Strategy:   c.strategy,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

// initEventHandlers subscribes the notifier and, when enabled, the document
// generator. The Lark messenger rides along as a notifier channel.
func (c *Container) initEventHandlers() error {
	var channels []port.MessageChannel
	if c.larkMessenger != nil {
		channels = append(channels, c.larkMessenger)
	}

	notifier, err := ProvideNotifier(&NotifierDeps{
		Repos:      c.repositories,
		Dispatcher: c.dispatcher,
		Channels:   channels,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.notifier = notifier

	if c.config.OrderDoc.Enabled {
		generator, err := ProvideOrderDocGenerator(&OrderDocDeps{
			Cfg:        &c.config.OrderDoc,
			Repos:      c.repositories,
			Storage:    c.fileStorage,
			Dispatcher: c.dispatcher,
			Logger:     c.logger,
		})
		if err != nil {
			return err
		}
		c.orderDocs = generator
	}
	return nil
}

func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&WorkerDeps{
		Repos:       c.repositories,
		Engine:      c.engine,
		WorkflowCfg: &c.config.Workflow,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers

	return c.workers.StartAll(c.ctx)
}

// Engine returns the request lifecycle engine.
func (c *Container) Engine() engine.Engine {
	return c.engine
}

// Services returns the application service bundle.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Repositories returns the repository bundle.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// FileStorage returns the document file storage.
func (c *Container) FileStorage() port.FileStorage {
	return c.fileStorage
}

// Normalizer returns the identity normalizer.
func (c *Container) Normalizer() *identity.Normalizer {
	return c.normalizer
}

// kvLogger adapts zap to the key-value Logger interfaces the application
// layer declares, via the sugared API.
type kvLogger struct {
	s *zap.SugaredLogger
}

func newKVLogger(logger *zap.Logger) *kvLogger {
	return &kvLogger{s: logger.Sugar()}
}

func (l *kvLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l *kvLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}
