package container

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/procurahq/procura/internal/application/dispatcher"
	"github.com/procurahq/procura/internal/application/engine"
	"github.com/procurahq/procura/internal/application/port"
	"github.com/procurahq/procura/internal/application/service"
	"github.com/procurahq/procura/internal/domain/identity"
	"github.com/procurahq/procura/internal/evaluator"
	infraLark "github.com/procurahq/procura/internal/infrastructure/external/lark"
	"github.com/procurahq/procura/internal/infrastructure/persistence/repository"
	"github.com/procurahq/procura/internal/infrastructure/persistence/sqlite"
	"github.com/procurahq/procura/internal/infrastructure/storage"
	"github.com/procurahq/procura/internal/infrastructure/worker"
	"github.com/procurahq/procura/internal/orderdoc"
	"github.com/procurahq/procura/pkg/database"
)

// DatabaseBundle pairs the raw connection with the transaction manager
// built on top of it.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// LarkBundle pairs the Lark API client with the messenger channel built on it.
type LarkBundle struct {
	Client    *infraLark.Client
	Messenger *infraLark.Messenger
}

// ProvideDatabase opens the SQLite database, applies pending migrations when
// a migrations directory is configured, and wraps the connection in a
// transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	dbWrapper, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB := dbWrapper.DB

	if cfg.MigrationsDir != "" {
		migrator := database.NewMigrator(dbWrapper, logger)
		if err := migrator.RunMigrations(cfg.MigrationsDir); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		SqlDB:          sqlDB,
		TransactionMgr: sqlite.NewDB(sqlDB, logger),
	}, nil
}

// ProvideRepositories builds the five SQLite repositories on one connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Request:       repository.NewRequestRepository(sqlDB, logger),
		Offer:         repository.NewOfferRepository(sqlDB, logger),
		PurchaseOrder: repository.NewPurchaseOrderRepository(sqlDB, logger),
		History:       repository.NewHistoryRepository(sqlDB, logger),
		Notification:  repository.NewNotificationRepository(sqlDB, logger),
	}, nil
}

// ProvideNormalizer builds the identity normalizer from the built-in role
// aliases merged with any configured overrides. Configured aliases win.
func ProvideNormalizer(cfg *IdentityConfig) (*identity.Normalizer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("identity config is required")
	}

	aliases := identity.DefaultAliases()
	for alias, role := range cfg.RoleAliases {
		aliases[alias] = role
	}

	normalizer, err := identity.NewNormalizer(aliases)
	if err != nil {
		return nil, fmt.Errorf("build role normalizer: %w", err)
	}

	return normalizer, nil
}

// ProvideStorage creates the file storage rooted at the document output
// directory.
func ProvideStorage(baseDir string, logger *zap.Logger) (port.FileStorage, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("storage base directory is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return storage.NewLocalFileStorage(baseDir, logger), nil
}

// ProvideLark builds the Lark API client and the messenger channel on top
// of it. The bundle is only wired up when Lark delivery is enabled.
func ProvideLark(cfg *LarkConfig, logger *zap.Logger) (*LarkBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	larkCfg := infraLark.Config{
		AppID:         cfg.AppID,
		AppSecret:     cfg.AppSecret,
		ReceiveIDType: cfg.ReceiveIDType,
		Recipients:    cfg.Recipients,
	}
	client := infraLark.NewClient(larkCfg, logger)
	messenger := infraLark.NewMessenger(client, larkCfg, logger)

	return &LarkBundle{
		Client:    client,
		Messenger: messenger,
	}, nil
}

// ProvideDispatcher creates the in-process event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(newKVLogger(logger)),
	), nil
}

// EngineDeps collects what the lifecycle engine needs.
type EngineDeps struct {
	Repos       *RepositoryBundle
	TxManager   port.TransactionManager
	Dispatcher  dispatcher.Dispatcher
	WorkflowCfg *WorkflowConfig
	Logger      *zap.Logger
}

// ProvideEngine builds the request lifecycle engine over the repositories
// and transaction manager.
func ProvideEngine(deps *EngineDeps) (engine.Engine, error) {
	if deps == nil {
		return nil, fmt.Errorf("engine dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.WorkflowCfg == nil {
		return nil, fmt.Errorf("workflow config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	engineLogger := newKVLogger(deps.Logger)

	return engine.NewEngine(
		deps.Repos.Request,
		deps.Repos.Offer,
		deps.Repos.PurchaseOrder,
		deps.Repos.History,
		deps.TxManager,
		engineLogger,
		engine.WithDispatcher(deps.Dispatcher),
		engine.WithDefaultBiddingCycleDays(deps.WorkflowCfg.DefaultBiddingCycleDays),
	), nil
}

// ProvideStrategy creates the configured offer ranking strategy.
func ProvideStrategy(cfg *EvaluatorConfig, logger *zap.Logger) (evaluator.Strategy, error) {
	if cfg == nil {
		return nil, fmt.Errorf("evaluator config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return evaluator.New(evaluator.Config{
		Strategy: cfg.Strategy,
		Weights: evaluator.Weights{
			Price:    cfg.PriceWeight,
			Delivery: cfg.DeliveryWeight,
			Coverage: cfg.CoverageWeight,
		},
		OpenAI: evaluator.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.OpenAITemperature,
		},
	}, logger), nil
}

// ServiceDeps collects what the application services need.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	Engine     engine.Engine
	Dispatcher dispatcher.Dispatcher
	Strategy   evaluator.Strategy
	Logger     *zap.Logger
}

// ProvideServices builds the offer, notification and evaluation services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if deps.Strategy == nil {
		return nil, fmt.Errorf("strategy is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := newKVLogger(deps.Logger)

	return &ServiceBundle{
		Offer: service.NewOfferService(
			deps.Repos.Offer,
			deps.Engine,
			deps.Dispatcher,
			serviceLogger,
		),
		Notification: service.NewNotificationService(
			deps.Repos.Notification,
			serviceLogger,
		),
		Evaluation: service.NewEvaluationService(
			deps.Repos.Offer,
			deps.Engine,
			deps.Strategy,
			serviceLogger,
		),
	}, nil
}

// NotifierDeps collects what the notification fan-out needs.
type NotifierDeps struct {
	Repos      *RepositoryBundle
	Dispatcher dispatcher.Dispatcher
	Channels   []port.MessageChannel
	Logger     *zap.Logger
}

// ProvideNotifier creates the notification fan-out and subscribes it on the
// dispatcher.
func ProvideNotifier(deps *NotifierDeps) (*service.Notifier, error) {
	if deps == nil {
		return nil, fmt.Errorf("notifier dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	notifierLogger := newKVLogger(deps.Logger)

	notifier := service.NewNotifier(
		deps.Repos.Notification,
		notifierLogger,
		service.WithChannels(deps.Channels...),
	)
	notifier.Register(deps.Dispatcher)

	return notifier, nil
}

// OrderDocDeps collects what the document generator needs.
type OrderDocDeps struct {
	Cfg        *OrderDocConfig
	Repos      *RepositoryBundle
	Storage    port.FileStorage
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideOrderDocGenerator creates the purchase order document generator and
// subscribes it on the dispatcher.
func ProvideOrderDocGenerator(deps *OrderDocDeps) (*orderdoc.Generator, error) {
	if deps == nil {
		return nil, fmt.Errorf("orderdoc dependencies are required")
	}
	if deps.Cfg == nil {
		return nil, fmt.Errorf("orderdoc config is required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	generator := orderdoc.NewGenerator(
		orderdoc.Config{CompanyName: deps.Cfg.CompanyName},
		deps.Repos.Request,
		deps.Repos.Offer,
		deps.Repos.PurchaseOrder,
		deps.Storage,
		deps.Logger,
	)
	generator.Register(deps.Dispatcher)

	return generator, nil
}

// WorkerDeps collects what the background workers need.
type WorkerDeps struct {
	Repos       *RepositoryBundle
	Engine      engine.Engine
	WorkflowCfg *WorkflowConfig
	Logger      *zap.Logger
}

// ProvideWorkers returns a worker manager with every configured worker
// registered but not yet started.
func ProvideWorkers(deps *WorkerDeps) (*worker.Manager, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if deps.WorkflowCfg == nil {
		return nil, fmt.Errorf("workflow config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewManager(deps.Logger)

	if deps.WorkflowCfg.SweepEnabled {
		sweeperCfg := worker.ExpirySweeperConfig{
			SweepInterval: deps.WorkflowCfg.SweepInterval,
			BatchSize:     deps.WorkflowCfg.SweepBatchSize,
		}
		sweeper := worker.NewExpirySweeper(
			sweeperCfg,
			deps.Repos.Request,
			deps.Engine,
			deps.Logger,
		)
		manager.Register(sweeper)
	}

	return manager, nil
}
