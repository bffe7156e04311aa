// Package container wires the application together: it builds every
// component from configuration, owns their start order, and tears them
// down in reverse on shutdown.
package container

import (
	"fmt"
	"time"
)

// Config carries the settings for every component the Container builds.
// It is plain data so callers can fill it from a file, the environment,
// or literals in tests.
type Config struct {
	Database  DatabaseConfig
	Workflow  WorkflowConfig
	Evaluator EvaluatorConfig
	OrderDoc  OrderDocConfig
	Lark      LarkConfig
	Identity  IdentityConfig
}

// DatabaseConfig carries SQLite connection and migration settings.
type DatabaseConfig struct {
	// Path of the SQLite file; parent directories are created on start
	Path string

	// Pool limits passed through to database/sql
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MigrationsDir holds the numbered .sql migration files
	MigrationsDir string
}

// WorkflowConfig holds request lifecycle settings.
type WorkflowConfig struct {
	// DefaultBiddingCycleDays applies when a request carries no cycle of its own
	DefaultBiddingCycleDays int

	// SweepEnabled turns the background expiry sweeper on
	SweepEnabled bool

	// SweepInterval is the time between sweeps
	SweepInterval time.Duration

	// SweepBatchSize caps how many requests one listing page holds
	SweepBatchSize int
}

// EvaluatorConfig holds offer ranking settings.
type EvaluatorConfig struct {
	// Strategy selects the ranking strategy ("weighted" or "openai")
	Strategy string

	// Weights for the weighted strategy
	PriceWeight    float64
	DeliveryWeight float64
	CoverageWeight float64

	// OpenAI settings for the model-backed strategy
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAITemperature float32
}

// OrderDocConfig holds purchase order document settings.
type OrderDocConfig struct {
	// Enabled turns document generation on
	Enabled bool

	// OutputDir is the storage root for generated documents
	OutputDir string

	// CompanyName printed on document headers
	CompanyName string
}

// LarkConfig holds Lark IM delivery settings.
type LarkConfig struct {
	// Enabled turns IM delivery on
	Enabled bool

	// AppID and AppSecret are the Lark app credentials
	AppID     string
	AppSecret string

	// ReceiveIDType is the id namespace of the configured recipients
	ReceiveIDType string

	// Recipients maps usernames and role names to Lark receive ids
	Recipients map[string]string
}

// IdentityConfig holds identity normalization settings.
type IdentityConfig struct {
	// RoleAliases extends the built-in alias table mapping deployment
	// titles to workflow roles
	RoleAliases map[string]string
}

// DefaultConfig returns the configuration a bare server run uses: a local
// SQLite file, the weighted evaluator, document generation on, and Lark
// delivery off.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/procura.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			MigrationsDir:   "migrations",
		},
		Workflow: WorkflowConfig{
			DefaultBiddingCycleDays: 7,
			SweepEnabled:            true,
			SweepInterval:           time.Minute,
			SweepBatchSize:          100,
		},
		Evaluator: EvaluatorConfig{
			Strategy:          "weighted",
			PriceWeight:       0.5,
			DeliveryWeight:    0.3,
			CoverageWeight:    0.2,
			OpenAIModel:       "gpt-4o-mini",
			OpenAITemperature: 0.2,
		},
		OrderDoc: OrderDocConfig{
			Enabled:     true,
			OutputDir:   "data/documents",
			CompanyName: "Procura",
		},
		Lark: LarkConfig{
			ReceiveIDType: "open_id",
		},
	}
}

// Validate rejects configurations the container cannot start with. It runs
// again inside NewContainer so programmatically built configs get the same
// checks as file-loaded ones.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Workflow.DefaultBiddingCycleDays < 0 {
		return fmt.Errorf("workflow.default_bidding_cycle_days must not be negative")
	}
	if c.Workflow.SweepEnabled && c.Workflow.SweepInterval <= 0 {
		return fmt.Errorf("workflow.sweep_interval must be positive when the sweep is enabled")
	}

	switch c.Evaluator.Strategy {
	case "", "weighted", "openai":
	default:
		return fmt.Errorf("evaluator.strategy must be weighted or openai, got %q", c.Evaluator.Strategy)
	}

	// The output directory backs document downloads even when generation
	// is switched off, so it is always required.
	if c.OrderDoc.OutputDir == "" {
		return fmt.Errorf("orderdoc.output_dir is required")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required when lark is enabled")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required when lark is enabled")
		}
	}

	return nil
}
