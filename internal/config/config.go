package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration tree, loaded once at startup.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Evaluator EvaluatorConfig `mapstructure:"evaluator"`
	OrderDoc  OrderDocConfig  `mapstructure:"orderdoc"`
	Lark      LarkConfig      `mapstructure:"lark"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// WorkflowConfig controls request lifecycle behavior, most importantly the
// bidding cycle length and the expiry sweep.
type WorkflowConfig struct {
	DefaultBiddingCycleDays int           `mapstructure:"default_bidding_cycle_days"`
	SweepEnabled            bool          `mapstructure:"sweep_enabled"`
	SweepInterval           time.Duration `mapstructure:"sweep_interval"`
	SweepBatchSize          int           `mapstructure:"sweep_batch_size"`
}

// EvaluatorConfig selects and tunes the offer ranking strategy.
type EvaluatorConfig struct {
	Strategy string        `mapstructure:"strategy"`
	Weights  WeightsConfig `mapstructure:"weights"`
	OpenAI   OpenAIConfig  `mapstructure:"openai"`
}

// WeightsConfig carries the scoring weights of the weighted strategy.
type WeightsConfig struct {
	Price    float64 `mapstructure:"price"`
	Delivery float64 `mapstructure:"delivery"`
	Coverage float64 `mapstructure:"coverage"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
}

type OrderDocConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	OutputDir   string `mapstructure:"output_dir"`
	CompanyName string `mapstructure:"company_name"`
}

// LarkConfig holds Lark IM delivery configuration. Recipients maps usernames
// and role names to Lark receive ids; notifications for anyone unmapped stay
// in-app only.
type LarkConfig struct {
	Enabled       bool              `mapstructure:"enabled"`
	AppID         string            `mapstructure:"app_id"`
	AppSecret     string            `mapstructure:"app_secret"`
	ReceiveIDType string            `mapstructure:"receive_id_type"`
	Recipients    map[string]string `mapstructure:"recipients"`
}

// IdentityConfig extends the built-in role aliases with deployment-specific
// ones.
type IdentityConfig struct {
	RoleAliases map[string]string `mapstructure:"role_aliases"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// defaults apply before the file is read; anything set in the file or the
// environment wins over them.
var defaults = map[string]interface{}{
	"server.host":          "0.0.0.0",
	"server.port":          8080,
	"server.read_timeout":  30 * time.Second,
	"server.write_timeout": 30 * time.Second,

	"database.path":              "data/procura.db",
	"database.max_open_conns":    25,
	"database.max_idle_conns":    5,
	"database.conn_max_lifetime": 5 * time.Minute,
	"database.migrations_dir":    "migrations",

	"workflow.default_bidding_cycle_days": 7,
	"workflow.sweep_enabled":              true,
	"workflow.sweep_interval":             time.Minute,
	"workflow.sweep_batch_size":           100,

	"evaluator.strategy":           "weighted",
	"evaluator.weights.price":      0.5,
	"evaluator.weights.delivery":   0.3,
	"evaluator.weights.coverage":   0.2,
	"evaluator.openai.model":       "gpt-4o-mini",
	"evaluator.openai.temperature": 0.2,

	"orderdoc.enabled":      true,
	"orderdoc.output_dir":   "data/documents",
	"orderdoc.company_name": "Procura",

	"lark.enabled":         false,
	"lark.receive_id_type": "open_id",

	"logger.level":       "info",
	"logger.output_path": "stdout",
	"logger.format":      "json",
}

// envOverrides routes credentials and per-deployment settings through the
// environment so they never have to live in the config file.
var envOverrides = map[string]string{
	"lark.app_id":              "LARK_APP_ID",
	"lark.app_secret":          "LARK_APP_SECRET",
	"evaluator.openai.api_key": "OPENAI_API_KEY",
	"database.path":            "PROCURA_DB_PATH",
	"server.port":              "PROCURA_PORT",
}

// Load reads the YAML file at configPath, layers environment overrides on
// top, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, env := range envOverrides {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

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
