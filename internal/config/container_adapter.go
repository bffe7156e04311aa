package config

import (
	"github.com/procurahq/procura/internal/container"
)

// ToContainerConfig maps the file-based configuration onto the container's
// plain config struct. Server settings are absent on purpose: they flow to
// the HTTP server directly, not through the container.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Workflow: container.WorkflowConfig{
			DefaultBiddingCycleDays: c.Workflow.DefaultBiddingCycleDays,
			SweepEnabled:            c.Workflow.SweepEnabled,
			SweepInterval:           c.Workflow.SweepInterval,
			SweepBatchSize:          c.Workflow.SweepBatchSize,
		},
		Evaluator: container.EvaluatorConfig{
			Strategy:          c.Evaluator.Strategy,
			PriceWeight:       c.Evaluator.Weights.Price,
			DeliveryWeight:    c.Evaluator.Weights.Delivery,
			CoverageWeight:    c.Evaluator.Weights.Coverage,
			OpenAIAPIKey:      c.Evaluator.OpenAI.APIKey,
			OpenAIModel:       c.Evaluator.OpenAI.Model,
			OpenAITemperature: c.Evaluator.OpenAI.Temperature,
		},
		OrderDoc: container.OrderDocConfig{
			Enabled:     c.OrderDoc.Enabled,
			OutputDir:   c.OrderDoc.OutputDir,
			CompanyName: c.OrderDoc.CompanyName,
		},
		Lark: container.LarkConfig{
			Enabled:       c.Lark.Enabled,
			AppID:         c.Lark.AppID,
			AppSecret:     c.Lark.AppSecret,
			ReceiveIDType: c.Lark.ReceiveIDType,
			Recipients:    c.Lark.Recipients,
		},
		Identity: container.IdentityConfig{
			RoleAliases: c.Identity.RoleAliases,
		},
	}
}
