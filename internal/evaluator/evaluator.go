// Package evaluator ranks the offers of a request in bid evaluation.
// Strategies are advisory: they score and order offers but never touch
// request state, so the recommend decision stays with the evaluator.
package evaluator

import (
	"context"

	"go.uber.org/zap"

	"github.com/procurahq/procura/internal/domain/entity"
)

// ScoredOffer pairs an offer with its computed score. Rank is 1-based,
// best offer first.
type ScoredOffer struct {
	Offer     *entity.Offer `json:"offer"`
	Score     float64       `json:"score"`
	Rank      int           `json:"rank"`
	Rationale string        `json:"rationale,omitempty"`
}

// Strategy ranks the offers of one request
type Strategy interface {
	Rank(ctx context.Context, req *entity.Request, offers []*entity.Offer) ([]ScoredOffer, error)
	Name() string
}

// Config selects and parameterizes the ranking strategy
type Config struct {
	Strategy string
	Weights  Weights
	OpenAI   OpenAIConfig
}

// New builds the configured strategy. Unknown strategy names and an
// openai selection without an API key fall back to the weighted formula.
func New(cfg Config, logger *zap.Logger) Strategy {
	weighted := NewWeighted(cfg.Weights)

	switch cfg.Strategy {
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			logger.Warn("OpenAI strategy selected without api key, using weighted")
			return weighted
		}
		return NewOpenAI(cfg.OpenAI, weighted, logger)
	case "", "weighted":
		return weighted
	default:
		logger.Warn("Unknown evaluator strategy, using weighted",
			zap.String("strategy", cfg.Strategy))
		return weighted
	}
}
