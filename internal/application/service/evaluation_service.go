package service

import (
	"context"
	"fmt"

	"github.com/procurahq/procura/internal/application/engine"
	"github.com/procurahq/procura/internal/application/port"
	"github.com/procurahq/procura/internal/domain/identity"
	"github.com/procurahq/procura/internal/domain/workflow"
	"github.com/procurahq/procura/internal/evaluator"
)

// EvaluationService exposes the advisory offer ranking. The ranking never
// changes request state; recommending stays a separate, explicit
// transition.
type EvaluationService interface {
	RankOffers(ctx context.Context, actor identity.Actor, requestID string) ([]evaluator.ScoredOffer, error)
}

type evaluationServiceImpl struct {
	offerRepo port.OfferRepository
	engine    engine.Engine
	strategy  evaluator.Strategy
	logger    Logger
}

// NewEvaluationService creates a new EvaluationService using the given
// ranking strategy.
func NewEvaluationService(
	offerRepo port.OfferRepository,
	eng engine.Engine,
	strategy evaluator.Strategy,
	logger Logger,
) EvaluationService {
	return &evaluationServiceImpl{
		offerRepo: offerRepo,
		engine:    eng,
		strategy:  strategy,
		logger:    logger,
	}
}

// RankOffers returns the request's offers scored and ordered, best first.
// Only evaluators and admins may call it, and only once bidding has
// closed with offers on the table.
func (s *evaluationServiceImpl) RankOffers(ctx context.Context, actor identity.Actor, requestID string) ([]evaluator.ScoredOffer, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if actor.Role != identity.RoleEvaluator && actor.Role != identity.RoleAdmin {
		return nil, fmt.Errorf("%w: role %s cannot rank offers", workflow.ErrForbidden, actor.Role)
	}

	req, err := s.engine.Refresh(ctx, requestID)
	if err != nil {
		return nil, err
	}
	switch req.Status {
	case workflow.StateBidEvaluation, workflow.StateRecommended, workflow.StateSentToOrdering, workflow.StateOrdered:
	default:
		return nil, fmt.Errorf("%w: request is %s, ranking is available once bidding has closed", workflow.ErrInvalidState, req.Status)
	}

	offers, err := s.offerRepo.ListByRequestID(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	scored, err := s.strategy.Rank(ctx, req, offers)
	if err != nil {
		return nil, fmt.Errorf("rank offers: %w", err)
	}

	s.logger.Info("Offers ranked",
		"request_id", req.ID,
		"strategy", s.strategy.Name(),
		"offers", len(scored),
	)
	return scored, nil
}
