package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/procurahq/procura/internal/domain/entity"
)

// OpenAIConfig holds the chat-model settings for the AI strategy
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
}

// chatCompleter is the slice of the OpenAI client the strategy needs
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI asks a chat model to rank the offers. Any API or parse failure
// falls back to the weighted formula, so a flaky model can only ever
// degrade ranking quality, not availability.
type OpenAI struct {
	client      chatCompleter
	model       string
	temperature float32
	fallback    *Weighted
	logger      *zap.Logger
}

// NewOpenAI creates the AI strategy with the given fallback
func NewOpenAI(cfg OpenAIConfig, fallback *Weighted, logger *zap.Logger) *OpenAI {
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{
		client:      openai.NewClient(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		fallback:    fallback,
		logger:      logger,
	}
}

// Name identifies the strategy
func (s *OpenAI) Name() string {
	return "openai"
}

type rankedEntry struct {
	OfferID string  `json:"offer_id"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason"`
}

type rankingResponse struct {
	Ranking []rankedEntry `json:"ranking"`
}

// Rank asks the model for a scored ordering of the offers
func (s *OpenAI) Rank(ctx context.Context, req *entity.Request, offers []*entity.Offer) ([]ScoredOffer, error) {
	if len(offers) == 0 {
		return []ScoredOffer{}, nil
	}

	prompt, err := s.buildPrompt(req, offers)
	if err != nil {
		return s.fallback.Rank(ctx, req, offers)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: s.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a procurement analyst. Rank supplier offers for a purchase request by overall value: price, delivery time and staffing coverage. Always respond with valid JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		s.logger.Warn("OpenAI ranking call failed, using weighted fallback",
			zap.String("request_id", req.ID),
			zap.Error(err))
		return s.fallback.Rank(ctx, req, offers)
	}
	if len(resp.Choices) == 0 {
		s.logger.Warn("OpenAI returned no choices, using weighted fallback",
			zap.String("request_id", req.ID))
		return s.fallback.Rank(ctx, req, offers)
	}

	scored, ok := s.parseRanking(resp.Choices[0].Message.Content, offers)
	if !ok {
		s.logger.Warn("OpenAI ranking unparseable, using weighted fallback",
			zap.String("request_id", req.ID))
		return s.fallback.Rank(ctx, req, offers)
	}

	return scored, nil
}

func (s *OpenAI) buildPrompt(req *entity.Request, offers []*entity.Offer) (string, error) {
	type offerView struct {
		OfferID      string  `json:"offer_id"`
		Provider     string  `json:"provider"`
		Price        float64 `json:"price"`
		Currency     string  `json:"currency"`
		DeliveryDays int     `json:"delivery_days"`
		CoverageSize int     `json:"coverage_units"`
		Notes        string  `json:"notes,omitempty"`
	}

	views := make([]offerView, 0, len(offers))
	for _, o := range offers {
		views = append(views, offerView{
			OfferID:      o.ID,
			Provider:     o.Provider,
			Price:        o.Price,
			Currency:     o.Currency,
			DeliveryDays: o.DeliveryDays,
			CoverageSize: coverageUnits(o),
			Notes:        o.Notes,
		})
	}
	offersJSON, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`Rank these offers for the purchase request below.

**Request:**
- Title: %s
- Description: %s

**Offers:**
%s

Respond with ONLY a valid JSON object of this exact structure:
{
  "ranking": [
    {"offer_id": "string", "score": number between 0.0 and 1.0, "reason": "string"}
  ]
}

Include every offer exactly once. Higher score means better value.`,
		req.Title,
		req.Description,
		string(offersJSON),
	), nil
}

// parseRanking maps the model output back onto the offers. The result is
// only accepted when every offer appears exactly once.
func (s *OpenAI) parseRanking(content string, offers []*entity.Offer) ([]ScoredOffer, bool) {
	var parsed rankingResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		block := jsonBlock(content)
		if block == "" {
			return nil, false
		}
		if err := json.Unmarshal([]byte(block), &parsed); err != nil {
			return nil, false
		}
	}

	byID := make(map[string]*entity.Offer, len(offers))
	for _, o := range offers {
		byID[o.ID] = o
	}

	scored := make([]ScoredOffer, 0, len(offers))
	for _, entry := range parsed.Ranking {
		offer, ok := byID[entry.OfferID]
		if !ok {
			return nil, false
		}
		delete(byID, entry.OfferID)
		scored = append(scored, ScoredOffer{
			Offer:     offer,
			Score:     entry.Score,
			Rationale: entry.Reason,
		})
	}
	if len(byID) != 0 {
		return nil, false
	}

	// Model ordering is advisory; the scores are authoritative
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored, true
}

// jsonBlock pulls the first top-level JSON object out of a response that
// wrapped it in markdown fences or prose
func jsonBlock(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

var _ Strategy = (*OpenAI)(nil)
