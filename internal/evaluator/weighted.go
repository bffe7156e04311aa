package evaluator

import (
	"context"
	"fmt"
	"sort"

	"github.com/procurahq/procura/internal/domain/entity"
)

// Weights control the relative pull of each scoring dimension. They are
// normalized to sum to 1 at construction.
type Weights struct {
	Price    float64
	Delivery float64
	Coverage float64
}

// DefaultWeights favors price over delivery speed over coverage size
func DefaultWeights() Weights {
	return Weights{Price: 0.5, Delivery: 0.3, Coverage: 0.2}
}

// Weighted scores offers with a normalized linear formula: the cheapest
// offer, the fastest delivery and the largest coverage each score 1.0 on
// their dimension, everything else proportionally less.
type Weighted struct {
	weights Weights
}

// NewWeighted creates the formula strategy. Non-positive weight sums fall
// back to the defaults.
func NewWeighted(w Weights) *Weighted {
	total := w.Price + w.Delivery + w.Coverage
	if total <= 0 {
		w = DefaultWeights()
		total = w.Price + w.Delivery + w.Coverage
	}
	w.Price /= total
	w.Delivery /= total
	w.Coverage /= total
	return &Weighted{weights: w}
}

// Name identifies the strategy
func (s *Weighted) Name() string {
	return "weighted"
}

// Rank scores and orders the offers, best first. Ties break on earlier
// submission, then offer id, so the ordering is stable across calls.
func (s *Weighted) Rank(ctx context.Context, req *entity.Request, offers []*entity.Offer) ([]ScoredOffer, error) {
	if len(offers) == 0 {
		return []ScoredOffer{}, nil
	}

	minPrice := offers[0].Price
	minDays, maxDays := offers[0].DeliveryDays, offers[0].DeliveryDays
	maxUnits := coverageUnits(offers[0])
	for _, o := range offers[1:] {
		if o.Price < minPrice {
			minPrice = o.Price
		}
		if o.DeliveryDays < minDays {
			minDays = o.DeliveryDays
		}
		if o.DeliveryDays > maxDays {
			maxDays = o.DeliveryDays
		}
		if u := coverageUnits(o); u > maxUnits {
			maxUnits = u
		}
	}

	scored := make([]ScoredOffer, 0, len(offers))
	for _, o := range offers {
		priceScore := 0.0
		if o.Price > 0 {
			priceScore = minPrice / o.Price
		}

		deliveryScore := 1.0
		if maxDays > minDays {
			deliveryScore = float64(maxDays-o.DeliveryDays) / float64(maxDays-minDays)
		}

		coverageScore := 0.0
		if maxUnits > 0 {
			coverageScore = float64(coverageUnits(o)) / float64(maxUnits)
		}

		score := s.weights.Price*priceScore +
			s.weights.Delivery*deliveryScore +
			s.weights.Coverage*coverageScore

		scored = append(scored, ScoredOffer{
			Offer: o,
			Score: score,
			Rationale: fmt.Sprintf("price %.2f, delivery %.2f, coverage %.2f",
				priceScore, deliveryScore, coverageScore),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if !scored[i].Offer.CreatedAt.Equal(scored[j].Offer.CreatedAt) {
			return scored[i].Offer.CreatedAt.Before(scored[j].Offer.CreatedAt)
		}
		return scored[i].Offer.ID < scored[j].Offer.ID
	})
	for i := range scored {
		scored[i].Rank = i + 1
	}

	return scored, nil
}

func coverageUnits(o *entity.Offer) int {
	units := 0
	for _, c := range o.Coverage {
		units += c.Count
	}
	return units
}

var _ Strategy = (*Weighted)(nil)
