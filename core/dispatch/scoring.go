package dispatch

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/carrierchain/core/logger"
	"github.com/kilianp07/carrierchain/core/model"
	"github.com/kilianp07/carrierchain/core/store"
)

// Score weights.
const (
	maxReputationScore = 40
	laneRankBase       = 10
	laneRankStep       = 2
	laneHistoryWeight  = 20
	priceCloseScore    = 20
	priceNearScore     = 15
	priceFarScore      = 10
	priceUnknownScore  = 15
	availabilityScore  = 10
	// NeutralScore is given to a carrier whose scoring failed.
	NeutralScore = 50
)

// Scored is a candidate with its final score.
type Scored struct {
	Candidate
	Score          int
	Breakdown      *model.ScoreBreakdown // nil when scoring failed
	EstimatedPrice float64
}

// Scorer computes the multi-factor score of candidates.
type Scorer struct {
	pricing     store.PricingStore
	estimator   PriceEstimator
	concurrency int
	log         logger.Logger
}

// NewScorer returns a scorer comparing estimates from est with grids from ps.
func NewScorer(ps store.PricingStore, est PriceEstimator, concurrency int, log logger.Logger) *Scorer {
	if est == nil {
		est = HeuristicEstimator{}
	}
	if concurrency <= 0 {
		concurrency = DefaultScoringConcurrency
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Scorer{pricing: ps, estimator: est, concurrency: concurrency, log: log}
}

// Score scores every candidate. The output keeps the input order and has the
// same length; a failing candidate gets NeutralScore and no breakdown.
func (s *Scorer) Score(ctx context.Context, order model.Order, candidates []Candidate) []Scored {
	out := make([]Scored, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			sc, err := s.scoreOne(gctx, order, c)
			if err != nil {
				scoringFallbacks.Inc()
				s.log.Warnf("scoring carrier %s for order %s failed, using neutral score: %v", c.Carrier.ID, order.ID, err)
				sc = Scored{Candidate: c, Score: NeutralScore}
				if est, eerr := s.estimator.Estimate(gctx, order, c.Carrier); eerr == nil {
					sc.EstimatedPrice = est
				}
			}
			out[i] = sc
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Scorer) scoreOne(ctx context.Context, order model.Order, c Candidate) (sc Scored, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	est, err := s.estimator.Estimate(ctx, order, c.Carrier)
	if err != nil {
		return Scored{}, fmt.Errorf("estimate price: %w", err)
	}
	grid, hasGrid, err := GridPrice(ctx, s.pricing, c.Carrier.ID, order.LaneID, order.WeightKg)
	if err != nil {
		return Scored{}, fmt.Errorf("pricing grid: %w", err)
	}
	b := model.ScoreBreakdown{
		GlobalScore:       ReputationScore(c.Carrier.Reputation()),
		LaneBonus:         LaneBonus(c),
		PriceScore:        PriceAlignmentScore(est, grid, hasGrid),
		AvailabilityScore: availabilityScore,
	}
	b.Total = b.GlobalScore + b.LaneBonus + b.PriceScore + b.AvailabilityScore
	return Scored{Candidate: c, Score: b.Total, Breakdown: &b, EstimatedPrice: est}, nil
}

// ReputationScore maps a 0-100 carrier score onto 0-40.
func ReputationScore(score float64) int {
	return int(math.Round(score / 100 * maxReputationScore))
}

// LaneBonus returns the 0-30 bonus of a lane-preferred candidate.
func LaneBonus(c Candidate) int {
	if !c.IsLanePreferred {
		return 0
	}
	rank := laneRankBase - c.LaneRank*laneRankStep
	if rank < 0 {
		rank = 0
	}
	return rank + int(math.Round(c.LaneAvgScore/100*laneHistoryWeight))
}

// PriceAlignmentScore rewards estimates close to the negotiated grid price.
func PriceAlignmentScore(estimate, grid float64, hasGrid bool) int {
	if !hasGrid || grid <= 0 {
		return priceUnknownScore
	}
	diff := math.Abs(estimate-grid) / grid
	switch {
	case diff <= 0.10:
		return priceCloseScore
	case diff <= 0.20:
		return priceNearScore
	default:
		return priceFarScore
	}
}
