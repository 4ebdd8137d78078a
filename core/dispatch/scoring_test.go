package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/carrierchain/core/model"
	"github.com/kilianp07/carrierchain/infra/logger"
)

func TestEstimatePrice(t *testing.T) {
	o := baseOrder("o1")
	if p := EstimatePrice(o, 0); p != 532 {
		t.Fatalf("expected 532 got %v", p)
	}
	o.Constraints = []model.Capability{model.CapabilityHazardous, model.CapabilityFrigo, model.CapabilityTailgate}
	if p := EstimatePrice(o, 0); p != 742 {
		t.Fatalf("expected 742 with surcharges got %v", p)
	}
	o.Constraints = nil
	o.DistanceKm = 0
	o.WeightKg = 2500
	if p := EstimatePrice(o, DefaultDistanceKm); p != 495 {
		t.Fatalf("expected 495 with default distance got %v", p)
	}
	if p := EstimatePrice(o, 100); p != 255 {
		t.Fatalf("expected 255 with configured distance got %v", p)
	}
}

func TestReputationScore(t *testing.T) {
	cases := map[float64]int{90: 36, 70: 28, 50: 20, 100: 40, 0: 0}
	for in, want := range cases {
		if got := ReputationScore(in); got != want {
			t.Errorf("ReputationScore(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestLaneBonus(t *testing.T) {
	assert.Equal(t, 0, LaneBonus(Candidate{}))
	assert.Equal(t, 26, LaneBonus(Candidate{IsLanePreferred: true, LaneRank: 1, LaneAvgScore: 90}))
	assert.Equal(t, 10, LaneBonus(Candidate{IsLanePreferred: true, LaneRank: 5, LaneAvgScore: 50}))
	assert.Equal(t, 4, LaneBonus(Candidate{IsLanePreferred: true, LaneRank: 8, LaneAvgScore: 20}))
	assert.Equal(t, 28, LaneBonus(Candidate{IsLanePreferred: true, LaneRank: 1, LaneAvgScore: 100}))
}

func TestPriceAlignmentScore(t *testing.T) {
	assert.Equal(t, 15, PriceAlignmentScore(532, 0, false))
	assert.Equal(t, 20, PriceAlignmentScore(532, 500, true))
	assert.Equal(t, 20, PriceAlignmentScore(550, 500, true))
	assert.Equal(t, 15, PriceAlignmentScore(532, 450, true))
	assert.Equal(t, 10, PriceAlignmentScore(532, 400, true))
}

func TestScorerBreakdown(t *testing.T) {
	r := newRig(t)
	r.store.PutPricingGrid(model.PricingGrid{CarrierID: "c1", LaneID: "L1", Status: model.GridActive, BasePrice: 500})
	o := baseOrder("o1")
	o.LaneID = "L1"
	s := NewScorer(r.store, HeuristicEstimator{}, 2, logger.NopLogger{})
	out := s.Score(context.Background(), o, []Candidate{
		{Carrier: carrier("c1", 90), IsLanePreferred: true, LaneRank: 1, LaneAvgScore: 90},
		{Carrier: carrier("c2", 0)},
	})
	require.Len(t, out, 2)
	require.NotNil(t, out[0].Breakdown)
	assert.Equal(t, model.ScoreBreakdown{GlobalScore: 36, LaneBonus: 26, PriceScore: 20, AvailabilityScore: 10, Total: 92}, *out[0].Breakdown)
	assert.Equal(t, 92, out[0].Score)
	assert.Equal(t, 532.0, out[0].EstimatedPrice)
	// unrated carrier falls back to 70 and has no grid
	assert.Equal(t, 28+15+10, out[1].Score)
}

func TestScorerInactiveGridIgnored(t *testing.T) {
	r := newRig(t)
	r.store.PutPricingGrid(model.PricingGrid{CarrierID: "c1", LaneID: "L1", Status: "archived", BasePrice: 100})
	o := baseOrder("o1")
	o.LaneID = "L1"
	out := NewScorer(r.store, nil, 1, nil).Score(context.Background(), o, []Candidate{{Carrier: carrier("c1", 90)}})
	assert.Equal(t, 15, out[0].Breakdown.PriceScore)
}

func TestScorerFailureUsesNeutralScore(t *testing.T) {
	r := newRig(t)
	r.store.gridFail["c2"] = true
	o := baseOrder("o1")
	o.LaneID = "L1"
	out := NewScorer(r.store, nil, 4, nil).Score(context.Background(), o, []Candidate{
		{Carrier: carrier("c1", 90)},
		{Carrier: carrier("c2", 90)},
	})
	require.Len(t, out, 2)
	assert.NotNil(t, out[0].Breakdown)
	assert.Nil(t, out[1].Breakdown)
	assert.Equal(t, NeutralScore, out[1].Score)
	assert.Equal(t, "c2", out[1].Carrier.ID)
	assert.Equal(t, 532.0, out[1].EstimatedPrice)
}

type panickyEstimator struct{ carrierID string }

func (p panickyEstimator) Estimate(_ context.Context, o model.Order, c model.Carrier) (float64, error) {
	if c.ID == p.carrierID {
		panic("boom")
	}
	return EstimatePrice(o, 0), nil
}

type failingEstimator struct{}

func (failingEstimator) Estimate(context.Context, model.Order, model.Carrier) (float64, error) {
	return 0, errors.New("pricing service down")
}

func TestScorerRecoversPanics(t *testing.T) {
	out := NewScorer(nil, panickyEstimator{carrierID: "c1"}, 2, nil).Score(context.Background(), baseOrder("o1"), []Candidate{
		{Carrier: carrier("c1", 90)},
		{Carrier: carrier("c2", 90)},
	})
	assert.Equal(t, NeutralScore, out[0].Score)
	assert.Nil(t, out[0].Breakdown)
	assert.Equal(t, 61, out[1].Score)
}

func TestScorerEstimatorError(t *testing.T) {
	out := NewScorer(nil, failingEstimator{}, 1, nil).Score(context.Background(), baseOrder("o1"), []Candidate{{Carrier: carrier("c1", 90)}})
	assert.Equal(t, NeutralScore, out[0].Score)
	assert.Zero(t, out[0].EstimatedPrice)
}
