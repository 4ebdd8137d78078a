package dispatch

import (
	"context"
	"errors"
	"math"

	"github.com/kilianp07/carrierchain/core/model"
	"github.com/kilianp07/carrierchain/core/store"
)

// Heuristic price components, in euros.
const (
	priceBase       = 150.0
	pricePerKm      = 0.8
	pricePerTonne   = 10.0
	surchargeADR    = 100.0
	surchargeFrigo  = 80.0
	surchargeHayon  = 30.0
	responseTimeEst = "30min"
)

// PriceEstimator estimates what a carrier would charge for an order.
type PriceEstimator interface {
	Estimate(ctx context.Context, order model.Order, carrier model.Carrier) (float64, error)
}

// HeuristicEstimator prices an order from distance, weight and constraints.
type HeuristicEstimator struct {
	// DefaultDistanceKm is used when the order has no distance.
	DefaultDistanceKm float64
}

// Estimate implements PriceEstimator. The carrier does not influence the
// heuristic.
func (h HeuristicEstimator) Estimate(_ context.Context, order model.Order, _ model.Carrier) (float64, error) {
	return EstimatePrice(order, h.DefaultDistanceKm), nil
}

// EstimatePrice returns round(150 + km*0.8 + tonnes*10 + surcharges).
func EstimatePrice(order model.Order, defaultDistanceKm float64) float64 {
	if defaultDistanceKm <= 0 {
		defaultDistanceKm = DefaultDistanceKm
	}
	dist := order.DistanceKm
	if dist <= 0 {
		dist = defaultDistanceKm
	}
	price := priceBase + dist*pricePerKm + order.WeightKg/1000*pricePerTonne
	if order.Requires(model.CapabilityHazardous) {
		price += surchargeADR
	}
	if order.Requires(model.CapabilityFrigo) {
		price += surchargeFrigo
	}
	if order.Requires(model.CapabilityTailgate) {
		price += surchargeHayon
	}
	return math.Round(price)
}

// GridPrice looks up the negotiated price of the carrier on the lane. The
// boolean is false when no active grid applies.
func GridPrice(ctx context.Context, ps store.PricingStore, carrierID, laneID string, weightKg float64) (float64, bool, error) {
	if ps == nil || laneID == "" {
		return 0, false, nil
	}
	var grid model.PricingGrid
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		grid, err = ps.FindPricingGrid(ctx, carrierID, laneID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if grid.Status != model.GridActive {
		return 0, false, nil
	}
	p, ok := grid.PriceFor(weightKg)
	return p, ok, nil
}
