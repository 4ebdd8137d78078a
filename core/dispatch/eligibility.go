package dispatch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/carrierchain/core/logger"
	"github.com/kilianp07/carrierchain/core/model"
	"github.com/kilianp07/carrierchain/core/store"
)

// EligibilityFilter removes carriers violating a hard constraint of the order.
type EligibilityFilter struct {
	orders        store.OrderStore
	maxConcurrent int
	concurrency   int
	log           logger.Logger
}

// NewEligibilityFilter returns a filter counting in-progress orders through
// orders. A carrier holding maxConcurrent or more in-progress orders is
// excluded.
func NewEligibilityFilter(orders store.OrderStore, maxConcurrent, concurrency int, log logger.Logger) *EligibilityFilter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentOrders
	}
	if concurrency <= 0 {
		concurrency = DefaultScoringConcurrency
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &EligibilityFilter{orders: orders, maxConcurrent: maxConcurrent, concurrency: concurrency, log: log}
}

// Filter returns the carriers allowed to receive the order, in input order.
func (f *EligibilityFilter) Filter(ctx context.Context, order model.Order, carriers []model.Carrier) []model.Carrier {
	static := make([]model.Carrier, 0, len(carriers))
	for _, c := range carriers {
		if reason := staticExclusion(order, c); reason != "" {
			f.log.Debugw("carrier excluded", map[string]any{"order_id": order.ID, "carrier_id": c.ID, "reason": reason})
			continue
		}
		static = append(static, c)
	}
	if f.orders == nil || len(static) == 0 {
		return static
	}

	keep := make([]bool, len(static))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, c := range static {
		g.Go(func() error {
			var n int
			err := withRetry(gctx, func(ctx context.Context) error {
				var err error
				n, err = f.orders.CountOrders(ctx, store.OrderFilter{
					AssignedCarrierID: c.ID,
					Statuses:          model.InProgressStatuses,
				})
				return err
			})
			if err != nil {
				f.log.Warnf("capacity count failed for carrier %s, excluding: %v", c.ID, err)
				return nil
			}
			if n >= f.maxConcurrent {
				f.log.Debugw("carrier excluded", map[string]any{"order_id": order.ID, "carrier_id": c.ID, "reason": "capacity", "in_progress": n})
				return nil
			}
			keep[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.Carrier, 0, len(static))
	for i, c := range static {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out
}

// staticExclusion returns why the carrier cannot take the order, ignoring
// capacity, or an empty string.
func staticExclusion(order model.Order, c model.Carrier) string {
	if !c.VigilanceClear() {
		return "vigilance"
	}
	if !c.HasCapabilities(order.Constraints) {
		return "capabilities"
	}
	if c.MaxWeightKg > 0 && order.WeightKg > c.MaxWeightKg {
		return "weight"
	}
	if !c.ServiceArea.Covers(order.Pickup.Region()) || !c.ServiceArea.Covers(order.Delivery.Region()) {
		return "service_area"
	}
	return ""
}
