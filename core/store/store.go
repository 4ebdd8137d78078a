// Package store defines the persistence contracts consumed by the dispatch
// engine. Implementations live under infra/store.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/carrierchain/core/model"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPreconditionFailed is returned when a conditional update lost the race
	// against a concurrent writer.
	ErrPreconditionFailed = errors.New("precondition failed")
)

// Precondition guards UpdateOrder. The update is applied only when the stored
// order still carries Version.
type Precondition struct {
	Version int64
}

// OrderFilter selects orders. Zero-valued fields are ignored.
type OrderFilter struct {
	AssignedCarrierID string
	Statuses          []model.OrderStatus
	// SentDeadlineBefore selects orders holding a sent entry whose response
	// deadline is strictly before the given time.
	SentDeadlineBefore time.Time
	// ExcludeStatuses drops orders in any of these statuses.
	ExcludeStatuses []model.OrderStatus
	// Exhausted selects unassigned orders whose chain has entries and none
	// pending or sent.
	Exhausted bool
	// HandoffPending selects orders whose marketplace handoff has not
	// succeeded yet.
	HandoffPending bool
}

// DocumentOnly reports whether the filter uses predicates that only the
// full order document can answer.
func (f OrderFilter) DocumentOnly() bool { return f.Exhausted || f.HandoffPending }

// Match reports whether the order satisfies the filter. Backends without a
// native query language use it directly.
func (f OrderFilter) Match(o model.Order) bool {
	if f.AssignedCarrierID != "" && o.AssignedCarrierID != f.AssignedCarrierID {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, o.Status) {
		return false
	}
	if len(f.ExcludeStatuses) > 0 && containsStatus(f.ExcludeStatuses, o.Status) {
		return false
	}
	if f.Exhausted && (o.Assigned() || !model.Exhausted(o.DispatchChain)) {
		return false
	}
	if f.HandoffPending && !o.HandoffPending {
		return false
	}
	if !f.SentDeadlineBefore.IsZero() {
		idx := model.SentIndex(o.DispatchChain)
		if idx < 0 || !o.DispatchChain[idx].Timeout.Before(f.SentDeadlineBefore) {
			return false
		}
	}
	return true
}

func containsStatus(list []model.OrderStatus, s model.OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// CarrierFilter selects carriers. An empty Status matches every carrier.
type CarrierFilter struct {
	Status model.CarrierStatus
}

// OrderStore persists transport orders.
type OrderStore interface {
	FindOrder(ctx context.Context, id string) (model.Order, error)
	// UpdateOrder applies patch when pre holds and returns the stored order.
	UpdateOrder(ctx context.Context, id string, patch model.OrderPatch, pre Precondition) (model.Order, error)
	FindOrders(ctx context.Context, f OrderFilter) ([]model.Order, error)
	CountOrders(ctx context.Context, f OrderFilter) (int, error)
}

// CarrierStore exposes the carrier referential.
type CarrierStore interface {
	FindCarriers(ctx context.Context, f CarrierFilter) ([]model.Carrier, error)
}

// LaneStore exposes lane history.
type LaneStore interface {
	FindLane(ctx context.Context, laneID string) (model.Lane, error)
}

// PricingStore exposes negotiated pricing grids.
type PricingStore interface {
	FindPricingGrid(ctx context.Context, carrierID, laneID string) (model.PricingGrid, error)
}

// Store aggregates every contract of the package.
type Store interface {
	OrderStore
	CarrierStore
	LaneStore
	PricingStore
	Close() error
}
