// Package memory is an in-process implementation of the store contracts. It
// backs tests and single-instance deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/carrierchain/core/model"
	"github.com/kilianp07/carrierchain/core/store"
)

type gridKey struct {
	carrierID string
	laneID    string
}

// Store keeps every record in maps guarded by a single lock. Values are
// copied on the way in and out.
type Store struct {
	mu           sync.RWMutex
	orders       map[string]model.Order
	carriers     map[string]model.Carrier
	carrierOrder []string
	lanes        map[string]model.Lane
	grids        map[gridKey]model.PricingGrid
	now          func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		orders:   make(map[string]model.Order),
		carriers: make(map[string]model.Carrier),
		lanes:    make(map[string]model.Lane),
		grids:    make(map[gridKey]model.PricingGrid),
		now:      time.Now,
	}
}

var _ store.Store = (*Store)(nil)

// PutOrder inserts or replaces an order. A zero version is set to 1.
func (s *Store) PutOrder(o model.Order) {
	cp := o.Clone()
	if cp.Version == 0 {
		cp.Version = 1
	}
	s.mu.Lock()
	s.orders[cp.ID] = cp
	s.mu.Unlock()
}

// PutCarrier inserts or replaces a carrier. Carriers are listed in first
// insertion order.
func (s *Store) PutCarrier(c model.Carrier) {
	cp := c
	cp.Capabilities = append([]model.Capability(nil), c.Capabilities...)
	cp.ServiceArea.Regions = append([]string(nil), c.ServiceArea.Regions...)
	s.mu.Lock()
	if _, ok := s.carriers[c.ID]; !ok {
		s.carrierOrder = append(s.carrierOrder, c.ID)
	}
	s.carriers[c.ID] = cp
	s.mu.Unlock()
}

// PutLane inserts or replaces a lane.
func (s *Store) PutLane(l model.Lane) {
	cp := l
	cp.Preferred = append([]model.LaneCarrier(nil), l.Preferred...)
	s.mu.Lock()
	s.lanes[l.LaneID] = cp
	s.mu.Unlock()
}

// PutPricingGrid inserts or replaces the grid of a carrier on a lane.
func (s *Store) PutPricingGrid(g model.PricingGrid) {
	cp := g
	cp.WeightBrackets = append([]model.WeightBracket(nil), g.WeightBrackets...)
	s.mu.Lock()
	s.grids[gridKey{g.CarrierID, g.LaneID}] = cp
	s.mu.Unlock()
}

// FindOrder implements store.OrderStore.
func (s *Store) FindOrder(_ context.Context, id string) (model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return model.Order{}, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	return o.Clone(), nil
}

// UpdateOrder implements store.OrderStore. The patch is applied only if the
// stored version equals pre.Version.
func (s *Store) UpdateOrder(ctx context.Context, id string, patch model.OrderPatch, pre store.Precondition) (model.Order, error) {
	if err := ctx.Err(); err != nil {
		return model.Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return model.Order{}, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	if o.Version != pre.Version {
		return model.Order{}, fmt.Errorf("order %s at version %d, expected %d: %w", id, o.Version, pre.Version, store.ErrPreconditionFailed)
	}
	patch.Apply(&o)
	o.Version++
	o.UpdatedAt = s.now()
	s.orders[id] = o
	return o.Clone(), nil
}

// FindOrders implements store.OrderStore. Results are sorted by id.
func (s *Store) FindOrders(_ context.Context, f store.OrderFilter) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Order
	for _, o := range s.orders {
		if f.Match(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CountOrders implements store.OrderStore.
func (s *Store) CountOrders(_ context.Context, f store.OrderFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, o := range s.orders {
		if f.Match(o) {
			n++
		}
	}
	return n, nil
}

// FindCarriers implements store.CarrierStore.
func (s *Store) FindCarriers(_ context.Context, f store.CarrierFilter) ([]model.Carrier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Carrier, 0, len(s.carrierOrder))
	for _, id := range s.carrierOrder {
		c := s.carriers[id]
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// FindLane implements store.LaneStore.
func (s *Store) FindLane(_ context.Context, laneID string) (model.Lane, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lanes[laneID]
	if !ok {
		return model.Lane{}, fmt.Errorf("lane %s: %w", laneID, store.ErrNotFound)
	}
	l.Preferred = append([]model.LaneCarrier(nil), l.Preferred...)
	return l, nil
}

// FindPricingGrid implements store.PricingStore.
func (s *Store) FindPricingGrid(_ context.Context, carrierID, laneID string) (model.PricingGrid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grids[gridKey{carrierID, laneID}]
	if !ok {
		return model.PricingGrid{}, fmt.Errorf("pricing grid %s/%s: %w", carrierID, laneID, store.ErrNotFound)
	}
	g.WeightBrackets = append([]model.WeightBracket(nil), g.WeightBrackets...)
	return g, nil
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }
