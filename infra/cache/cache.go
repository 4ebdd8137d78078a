// Package cache decorates a store with a TTL cache for reference data.
// Orders are never cached.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kilianp07/carrierchain/core/model"
	"github.com/kilianp07/carrierchain/core/store"
)

// Config sets the cache bounds. A zero Size disables caching.
type Config struct {
	Size int           `json:"size"`
	TTL  time.Duration `json:"ttl"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TTL <= 0 {
		c.TTL = time.Minute
	}
}

type gridKey struct {
	carrierID string
	laneID    string
}

type laneEntry struct {
	lane  model.Lane
	found bool
}

type gridEntry struct {
	grid  model.PricingGrid
	found bool
}

// ReferenceStore caches carriers, lanes and pricing grids of the wrapped
// store. Not-found answers are cached too.
type ReferenceStore struct {
	store.Store
	carriers *expirable.LRU[model.CarrierStatus, []model.Carrier]
	lanes    *expirable.LRU[string, laneEntry]
	grids    *expirable.LRU[gridKey, gridEntry]
}

// Wrap returns s decorated with the cache, or s itself when caching is
// disabled.
func Wrap(s store.Store, cfg Config) store.Store {
	if cfg.Size <= 0 {
		return s
	}
	return New(s, cfg)
}

// New returns a caching decorator over s.
func New(s store.Store, cfg Config) *ReferenceStore {
	cfg.SetDefaults()
	size := cfg.Size
	if size <= 0 {
		size = 1
	}
	return &ReferenceStore{
		Store:    s,
		carriers: expirable.NewLRU[model.CarrierStatus, []model.Carrier](8, nil, cfg.TTL),
		lanes:    expirable.NewLRU[string, laneEntry](size, nil, cfg.TTL),
		grids:    expirable.NewLRU[gridKey, gridEntry](size, nil, cfg.TTL),
	}
}

// FindCarriers implements store.CarrierStore.
func (r *ReferenceStore) FindCarriers(ctx context.Context, f store.CarrierFilter) ([]model.Carrier, error) {
	if cs, ok := r.carriers.Get(f.Status); ok {
		return append([]model.Carrier(nil), cs...), nil
	}
	cs, err := r.Store.FindCarriers(ctx, f)
	if err != nil {
		return nil, err
	}
	r.carriers.Add(f.Status, append([]model.Carrier(nil), cs...))
	return cs, nil
}

// FindLane implements store.LaneStore.
func (r *ReferenceStore) FindLane(ctx context.Context, laneID string) (model.Lane, error) {
	if e, ok := r.lanes.Get(laneID); ok {
		if !e.found {
			return model.Lane{}, store.ErrNotFound
		}
		return cloneLane(e.lane), nil
	}
	l, err := r.Store.FindLane(ctx, laneID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		r.lanes.Add(laneID, laneEntry{})
		return model.Lane{}, err
	case err != nil:
		return model.Lane{}, err
	}
	r.lanes.Add(laneID, laneEntry{lane: cloneLane(l), found: true})
	return l, nil
}

// FindPricingGrid implements store.PricingStore.
func (r *ReferenceStore) FindPricingGrid(ctx context.Context, carrierID, laneID string) (model.PricingGrid, error) {
	k := gridKey{carrierID, laneID}
	if e, ok := r.grids.Get(k); ok {
		if !e.found {
			return model.PricingGrid{}, store.ErrNotFound
		}
		return cloneGrid(e.grid), nil
	}
	g, err := r.Store.FindPricingGrid(ctx, carrierID, laneID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		r.grids.Add(k, gridEntry{})
		return model.PricingGrid{}, err
	case err != nil:
		return model.PricingGrid{}, err
	}
	r.grids.Add(k, gridEntry{grid: cloneGrid(g), found: true})
	return g, nil
}

// Purge drops every cached entry.
func (r *ReferenceStore) Purge() {
	r.carriers.Purge()
	r.lanes.Purge()
	r.grids.Purge()
}

func cloneLane(l model.Lane) model.Lane {
	l.Preferred = append([]model.LaneCarrier(nil), l.Preferred...)
	return l
}

func cloneGrid(g model.PricingGrid) model.PricingGrid {
	g.WeightBrackets = append([]model.WeightBracket(nil), g.WeightBrackets...)
	return g
}
