package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/carrierchain/core/model"
	"github.com/kilianp07/carrierchain/core/store"
	"github.com/kilianp07/carrierchain/infra/store/memory"
)

type countingStore struct {
	*memory.Store
	lanes, grids, carriers int
	laneErr                error
}

func (c *countingStore) FindLane(ctx context.Context, id string) (model.Lane, error) {
	c.lanes++
	if c.laneErr != nil {
		return model.Lane{}, c.laneErr
	}
	return c.Store.FindLane(ctx, id)
}

func (c *countingStore) FindPricingGrid(ctx context.Context, carrierID, laneID string) (model.PricingGrid, error) {
	c.grids++
	return c.Store.FindPricingGrid(ctx, carrierID, laneID)
}

func (c *countingStore) FindCarriers(ctx context.Context, f store.CarrierFilter) ([]model.Carrier, error) {
	c.carriers++
	return c.Store.FindCarriers(ctx, f)
}

func newCounting() *countingStore {
	s := &countingStore{Store: memory.New()}
	s.PutCarrier(model.Carrier{ID: "c1", Status: model.CarrierActive})
	s.PutLane(model.Lane{LaneID: "L1", Preferred: []model.LaneCarrier{{CarrierID: "c1", AvgScore: 80}}})
	s.PutPricingGrid(model.PricingGrid{CarrierID: "c1", LaneID: "L1", Status: model.GridActive, BasePrice: 500})
	return s
}

func TestReferenceStoreCachesHitsAndMisses(t *testing.T) {
	backend := newCounting()
	c := New(backend, Config{Size: 16, TTL: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l, err := c.FindLane(ctx, "L1")
		require.NoError(t, err)
		assert.Len(t, l.Preferred, 1)
		_, err = c.FindLane(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
		g, err := c.FindPricingGrid(ctx, "c1", "L1")
		require.NoError(t, err)
		assert.Equal(t, 500.0, g.BasePrice)
		cs, err := c.FindCarriers(ctx, store.CarrierFilter{Status: model.CarrierActive})
		require.NoError(t, err)
		assert.Len(t, cs, 1)
	}
	assert.Equal(t, 2, backend.lanes)
	assert.Equal(t, 1, backend.grids)
	assert.Equal(t, 1, backend.carriers)

	c.Purge()
	_, _ = c.FindLane(ctx, "L1")
	assert.Equal(t, 3, backend.lanes)
}

func TestReferenceStoreDoesNotCacheErrors(t *testing.T) {
	backend := newCounting()
	backend.laneErr = errors.New("timeout")
	c := New(backend, Config{Size: 4})
	_, err := c.FindLane(context.Background(), "L1")
	assert.Error(t, err)
	backend.laneErr = nil
	_, err = c.FindLane(context.Background(), "L1")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.lanes)
}

func TestReferenceStoreReturnsCopies(t *testing.T) {
	c := New(newCounting(), Config{Size: 4})
	l, _ := c.FindLane(context.Background(), "L1")
	l.Preferred[0].CarrierID = "mutated"
	again, _ := c.FindLane(context.Background(), "L1")
	assert.Equal(t, "c1", again.Preferred[0].CarrierID)
}

func TestWrapDisabled(t *testing.T) {
	backend := newCounting()
	assert.Same(t, backend, Wrap(backend, Config{}).(*countingStore))
	_, ok := Wrap(backend, Config{Size: 1}).(*ReferenceStore)
	assert.True(t, ok)
}

func TestReferenceStoreExpires(t *testing.T) {
	backend := newCounting()
	c := New(backend, Config{Size: 4, TTL: 20 * time.Millisecond})
	_, _ = c.FindLane(context.Background(), "L1")
	time.Sleep(60 * time.Millisecond)
	_, _ = c.FindLane(context.Background(), "L1")
	assert.Equal(t, 2, backend.lanes)
}
