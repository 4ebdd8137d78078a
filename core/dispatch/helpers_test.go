package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/carrierchain/core/events"
	"github.com/kilianp07/carrierchain/core/model"
	"github.com/kilianp07/carrierchain/core/notify"
	"github.com/kilianp07/carrierchain/core/store"
	"github.com/kilianp07/carrierchain/infra/store/memory"
)

var errTransient = errors.New("connection reset")

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// recordingNotifier keeps every offer it was asked to deliver.
type recordingNotifier struct {
	mu     sync.Mutex
	offers []notify.Offer
	fail   map[string]bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{fail: make(map[string]bool)}
}

func (n *recordingNotifier) NotifyCarrier(_ context.Context, carrierID, orderID string, offer notify.Offer) (notify.DeliveryResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offers = append(n.offers, offer)
	if n.fail[carrierID] {
		return notify.DeliveryResult{}, notify.ErrUndeliverable
	}
	return notify.DeliveryResult{MessageID: orderID + "-" + carrierID, Channel: "test", SentAt: time.Now()}, nil
}

func (n *recordingNotifier) sent() []notify.Offer {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Offer(nil), n.offers...)
}

// recordingPublisher keeps published events.
type recordingPublisher struct {
	mu  sync.Mutex
	evs []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	p.evs = append(p.evs, e)
	p.mu.Unlock()
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.evs))
	for i, e := range p.evs {
		out[i] = e.Kind()
	}
	return out
}

// recordingFallback keeps the orders handed to the marketplace.
type recordingFallback struct {
	mu     sync.Mutex
	orders []string
	err    error
}

func (f *recordingFallback) Handoff(_ context.Context, o model.Order, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, o.ID)
	return f.err
}

// flakyStore wraps the memory store with failure injection.
type flakyStore struct {
	*memory.Store
	mu            sync.Mutex
	countFail     map[string]bool
	gridFail      map[string]bool
	laneErr       error
	carriersErr   error
	findErrs      int
	conflictsLeft int
	// beforeUpdate runs once before the next UpdateOrder.
	beforeUpdate func()
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: memory.New(), countFail: map[string]bool{}, gridFail: map[string]bool{}}
}

func (f *flakyStore) CountOrders(ctx context.Context, flt store.OrderFilter) (int, error) {
	f.mu.Lock()
	fail := f.countFail[flt.AssignedCarrierID]
	f.mu.Unlock()
	if fail {
		return 0, errTransient
	}
	return f.Store.CountOrders(ctx, flt)
}

func (f *flakyStore) FindPricingGrid(ctx context.Context, carrierID, laneID string) (model.PricingGrid, error) {
	f.mu.Lock()
	fail := f.gridFail[carrierID]
	f.mu.Unlock()
	if fail {
		return model.PricingGrid{}, errTransient
	}
	return f.Store.FindPricingGrid(ctx, carrierID, laneID)
}

func (f *flakyStore) FindLane(ctx context.Context, laneID string) (model.Lane, error) {
	if f.laneErr != nil {
		return model.Lane{}, f.laneErr
	}
	return f.Store.FindLane(ctx, laneID)
}

func (f *flakyStore) FindCarriers(ctx context.Context, flt store.CarrierFilter) ([]model.Carrier, error) {
	if f.carriersErr != nil {
		return nil, f.carriersErr
	}
	return f.Store.FindCarriers(ctx, flt)
}

func (f *flakyStore) FindOrder(ctx context.Context, id string) (model.Order, error) {
	f.mu.Lock()
	if f.findErrs > 0 {
		f.findErrs--
		f.mu.Unlock()
		return model.Order{}, errTransient
	}
	f.mu.Unlock()
	return f.Store.FindOrder(ctx, id)
}

func (f *flakyStore) UpdateOrder(ctx context.Context, id string, p model.OrderPatch, pre store.Precondition) (model.Order, error) {
	f.mu.Lock()
	hook := f.beforeUpdate
	f.beforeUpdate = nil
	conflict := f.conflictsLeft > 0
	if conflict {
		f.conflictsLeft--
	}
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if conflict {
		return model.Order{}, store.ErrPreconditionFailed
	}
	return f.Store.UpdateOrder(ctx, id, p, pre)
}

type rig struct {
	store    *flakyStore
	clock    *fakeClock
	notifier *recordingNotifier
	pub      *recordingPublisher
	fallback *recordingFallback
	gen      *Generator
	mgr      *Manager
}

func newRig(t *testing.T) *rig {
	t.Helper()
	ResetMetrics(nil)
	prev := retryInterval
	retryInterval = time.Millisecond
	t.Cleanup(func() {
		ResetMetrics(nil)
		retryInterval = prev
	})
	r := &rig{
		store:    newFlakyStore(),
		clock:    newFakeClock(),
		notifier: newRecordingNotifier(),
		pub:      &recordingPublisher{},
		fallback: &recordingFallback{},
	}
	cfg := Config{}
	r.gen = NewGenerator(r.store, nil, cfg, nil)
	mgr, err := NewManager(r.store, r.gen, r.notifier, cfg,
		WithClock(r.clock.Now),
		WithPublisher(r.pub),
		WithFallback(r.fallback),
	)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	r.mgr = mgr
	return r
}

func carrier(id string, score float64) model.Carrier {
	return model.Carrier{ID: id, Name: "Carrier " + id, Status: model.CarrierActive, Score: score}
}

func baseOrder(id string) model.Order {
	return model.Order{
		ID:         id,
		Reference:  "REF-" + id,
		Pickup:     model.Address{PostalCode: "75011", City: "Paris"},
		Delivery:   model.Address{PostalCode: "69003", City: "Lyon"},
		WeightKg:   1000,
		DistanceKm: 465,
		Status:     model.OrderCreated,
	}
}

// chainOrder stores an order holding pending entries for the carriers.
func (r *rig) chainOrder(id string, carriers ...string) {
	chain := make([]model.ChainEntry, len(carriers))
	for i, c := range carriers {
		chain[i] = model.ChainEntry{
			CarrierID: c,
			Order:     i + 1,
			Priority:  model.PriorityForPosition(i + 1),
			Score:     80 - i,
			Timeout:   r.clock.Now().Add(DefaultOfferTimeout),
			Status:    model.EntryPending,
		}
	}
	o := baseOrder(id)
	o.Status = model.OrderAwaitingAssignment
	o.DispatchChain = chain
	r.store.PutOrder(o)
}

func (r *rig) order(t *testing.T, id string) model.Order {
	t.Helper()
	o, err := r.store.Store.FindOrder(context.Background(), id)
	if err != nil {
		t.Fatalf("find order: %v", err)
	}
	if err := model.CheckInvariants(o); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}
	return o
}

func statuses(o model.Order) []model.EntryStatus {
	out := make([]model.EntryStatus, len(o.DispatchChain))
	for i, e := range o.DispatchChain {
		out[i] = e.Status
	}
	return out
}
