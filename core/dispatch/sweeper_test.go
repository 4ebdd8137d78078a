package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/carrierchain/core/model"
)

// No offer has expired, nothing changes.
func TestCheckTimeoutsNothingExpired(t *testing.T) {
	r := newRig(t)
	r.chainOrder("o1", "A", "B")
	require.True(t, r.mgr.SendToNext(context.Background(), "o1").Success)
	before := r.order(t, "o1")
	r.clock.Advance(DefaultOfferTimeout - time.Minute)

	res := r.mgr.CheckTimeouts(context.Background())
	require.True(t, res.Success, "error: %v", res.Error)
	assert.Zero(t, res.Checked)
	assert.Zero(t, res.Processed)
	assert.Equal(t, before.Version, r.order(t, "o1").Version)
}

func TestCheckTimeoutsProcessesEachExpiredOfferOnce(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	r.chainOrder("o1", "A", "B")
	r.chainOrder("o2", "A")
	r.chainOrder("o3", "C")
	for _, id := range []string{"o1", "o2", "o3"} {
		require.True(t, r.mgr.SendToNext(ctx, id).Success)
	}
	require.True(t, r.mgr.Cancel(ctx, "o3", "client").Success)
	r.clock.Advance(DefaultOfferTimeout + time.Minute)

	res := r.mgr.CheckTimeouts(ctx)
	require.True(t, res.Success, "error: %v", res.Error)
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Escalations)
	assert.Equal(t, []string{"o2"}, res.Escalate)
	assert.Zero(t, res.Failed)

	o1 := r.order(t, "o1")
	assert.Equal(t, []model.EntryStatus{model.EntryTimeout, model.EntrySent}, statuses(o1))
	assert.Equal(t, "response deadline exceeded", o1.DispatchChain[0].Response["reason"])
	assert.Equal(t, model.OrderAwaitingAssignment, r.order(t, "o2").Status)

	again := r.mgr.CheckTimeouts(ctx)
	assert.Zero(t, again.Checked)
	assert.Equal(t, []model.EntryStatus{model.EntryTimeout, model.EntrySent}, statuses(r.order(t, "o1")))
}

func TestSweeperRunOnceEscalatesExhausted(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	r.chainOrder("o1", "A")
	require.True(t, r.mgr.SendToNext(ctx, "o1").Success)
	r.clock.Advance(3 * time.Hour)

	s := NewSweeper(r.mgr, nil)
	res := s.RunOnce(ctx)
	require.True(t, res.Success, "error: %v", res.Error)
	assert.Equal(t, 1, res.Escalations)

	o := r.order(t, "o1")
	assert.Equal(t, model.OrderEscalated, o.Status)
	assert.Equal(t, ReasonAllContacted, o.EscalationReason)
	assert.Equal(t, []string{"o1"}, r.fallback.orders)
}

// A refusal exhausting the chain leaves the order awaiting assignment until
// someone escalates it. If that never happens the sweep must.
func TestSweeperResumesStrandedOrder(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	r.chainOrder("o1", "A")
	require.True(t, r.mgr.SendToNext(ctx, "o1").Success)
	res := r.mgr.ProcessResponse(ctx, "o1", "A", model.EntryRefused, nil)
	require.Equal(t, ActionEscalateFallback, res.Action)
	r.clock.Advance(24 * time.Hour)

	sweep := NewSweeper(r.mgr, nil).RunOnce(ctx)
	require.True(t, sweep.Success, "error: %v", sweep.Error)
	assert.Zero(t, sweep.Escalations)
	assert.Equal(t, 1, sweep.Resumed)
	assert.Zero(t, sweep.Failed)

	o := r.order(t, "o1")
	assert.Equal(t, model.OrderEscalated, o.Status)
	assert.Equal(t, ReasonAllContacted, o.EscalationReason)
	assert.False(t, o.HandoffPending)
	assert.Equal(t, []string{"o1"}, r.fallback.orders)

	again := NewSweeper(r.mgr, nil).RunOnce(ctx)
	assert.Zero(t, again.Resumed)
	assert.Equal(t, []string{"o1"}, r.fallback.orders)
}

func TestSweeperRetriesFailedHandoff(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	r.store.PutOrder(baseOrder("o1"))
	r.fallback.err = errTransient
	require.False(t, r.mgr.Escalate(ctx, "o1", "manual").HandedOff)
	require.True(t, r.order(t, "o1").HandoffPending)
	s := NewSweeper(r.mgr, nil)

	fresh := s.RunOnce(ctx)
	require.True(t, fresh.Success, "error: %v", fresh.Error)
	assert.Zero(t, fresh.Handoffs)
	assert.Len(t, r.fallback.orders, 1)

	r.clock.Advance(r.mgr.Config().NotifyTimeout + time.Minute)
	failed := s.RunOnce(ctx)
	assert.Zero(t, failed.Handoffs)
	assert.Len(t, r.fallback.orders, 2)
	assert.True(t, r.order(t, "o1").HandoffPending)

	r.fallback.err = nil
	res := s.RunOnce(ctx)
	require.True(t, res.Success, "error: %v", res.Error)
	assert.Equal(t, 1, res.Handoffs)
	assert.Zero(t, res.Failed)
	assert.False(t, r.order(t, "o1").HandoffPending)
	assert.Equal(t, []string{"o1", "o1", "o1"}, r.fallback.orders)
	assert.Equal(t, float64(2), testutil.ToFloat64(handoffRetries))
	assert.Equal(t, float64(2), testutil.ToFloat64(handoffFailures))

	idle := s.RunOnce(ctx)
	assert.Zero(t, idle.Handoffs)
	assert.Len(t, r.fallback.orders, 3)
}

func TestSweeperStartStopsOnCancel(t *testing.T) {
	r := newRig(t)
	s := NewSweeper(r.mgr, nil)
	s.interval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
