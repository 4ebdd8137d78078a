package metrics

import (
	"errors"
	"testing"
)

type recordSink struct {
	count int
	err   error
}

func (r *recordSink) RecordChain(ChainEvent) error {
	r.count++
	return r.err
}

func (r *recordSink) RecordOffer(OfferEvent) error {
	r.count++
	return nil
}

// chainOnly implements only the base interface.
type chainOnly struct{ count int }

func (c *chainOnly) RecordChain(ChainEvent) error { c.count++; return nil }

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordChain(ChainEvent{OrderID: "o1"}); err != nil {
		t.Fatalf("record chain: %v", err)
	}
	if err := m.RecordOffer(OfferEvent{OrderID: "o1"}); err != nil {
		t.Fatalf("record offer: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("expected both sinks called twice got %d %d", s1.count, s2.count)
	}
}

func TestMultiSinkSkipsUnsupported(t *testing.T) {
	c := &chainOnly{}
	m := NewMultiSink(c, NopSink{})
	if err := m.RecordResponse(ResponseEvent{}); err != nil {
		t.Fatalf("record response: %v", err)
	}
	if err := m.RecordEscalation(EscalationEvent{}); err != nil {
		t.Fatalf("record escalation: %v", err)
	}
	if err := m.RecordSweep(SweepEvent{}); err != nil {
		t.Fatalf("record sweep: %v", err)
	}
	if c.count != 0 {
		t.Fatalf("unexpected calls on chain-only sink")
	}
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	err := m.RecordChain(ChainEvent{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom got %v", err)
	}
	if s2.count != 1 {
		t.Fatalf("second sink not called after failure")
	}
}
