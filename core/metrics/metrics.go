package metrics

import "time"

// ChainEvent describes the outcome of a chain generation.
type ChainEvent struct {
	OrderID     string
	Eligible    int
	Scored      int
	ChainLength int
	Escalated   bool
	Reason      string
	Time        time.Time
}

// MetricsSink records dispatch activity for observability purposes.
type MetricsSink interface {
	RecordChain(ev ChainEvent) error
}

// OfferEvent represents an offer sent to a carrier.
type OfferEvent struct {
	OrderID        string
	CarrierID      string
	Position       int
	Score          int
	EstimatedPrice float64
	Delivered      bool
	Time           time.Time
}

// OfferRecorder records offers sent to carriers.
type OfferRecorder interface {
	RecordOffer(ev OfferEvent) error
}

// ResponseEvent captures a carrier decision on an offer. Latency is the time
// elapsed since the offer was sent.
type ResponseEvent struct {
	OrderID   string
	CarrierID string
	Outcome   string
	Latency   time.Duration
	Time      time.Time
}

// ResponseRecorder records carrier responses.
type ResponseRecorder interface {
	RecordResponse(ev ResponseEvent) error
}

// EscalationEvent records an order handed to the fallback marketplace.
type EscalationEvent struct {
	OrderID string
	Reason  string
	Time    time.Time
}

// EscalationRecorder records escalations.
type EscalationRecorder interface {
	RecordEscalation(ev EscalationEvent) error
}

// SweepEvent summarizes one timeout sweep.
type SweepEvent struct {
	Checked     int
	Processed   int
	Escalations int
	Failed      int
	Duration    time.Duration
	Time        time.Time
}

// SweepRecorder records timeout sweeps.
type SweepRecorder interface {
	RecordSweep(ev SweepEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordChain(ChainEvent) error           { return nil }
func (NopSink) RecordOffer(OfferEvent) error           { return nil }
func (NopSink) RecordResponse(ResponseEvent) error     { return nil }
func (NopSink) RecordEscalation(EscalationEvent) error { return nil }
func (NopSink) RecordSweep(SweepEvent) error           { return nil }
