package metrics

import (
	"fmt"

	"github.com/kilianp07/carrierchain/core/factory"
)

var sinkRegistry = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink adds a metrics sink factory identified by name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// SinkTypes lists the registered sink names.
func SinkTypes() []string { return sinkRegistry.Names() }

// NewMetricsSink builds the dispatch metrics sink from the configured
// modules. "nop" entries are skipped and a type may appear only once. No
// effective sink gives a NopSink, one sink is returned as is and several are
// combined in a MultiSink.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	seen := make(map[string]bool, len(cfgs))
	var sinks []MetricsSink
	for i, c := range cfgs {
		if c.Type == "" {
			return nil, fmt.Errorf("metrics sink %d: missing type", i)
		}
		if seen[c.Type] {
			return nil, fmt.Errorf("metrics sink %q configured twice", c.Type)
		}
		seen[c.Type] = true
		s, err := sinkRegistry.Create(c)
		if err != nil {
			return nil, fmt.Errorf("metrics sink %q: %w", c.Type, err)
		}
		if _, nop := s.(NopSink); nop {
			continue
		}
		sinks = append(sinks, s)
	}
	switch len(sinks) {
	case 0:
		return NopSink{}, nil
	case 1:
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}

// Recorders lists the dispatch activities s records beyond chain
// generation. A MultiSink reports the union of its members.
func Recorders(s MetricsSink) []string {
	if m, ok := s.(*MultiSink); ok {
		return m.recorders()
	}
	out := []string{"chain"}
	if _, ok := s.(OfferRecorder); ok {
		out = append(out, "offer")
	}
	if _, ok := s.(ResponseRecorder); ok {
		out = append(out, "response")
	}
	if _, ok := s.(EscalationRecorder); ok {
		out = append(out, "escalation")
	}
	if _, ok := s.(SweepRecorder); ok {
		out = append(out, "sweep")
	}
	return out
}
