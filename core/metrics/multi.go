package metrics

import "errors"

// MultiSink fans out dispatch activity to multiple sinks. Every sink is
// called even when an earlier one fails; the errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordChain forwards chain events to all sinks.
func (m *MultiSink) RecordChain(ev ChainEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordChain(ev))
	}
	return errors.Join(errs...)
}

// RecordOffer forwards offers to sinks supporting them.
func (m *MultiSink) RecordOffer(ev OfferEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(OfferRecorder); ok {
			errs = append(errs, rec.RecordOffer(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordResponse forwards carrier responses.
func (m *MultiSink) RecordResponse(ev ResponseEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(ResponseRecorder); ok {
			errs = append(errs, rec.RecordResponse(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordEscalation forwards escalations.
func (m *MultiSink) RecordEscalation(ev EscalationEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(EscalationRecorder); ok {
			errs = append(errs, rec.RecordEscalation(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordSweep forwards sweep summaries.
func (m *MultiSink) RecordSweep(ev SweepEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(SweepRecorder); ok {
			errs = append(errs, rec.RecordSweep(ev))
		}
	}
	return errors.Join(errs...)
}

// Close closes the member sinks holding resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}

func (m *MultiSink) recorders() []string {
	have := map[string]bool{}
	for _, s := range m.Sinks {
		for _, r := range Recorders(s) {
			have[r] = true
		}
	}
	var out []string
	for _, r := range []string{"chain", "offer", "response", "escalation", "sweep"} {
		if have[r] {
			out = append(out, r)
		}
	}
	return out
}
