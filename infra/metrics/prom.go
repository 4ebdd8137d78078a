package metrics

import (
	"strconv"

	coremetrics "github.com/kilianp07/carrierchain/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records per-carrier dispatch activity in Prometheus metrics.
type PromSink struct {
	chains      *prometheus.CounterVec
	offers      *prometheus.CounterVec
	responses   *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	escalations prometheus.Counter
	chainLength prometheus.Histogram
}

// NewPromSink registers dispatch metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	chains := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carrier_chain_generated_total",
		Help: "Dispatch chains generated, by escalation outcome",
	}, []string{"escalated"})
	offers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carrier_offers_total",
		Help: "Offers sent to carriers",
	}, []string{"carrier_id", "delivered"})
	responses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carrier_responses_total",
		Help: "Carrier responses by outcome",
	}, []string{"carrier_id", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carrier_response_latency_seconds",
		Help:    "Time between offer and carrier response",
		Buckets: []float64{30, 60, 300, 900, 1800, 3600, 7200},
	}, []string{"outcome"})
	escalations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "carrier_chain_escalations_total",
		Help: "Orders handed to the fallback marketplace",
	})
	chainLength := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "carrier_chain_length",
		Help:    "Number of carriers per generated chain",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 10},
	})

	var err error
	if chains, err = register(reg, chains); err != nil {
		return nil, err
	}
	if offers, err = register(reg, offers); err != nil {
		return nil, err
	}
	if responses, err = register(reg, responses); err != nil {
		return nil, err
	}
	if latency, err = register(reg, latency); err != nil {
		return nil, err
	}
	if escalations, err = register(reg, escalations); err != nil {
		return nil, err
	}
	if chainLength, err = register(reg, chainLength); err != nil {
		return nil, err
	}
	return &PromSink{
		chains:      chains,
		offers:      offers,
		responses:   responses,
		latency:     latency,
		escalations: escalations,
		chainLength: chainLength,
	}, nil
}

// register adds c to reg, reusing the collector already registered under the
// same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordChain counts the generated chain and observes its length.
func (s *PromSink) RecordChain(ev coremetrics.ChainEvent) error {
	s.chains.WithLabelValues(strconv.FormatBool(ev.Escalated)).Inc()
	s.chainLength.Observe(float64(ev.ChainLength))
	return nil
}

// RecordOffer counts offers per carrier.
func (s *PromSink) RecordOffer(ev coremetrics.OfferEvent) error {
	s.offers.WithLabelValues(ev.CarrierID, strconv.FormatBool(ev.Delivered)).Inc()
	return nil
}

// RecordResponse counts the response and observes its latency.
func (s *PromSink) RecordResponse(ev coremetrics.ResponseEvent) error {
	s.responses.WithLabelValues(ev.CarrierID, ev.Outcome).Inc()
	if ev.Latency > 0 {
		s.latency.WithLabelValues(ev.Outcome).Observe(ev.Latency.Seconds())
	}
	return nil
}

// RecordEscalation counts escalations.
func (s *PromSink) RecordEscalation(coremetrics.EscalationEvent) error {
	s.escalations.Inc()
	return nil
}
