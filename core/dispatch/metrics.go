package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	chainsGenerated   *prometheus.CounterVec
	offersSent        prometheus.Counter
	carrierResponses  *prometheus.CounterVec
	escalationsTotal  prometheus.Counter
	notifyFailures    prometheus.Counter
	updateConflicts   prometheus.Counter
	storageRetries    prometheus.Counter
	scoringFallbacks  prometheus.Counter
	sweepDuration     prometheus.Histogram
	sweepTimeoutsSeen prometheus.Counter
	handoffFailures   prometheus.Counter
	handoffRetries    prometheus.Counter
)

type collectors struct {
	chains      *prometheus.CounterVec
	offers      prometheus.Counter
	responses   *prometheus.CounterVec
	escalations prometheus.Counter
	notifyFail  prometheus.Counter
	conflicts   prometheus.Counter
	retries     prometheus.Counter
	scoring     prometheus.Counter
	sweep       prometheus.Histogram
	timeouts    prometheus.Counter
	handoffFail prometheus.Counter
	handoffRetr prometheus.Counter
}

// newCollectors creates new metric collectors.
func newCollectors() collectors {
	return collectors{
		chains: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_chains_generated_total",
			Help: "Chains generated, by result",
		}, []string{"result"}),
		offers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_offers_sent_total",
			Help: "Chain entries moved to sent",
		}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_carrier_responses_total",
			Help: "Carrier responses applied to a chain, by outcome",
		}, []string{"outcome"}),
		escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_escalations_total",
			Help: "Orders escalated to the fallback marketplace",
		}),
		notifyFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_notify_failures_total",
			Help: "Offers that could not be delivered to the carrier",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_update_conflicts_total",
			Help: "Conditional order updates rejected by a concurrent writer",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_storage_retries_total",
			Help: "Storage calls retried after a transient failure",
		}),
		scoring: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_scoring_fallbacks_total",
			Help: "Carriers given the neutral score after a scoring failure",
		}),
		sweep: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_sweep_duration_seconds",
			Help:    "Duration of a timeout sweep",
			Buckets: prometheus.DefBuckets,
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_sweep_timeouts_total",
			Help: "Expired offers found by the timeout sweeper",
		}),
		handoffFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_handoff_failures_total",
			Help: "Marketplace handoffs that failed",
		}),
		handoffRetr: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_handoff_retries_total",
			Help: "Marketplace handoffs retried by the sweeper",
		}),
	}
}

func (c collectors) install() {
	chainsGenerated = c.chains
	offersSent = c.offers
	carrierResponses = c.responses
	escalationsTotal = c.escalations
	notifyFailures = c.notifyFail
	updateConflicts = c.conflicts
	storageRetries = c.retries
	scoringFallbacks = c.scoring
	sweepDuration = c.sweep
	sweepTimeoutsSeen = c.timeouts
	handoffFailures = c.handoffFail
	handoffRetries = c.handoffRetr
}

func init() {
	newCollectors().install()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(chainsGenerated, offersSent, carrierResponses, escalationsTotal,
		notifyFailures, updateConflicts, storageRetries, scoringFallbacks,
		sweepDuration, sweepTimeoutsSeen, handoffFailures, handoffRetries)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	newCollectors().install()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
