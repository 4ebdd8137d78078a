// Package metrics defines interfaces for recording dispatch chain activity.
// Sinks like PromSink and InfluxSink record chain generation, offers,
// carrier responses and escalations, and can be combined with NewMultiSink.
// The factory helpers return a MultiSink automatically when multiple sinks
// are configured.
package metrics
