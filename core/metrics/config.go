package metrics

import "github.com/kilianp07/carrierchain/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusPort exposes /metrics on a dedicated listener when set.
	PrometheusPort string `json:"prometheus_port"`
}
