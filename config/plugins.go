package config

import (
	"fmt"

	"github.com/kilianp07/carrierchain/core/factory"
)

// ComponentsConfig selects the pluggable delivery components. Each is
// defined by a registered type name and an arbitrary configuration map.
type ComponentsConfig struct {
	Notifier factory.ModuleConfig `json:"notifier"`
	Fallback factory.ModuleConfig `json:"fallback"`
}

// SetDefaults picks the MQTT components when a broker is configured and the
// mock ones otherwise.
func (c *ComponentsConfig) SetDefaults(mqttEnabled bool) {
	if c.Notifier.Type == "" {
		c.Notifier.Type = "mock"
		if mqttEnabled {
			c.Notifier.Type = "mqtt"
		}
	}
	if c.Fallback.Type == "" {
		c.Fallback.Type = "noop"
		if mqttEnabled {
			c.Fallback.Type = "mqtt"
		}
	}
}

// Validate rejects MQTT components without a broker.
func (c ComponentsConfig) Validate(mqttEnabled bool) error {
	if !mqttEnabled && (c.Notifier.Type == "mqtt" || c.Fallback.Type == "mqtt") {
		return fmt.Errorf("mqtt components need mqtt.broker")
	}
	return nil
}
