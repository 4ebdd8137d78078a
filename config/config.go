package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/carrierchain/core/dispatch"
	"github.com/kilianp07/carrierchain/core/metrics"
	"github.com/kilianp07/carrierchain/infra/cache"
	"github.com/kilianp07/carrierchain/infra/mqtt"
)

type Config struct {
	LogLevel   string           `json:"log_level"`
	Dispatch   dispatch.Config  `json:"dispatch"`
	Store      StoreConfig      `json:"store"`
	Cache      cache.Config     `json:"cache"`
	MQTT       mqtt.Config      `json:"mqtt"`
	Components ComponentsConfig `json:"components"`
	HTTP       HTTPConfig       `json:"http"`
	Metrics    metrics.Config   `json:"metrics"`
	Logging    LoggingConfig    `json:"logging"`
	Sentry     SentryConfig     `json:"sentry"`
}

// Load reads a YAML or JSON file, applies K_ prefixed environment overrides
// (K_DISPATCH__MIN_SCORE=70), then defaults and validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.Dispatch.SetDefaults()
	c.Store.SetDefaults()
	c.Cache.SetDefaults()
	c.MQTT.SetDefaults()
	c.Components.SetDefaults(c.MQTT.Enabled())
	c.HTTP.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section after defaults were applied.
func (c Config) Validate() error {
	if err := c.Dispatch.Validate(); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Components.Validate(c.MQTT.Enabled()); err != nil {
		return fmt.Errorf("components: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
