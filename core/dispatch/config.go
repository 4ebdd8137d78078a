package dispatch

import (
	"fmt"
	"time"
)

// Default tuning of the dispatch chain.
const (
	DefaultOfferTimeout        = 2 * time.Hour
	DefaultMaxCarriers         = 5
	DefaultMinScore            = 60
	DefaultMaxConcurrentOrders = 5
	DefaultDistanceKm          = 400.0
	DefaultScoringConcurrency  = 4
	DefaultSweepConcurrency    = 8
	DefaultSweepInterval       = 5 * time.Minute
	DefaultStorageTimeout      = 5 * time.Second
	DefaultNotifyTimeout       = 10 * time.Second
)

// Config defines dispatch-related settings. Durations accept Go duration
// strings such as "2h" or "30s".
type Config struct {
	OfferTimeout        time.Duration `json:"offer_timeout"`
	MaxCarriers         int           `json:"max_carriers"`
	MinScore            int           `json:"min_score"`
	MaxConcurrentOrders int           `json:"max_concurrent_orders"`
	DefaultDistanceKm   float64       `json:"default_distance_km"`
	// PreferLaneCarriers enables the lane bonus. Nil means enabled.
	PreferLaneCarriers *bool         `json:"prefer_lane_carriers"`
	ScoringConcurrency int           `json:"scoring_concurrency"`
	SweepConcurrency   int           `json:"sweep_concurrency"`
	SweepInterval      time.Duration `json:"sweep_interval"`
	StorageTimeout     time.Duration `json:"storage_timeout"`
	NotifyTimeout      time.Duration `json:"notify_timeout"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.OfferTimeout <= 0 {
		c.OfferTimeout = DefaultOfferTimeout
	}
	if c.MaxCarriers <= 0 {
		c.MaxCarriers = DefaultMaxCarriers
	}
	if c.MinScore == 0 {
		c.MinScore = DefaultMinScore
	}
	if c.MaxConcurrentOrders <= 0 {
		c.MaxConcurrentOrders = DefaultMaxConcurrentOrders
	}
	if c.DefaultDistanceKm <= 0 {
		c.DefaultDistanceKm = DefaultDistanceKm
	}
	if c.PreferLaneCarriers == nil {
		prefer := true
		c.PreferLaneCarriers = &prefer
	}
	if c.ScoringConcurrency <= 0 {
		c.ScoringConcurrency = DefaultScoringConcurrency
	}
	if c.SweepConcurrency <= 0 {
		c.SweepConcurrency = DefaultSweepConcurrency
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.StorageTimeout <= 0 {
		c.StorageTimeout = DefaultStorageTimeout
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = DefaultNotifyTimeout
	}
}

// Validate checks the settings after defaults were applied.
func (c Config) Validate() error {
	if c.MinScore < 0 || c.MinScore > 100 {
		return fmt.Errorf("min_score must be within 0..100, got %d", c.MinScore)
	}
	if c.MaxCarriers > 50 {
		return fmt.Errorf("max_carriers too large: %d", c.MaxCarriers)
	}
	if c.OfferTimeout < time.Minute {
		return fmt.Errorf("offer_timeout must be at least one minute, got %s", c.OfferTimeout)
	}
	return nil
}

// preferLane reports whether the lane bonus is enabled.
func (c Config) preferLane() bool {
	return c.PreferLaneCarriers == nil || *c.PreferLaneCarriers
}
