package config

import (
	"fmt"
)

// Timeline backends.
const (
	TimelineJSONL    = "jsonl"
	TimelineRotating = "rotating"
	TimelineSQLite   = "sqlite"
	TimelineNone     = "none"
)

// LoggingConfig defines settings for the dispatch timeline storage and
// rotation.
type LoggingConfig struct {
	// Backend selects the log store type: "jsonl", "rotating", "sqlite" or
	// "none".
	Backend string `json:"backend"`
	// Path is the file location of the log store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = TimelineJSONL
	}
	if c.Path == "" {
		switch c.Backend {
		case TimelineSQLite:
			c.Path = "dispatch_timeline.db"
		default:
			c.Path = "dispatch_timeline.jsonl"
		}
	}
	if c.Backend == TimelineRotating && c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 100
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	switch c.Backend {
	case TimelineJSONL, TimelineRotating, TimelineSQLite, TimelineNone:
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Backend != TimelineNone && c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}
