package config

import (
	"fmt"

	"github.com/kilianp07/carrierchain/infra/store/mysql"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
)

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Backend is "memory" or "mysql".
	Backend string `json:"backend"`
	// Fixtures is an optional JSON file seeding the reference data
	// and orders at startup.
	Fixtures string       `json:"fixtures"`
	MySQL    mysql.Config `json:"mysql"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = StoreMemory
	}
	if c.Backend == StoreMySQL {
		c.MySQL.SetDefaults()
	}
}

// Validate checks mandatory fields.
func (c StoreConfig) Validate() error {
	switch c.Backend {
	case StoreMemory:
		return nil
	case StoreMySQL:
		if c.MySQL.User == "" {
			return fmt.Errorf("mysql.user is required")
		}
		return nil
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
}
