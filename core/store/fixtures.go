package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kilianp07/carrierchain/core/model"
)

// Fixtures is a JSON document of reference data and orders used to seed a
// backend.
type Fixtures struct {
	Carriers     []model.Carrier     `json:"carriers"`
	Lanes        []model.Lane        `json:"lanes"`
	PricingGrids []model.PricingGrid `json:"pricing_grids"`
	Orders       []model.Order       `json:"orders"`
}

// ReadFixtures decodes the fixtures file at path.
func ReadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("read fixtures: %w", err)
	}
	var f Fixtures
	if err := json.Unmarshal(data, &f); err != nil {
		return Fixtures{}, fmt.Errorf("decode fixtures %s: %w", path, err)
	}
	return f, nil
}
