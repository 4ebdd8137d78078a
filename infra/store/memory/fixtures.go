package memory

import "github.com/kilianp07/carrierchain/core/store"

// Load inserts every record of f.
func (s *Store) Load(f store.Fixtures) {
	for _, c := range f.Carriers {
		s.PutCarrier(c)
	}
	for _, l := range f.Lanes {
		s.PutLane(l)
	}
	for _, g := range f.PricingGrids {
		s.PutPricingGrid(g)
	}
	for _, o := range f.Orders {
		s.PutOrder(o)
	}
}

// LoadFixtures reads a JSON fixtures file into the store.
func (s *Store) LoadFixtures(path string) error {
	f, err := store.ReadFixtures(path)
	if err != nil {
		return err
	}
	s.Load(f)
	return nil
}
