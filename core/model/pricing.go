package model

// GridActive marks a pricing grid usable for price comparison.
const GridActive = "active"

// WeightBracket is an inclusive weight range priced as a whole.
type WeightBracket struct {
	MinWeight float64 `json:"min_weight"`
	MaxWeight float64 `json:"max_weight"`
	Price     float64 `json:"price"`
}

// PricingGrid is a carrier's negotiated price table for a lane.
type PricingGrid struct {
	CarrierID      string          `json:"carrier_id"`
	LaneID         string          `json:"lane_id"`
	Status         string          `json:"status"`
	BasePrice      float64         `json:"base_price,omitempty"`
	WeightBrackets []WeightBracket `json:"weight_brackets,omitempty"`
}

// PriceFor returns the bracket price for the weight, the base price when no
// bracket matches, and false when the grid has neither.
func (g PricingGrid) PriceFor(weightKg float64) (float64, bool) {
	for _, b := range g.WeightBrackets {
		if weightKg >= b.MinWeight && weightKg <= b.MaxWeight && b.Price > 0 {
			return b.Price, true
		}
	}
	if g.BasePrice > 0 {
		return g.BasePrice, true
	}
	return 0, false
}
