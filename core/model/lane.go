package model

// LaneCarrier is a carrier's historical performance on a lane.
type LaneCarrier struct {
	CarrierID  string  `json:"carrier_id"`
	AvgScore   float64 `json:"avg_score"`
	OrderCount int     `json:"order_count"`
}

// Lane is an origin/destination region pair with its preferred carriers,
// best first.
type Lane struct {
	LaneID            string        `json:"lane_id"`
	OriginRegion      string        `json:"origin_region,omitempty"`
	DestinationRegion string        `json:"destination_region,omitempty"`
	Preferred         []LaneCarrier `json:"preferred,omitempty"`
}

// Rank returns the 1-based rank of the carrier in the preferred list.
func (l Lane) Rank(carrierID string) (LaneCarrier, int, bool) {
	for i, c := range l.Preferred {
		if c.CarrierID == carrierID {
			return c, i + 1, true
		}
	}
	return LaneCarrier{}, 0, false
}
