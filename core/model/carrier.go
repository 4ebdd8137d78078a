package model

// Capability is a constraint an order can require and a carrier can declare.
type Capability string

const (
	CapabilityHazardous Capability = "ADR"   // dangerous goods
	CapabilityFrigo     Capability = "FRIGO" // temperature controlled
	CapabilityTailgate  Capability = "HAYON" // tail lift
)

// CarrierStatus is the account status of a carrier.
type CarrierStatus string

const (
	CarrierActive   CarrierStatus = "active"
	CarrierInactive CarrierStatus = "inactive"
)

// VigilanceStatus reflects the documentary compliance of a carrier.
type VigilanceStatus string

const (
	VigilanceClear   VigilanceStatus = "clear"
	VigilanceWarning VigilanceStatus = "warning"
	VigilanceBlocked VigilanceStatus = "blocked"
)

// DefaultCarrierScore is used when a carrier has never been rated.
const DefaultCarrierScore = 70

// ServiceArea lists the regions (two-digit department codes) a carrier serves.
// An empty list means the carrier serves every region.
type ServiceArea struct {
	Regions []string `json:"regions,omitempty"`
}

// Covers reports whether the region is part of the service area.
func (a ServiceArea) Covers(region string) bool {
	if len(a.Regions) == 0 {
		return true
	}
	for _, r := range a.Regions {
		if r == region {
			return true
		}
	}
	return false
}

// Carrier is read-only reference data owned by the carrier referential.
type Carrier struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email,omitempty"`
	Phone        string          `json:"phone,omitempty"`
	Status       CarrierStatus   `json:"status"`
	Vigilance    VigilanceStatus `json:"vigilance,omitempty"`
	Capabilities []Capability    `json:"capabilities,omitempty"`
	MaxWeightKg  float64         `json:"max_weight_kg,omitempty"` // 0 means no declared limit
	ServiceArea  ServiceArea     `json:"service_area"`
	Score        float64         `json:"score,omitempty"` // 0-100, 0 means unrated
}

// VigilanceClear reports whether the carrier has no compliance issue. An empty
// status is treated as clear since compliance data is optional.
func (c Carrier) VigilanceClear() bool {
	return c.Vigilance == "" || c.Vigilance == VigilanceClear
}

// HasCapabilities reports whether the carrier declares every required capability.
func (c Carrier) HasCapabilities(required []Capability) bool {
	for _, want := range required {
		found := false
		for _, have := range c.Capabilities {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Reputation returns the carrier score, falling back to DefaultCarrierScore.
func (c Carrier) Reputation() float64 {
	if c.Score <= 0 {
		return DefaultCarrierScore
	}
	if c.Score > 100 {
		return 100
	}
	return c.Score
}
