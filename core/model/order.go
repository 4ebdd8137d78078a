package model

import "time"

// OrderStatus is the lifecycle status of a transport order. Only the values
// read or written by the dispatch engine are listed here.
type OrderStatus string

const (
	OrderCreated            OrderStatus = "CREATED"
	OrderAwaitingAssignment OrderStatus = "AWAITING_ASSIGNMENT"
	OrderSentToCarrier      OrderStatus = "SENT_TO_CARRIER"
	OrderAccepted           OrderStatus = "ACCEPTED"
	OrderTrackingStarted    OrderStatus = "TRACKING_STARTED"
	OrderEnRoutePickup      OrderStatus = "EN_ROUTE_PICKUP"
	OrderArrivedPickup      OrderStatus = "ARRIVED_PICKUP"
	OrderLoading            OrderStatus = "LOADING"
	OrderLoaded             OrderStatus = "LOADED"
	OrderEnRouteDelivery    OrderStatus = "EN_ROUTE_DELIVERY"
	OrderArrivedDelivery    OrderStatus = "ARRIVED_DELIVERY"
	OrderUnloading          OrderStatus = "UNLOADING"
	OrderEscalated          OrderStatus = "ESCALATED_TO_AFFRETIA"
	OrderCancelled          OrderStatus = "CANCELLED"
)

// InProgressStatuses are the statuses counted against a carrier's
// concurrent order capacity.
var InProgressStatuses = []OrderStatus{
	OrderAccepted,
	OrderTrackingStarted,
	OrderEnRoutePickup,
	OrderArrivedPickup,
	OrderLoading,
	OrderLoaded,
	OrderEnRouteDelivery,
	OrderArrivedDelivery,
	OrderUnloading,
}

// Address is a pickup or delivery location.
type Address struct {
	Street     string `json:"street,omitempty"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Region returns the two-character department code derived from the postal
// code, or an empty string when the code is too short.
func (a Address) Region() string {
	if len(a.PostalCode) < 2 {
		return ""
	}
	return a.PostalCode[:2]
}

// TimeWindow is a pickup or delivery slot.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Order is a transport request as seen by the dispatch engine.
type Order struct {
	ID                string       `json:"id"`
	Reference         string       `json:"reference,omitempty"`
	Pickup            Address      `json:"pickup"`
	Delivery          Address      `json:"delivery"`
	PickupWindow      TimeWindow   `json:"pickup_window"`
	DeliveryWindow    TimeWindow   `json:"delivery_window"`
	WeightKg          float64      `json:"weight_kg"`
	VolumeM3          float64      `json:"volume_m3,omitempty"`
	DistanceKm        float64      `json:"distance_km,omitempty"`
	Constraints       []Capability `json:"constraints,omitempty"`
	LaneID            string       `json:"lane_id,omitempty"`
	Status            OrderStatus  `json:"status"`
	AssignedCarrierID string       `json:"assigned_carrier_id,omitempty"`
	CurrentCarrierID  string       `json:"current_carrier_id,omitempty"`
	DispatchChain     []ChainEntry `json:"dispatch_chain,omitempty"`
	AcceptedAt        *time.Time   `json:"accepted_at,omitempty"`
	EscalatedAt       *time.Time   `json:"escalated_at,omitempty"`
	EscalationReason  string       `json:"escalation_reason,omitempty"`
	// HandoffPending is set while an escalated order has not reached the
	// marketplace.
	HandoffPending    bool         `json:"handoff_pending,omitempty"`
	CancelledAt       *time.Time   `json:"cancelled_at,omitempty"`
	UpdatedAt         time.Time    `json:"updated_at"`
	// Version is bumped on every write and guards conditional updates.
	Version int64 `json:"version"`
}

// Requires reports whether the order requires the given capability.
func (o Order) Requires(c Capability) bool {
	for _, have := range o.Constraints {
		if have == c {
			return true
		}
	}
	return false
}

// Assigned reports whether a carrier accepted the order.
func (o Order) Assigned() bool { return o.AssignedCarrierID != "" }

// Frozen reports whether the chain may no longer advance.
func (o Order) Frozen() bool {
	return o.Assigned() || o.Status == OrderCancelled || o.Status == OrderEscalated
}

// OrderPatch carries the fields of an order to overwrite. Nil fields are left
// untouched.
type OrderPatch struct {
	Status            *OrderStatus
	AssignedCarrierID *string
	CurrentCarrierID  *string
	DispatchChain     []ChainEntry // nil leaves the chain untouched
	AcceptedAt        *time.Time
	EscalatedAt       *time.Time
	EscalationReason  *string
	HandoffPending    *bool
	CancelledAt       *time.Time
}

// Apply writes the patch onto the order.
func (p OrderPatch) Apply(o *Order) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.AssignedCarrierID != nil {
		o.AssignedCarrierID = *p.AssignedCarrierID
	}
	if p.CurrentCarrierID != nil {
		o.CurrentCarrierID = *p.CurrentCarrierID
	}
	if p.DispatchChain != nil {
		o.DispatchChain = CloneChain(p.DispatchChain)
	}
	if p.AcceptedAt != nil {
		t := *p.AcceptedAt
		o.AcceptedAt = &t
	}
	if p.EscalatedAt != nil {
		t := *p.EscalatedAt
		o.EscalatedAt = &t
	}
	if p.EscalationReason != nil {
		o.EscalationReason = *p.EscalationReason
	}
	if p.HandoffPending != nil {
		o.HandoffPending = *p.HandoffPending
	}
	if p.CancelledAt != nil {
		t := *p.CancelledAt
		o.CancelledAt = &t
	}
}

// Clone returns a deep copy of the order.
func (o Order) Clone() Order {
	cp := o
	cp.Constraints = append([]Capability(nil), o.Constraints...)
	cp.DispatchChain = CloneChain(o.DispatchChain)
	if o.AcceptedAt != nil {
		t := *o.AcceptedAt
		cp.AcceptedAt = &t
	}
	if o.EscalatedAt != nil {
		t := *o.EscalatedAt
		cp.EscalatedAt = &t
	}
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		cp.CancelledAt = &t
	}
	return cp
}
