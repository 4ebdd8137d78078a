package notify

import (
	"context"
	"errors"
	"time"
)

// ErrUndeliverable is returned when the offer could not be handed to the
// transport.
var ErrUndeliverable = errors.New("offer undeliverable")

// Offer is the payload sent to a carrier when the order reaches its slot in
// the dispatch chain.
type Offer struct {
	OrderID        string    `json:"order_id"`
	Reference      string    `json:"reference,omitempty"`
	CarrierID      string    `json:"carrier_id"`
	Position       int       `json:"position"`
	ChainLength    int       `json:"chain_length"`
	PickupPostal   string    `json:"pickup_postal_code"`
	DeliveryPostal string    `json:"delivery_postal_code"`
	PickupStart    time.Time `json:"pickup_start,omitempty"`
	WeightKg       float64   `json:"weight_kg"`
	EstimatedPrice float64   `json:"estimated_price"`
	RespondBy      time.Time `json:"respond_by"`
	// Withdrawn is set when a previously sent offer is cancelled.
	Withdrawn bool `json:"withdrawn,omitempty"`
}

// DeliveryResult describes how the transport handled the offer.
type DeliveryResult struct {
	MessageID string
	Channel   string
	SentAt    time.Time
}

// Notifier delivers offers to carriers. Delivery is fire-and-forget from the
// dispatch engine's point of view: state transitions never wait for it.
type Notifier interface {
	NotifyCarrier(ctx context.Context, carrierID, orderID string, offer Offer) (DeliveryResult, error)
}

// NopNotifier accepts every offer without delivering it.
type NopNotifier struct{}

func (NopNotifier) NotifyCarrier(_ context.Context, _, _ string, _ Offer) (DeliveryResult, error) {
	return DeliveryResult{Channel: "nop", SentAt: time.Now()}, nil
}
