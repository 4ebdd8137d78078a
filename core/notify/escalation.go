package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/carrierchain/core/model"
)

// Escalation is the payload handed to the open marketplace when an order
// leaves its dispatch chain.
type Escalation struct {
	MessageID  string        `json:"message_id"`
	OrderID    string        `json:"order_id"`
	Reference  string        `json:"reference,omitempty"`
	Reason     string        `json:"reason"`
	Pickup     model.Address `json:"pickup"`
	Delivery   model.Address `json:"delivery"`
	WeightKg   float64       `json:"weight_kg"`
	Contacted  []string      `json:"contacted,omitempty"`
	EscalateAt int64         `json:"escalated_at"`
}

// NewEscalation builds the marketplace payload of order. Contacted lists
// the carriers that received an offer, in chain order.
func NewEscalation(order model.Order, reason string) Escalation {
	at := time.Now()
	if order.EscalatedAt != nil {
		at = *order.EscalatedAt
	}
	msg := Escalation{
		MessageID:  uuid.NewString(),
		OrderID:    order.ID,
		Reference:  order.Reference,
		Reason:     reason,
		Pickup:     order.Pickup,
		Delivery:   order.Delivery,
		WeightKg:   order.WeightKg,
		EscalateAt: at.UnixMilli(),
	}
	for _, e := range order.DispatchChain {
		if e.SentAt != nil {
			msg.Contacted = append(msg.Contacted, e.CarrierID)
		}
	}
	return msg
}
