package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/carrierchain/core/notify"
)

// Message types published to carriers.
const (
	MessageOffer     = "offer"
	MessageWithdrawn = "withdrawn"
)

// OfferMessage is the payload published on a carrier's offer topic.
type OfferMessage struct {
	MessageID string       `json:"message_id"`
	Type      string       `json:"type"`
	Offer     notify.Offer `json:"offer"`
	SentAt    int64        `json:"sent_at"`
}

// Notifier delivers offers to carriers over MQTT. Each offer is published
// exactly once; a lost publish is recovered by the response deadline.
type Notifier struct {
	client *PahoClient
	now    func() time.Time
}

// NewNotifier returns a notifier publishing through client.
func NewNotifier(client *PahoClient) *Notifier {
	return &Notifier{client: client, now: time.Now}
}

// NotifyCarrier implements notify.Notifier.
func (n *Notifier) NotifyCarrier(ctx context.Context, carrierID, orderID string, offer notify.Offer) (notify.DeliveryResult, error) {
	if err := ctx.Err(); err != nil {
		return notify.DeliveryResult{}, err
	}
	msg := OfferMessage{
		MessageID: uuid.NewString(),
		Type:      MessageOffer,
		Offer:     offer,
		SentAt:    n.now().UnixMilli(),
	}
	if offer.Withdrawn {
		msg.Type = MessageWithdrawn
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return notify.DeliveryResult{}, err
	}
	topic := fmt.Sprintf(n.client.cfg.OfferTopic, carrierID)
	if err := n.client.publish(topic, "offer", payload, 0); err != nil {
		return notify.DeliveryResult{}, fmt.Errorf("%w: %v", notify.ErrUndeliverable, err)
	}
	n.client.logger.Infof("sent %s %s for order %s to %s", msg.Type, msg.MessageID, orderID, topic)
	return notify.DeliveryResult{MessageID: msg.MessageID, Channel: "mqtt", SentAt: time.UnixMilli(msg.SentAt)}, nil
}
