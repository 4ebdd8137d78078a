package mqtt

import (
	"context"
	"encoding/json"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/carrierchain/core/model"
)

// ResponseMessage is a carrier decision received on the response topic.
type ResponseMessage struct {
	OrderID   string            `json:"order_id"`
	CarrierID string            `json:"carrier_id"`
	Outcome   model.EntryStatus `json:"outcome"`
	Data      map[string]any    `json:"data,omitempty"`
}

// ResponseHandler applies a carrier decision.
type ResponseHandler func(ctx context.Context, msg ResponseMessage)

// ListenResponses subscribes to the response topic and calls h for every
// well-formed message. The carrier id defaults to the topic segment after
// "carrier/".
func (p *PahoClient) ListenResponses(ctx context.Context, h ResponseHandler) error {
	return p.Subscribe(p.cfg.ResponseTopic, "response", func(_ paho.Client, m paho.Message) {
		msg, ok := p.decodeResponse(m.Topic(), m.Payload())
		if !ok {
			return
		}
		h(ctx, msg)
	})
}

func (p *PahoClient) decodeResponse(topic string, payload []byte) (ResponseMessage, bool) {
	var msg ResponseMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		p.logger.Errorf("failed to decode response on %s: %v", topic, err)
		return ResponseMessage{}, false
	}
	if msg.CarrierID == "" {
		msg.CarrierID = carrierFromTopic(topic)
	}
	if msg.OrderID == "" || msg.CarrierID == "" {
		p.logger.Warnf("response on %s without order or carrier id", topic)
		return ResponseMessage{}, false
	}
	return msg, true
}

func carrierFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "carrier" {
			return parts[i+1]
		}
	}
	return ""
}
