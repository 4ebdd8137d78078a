package mqtt

import (
	"context"
	"encoding/json"

	"github.com/kilianp07/carrierchain/core/model"
	"github.com/kilianp07/carrierchain/core/notify"
)

// MarketplaceFallback publishes escalated orders to the marketplace topic.
type MarketplaceFallback struct {
	client *PahoClient
}

// NewMarketplaceFallback returns a fallback publishing through client.
func NewMarketplaceFallback(client *PahoClient) *MarketplaceFallback {
	return &MarketplaceFallback{client: client}
}

// Handoff publishes the order, retrying transient broker failures.
func (f *MarketplaceFallback) Handoff(ctx context.Context, order model.Order, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(notify.NewEscalation(order, reason))
	if err != nil {
		return err
	}
	if err := f.client.publish(f.client.cfg.FallbackTopic, "fallback", payload, f.client.cfg.MaxRetries); err != nil {
		return err
	}
	f.client.logger.Infof("order %s handed to marketplace: %s", order.ID, reason)
	return nil
}
