package dispatch

import (
	"context"

	"github.com/kilianp07/carrierchain/core/model"
)

// Fallback hands an escalated order to the open marketplace.
type Fallback interface {
	Handoff(ctx context.Context, order model.Order, reason string) error
}

// NoopFallback accepts every escalation without forwarding it.
type NoopFallback struct{}

func (NoopFallback) Handoff(context.Context, model.Order, string) error { return nil }
