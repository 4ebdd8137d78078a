package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/carrierchain/core/model"
	"github.com/kilianp07/carrierchain/core/notify"
)

// MockPublisher records offers and escalations in memory. It stands in for
// the broker in tests and when no broker is configured.
type MockPublisher struct {
	Offers      map[string][]notify.Offer
	Escalations map[string]string
	FailIDs     map[string]bool
	mu          sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Offers:      make(map[string][]notify.Offer),
		Escalations: make(map[string]string),
		FailIDs:     make(map[string]bool),
	}
}

// NotifyCarrier records the offer or returns an error if configured to fail.
func (m *MockPublisher) NotifyCarrier(_ context.Context, carrierID, orderID string, offer notify.Offer) (notify.DeliveryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[carrierID] {
		return notify.DeliveryResult{}, fmt.Errorf("%w: publish failed", notify.ErrUndeliverable)
	}
	m.Offers[carrierID] = append(m.Offers[carrierID], offer)
	return notify.DeliveryResult{MessageID: fmt.Sprintf("msg-%s-%s-%d", orderID, carrierID, len(m.Offers[carrierID])), Channel: "mock", SentAt: time.Now()}, nil
}

// Handoff records the escalation.
func (m *MockPublisher) Handoff(_ context.Context, order model.Order, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[order.ID] {
		return fmt.Errorf("publish failed")
	}
	m.Escalations[order.ID] = reason
	return nil
}

// OffersFor returns a copy of the offers sent to the carrier.
func (m *MockPublisher) OffersFor(carrierID string) []notify.Offer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Offer(nil), m.Offers[carrierID]...)
}
