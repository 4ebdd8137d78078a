package events

import (
	"time"

	"github.com/kilianp07/carrierchain/core/model"
)

// Event is implemented by every dispatch event.
type Event interface {
	// Kind identifies the event on timelines and metric labels.
	Kind() string
	// Order returns the id of the order the event concerns.
	Order() string
}

// Publisher accepts dispatch events. *eventbus.TypedBus[Event] satisfies it.
type Publisher interface {
	Publish(Event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

// ChainGeneratedEvent is published once a chain was persisted on an order.
type ChainGeneratedEvent struct {
	OrderID       string
	Carriers      []string
	TotalEligible int
	TotalScored   int
	At            time.Time
}

func (ChainGeneratedEvent) Kind() string    { return "chain_generated" }
func (e ChainGeneratedEvent) Order() string { return e.OrderID }

// OfferSentEvent is published when a chain entry moves to sent.
type OfferSentEvent struct {
	OrderID   string
	CarrierID string
	Position  int
	Deadline  time.Time
	At        time.Time
}

func (OfferSentEvent) Kind() string    { return "offer_sent" }
func (e OfferSentEvent) Order() string { return e.OrderID }

// CarrierRespondedEvent records the outcome of an offer.
type CarrierRespondedEvent struct {
	OrderID   string
	CarrierID string
	Outcome   model.EntryStatus
	At        time.Time
}

func (CarrierRespondedEvent) Kind() string    { return "carrier_responded" }
func (e CarrierRespondedEvent) Order() string { return e.OrderID }

// EscalatedEvent is published when the order leaves the chain for the
// fallback marketplace.
type EscalatedEvent struct {
	OrderID string
	Reason  string
	At      time.Time
}

func (EscalatedEvent) Kind() string    { return "escalated" }
func (e EscalatedEvent) Order() string { return e.OrderID }

// CancelledEvent is published when dispatch stops because of a cancellation.
// CarrierID is the carrier whose offer was withdrawn, if any.
type CancelledEvent struct {
	OrderID   string
	CarrierID string
	Reason    string
	At        time.Time
}

func (CancelledEvent) Kind() string    { return "cancelled" }
func (e CancelledEvent) Order() string { return e.OrderID }

// NotifyFailedEvent is published when an offer could not be delivered.
type NotifyFailedEvent struct {
	OrderID   string
	CarrierID string
	Err       error
	At        time.Time
}

func (NotifyFailedEvent) Kind() string    { return "notify_failed" }
func (e NotifyFailedEvent) Order() string { return e.OrderID }
