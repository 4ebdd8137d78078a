// Package events defines the dispatch events emitted on the event bus.
//
// Available event types:
//   - ChainGeneratedEvent: a dispatch chain was built for an order
//   - OfferSentEvent: an offer reached a carrier's slot in the chain
//   - CarrierRespondedEvent: a carrier accepted, refused or timed out
//   - EscalatedEvent: the order was handed to the fallback marketplace
//   - CancelledEvent: dispatch stopped because the order was cancelled
//   - NotifyFailedEvent: the offer could not be delivered to the carrier
package events
