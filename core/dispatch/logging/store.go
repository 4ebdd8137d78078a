// Package logging keeps the timeline of dispatch events per order so that
// operators can audit who was offered an order, when, and what happened.
package logging

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/carrierchain/core/events"
)

// LogRecord captures one dispatch event of an order.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	OrderID   string    `json:"order_id"`
	CarrierID string    `json:"carrier_id,omitempty"`
	Position  int       `json:"position,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Carriers  []string  `json:"carriers,omitempty"`
	Deadline  time.Time `json:"deadline,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start     time.Time
	End       time.Time
	OrderID   string
	CarrierID string
	Kind      string
	// Limit caps the number of records returned. Zero means no limit.
	Limit int
}

// Match reports whether the record satisfies every filter except Limit.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.OrderID != "" && r.OrderID != q.OrderID {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if q.CarrierID != "" && r.CarrierID != q.CarrierID && !contains(r.Carriers, q.CarrierID) {
		return false
	}
	return true
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// ErrUnknownEvent is returned by FromEvent for event types it cannot map.
var ErrUnknownEvent = errors.New("unknown dispatch event")

// FromEvent converts a dispatch event into a record.
func FromEvent(e events.Event) (LogRecord, error) {
	rec := LogRecord{Kind: e.Kind(), OrderID: e.Order()}
	switch ev := e.(type) {
	case events.ChainGeneratedEvent:
		rec.Timestamp = ev.At
		rec.Carriers = append([]string(nil), ev.Carriers...)
	case events.OfferSentEvent:
		rec.Timestamp = ev.At
		rec.CarrierID = ev.CarrierID
		rec.Position = ev.Position
		rec.Deadline = ev.Deadline
	case events.CarrierRespondedEvent:
		rec.Timestamp = ev.At
		rec.CarrierID = ev.CarrierID
		rec.Outcome = string(ev.Outcome)
	case events.EscalatedEvent:
		rec.Timestamp = ev.At
		rec.Reason = ev.Reason
	case events.CancelledEvent:
		rec.Timestamp = ev.At
		rec.CarrierID = ev.CarrierID
		rec.Reason = ev.Reason
	case events.NotifyFailedEvent:
		rec.Timestamp = ev.At
		rec.CarrierID = ev.CarrierID
		if ev.Err != nil {
			rec.Error = ev.Err.Error()
		}
	default:
		return LogRecord{}, ErrUnknownEvent
	}
	return rec, nil
}

// limit truncates res to q.Limit records.
func limit(res []LogRecord, q LogQuery) []LogRecord {
	if q.Limit > 0 && len(res) > q.Limit {
		return res[:q.Limit]
	}
	return res
}
