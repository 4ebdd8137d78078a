package model

import (
	"fmt"
	"time"
)

// EntryStatus is the state of one carrier slot in a dispatch chain.
type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntrySent      EntryStatus = "sent"
	EntryAccepted  EntryStatus = "accepted"
	EntryRefused   EntryStatus = "refused"
	EntryTimeout   EntryStatus = "timeout"
	EntryCancelled EntryStatus = "cancelled"
)

// Terminal reports whether the status can no longer change.
func (s EntryStatus) Terminal() bool {
	switch s {
	case EntryAccepted, EntryRefused, EntryTimeout, EntryCancelled:
		return true
	}
	return false
}

// Priority is the offer tier derived from the chain position.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// PriorityForPosition maps a 1-based chain position to its tier.
func PriorityForPosition(pos int) Priority {
	switch {
	case pos <= 1:
		return PriorityHigh
	case pos <= 3:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// ScoreBreakdown details how a carrier's final score was obtained.
type ScoreBreakdown struct {
	GlobalScore       int `json:"global_score"`
	LaneBonus         int `json:"lane_bonus"`
	PriceScore        int `json:"price_score"`
	AvailabilityScore int `json:"availability_score"`
	Total             int `json:"total"`
}

// ChainEntry is one carrier's slot in a dispatch chain.
type ChainEntry struct {
	CarrierID             string          `json:"carrier_id"`
	CarrierName           string          `json:"carrier_name"`
	Order                 int             `json:"order"`
	Priority              Priority        `json:"priority"`
	Score                 int             `json:"score"`
	ScoreBreakdown        *ScoreBreakdown `json:"score_breakdown,omitempty"` // nil when scoring failed
	EstimatedPrice        float64         `json:"estimated_price"`
	EstimatedResponseTime string          `json:"estimated_response_time,omitempty"`
	Timeout               time.Time       `json:"timeout"`
	Status                EntryStatus     `json:"status"`
	SentAt                *time.Time      `json:"sent_at,omitempty"`
	RespondedAt           *time.Time      `json:"responded_at,omitempty"`
	Response              map[string]any  `json:"response,omitempty"`
}

// CloneChain deep copies a chain so callers can mutate it freely.
func CloneChain(chain []ChainEntry) []ChainEntry {
	if chain == nil {
		return nil
	}
	out := make([]ChainEntry, len(chain))
	for i, e := range chain {
		cp := e
		if e.ScoreBreakdown != nil {
			b := *e.ScoreBreakdown
			cp.ScoreBreakdown = &b
		}
		if e.SentAt != nil {
			t := *e.SentAt
			cp.SentAt = &t
		}
		if e.RespondedAt != nil {
			t := *e.RespondedAt
			cp.RespondedAt = &t
		}
		if e.Response != nil {
			cp.Response = make(map[string]any, len(e.Response))
			for k, v := range e.Response {
				cp.Response[k] = v
			}
		}
		out[i] = cp
	}
	return out
}

// SentIndex returns the index of the entry awaiting a response, or -1.
func SentIndex(chain []ChainEntry) int {
	for i, e := range chain {
		if e.Status == EntrySent {
			return i
		}
	}
	return -1
}

// NextPendingIndex returns the index of the first pending entry in chain
// order, or -1 when the chain is exhausted.
func NextPendingIndex(chain []ChainEntry) int {
	for i, e := range chain {
		if e.Status == EntryPending {
			return i
		}
	}
	return -1
}

// Exhausted reports whether the chain has entries and none of them is
// pending or awaiting a response.
func Exhausted(chain []ChainEntry) bool {
	if len(chain) == 0 {
		return false
	}
	for _, e := range chain {
		if !e.Status.Terminal() {
			return false
		}
	}
	return true
}

// EntryIndex returns the index of the carrier's entry, or -1.
func EntryIndex(chain []ChainEntry, carrierID string) int {
	for i, e := range chain {
		if e.CarrierID == carrierID {
			return i
		}
	}
	return -1
}

// CheckInvariants validates the single-offer and assignment invariants of an
// order's dispatch chain.
func CheckInvariants(o Order) error {
	sent, accepted := 0, 0
	var acceptedID string
	for _, e := range o.DispatchChain {
		switch e.Status {
		case EntrySent:
			sent++
		case EntryAccepted:
			accepted++
			acceptedID = e.CarrierID
		}
	}
	if sent > 1 {
		return fmt.Errorf("order %s has %d entries sent", o.ID, sent)
	}
	if accepted > 1 {
		return fmt.Errorf("order %s has %d entries accepted", o.ID, accepted)
	}
	if (o.AssignedCarrierID != "") != (accepted == 1) {
		return fmt.Errorf("order %s assigned to %q with %d accepted entries", o.ID, o.AssignedCarrierID, accepted)
	}
	if accepted == 1 && acceptedID != o.AssignedCarrierID {
		return fmt.Errorf("order %s assigned to %q but %q accepted", o.ID, o.AssignedCarrierID, acceptedID)
	}
	return nil
}
