package dispatch

import (
	"errors"
	"fmt"

	"github.com/kilianp07/carrierchain/core/model"
)

var (
	// ErrMissingID is returned when an order or carrier id is empty.
	ErrMissingID = errors.New("missing identifier")
	// ErrNoChain is returned when the order has no dispatch chain.
	ErrNoChain = errors.New("order has no dispatch chain")
	// ErrInvalidOutcome is returned for an outcome other than accepted,
	// refused or timeout.
	ErrInvalidOutcome = errors.New("invalid response outcome")
	// ErrOfferInFlight is returned when an entry is already awaiting a
	// response.
	ErrOfferInFlight = errors.New("an offer is already awaiting a response")
	// ErrChainFrozen is returned when the order is assigned, cancelled or
	// escalated.
	ErrChainFrozen = errors.New("dispatch chain is frozen")
	// ErrNotAwaitingResponse is returned when the carrier's entry is not sent.
	ErrNotAwaitingResponse = errors.New("carrier is not awaiting a response")
	// ErrNotEscalated is returned when a handoff is retried for an order
	// that was never escalated.
	ErrNotEscalated = errors.New("order is not escalated")
	// ErrChainStarted is returned when dispatch is started again on an order
	// whose chain already holds carrier answers.
	ErrChainStarted = errors.New("dispatch chain already started")
	// ErrPanic wraps a recovered panic.
	ErrPanic = errors.New("dispatch panic")
)

// Escalation reasons.
const (
	ReasonNoEligible   = "No eligible carriers found"
	ReasonAllContacted = "All carriers contacted"
)

// ReasonBelowMinScore formats the reason used when every scored carrier is
// under the threshold.
func ReasonBelowMinScore(minScore int) string {
	return fmt.Sprintf("No carriers meet minimum score (%d)", minScore)
}

// Action tells the caller what a response or sweep did to the order.
type Action string

const (
	ActionAssigned         Action = "assigned"
	ActionSentToNext       Action = "sent_to_next"
	ActionEscalateFallback Action = "escalate_fallback"
	ActionIgnored          Action = "ignored"
	ActionCancelled        Action = "cancelled"
)

// GenerateResult is the outcome of a chain generation.
type GenerateResult struct {
	Success            bool               `json:"success"`
	Chain              []model.ChainEntry `json:"chain,omitempty"`
	EscalateToFallback bool               `json:"escalate_to_fallback,omitempty"`
	Reason             string             `json:"reason,omitempty"`
	TotalEligible      int                `json:"total_eligible"`
	TotalScored        int                `json:"total_scored"`
	Error              error              `json:"-"`
}

// SendResult is the outcome of SendToNext.
type SendResult struct {
	Success            bool              `json:"success"`
	Carrier            *model.ChainEntry `json:"carrier,omitempty"`
	OrderInChain       int               `json:"order_in_chain,omitempty"`
	TotalInChain       int               `json:"total_in_chain"`
	EscalateToFallback bool              `json:"escalate_to_fallback,omitempty"`
	Reason             string            `json:"reason,omitempty"`
	Error              error             `json:"-"`
}

// ResponseResult is the outcome of ProcessResponse.
type ResponseResult struct {
	Success     bool              `json:"success"`
	Action      Action            `json:"action,omitempty"`
	CarrierID   string            `json:"carrier_id,omitempty"`
	NextCarrier *model.ChainEntry `json:"next_carrier,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Error       error             `json:"-"`
}

// SweepResult summarizes a timeout sweep. Escalate lists the orders whose
// chain was exhausted by a timeout. Resumed counts exhausted orders found
// without an escalation and Handoffs the retried marketplace handoffs that
// succeeded; both are filled by Sweeper.RunOnce.
type SweepResult struct {
	Success     bool     `json:"success"`
	Checked     int      `json:"checked"`
	Processed   int      `json:"processed"`
	Escalations int      `json:"escalations"`
	Failed      int      `json:"failed"`
	Escalate    []string `json:"escalate,omitempty"`
	Resumed     int      `json:"resumed"`
	Handoffs    int      `json:"handoffs"`
	Error       error    `json:"-"`
}

// ResumeResult is the outcome of ResumeEscalations.
type ResumeResult struct {
	Success   bool  `json:"success"`
	Escalated int   `json:"escalated"`
	Handoffs  int   `json:"handoffs"`
	Failed    int   `json:"failed"`
	Error     error `json:"-"`
}

// StartResult is the outcome of StartDispatch.
type StartResult struct {
	Success   bool           `json:"success"`
	Generate  GenerateResult `json:"generate"`
	Send      *SendResult    `json:"send,omitempty"`
	Escalated bool           `json:"escalated,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Error     error          `json:"-"`
}

// CancelResult is the outcome of Cancel. CarrierID is the carrier whose
// pending offer was withdrawn.
type CancelResult struct {
	Success   bool   `json:"success"`
	Action    Action `json:"action,omitempty"`
	CarrierID string `json:"carrier_id,omitempty"`
	Error     error  `json:"-"`
}

// EscalateResult is the outcome of Escalate.
type EscalateResult struct {
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
	HandedOff bool   `json:"handed_off"`
	Error     error  `json:"-"`
}

// ErrorString returns the message of err or an empty string.
func ErrorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
