package dispatch

import (
	"context"

	"github.com/kilianp07/carrierchain/core/model"
)

// RespondResult pairs a processed response with the escalation it caused,
// if any.
type RespondResult struct {
	ResponseResult
	Escalation *EscalateResult `json:"escalation,omitempty"`
}

// Respond processes a carrier response and hands the order to the
// marketplace when the response exhausted the chain. Transports receiving
// carrier answers call it instead of ProcessResponse.
func (m *Manager) Respond(ctx context.Context, orderID, carrierID string, outcome model.EntryStatus, data map[string]any) RespondResult {
	res := RespondResult{ResponseResult: m.ProcessResponse(ctx, orderID, carrierID, outcome, data)}
	if res.Success && res.Action == ActionEscalateFallback {
		esc := m.Escalate(ctx, orderID, res.Reason)
		res.Escalation = &esc
	}
	return res
}
