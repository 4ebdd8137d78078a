package dispatch

import (
	"context"
	"errors"

	"github.com/kilianp07/carrierchain/core/logger"
	"github.com/kilianp07/carrierchain/core/model"
	"github.com/kilianp07/carrierchain/core/store"
)

// Candidate is an eligible carrier annotated with its lane history.
type Candidate struct {
	Carrier         model.Carrier
	IsLanePreferred bool
	LaneAvgScore    float64
	LaneOrderCount  int
	// LaneRank is the 1-based position in the lane's preferred list.
	LaneRank int
}

// AffinityResolver flags carriers listed as preferred on the order's lane.
type AffinityResolver struct {
	lanes store.LaneStore
	log   logger.Logger
}

// NewAffinityResolver returns a resolver reading lanes from ls.
func NewAffinityResolver(ls store.LaneStore, log logger.Logger) *AffinityResolver {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &AffinityResolver{lanes: ls, log: log}
}

// Resolve annotates every carrier. It never drops one: a missing lane or a
// failed lookup leaves every candidate not preferred.
func (r *AffinityResolver) Resolve(ctx context.Context, order model.Order, carriers []model.Carrier, prefer bool) []Candidate {
	out := make([]Candidate, len(carriers))
	for i, c := range carriers {
		out[i] = Candidate{Carrier: c}
	}
	if !prefer || order.LaneID == "" || r.lanes == nil {
		return out
	}
	var lane model.Lane
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		lane, err = r.lanes.FindLane(ctx, order.LaneID)
		return err
	})
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.log.Warnf("lane lookup %s failed: %v", order.LaneID, err)
		}
		return out
	}
	for i := range out {
		lc, rank, ok := lane.Rank(out[i].Carrier.ID)
		if !ok {
			continue
		}
		out[i].IsLanePreferred = true
		out[i].LaneAvgScore = lc.AvgScore
		out[i].LaneOrderCount = lc.OrderCount
		out[i].LaneRank = rank
	}
	return out
}
