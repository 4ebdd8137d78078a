package dispatch

import (
	"sort"
	"time"

	"github.com/kilianp07/carrierchain/core/model"
)

// BuildChain ranks scored carriers by descending score, keeps the first
// maxCarriers and turns them into pending entries. Ties keep their input
// order.
func BuildChain(scored []Scored, maxCarriers int, now time.Time, offerTimeout time.Duration) []model.ChainEntry {
	if maxCarriers <= 0 {
		maxCarriers = DefaultMaxCarriers
	}
	if offerTimeout <= 0 {
		offerTimeout = DefaultOfferTimeout
	}
	ranked := append([]Scored(nil), scored...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > maxCarriers {
		ranked = ranked[:maxCarriers]
	}
	chain := make([]model.ChainEntry, len(ranked))
	for i, s := range ranked {
		var breakdown *model.ScoreBreakdown
		if s.Breakdown != nil {
			b := *s.Breakdown
			breakdown = &b
		}
		pos := i + 1
		chain[i] = model.ChainEntry{
			CarrierID:             s.Carrier.ID,
			CarrierName:           s.Carrier.Name,
			Order:                 pos,
			Priority:              model.PriorityForPosition(pos),
			Score:                 s.Score,
			ScoreBreakdown:        breakdown,
			EstimatedPrice:        s.EstimatedPrice,
			EstimatedResponseTime: responseTimeEst,
			Timeout:               now.Add(offerTimeout),
			Status:                model.EntryPending,
		}
	}
	return chain
}

// filterMinScore keeps the carriers scoring at least minScore.
func filterMinScore(scored []Scored, minScore int) []Scored {
	out := make([]Scored, 0, len(scored))
	for _, s := range scored {
		if s.Score >= minScore {
			out = append(out, s)
		}
	}
	return out
}
