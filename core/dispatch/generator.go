package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/carrierchain/core/logger"
	"github.com/kilianp07/carrierchain/core/model"
	"github.com/kilianp07/carrierchain/core/store"
)

// Options overrides the configured chain tuning for one generation. Zero
// values keep the configuration.
type Options struct {
	MaxCarriers        int   `json:"max_carriers,omitempty"`
	MinScore           int   `json:"min_score,omitempty"`
	PreferLaneCarriers *bool `json:"prefer_lane_carriers,omitempty"`
}

// Generator builds dispatch chains. It reads reference data but never
// writes an order.
type Generator struct {
	carriers store.CarrierStore
	filter   *EligibilityFilter
	affinity *AffinityResolver
	scorer   *Scorer
	cfg      Config
	now      func() time.Time
	log      logger.Logger
}

// NewGenerator wires a generator on top of the store contracts.
func NewGenerator(s store.Store, est PriceEstimator, cfg Config, log logger.Logger) *Generator {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	if est == nil {
		est = HeuristicEstimator{DefaultDistanceKm: cfg.DefaultDistanceKm}
	}
	return &Generator{
		carriers: s,
		filter:   NewEligibilityFilter(s, cfg.MaxConcurrentOrders, cfg.ScoringConcurrency, log),
		affinity: NewAffinityResolver(s, log),
		scorer:   NewScorer(s, est, cfg.ScoringConcurrency, log),
		cfg:      cfg,
		now:      time.Now,
		log:      log,
	}
}

// SetClock replaces the time source used for entry deadlines.
func (g *Generator) SetClock(now func() time.Time) {
	if now != nil {
		g.now = now
	}
}

// Generate runs eligibility, lane affinity, scoring and ranking for the
// order. An exhausted pipeline is a success carrying EscalateToFallback.
func (g *Generator) Generate(ctx context.Context, order model.Order, opts Options) (res GenerateResult) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Errorf("chain generation for %s panicked: %v", order.ID, r)
			res = GenerateResult{Error: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
	}()
	if order.ID == "" {
		return GenerateResult{Error: fmt.Errorf("order: %w", ErrMissingID)}
	}
	maxCarriers, minScore, prefer := g.resolve(opts)

	var carriers []model.Carrier
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		carriers, err = g.carriers.FindCarriers(ctx, store.CarrierFilter{Status: model.CarrierActive})
		return err
	})
	if err != nil {
		chainsGenerated.WithLabelValues("error").Inc()
		return GenerateResult{Error: fmt.Errorf("find carriers: %w", err)}
	}

	eligible := g.filter.Filter(ctx, order, carriers)
	if len(eligible) == 0 {
		chainsGenerated.WithLabelValues("no_eligible").Inc()
		g.log.Infow("no eligible carriers", map[string]any{"order_id": order.ID, "active": len(carriers)})
		return GenerateResult{Success: true, Chain: []model.ChainEntry{}, EscalateToFallback: true, Reason: ReasonNoEligible}
	}

	candidates := g.affinity.Resolve(ctx, order, eligible, prefer)
	scored := g.scorer.Score(ctx, order, candidates)
	retained := filterMinScore(scored, minScore)
	if len(retained) == 0 {
		chainsGenerated.WithLabelValues("below_min_score").Inc()
		return GenerateResult{
			Success:            true,
			Chain:              []model.ChainEntry{},
			EscalateToFallback: true,
			Reason:             ReasonBelowMinScore(minScore),
			TotalEligible:      len(eligible),
			TotalScored:        0,
		}
	}

	chain := BuildChain(retained, maxCarriers, g.now(), g.cfg.OfferTimeout)
	chainsGenerated.WithLabelValues("ok").Inc()
	g.log.Infow("dispatch chain generated", map[string]any{
		"order_id": order.ID,
		"eligible": len(eligible),
		"scored":   len(retained),
		"length":   len(chain),
	})
	return GenerateResult{
		Success:       true,
		Chain:         chain,
		TotalEligible: len(eligible),
		TotalScored:   len(retained),
	}
}

func (g *Generator) resolve(opts Options) (maxCarriers, minScore int, prefer bool) {
	maxCarriers = g.cfg.MaxCarriers
	if opts.MaxCarriers > 0 {
		maxCarriers = opts.MaxCarriers
	}
	minScore = g.cfg.MinScore
	if opts.MinScore > 0 {
		minScore = opts.MinScore
	}
	prefer = g.cfg.preferLane()
	if opts.PreferLaneCarriers != nil {
		prefer = *opts.PreferLaneCarriers
	}
	return maxCarriers, minScore, prefer
}
