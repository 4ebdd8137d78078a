package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/carrierchain/core/logger"
	"github.com/kilianp07/carrierchain/core/metrics"
	"github.com/kilianp07/carrierchain/core/model"
	"github.com/kilianp07/carrierchain/core/store"
)

// CheckTimeouts feeds every offer whose deadline has passed to
// ProcessResponse as a timeout. One failing order does not stop the sweep.
func (m *Manager) CheckTimeouts(ctx context.Context) (res SweepResult) {
	defer recoverInto(m.logger, "check timeouts", &res.Success, &res.Error)
	start := time.Now()
	now := m.now()

	expired, err := m.findOrders(ctx, store.OrderFilter{
		SentDeadlineBefore: now,
		ExcludeStatuses:    []model.OrderStatus{model.OrderCancelled, model.OrderEscalated},
	})
	if err != nil {
		return SweepResult{Error: fmt.Errorf("find expired offers: %w", err)}
	}
	sweepTimeoutsSeen.Add(float64(len(expired)))

	var (
		mu  sync.Mutex
		out = SweepResult{Success: true, Checked: len(expired)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.SweepConcurrency)
	for _, o := range expired {
		idx := model.SentIndex(o.DispatchChain)
		if idx < 0 {
			continue
		}
		carrierID := o.DispatchChain[idx].CarrierID
		g.Go(func() error {
			r := m.ProcessResponse(gctx, o.ID, carrierID, model.EntryTimeout, map[string]any{"reason": "response deadline exceeded"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case r.Success:
				out.Processed++
				if r.Action == ActionEscalateFallback {
					out.Escalations++
					out.Escalate = append(out.Escalate, o.ID)
				}
			case r.Action == ActionIgnored:
				m.logger.Debugf("timeout on order %s already handled", o.ID)
			default:
				out.Failed++
				m.logger.Errorf("timeout on order %s failed: %v", o.ID, r.Error)
			}
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	sweepDuration.Observe(elapsed.Seconds())
	if r, ok := m.metrics.(metrics.SweepRecorder); ok {
		if err := r.RecordSweep(metrics.SweepEvent{
			Checked:     out.Checked,
			Processed:   out.Processed,
			Escalations: out.Escalations,
			Failed:      out.Failed,
			Duration:    elapsed,
			Time:        now,
		}); err != nil {
			m.logger.Errorf("metrics error: %v", err)
		}
	}
	if out.Checked > 0 {
		m.logger.Infow("timeout sweep done", map[string]any{
			"checked":     out.Checked,
			"processed":   out.Processed,
			"escalations": out.Escalations,
			"failed":      out.Failed,
		})
	}
	return out
}

// ResumeEscalations finishes escalations left half done by a crash or a
// failed write: exhausted orders still awaiting assignment are escalated,
// and escalated orders whose handoff is still pending after the notify
// timeout are handed to the marketplace again.
func (m *Manager) ResumeEscalations(ctx context.Context) (res ResumeResult) {
	defer recoverInto(m.logger, "resume escalations", &res.Success, &res.Error)
	stranded, err := m.findOrders(ctx, store.OrderFilter{
		Statuses:  []model.OrderStatus{model.OrderAwaitingAssignment},
		Exhausted: true,
	})
	if err != nil {
		return ResumeResult{Error: fmt.Errorf("find exhausted orders: %w", err)}
	}
	pending, err := m.findOrders(ctx, store.OrderFilter{
		Statuses:       []model.OrderStatus{model.OrderEscalated},
		HandoffPending: true,
	})
	if err != nil {
		return ResumeResult{Error: fmt.Errorf("find pending handoffs: %w", err)}
	}
	// A handoff younger than the notify timeout may still be in flight.
	cutoff := m.now().Add(-m.cfg.NotifyTimeout)

	var (
		mu  sync.Mutex
		out = ResumeResult{Success: true}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.SweepConcurrency)
	for _, o := range stranded {
		g.Go(func() error {
			r := m.Escalate(gctx, o.ID, ReasonAllContacted)
			mu.Lock()
			defer mu.Unlock()
			if !r.Success {
				out.Failed++
				m.logger.Errorf("resume escalation of %s: %v", o.ID, r.Error)
				return nil
			}
			m.logger.Warnf("order %s found exhausted without escalation, escalated", o.ID)
			out.Escalated++
			return nil
		})
	}
	for _, o := range pending {
		if o.EscalatedAt != nil && o.EscalatedAt.After(cutoff) {
			continue
		}
		g.Go(func() error {
			r := m.RetryHandoff(gctx, o.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case !r.Success:
				out.Failed++
				m.logger.Errorf("retry handoff of %s: %v", o.ID, r.Error)
			case r.HandedOff:
				out.Handoffs++
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (m *Manager) findOrders(ctx context.Context, f store.OrderFilter) ([]model.Order, error) {
	var orders []model.Order
	err := withRetry(ctx, func(ctx context.Context) error {
		sctx, cancel := context.WithTimeout(ctx, m.cfg.StorageTimeout)
		defer cancel()
		var err error
		orders, err = m.orders.FindOrders(sctx, f)
		return err
	})
	return orders, err
}

// Sweeper runs CheckTimeouts periodically and escalates the orders whose
// chain a timeout exhausted.
type Sweeper struct {
	mgr      *Manager
	interval time.Duration
	log      logger.Logger
}

// NewSweeper returns a sweeper ticking at the manager's sweep interval.
func NewSweeper(mgr *Manager, log logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Sweeper{mgr: mgr, interval: mgr.cfg.SweepInterval, log: log}
}

// RunOnce performs a single sweep, escalates the orders it exhausted and
// then resumes interrupted escalations.
func (s *Sweeper) RunOnce(ctx context.Context) SweepResult {
	res := s.mgr.CheckTimeouts(ctx)
	if !res.Success {
		s.log.Errorf("timeout sweep failed: %v", res.Error)
		return res
	}
	for _, id := range res.Escalate {
		if esc := s.mgr.Escalate(ctx, id, ReasonAllContacted); !esc.Success {
			s.log.Errorf("escalate order %s: %v", id, esc.Error)
		}
	}
	resumed := s.mgr.ResumeEscalations(ctx)
	if !resumed.Success {
		s.log.Errorf("resume escalations failed: %v", resumed.Error)
		return res
	}
	res.Resumed = resumed.Escalated
	res.Handoffs = resumed.Handoffs
	res.Failed += resumed.Failed
	return res
}

// Start sweeps until the context is canceled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.log.Infof("timeout sweeper started, interval %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.log.Infof("timeout sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}
