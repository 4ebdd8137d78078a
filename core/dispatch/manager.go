package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/carrierchain/core/events"
	"github.com/kilianp07/carrierchain/core/logger"
	"github.com/kilianp07/carrierchain/core/metrics"
	"github.com/kilianp07/carrierchain/core/model"
	coremon "github.com/kilianp07/carrierchain/core/monitoring"
	"github.com/kilianp07/carrierchain/core/notify"
	"github.com/kilianp07/carrierchain/core/store"
)

// Manager drives an order through its dispatch chain. Every write is a
// conditional update on the order version, so concurrent callers on the same
// order never leave two entries sent.
type Manager struct {
	orders    store.OrderStore
	generator *Generator
	notifier  notify.Notifier
	fallback  Fallback
	publisher events.Publisher
	metrics   metrics.MetricsSink
	cfg       Config
	now       func() time.Time
	logger    logger.Logger
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics sets the sink receiving dispatch activity.
func WithMetrics(s metrics.MetricsSink) Option {
	return func(m *Manager) {
		if s != nil {
			m.metrics = s
		}
	}
}

// WithPublisher sets the event publisher, typically an event bus.
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.publisher = p
		}
	}
}

// WithFallback sets the marketplace receiving escalated orders.
func WithFallback(f Fallback) Option {
	return func(m *Manager) {
		if f != nil {
			m.fallback = f
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a new manager. gen may be nil when StartDispatch is
// never used.
func NewManager(orders store.OrderStore, gen *Generator, n notify.Notifier, cfg Config, opts ...Option) (*Manager, error) {
	if orders == nil || n == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewManager")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch config: %w", err)
	}
	m := &Manager{
		orders:    orders,
		generator: gen,
		notifier:  n,
		fallback:  NoopFallback{},
		publisher: events.NopPublisher{},
		metrics:   metrics.NopSink{},
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.NopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if gen != nil {
		gen.SetClock(m.now)
	}
	return m, nil
}

// Config returns the effective configuration.
func (m *Manager) Config() Config { return m.cfg }

// StartDispatch generates a chain for the order, persists it and sends the
// offer to its head in the same conditional update. An exhausted generation
// escalates the order directly. Orders whose chain already holds answers
// are refused with ErrChainStarted.
func (m *Manager) StartDispatch(ctx context.Context, orderID string, opts Options) (res StartResult) {
	defer recoverInto(m.logger, "start dispatch", &res.Success, &res.Error)
	if orderID == "" {
		return StartResult{Error: fmt.Errorf("order: %w", ErrMissingID)}
	}
	if m.generator == nil {
		return StartResult{Error: errors.New("dispatch: no chain generator configured")}
	}
	order, err := m.findOrder(ctx, orderID)
	if err != nil {
		return StartResult{Error: err}
	}
	if order.Frozen() {
		return StartResult{Error: ErrChainFrozen}
	}
	if model.SentIndex(order.DispatchChain) >= 0 {
		return StartResult{Error: ErrOfferInFlight}
	}
	// Regenerating would offer the order again to carriers that already
	// answered and drop their answers.
	if answered(order.DispatchChain) {
		return StartResult{Error: ErrChainStarted}
	}

	gen := m.generator.Generate(ctx, order, opts)
	if !gen.Success {
		return StartResult{Generate: gen, Error: gen.Error}
	}
	if err := m.metrics.RecordChain(metrics.ChainEvent{
		OrderID:     order.ID,
		Eligible:    gen.TotalEligible,
		Scored:      gen.TotalScored,
		ChainLength: len(gen.Chain),
		Escalated:   gen.EscalateToFallback,
		Reason:      gen.Reason,
		Time:        m.now(),
	}); err != nil {
		m.logger.Errorf("metrics error: %v", err)
	}
	if gen.EscalateToFallback {
		esc := m.Escalate(ctx, orderID, gen.Reason)
		return StartResult{Success: esc.Success, Generate: gen, Escalated: esc.Success, Reason: gen.Reason, Error: esc.Error}
	}

	now := m.now()
	chain := model.CloneChain(gen.Chain)
	patch := m.sendPatch(chain, 0, now)
	updated, err := m.update(ctx, order, patch)
	if err != nil {
		if errors.Is(err, store.ErrPreconditionFailed) {
			updateConflicts.Inc()
		}
		return StartResult{Generate: gen, Error: fmt.Errorf("persist chain: %w", err)}
	}
	m.publisher.Publish(events.ChainGeneratedEvent{
		OrderID:       order.ID,
		Carriers:      carrierIDs(gen.Chain),
		TotalEligible: gen.TotalEligible,
		TotalScored:   gen.TotalScored,
		At:            now,
	})
	entry := updated.DispatchChain[0]
	m.afterSend(ctx, updated, entry)
	send := SendResult{Success: true, Carrier: &entry, OrderInChain: entry.Order, TotalInChain: len(updated.DispatchChain)}
	return StartResult{Success: true, Generate: gen, Send: &send}
}

// SendToNext offers the order to the first pending carrier of its chain.
func (m *Manager) SendToNext(ctx context.Context, orderID string) (res SendResult) {
	defer recoverInto(m.logger, "send to next", &res.Success, &res.Error)
	if orderID == "" {
		return SendResult{Error: fmt.Errorf("order: %w", ErrMissingID)}
	}
	for attempt := 0; ; attempt++ {
		order, err := m.findOrder(ctx, orderID)
		if err != nil {
			return SendResult{Error: err}
		}
		total := len(order.DispatchChain)
		if total == 0 {
			return SendResult{Error: ErrNoChain}
		}
		if order.Frozen() {
			return SendResult{TotalInChain: total, Error: ErrChainFrozen}
		}
		if model.SentIndex(order.DispatchChain) >= 0 {
			return SendResult{TotalInChain: total, Error: ErrOfferInFlight}
		}
		next := model.NextPendingIndex(order.DispatchChain)
		if next < 0 {
			return SendResult{Success: true, TotalInChain: total, EscalateToFallback: true, Reason: ReasonAllContacted}
		}

		chain := model.CloneChain(order.DispatchChain)
		patch := m.sendPatch(chain, next, m.now())
		updated, err := m.update(ctx, order, patch)
		if errors.Is(err, store.ErrPreconditionFailed) && attempt == 0 {
			updateConflicts.Inc()
			m.logger.Debugf("conflict sending order %s, re-reading", order.ID)
			continue
		}
		if err != nil {
			return SendResult{TotalInChain: total, Error: fmt.Errorf("update order: %w", err)}
		}
		entry := updated.DispatchChain[next]
		m.afterSend(ctx, updated, entry)
		return SendResult{Success: true, Carrier: &entry, OrderInChain: entry.Order, TotalInChain: total}
	}
}

// ProcessResponse applies a carrier decision to the entry awaiting its
// response. A refusal or timeout sends the next pending entry in the same
// update; when none remains the order awaits assignment and the caller is
// told to escalate.
func (m *Manager) ProcessResponse(ctx context.Context, orderID, carrierID string, outcome model.EntryStatus, data map[string]any) (res ResponseResult) {
	defer recoverInto(m.logger, "process response", &res.Success, &res.Error)
	if orderID == "" || carrierID == "" {
		return ResponseResult{Error: fmt.Errorf("order and carrier: %w", ErrMissingID)}
	}
	switch outcome {
	case model.EntryAccepted, model.EntryRefused, model.EntryTimeout:
	default:
		return ResponseResult{CarrierID: carrierID, Error: fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)}
	}

	for attempt := 0; ; attempt++ {
		order, err := m.findOrder(ctx, orderID)
		if err != nil {
			return ResponseResult{CarrierID: carrierID, Error: err}
		}
		if len(order.DispatchChain) == 0 {
			return ResponseResult{CarrierID: carrierID, Error: ErrNoChain}
		}
		idx := model.EntryIndex(order.DispatchChain, carrierID)
		if idx < 0 || order.DispatchChain[idx].Status != model.EntrySent {
			m.logger.Debugw("stale carrier response ignored", map[string]any{"order_id": orderID, "carrier_id": carrierID, "outcome": string(outcome)})
			return ResponseResult{Action: ActionIgnored, CarrierID: carrierID, Error: ErrNotAwaitingResponse}
		}
		if order.Frozen() {
			return ResponseResult{Action: ActionIgnored, CarrierID: carrierID, Error: ErrChainFrozen}
		}

		now := m.now()
		chain := model.CloneChain(order.DispatchChain)
		sentAt := chain[idx].SentAt
		chain[idx].Status = outcome
		chain[idx].RespondedAt = &now
		chain[idx].Response = copyData(data)

		var (
			patch  model.OrderPatch
			action Action
			next   = -1
			reason string
		)
		switch outcome {
		case model.EntryAccepted:
			status := model.OrderAccepted
			empty := ""
			patch = model.OrderPatch{
				Status:            &status,
				AssignedCarrierID: &carrierID,
				CurrentCarrierID:  &empty,
				AcceptedAt:        &now,
				DispatchChain:     chain,
			}
			action = ActionAssigned
		default:
			next = model.NextPendingIndex(chain)
			if next >= 0 {
				patch = m.sendPatch(chain, next, now)
				action = ActionSentToNext
			} else {
				status := model.OrderAwaitingAssignment
				empty := ""
				patch = model.OrderPatch{Status: &status, CurrentCarrierID: &empty, DispatchChain: chain}
				action = ActionEscalateFallback
				reason = ReasonAllContacted
			}
		}

		updated, err := m.update(ctx, order, patch)
		if errors.Is(err, store.ErrPreconditionFailed) && attempt == 0 {
			updateConflicts.Inc()
			m.logger.Debugf("conflict applying %s from %s on order %s, re-reading", outcome, carrierID, order.ID)
			continue
		}
		if err != nil {
			return ResponseResult{CarrierID: carrierID, Error: fmt.Errorf("update order: %w", err)}
		}

		carrierResponses.WithLabelValues(string(outcome)).Inc()
		m.recordResponse(order.ID, carrierID, outcome, sentAt, now)
		m.publisher.Publish(events.CarrierRespondedEvent{OrderID: order.ID, CarrierID: carrierID, Outcome: outcome, At: now})
		m.logger.Infow("carrier response applied", map[string]any{
			"order_id":   order.ID,
			"carrier_id": carrierID,
			"outcome":    string(outcome),
			"action":     string(action),
		})

		out := ResponseResult{Success: true, Action: action, CarrierID: carrierID, Reason: reason}
		if next >= 0 {
			entry := updated.DispatchChain[next]
			m.afterSend(ctx, updated, entry)
			out.NextCarrier = &entry
		}
		return out
	}
}

// Cancel stops dispatch for the order. The offer awaiting a response, if
// any, is withdrawn. Cancelling an assigned order is refused.
func (m *Manager) Cancel(ctx context.Context, orderID, reason string) (res CancelResult) {
	defer recoverInto(m.logger, "cancel", &res.Success, &res.Error)
	if orderID == "" {
		return CancelResult{Error: fmt.Errorf("order: %w", ErrMissingID)}
	}
	for attempt := 0; ; attempt++ {
		order, err := m.findOrder(ctx, orderID)
		if err != nil {
			return CancelResult{Error: err}
		}
		if order.Status == model.OrderCancelled {
			return CancelResult{Success: true, Action: ActionIgnored}
		}
		if order.Assigned() {
			return CancelResult{Error: ErrChainFrozen}
		}

		now := m.now()
		status := model.OrderCancelled
		empty := ""
		patch := model.OrderPatch{Status: &status, CurrentCarrierID: &empty, CancelledAt: &now}
		var withdrawn string
		if idx := model.SentIndex(order.DispatchChain); idx >= 0 {
			chain := model.CloneChain(order.DispatchChain)
			chain[idx].Status = model.EntryCancelled
			chain[idx].RespondedAt = &now
			if reason != "" {
				chain[idx].Response = map[string]any{"reason": reason}
			}
			patch.DispatchChain = chain
			withdrawn = chain[idx].CarrierID
		}

		updated, err := m.update(ctx, order, patch)
		if errors.Is(err, store.ErrPreconditionFailed) && attempt == 0 {
			updateConflicts.Inc()
			continue
		}
		if err != nil {
			return CancelResult{Error: fmt.Errorf("update order: %w", err)}
		}
		m.publisher.Publish(events.CancelledEvent{OrderID: order.ID, CarrierID: withdrawn, Reason: reason, At: now})
		m.logger.Infof("order %s cancelled: %s", order.ID, reason)
		if withdrawn != "" {
			idx := model.EntryIndex(updated.DispatchChain, withdrawn)
			offer := m.offerFor(updated, updated.DispatchChain[idx])
			offer.Withdrawn = true
			m.notify(ctx, updated.ID, withdrawn, offer)
		}
		return CancelResult{Success: true, Action: ActionCancelled, CarrierID: withdrawn}
	}
}

// Escalate hands the order to the fallback marketplace. The chain must hold
// no offer awaiting a response. Escalating twice is a no-op. The order keeps
// a pending handoff marker until the marketplace accepted it, so a failed or
// interrupted handoff is retried by the sweeper.
func (m *Manager) Escalate(ctx context.Context, orderID, reason string) (res EscalateResult) {
	defer recoverInto(m.logger, "escalate", &res.Success, &res.Error)
	if orderID == "" {
		return EscalateResult{Error: fmt.Errorf("order: %w", ErrMissingID)}
	}
	if reason == "" {
		reason = ReasonAllContacted
	}
	for attempt := 0; ; attempt++ {
		order, err := m.findOrder(ctx, orderID)
		if err != nil {
			return EscalateResult{Error: err}
		}
		if order.Status == model.OrderEscalated {
			return EscalateResult{Success: true, Reason: order.EscalationReason, HandedOff: !order.HandoffPending}
		}
		if order.Assigned() || order.Status == model.OrderCancelled {
			return EscalateResult{Error: ErrChainFrozen}
		}
		if model.SentIndex(order.DispatchChain) >= 0 {
			return EscalateResult{Error: ErrOfferInFlight}
		}

		now := m.now()
		status := model.OrderEscalated
		empty := ""
		pending := true
		patch := model.OrderPatch{Status: &status, CurrentCarrierID: &empty, EscalatedAt: &now, EscalationReason: &reason, HandoffPending: &pending}
		updated, err := m.update(ctx, order, patch)
		if errors.Is(err, store.ErrPreconditionFailed) && attempt == 0 {
			updateConflicts.Inc()
			continue
		}
		if err != nil {
			return EscalateResult{Error: fmt.Errorf("update order: %w", err)}
		}

		escalationsTotal.Inc()
		if r, ok := m.metrics.(metrics.EscalationRecorder); ok {
			if err := r.RecordEscalation(metrics.EscalationEvent{OrderID: order.ID, Reason: reason, Time: now}); err != nil {
				m.logger.Errorf("metrics error: %v", err)
			}
		}
		m.publisher.Publish(events.EscalatedEvent{OrderID: order.ID, Reason: reason, At: now})
		m.logger.Warnf("order %s escalated to fallback: %s", order.ID, reason)

		return EscalateResult{Success: true, Reason: reason, HandedOff: m.handoff(ctx, updated)}
	}
}

// RetryHandoff repeats the marketplace handoff of an escalated order whose
// previous attempt failed or was interrupted.
func (m *Manager) RetryHandoff(ctx context.Context, orderID string) (res EscalateResult) {
	defer recoverInto(m.logger, "retry handoff", &res.Success, &res.Error)
	if orderID == "" {
		return EscalateResult{Error: fmt.Errorf("order: %w", ErrMissingID)}
	}
	order, err := m.findOrder(ctx, orderID)
	if err != nil {
		return EscalateResult{Error: err}
	}
	if order.Status != model.OrderEscalated {
		return EscalateResult{Error: ErrNotEscalated}
	}
	if !order.HandoffPending {
		return EscalateResult{Success: true, Reason: order.EscalationReason, HandedOff: true}
	}
	handoffRetries.Inc()
	return EscalateResult{Success: true, Reason: order.EscalationReason, HandedOff: m.handoff(ctx, order)}
}

// handoff passes the escalated order to the fallback and clears its pending
// marker on success. It reports whether the marketplace took the order.
func (m *Manager) handoff(ctx context.Context, order model.Order) bool {
	hctx, cancel := context.WithTimeout(ctx, m.cfg.NotifyTimeout)
	err := m.fallback.Handoff(hctx, order, order.EscalationReason)
	cancel()
	if err != nil {
		handoffFailures.Inc()
		m.logger.Errorf("fallback handoff for %s failed: %v", order.ID, err)
		coremon.CaptureException(err, map[string]string{"module": "dispatch_manager", "order_id": order.ID, "op": "handoff"})
		return false
	}
	done := false
	if _, err := m.update(ctx, order, model.OrderPatch{HandoffPending: &done}); err != nil {
		// The marker stays set and the next sweep hands the order off again.
		m.logger.Warnf("clear handoff marker of %s: %v", order.ID, err)
	}
	return true
}

// sendPatch marks chain[idx] as sent at now and returns the patch moving the
// order to SENT_TO_CARRIER.
func (m *Manager) sendPatch(chain []model.ChainEntry, idx int, now time.Time) model.OrderPatch {
	sentAt := now
	chain[idx].Status = model.EntrySent
	chain[idx].SentAt = &sentAt
	chain[idx].Timeout = now.Add(m.cfg.OfferTimeout)
	status := model.OrderSentToCarrier
	current := chain[idx].CarrierID
	return model.OrderPatch{Status: &status, CurrentCarrierID: &current, DispatchChain: chain}
}

// afterSend runs the side effects of a persisted send. Delivery failures
// never roll the chain back.
func (m *Manager) afterSend(ctx context.Context, order model.Order, entry model.ChainEntry) {
	offersSent.Inc()
	m.publisher.Publish(events.OfferSentEvent{
		OrderID:   order.ID,
		CarrierID: entry.CarrierID,
		Position:  entry.Order,
		Deadline:  entry.Timeout,
		At:        m.now(),
	})
	delivered := m.notify(ctx, order.ID, entry.CarrierID, m.offerFor(order, entry))
	if r, ok := m.metrics.(metrics.OfferRecorder); ok {
		if err := r.RecordOffer(metrics.OfferEvent{
			OrderID:        order.ID,
			CarrierID:      entry.CarrierID,
			Position:       entry.Order,
			Score:          entry.Score,
			EstimatedPrice: entry.EstimatedPrice,
			Delivered:      delivered,
			Time:           m.now(),
		}); err != nil {
			m.logger.Errorf("metrics error: %v", err)
		}
	}
}

// notify delivers the offer once and reports whether it was accepted by the
// transport.
func (m *Manager) notify(ctx context.Context, orderID, carrierID string, offer notify.Offer) bool {
	nctx, cancel := context.WithTimeout(ctx, m.cfg.NotifyTimeout)
	defer cancel()
	res, err := m.notifier.NotifyCarrier(nctx, carrierID, orderID, offer)
	if err != nil {
		notifyFailures.Inc()
		m.logger.Errorf("notify carrier %s for order %s: %v", carrierID, orderID, err)
		coremon.CaptureException(err, map[string]string{"module": "dispatch_manager", "order_id": orderID, "carrier_id": carrierID})
		m.publisher.Publish(events.NotifyFailedEvent{OrderID: orderID, CarrierID: carrierID, Err: err, At: m.now()})
		return false
	}
	m.logger.Debugw("carrier notified", map[string]any{"order_id": orderID, "carrier_id": carrierID, "message_id": res.MessageID, "channel": res.Channel})
	return true
}

func (m *Manager) offerFor(order model.Order, entry model.ChainEntry) notify.Offer {
	return notify.Offer{
		OrderID:        order.ID,
		Reference:      order.Reference,
		CarrierID:      entry.CarrierID,
		Position:       entry.Order,
		ChainLength:    len(order.DispatchChain),
		PickupPostal:   order.Pickup.PostalCode,
		DeliveryPostal: order.Delivery.PostalCode,
		PickupStart:    order.PickupWindow.Start,
		WeightKg:       order.WeightKg,
		EstimatedPrice: entry.EstimatedPrice,
		RespondBy:      entry.Timeout,
	}
}

func (m *Manager) recordResponse(orderID, carrierID string, outcome model.EntryStatus, sentAt *time.Time, now time.Time) {
	r, ok := m.metrics.(metrics.ResponseRecorder)
	if !ok {
		return
	}
	var latency time.Duration
	if sentAt != nil {
		latency = now.Sub(*sentAt)
	}
	if err := r.RecordResponse(metrics.ResponseEvent{
		OrderID:   orderID,
		CarrierID: carrierID,
		Outcome:   string(outcome),
		Latency:   latency,
		Time:      now,
	}); err != nil {
		m.logger.Errorf("metrics error: %v", err)
	}
}

func (m *Manager) findOrder(ctx context.Context, id string) (model.Order, error) {
	var order model.Order
	err := withRetry(ctx, func(ctx context.Context) error {
		sctx, cancel := context.WithTimeout(ctx, m.cfg.StorageTimeout)
		defer cancel()
		var err error
		order, err = m.orders.FindOrder(sctx, id)
		return err
	})
	if err != nil {
		return model.Order{}, fmt.Errorf("find order %s: %w", id, err)
	}
	return order, nil
}

// update writes patch conditionally on the version the caller read.
func (m *Manager) update(ctx context.Context, order model.Order, patch model.OrderPatch) (model.Order, error) {
	sctx, cancel := context.WithTimeout(ctx, m.cfg.StorageTimeout)
	defer cancel()
	return m.orders.UpdateOrder(sctx, order.ID, patch, store.Precondition{Version: order.Version})
}

func answered(chain []model.ChainEntry) bool {
	for _, e := range chain {
		if e.Status.Terminal() {
			return true
		}
	}
	return false
}

func carrierIDs(chain []model.ChainEntry) []string {
	ids := make([]string, len(chain))
	for i, e := range chain {
		ids[i] = e.CarrierID
	}
	return ids
}

func copyData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// recoverInto turns a panic into a failed result.
func recoverInto(log logger.Logger, op string, success *bool, errp *error) {
	if r := recover(); r != nil {
		log.Errorf("%s panicked: %v", op, r)
		*success = false
		*errp = fmt.Errorf("%w: %v", ErrPanic, r)
		coremon.CaptureException(*errp, map[string]string{"module": "dispatch_manager", "op": op})
	}
}
