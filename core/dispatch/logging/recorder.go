package logging

import (
	"context"
	"time"

	"github.com/kilianp07/carrierchain/core/events"
	"github.com/kilianp07/carrierchain/core/logger"
)

const appendTimeout = 5 * time.Second

// Recorder appends the events read from a subscription to a LogStore.
type Recorder struct {
	store LogStore
	log   logger.Logger
}

// NewRecorder returns a recorder writing to store.
func NewRecorder(store LogStore, log logger.Logger) *Recorder {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Recorder{store: store, log: log}
}

// Run consumes events until the channel is closed or ctx is done. Append
// failures are logged and the event is dropped.
func (r *Recorder) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			r.Record(ctx, e)
		}
	}
}

// Record appends a single event.
func (r *Recorder) Record(ctx context.Context, e events.Event) {
	rec, err := FromEvent(e)
	if err != nil {
		r.log.Warnf("timeline: %v: %T", err, e)
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()
	if err := r.store.Append(actx, rec); err != nil {
		r.log.Errorf("timeline append for order %s: %v", rec.OrderID, err)
	}
}
