package monitoring

import (
	"errors"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/carrierchain/config"
	coremon "github.com/kilianp07/carrierchain/core/monitoring"
)

func TestNewSentryMonitorWithoutDSN(t *testing.T) {
	mon, err := NewSentryMonitor(config.SentryConfig{})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, ok := mon.(coremon.NopMonitor); !ok {
		t.Fatalf("expected NopMonitor, got %T", mon)
	}
}

func TestSentryMonitorSetsTags(t *testing.T) {
	var (
		mu   sync.Mutex
		tags map[string]string
	)
	capture := func(e *sentry.Event, _ *sentry.EventHint) *sentry.Event {
		mu.Lock()
		tags = e.Tags
		mu.Unlock()
		return nil
	}
	cfg := config.SentryConfig{DSN: "https://public@example.com/1", Environment: "test"}
	mon, err := newSentryMonitor(cfg, capture)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	mon.CaptureException(errors.New("handoff failed"), map[string]string{"module": "dispatch_manager", "order_id": "o1"})
	mon.Flush(0)

	mu.Lock()
	defer mu.Unlock()
	if tags["order_id"] != "o1" || tags["module"] != "dispatch_manager" {
		t.Fatalf("tags not forwarded: %v", tags)
	}
}
