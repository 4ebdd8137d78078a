package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/carrierchain/core/metrics"
)

type lineRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (l *lineRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		l.mu.Lock()
		l.bodies = append(l.bodies, strings.TrimSpace(string(data)))
		l.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (l *lineRecorder) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.bodies...)
}

func newTestSink(t *testing.T) (*InfluxSink, *lineRecorder) {
	t.Helper()
	rec := &lineRecorder{}
	srv := httptest.NewServer(rec.handler())
	t.Cleanup(srv.Close)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	t.Cleanup(sink.Close)
	return sink, rec
}

func TestInfluxSink_RecordChain(t *testing.T) {
	sink, rec := newTestSink(t)
	now := time.Now()
	ev := coremetrics.ChainEvent{OrderID: "o1", Eligible: 4, Scored: 3, ChainLength: 3, Time: now}
	if err := sink.RecordChain(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("dispatch_chain").
		AddTag("order_id", "o1").
		AddTag("escalated", "false").
		AddTag("component", "dispatch_manager").
		AddField("eligible", 4).
		AddField("scored", 3).
		AddField("chain_length", 3).
		AddField("reason", "").
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	bodies := rec.all()
	if len(bodies) != 1 || bodies[0] != expected {
		t.Errorf("unexpected bodies: %#v", bodies)
	}
}

func TestInfluxSink_RecordOfferAndResponse(t *testing.T) {
	sink, rec := newTestSink(t)
	now := time.Now()
	if err := sink.RecordOffer(coremetrics.OfferEvent{OrderID: "o1", CarrierID: "c1", Position: 1, Score: 88, EstimatedPrice: 512.4, Delivered: true, Time: now}); err != nil {
		t.Fatalf("record offer: %v", err)
	}
	if err := sink.RecordResponse(coremetrics.ResponseEvent{OrderID: "o1", CarrierID: "c1", Outcome: "accepted", Latency: 90 * time.Second, Time: now}); err != nil {
		t.Fatalf("record response: %v", err)
	}
	offer := write.NewPointWithMeasurement("carrier_offer_sent").
		AddTag("order_id", "o1").
		AddTag("carrier_id", "c1").
		AddTag("delivered", "true").
		AddTag("component", "dispatch_manager").
		AddField("position", 1).
		AddField("score", 88).
		AddField("estimated_price", 512.4).
		SetTime(now)
	resp := write.NewPointWithMeasurement("carrier_response").
		AddTag("order_id", "o1").
		AddTag("carrier_id", "c1").
		AddTag("outcome", "accepted").
		AddTag("component", "dispatch_manager").
		AddField("latency_s", 90.0).
		SetTime(now)
	exp1 := strings.TrimSpace(write.PointToLineProtocol(offer, time.Nanosecond))
	exp2 := strings.TrimSpace(write.PointToLineProtocol(resp, time.Nanosecond))
	bodies := rec.all()
	if len(bodies) != 2 || bodies[0] != exp1 || bodies[1] != exp2 {
		t.Errorf("unexpected bodies: %#v", bodies)
	}
}

func TestInfluxSink_RecordEscalationAndSweep(t *testing.T) {
	sink, rec := newTestSink(t)
	now := time.Now()
	if err := sink.RecordEscalation(coremetrics.EscalationEvent{OrderID: "o2", Reason: "All carriers contacted", Time: now}); err != nil {
		t.Fatalf("record escalation: %v", err)
	}
	if err := sink.RecordSweep(coremetrics.SweepEvent{Checked: 2, Processed: 2, Escalations: 1, Duration: time.Millisecond, Time: now}); err != nil {
		t.Fatalf("record sweep: %v", err)
	}
	if bodies := rec.all(); len(bodies) != 2 {
		t.Fatalf("expected 2 writes got %d", len(bodies))
	}
	if !strings.HasPrefix(rec.all()[0], "dispatch_escalation,") {
		t.Errorf("unexpected escalation line: %s", rec.all()[0])
	}
	if !strings.HasPrefix(rec.all()[1], "timeout_sweep,") {
		t.Errorf("unexpected sweep line: %s", rec.all()[1])
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
