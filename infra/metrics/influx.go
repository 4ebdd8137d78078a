package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/carrierchain/core/metrics"
	"github.com/kilianp07/carrierchain/infra/logger"
)

// InfluxConfig holds the connection settings of the InfluxDB sink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes dispatch events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordChain writes a chain generation point.
func (s *InfluxSink) RecordChain(ev coremetrics.ChainEvent) error {
	p := write.NewPointWithMeasurement("dispatch_chain").
		AddTag("order_id", ev.OrderID).
		AddTag("escalated", strconv.FormatBool(ev.Escalated)).
		AddTag("component", "dispatch_manager").
		AddField("eligible", ev.Eligible).
		AddField("scored", ev.Scored).
		AddField("chain_length", ev.ChainLength).
		AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordOffer records an offer being sent.
func (s *InfluxSink) RecordOffer(ev coremetrics.OfferEvent) error {
	p := write.NewPointWithMeasurement("carrier_offer_sent").
		AddTag("order_id", ev.OrderID).
		AddTag("carrier_id", ev.CarrierID).
		AddTag("delivered", strconv.FormatBool(ev.Delivered)).
		AddTag("component", "dispatch_manager").
		AddField("position", ev.Position).
		AddField("score", ev.Score).
		AddField("estimated_price", round3(ev.EstimatedPrice)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordResponse records a carrier decision.
func (s *InfluxSink) RecordResponse(ev coremetrics.ResponseEvent) error {
	p := write.NewPointWithMeasurement("carrier_response").
		AddTag("order_id", ev.OrderID).
		AddTag("carrier_id", ev.CarrierID).
		AddTag("outcome", ev.Outcome).
		AddTag("component", "dispatch_manager").
		AddField("latency_s", round3(ev.Latency.Seconds())).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordEscalation records an order handed to the fallback marketplace.
func (s *InfluxSink) RecordEscalation(ev coremetrics.EscalationEvent) error {
	p := write.NewPointWithMeasurement("dispatch_escalation").
		AddTag("order_id", ev.OrderID).
		AddTag("component", "dispatch_manager").
		AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordSweep records a timeout sweep summary.
func (s *InfluxSink) RecordSweep(ev coremetrics.SweepEvent) error {
	p := write.NewPointWithMeasurement("timeout_sweep").
		AddTag("component", "timeout_sweeper").
		AddField("checked", ev.Checked).
		AddField("processed", ev.Processed).
		AddField("escalations", ev.Escalations).
		AddField("failed", ev.Failed).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.write(p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
