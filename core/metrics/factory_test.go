package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/carrierchain/core/factory"
)

type closingSink struct {
	chainOnly
	closed bool
}

func (c *closingSink) Close() { c.closed = true }

var lastCloser *closingSink

func init() {
	_ = RegisterMetricsSink("nop", func(map[string]any) (MetricsSink, error) { return NopSink{}, nil })
	_ = RegisterMetricsSink("offers", func(map[string]any) (MetricsSink, error) { return &recordSink{}, nil })
	_ = RegisterMetricsSink("chains", func(map[string]any) (MetricsSink, error) { return &chainOnly{}, nil })
	_ = RegisterMetricsSink("closing", func(map[string]any) (MetricsSink, error) {
		lastCloser = &closingSink{}
		return lastCloser, nil
	})
}

func TestNewMetricsSinkSkipsNop(t *testing.T) {
	s, err := NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, s)

	s, err = NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "offers"}})
	require.NoError(t, err)
	assert.IsType(t, &recordSink{}, s, "a single effective sink is not wrapped")
}

func TestNewMetricsSinkCombinesDispatchSinks(t *testing.T) {
	s, err := NewMetricsSink([]factory.ModuleConfig{{Type: "chains"}, {Type: "offers"}, {Type: "closing"}})
	require.NoError(t, err)
	m, ok := s.(*MultiSink)
	require.True(t, ok, "got %T", s)
	assert.Len(t, m.Sinks, 3)

	// The manager reaches optional recorders through type assertions.
	_, ok = s.(OfferRecorder)
	assert.True(t, ok)
	_, ok = s.(SweepRecorder)
	assert.True(t, ok)
	assert.Equal(t, []string{"chain", "offer"}, Recorders(s))

	m.Close()
	assert.True(t, lastCloser.closed)
}

func TestNewMetricsSinkRejectsBadConfig(t *testing.T) {
	_, err := NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}})
	assert.ErrorContains(t, err, `metrics sink "missing"`)

	_, err = NewMetricsSink([]factory.ModuleConfig{{Type: "offers"}, {Type: "offers"}})
	assert.ErrorContains(t, err, "configured twice")

	_, err = NewMetricsSink([]factory.ModuleConfig{{}})
	assert.ErrorContains(t, err, "missing type")
}

func TestRecorders(t *testing.T) {
	assert.Equal(t, []string{"chain"}, Recorders(&chainOnly{}))
	assert.Equal(t, []string{"chain", "offer", "response", "escalation", "sweep"}, Recorders(NopSink{}))
	assert.Contains(t, SinkTypes(), "offers")
}
