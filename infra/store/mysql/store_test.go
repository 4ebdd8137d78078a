package mysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/carrierchain/core/model"
	"github.com/kilianp07/carrierchain/core/store"
)

func TestWhere(t *testing.T) {
	pred, args := where(store.OrderFilter{})
	assert.Equal(t, "1=1", pred)
	assert.Empty(t, args)

	cut := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	pred, args = where(store.OrderFilter{
		AssignedCarrierID:  "c1",
		Statuses:           []model.OrderStatus{model.OrderAccepted, model.OrderLoading},
		ExcludeStatuses:    []model.OrderStatus{model.OrderCancelled},
		SentDeadlineBefore: cut,
	})
	assert.Equal(t, "1=1 AND assigned_carrier_id = ? AND status IN (?,?) AND status NOT IN (?) AND sent_deadline IS NOT NULL AND sent_deadline < ?", pred)
	assert.Equal(t, []any{"c1", "ACCEPTED", "LOADING", "CANCELLED", cut}, args)
}

func TestToRowTracksSentDeadline(t *testing.T) {
	deadline := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	o := model.Order{ID: "o1", Status: model.OrderSentToCarrier, DispatchChain: []model.ChainEntry{
		{CarrierID: "a", Status: model.EntryRefused, Timeout: deadline.Add(-time.Hour)},
		{CarrierID: "b", Status: model.EntrySent, Timeout: deadline},
	}}
	r, err := toRow(o)
	require.NoError(t, err)
	assert.True(t, r.sentDeadline.Valid)
	assert.Equal(t, deadline, r.sentDeadline.Time)
	assert.Equal(t, "SENT_TO_CARRIER", r.status)

	o.DispatchChain[1].Status = model.EntryAccepted
	o.AssignedCarrierID = "b"
	r, err = toRow(o)
	require.NoError(t, err)
	assert.False(t, r.sentDeadline.Valid)
	assert.Equal(t, "b", r.assigned)
}

func TestConfigDSN(t *testing.T) {
	c := Config{User: "root", Password: "secret"}
	c.SetDefaults()
	assert.Equal(t, "root:secret@tcp(localhost:3306)/carrierchain?parseTime=true&loc=UTC", c.DSN())
	assert.Equal(t, 10, c.MaxOpenConns)
}
