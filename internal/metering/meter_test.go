package metering

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/db/dbtest"
)

func TestEvent_Validate(t *testing.T) {
	ok := Event{TenantID: "t", EventType: EventFinalizedPage, Quantity: 3}
	assert.NoError(t, ok.Validate())

	e := ok
	e.TenantID = ""
	assert.ErrorIs(t, e.Validate(), ErrEmptyTenantID)
	e = ok
	e.Quantity = -1
	assert.ErrorIs(t, e.Validate(), ErrNegativeQuantity)
	e = ok
	e.EventType = ""
	assert.ErrorIs(t, e.Validate(), ErrInvalidEventType)
}

func TestGormMeter_RecordAndAggregate(t *testing.T) {
	m := NewGormMeter(dbtest.SQLite(t))
	ctx := context.Background()
	at := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

	require.NoError(t, m.Record(ctx, Event{TenantID: "t1", DocumentID: "d1", EventType: EventFinalizedPage, Quantity: 12, Timestamp: at}))
	require.NoError(t, m.RecordBatch(ctx, []Event{
		{TenantID: "t1", DocumentID: "d1", EventType: EventAttachmentPage, Quantity: 4, Timestamp: at, Metadata: map[string]any{"attachment_id": "a1"}},
		{TenantID: "t1", DocumentID: "d2", EventType: EventFinalizedPage, Quantity: 3, Timestamp: at.Add(time.Hour)},
		{TenantID: "t2", DocumentID: "d3", EventType: EventFinalizedPage, Quantity: 99, Timestamp: at},
		{TenantID: "t1", DocumentID: "d4", EventType: EventFinalizedPage, Quantity: 50, Timestamp: at.AddDate(0, 1, 0)},
	}))

	usage, err := m.GetUsage(ctx, "t1", MonthlyPeriod(at))
	require.NoError(t, err)
	assert.Equal(t, int64(15), usage.Totals[EventFinalizedPage])
	assert.Equal(t, int64(4), usage.Totals[EventAttachmentPage])

	n, err := m.GetUsageByType(ctx, "t2", EventFinalizedPage, MonthlyPeriod(at))
	require.NoError(t, err)
	assert.Equal(t, int64(99), n)

	n, err = m.GetUsageByType(ctx, "t3", EventFinalizedPage, MonthlyPeriod(at))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGormMeter_BatchIsAtomic(t *testing.T) {
	m := NewGormMeter(dbtest.SQLite(t))
	ctx := context.Background()
	at := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

	err := m.RecordBatch(ctx, []Event{
		{TenantID: "t1", EventType: EventFinalizedPage, Quantity: 1, Timestamp: at},
		{TenantID: "", EventType: EventFinalizedPage, Quantity: 1, Timestamp: at},
	})
	assert.ErrorIs(t, err, ErrEmptyTenantID)

	n, err := m.GetUsageByType(ctx, "t1", EventFinalizedPage, MonthlyPeriod(at))
	require.NoError(t, err)
	assert.Zero(t, n)
}
