// Package metering records the page-count signals billing consumes after
// the fact. Recording never gates a lifecycle operation.
package metering

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmptyTenantID    = errors.New("metering: tenant_id must not be empty")
	ErrNegativeQuantity = errors.New("metering: quantity must not be negative")
	ErrInvalidEventType = errors.New("metering: event_type must not be empty")
)

type EventType string

const (
	EventFinalizedPage  EventType = "finalized_page"
	EventAttachmentPage EventType = "attachment_page"
)

type Event struct {
	TenantID   string         `json:"tenant_id"`
	DocumentID string         `json:"document_id,omitempty"`
	EventType  EventType      `json:"event_type"`
	Quantity   int64          `json:"quantity"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (e Event) Validate() error {
	if e.TenantID == "" {
		return ErrEmptyTenantID
	}
	if e.Quantity < 0 {
		return ErrNegativeQuantity
	}
	if e.EventType == "" {
		return ErrInvalidEventType
	}
	return nil
}

type Period struct {
	Start time.Time
	End   time.Time
}

// MonthlyPeriod returns the calendar month containing t.
func MonthlyPeriod(t time.Time) Period {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

type Usage struct {
	TenantID   string              `json:"tenant_id"`
	Period     Period              `json:"period"`
	Totals     map[EventType]int64 `json:"totals"`
	LastUpdate time.Time           `json:"last_update"`
}

type Meter interface {
	Record(ctx context.Context, event Event) error
	RecordBatch(ctx context.Context, events []Event) error
	GetUsage(ctx context.Context, tenantID string, period Period) (*Usage, error)
	GetUsageByType(ctx context.Context, tenantID string, eventType EventType, period Period) (int64, error)
}
