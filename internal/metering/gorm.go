package metering

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vincentgggg12/docufen-admin-sub001/internal/db/models"
	"gorm.io/gorm"
)

// GormMeter stores usage events in the usage_events table.
type GormMeter struct {
	db *gorm.DB
}

func NewGormMeter(db *gorm.DB) *GormMeter {
	return &GormMeter{db: db}
}

func (m *GormMeter) Record(ctx context.Context, event Event) error {
	row, err := toRow(event, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := m.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("metering: failed to record event: %w", err)
	}
	return nil
}

// RecordBatch stores events in one transaction; one invalid event rejects
// the whole batch.
func (m *GormMeter) RecordBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]models.UsageEvent, 0, len(events))
	for _, event := range events {
		row, err := toRow(event, now)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("metering: failed to insert events: %w", err)
		}
		return nil
	})
}

func (m *GormMeter) GetUsage(ctx context.Context, tenantID string, period Period) (*Usage, error) {
	var totals []struct {
		EventType string
		Total     int64
	}
	err := m.db.WithContext(ctx).Model(&models.UsageEvent{}).
		Select("event_type, SUM(quantity) AS total").
		Where("tenant_id = ? AND occurred_at >= ? AND occurred_at < ?", tenantID, period.Start.UTC(), period.End.UTC()).
		Group("event_type").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("metering: failed to query usage: %w", err)
	}

	usage := &Usage{
		TenantID:   tenantID,
		Period:     period,
		Totals:     make(map[EventType]int64, len(totals)),
		LastUpdate: time.Now().UTC(),
	}
	for _, t := range totals {
		usage.Totals[EventType(t.EventType)] = t.Total
	}
	return usage, nil
}

func (m *GormMeter) GetUsageByType(ctx context.Context, tenantID string, eventType EventType, period Period) (int64, error) {
	var total int64
	err := m.db.WithContext(ctx).Model(&models.UsageEvent{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("tenant_id = ? AND event_type = ? AND occurred_at >= ? AND occurred_at < ?",
			tenantID, string(eventType), period.Start.UTC(), period.End.UTC()).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("metering: failed to query usage by type: %w", err)
	}
	return total, nil
}

func toRow(event Event, now time.Time) (models.UsageEvent, error) {
	if err := event.Validate(); err != nil {
		return models.UsageEvent{}, err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}
	row := models.UsageEvent{
		TenantID:   event.TenantID,
		DocumentID: event.DocumentID,
		EventType:  string(event.EventType),
		Quantity:   event.Quantity,
		Timestamp:  event.Timestamp.UTC(),
	}
	if event.Metadata != nil {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return models.UsageEvent{}, fmt.Errorf("metering: failed to marshal metadata: %w", err)
		}
		row.Metadata = string(data)
	}
	return row, nil
}
