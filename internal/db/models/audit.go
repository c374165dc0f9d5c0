package models

import (
	"time"
)

// AuditRecord rows are insert-only.
type AuditRecord struct {
	ID         uint      `gorm:"primaryKey"`
	DocumentID string    `gorm:"uniqueIndex:idx_audit_doc_seq,priority:1;not null;size:36"`
	Sequence   uint64    `gorm:"uniqueIndex:idx_audit_doc_seq,priority:2;not null"`
	Action     string    `gorm:"index;not null"`
	ActorID    string    `gorm:"index;not null"`
	Before     string    `gorm:"type:text"`
	After      string    `gorm:"type:text"`
	Timestamp  time.Time `gorm:"column:recorded_at;index;not null"`
	PrevHash   string    `gorm:"not null"`
	Hash       string    `gorm:"not null"`
}

type FinalizationJob struct {
	ID          string `gorm:"primaryKey;size:36"`
	DocumentID  string `gorm:"uniqueIndex:idx_final_doc_rev,priority:1;not null;size:36"`
	TenantID    string `gorm:"index"`
	Revision    int    `gorm:"uniqueIndex:idx_final_doc_rev,priority:2;not null"`
	Status      string `gorm:"index;not null;default:'PENDING'"`
	Attempts    int    `gorm:"not null;default:0"`
	ArtifactRef string
	Pages       int
	LastError   string
	RequestedBy string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

type UsageEvent struct {
	ID         uint      `gorm:"primaryKey"`
	TenantID   string    `gorm:"index:idx_usage_tenant_time,priority:1;not null"`
	Timestamp  time.Time `gorm:"column:occurred_at;index:idx_usage_tenant_time,priority:2;not null"`
	DocumentID string    `gorm:"index"`
	EventType  string    `gorm:"not null"`
	Quantity   int64     `gorm:"not null"`
	Metadata   string    `gorm:"type:text"`
}
