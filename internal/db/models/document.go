package models

import (
	"time"
)

type Document struct {
	ID               string `gorm:"primaryKey;size:36"`
	TenantID         string `gorm:"index;not null"`
	Title            string `gorm:"not null"`
	Stage            string `gorm:"not null;default:'PRE_APPROVAL'"`
	Content          []byte
	Revision         int    `gorm:"not null;default:0"`
	Locked           bool   `gorm:"not null;default:false"`
	VoidReason       string
	VoidedBy         string
	VoidedAt         *time.Time
	PreFinalStage    string
	ReopenCount      int    `gorm:"not null;default:0"`
	ReopenPending    bool   `gorm:"not null;default:false"`
	Version          int    `gorm:"not null;default:0"`
	SourceDocumentID string `gorm:"index"`
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Participants  []Participant  `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
	GroupSettings []GroupSetting `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
	Attachments   []Attachment   `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

// GroupSetting holds the per-group signing order flag.
type GroupSetting struct {
	DocumentID    string `gorm:"primaryKey;size:36"`
	GroupName     string `gorm:"primaryKey;size:32"`
	OrderEnforced bool   `gorm:"not null;default:false"`
}

type Attachment struct {
	ID         string `gorm:"primaryKey;size:36"`
	DocumentID string `gorm:"index;not null;size:36"`
	Name       string `gorm:"not null"`
	MediaType  string
	SHA256     string `gorm:"column:sha256;not null"`
	Size       int64
	Pages      int
	Data       []byte
	AddedBy    string
	AddedAt    time.Time
}
