package models

import (
	"time"
)

// Participant is one membership row; signing groups carry the signature
// state inline.
type Participant struct {
	ID                  uint       `gorm:"primaryKey"`
	DocumentID          string     `gorm:"uniqueIndex:idx_participant_member;not null;size:36"`
	GroupName           string     `gorm:"uniqueIndex:idx_participant_member;not null;size:32"`
	UserID              string     `gorm:"uniqueIndex:idx_participant_member;not null"`
	DisplayName         string
	Position            int        `gorm:"not null"`
	External            bool       `gorm:"not null;default:false"`
	CompanyName         string
	SignedAt            *time.Time
	Method              string
	Notation            string
	SignedRevision      int
	VerificationRevoked bool       `gorm:"not null;default:false"`
	AddedAt             time.Time
}
