package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StrikeLedger accumulates strikes per account. StrikeCount only goes down
// on a full reset.
type StrikeLedger struct {
	AppID        string     `gorm:"size:50;primaryKey" json:"-"`
	AccountID    uuid.UUID  `gorm:"type:uuid;primaryKey" json:"account_id"`
	StrikeCount  int        `gorm:"not null;default:0" json:"strike_count"`
	LastStrikeAt *time.Time `json:"last_strike_at,omitempty"`
	ResetAt      *time.Time `json:"reset_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// StrikeEvent is the audit trail behind a ledger.
type StrikeEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AppID     string    `gorm:"size:50;not null;index:idx_strike_events_account" json:"-"`
	AccountID uuid.UUID `gorm:"type:uuid;not null;index:idx_strike_events_account" json:"account_id"`
	Reason    string    `gorm:"size:500;not null" json:"reason"`
	Source    string    `gorm:"size:64" json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

func (e *StrikeEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
