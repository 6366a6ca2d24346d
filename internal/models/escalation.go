package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EscalationAction string

const (
	EscalationNone     EscalationAction = "none"
	EscalationRescan   EscalationAction = "rescan"
	EscalationPriority EscalationAction = "priority_queue"
)

// Escalation marks a threshold crossing. While unresolved, the partial unique
// index makes a second crossing of the same level a no-op.
type Escalation struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	AppID      string           `gorm:"size:50;not null;uniqueIndex:idx_escalations_open,where:resolved_at IS NULL" json:"-"`
	TargetType TargetType       `gorm:"size:20;not null;uniqueIndex:idx_escalations_open" json:"target_type"`
	TargetID   uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_escalations_open" json:"target_id"`
	Action     EscalationAction `gorm:"size:20;not null;uniqueIndex:idx_escalations_open" json:"action"`
	Aggregate  float64          `json:"aggregate"`
	CreatedAt  time.Time        `json:"created_at"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
}

func (e *Escalation) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
