package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TaskKindEscalation = "escalation"
	TaskKindRescan     = "rescan"
	TaskKindAppeal     = "appeal"
	TaskKindStrike     = "strike"

	TaskPriorityHigh   = "high"
	TaskPriorityNormal = "normal"

	TaskOpen   = "open"
	TaskClosed = "closed"
)

// ReviewTask is an entry in the human review queue.
type ReviewTask struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AppID      string     `gorm:"size:50;not null;index:idx_review_tasks_queue" json:"-"`
	TargetType TargetType `gorm:"size:20;not null" json:"target_type"`
	TargetID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"target_id"`
	DecisionID *uuid.UUID `gorm:"type:uuid" json:"decision_id,omitempty"`
	Kind       string     `gorm:"size:20;not null" json:"kind"`
	Priority   string     `gorm:"size:10;not null;default:'normal'" json:"priority"`
	Status     string     `gorm:"size:10;not null;default:'open';index:idx_review_tasks_queue" json:"status"`
	Note       string     `gorm:"size:500" json:"note,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

func (t *ReviewTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
