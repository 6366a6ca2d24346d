package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ReportStatusPending  = "pending"
	ReportStatusResolved = "resolved"
)

// Report is a community report against a target. The partial unique index
// allows at most one pending report per (reporter, target).
type Report struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AppID      string     `gorm:"size:50;not null;uniqueIndex:idx_reports_open,where:status = 'pending';index:idx_reports_target" json:"-"`
	ReporterID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_reports_open" json:"reporter_id"`
	TargetType TargetType `gorm:"size:20;not null;uniqueIndex:idx_reports_open;index:idx_reports_target" json:"target_type"`
	TargetID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_reports_open;index:idx_reports_target" json:"target_id"`
	Reason     string     `gorm:"not null;size:500" json:"reason"`
	FreeText   string     `gorm:"size:2000" json:"free_text,omitempty"`
	Weight     float64    `gorm:"not null;default:0" json:"weight"`
	Status     string     `gorm:"not null;default:'pending';size:20;index" json:"status"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
