package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AppealPending    = "pending"
	AppealUpheld     = "upheld"
	AppealOverturned = "overturned"
)

// Appeal is the single appeal a decision may ever receive.
type Appeal struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AppID          string     `gorm:"size:50;not null;index" json:"-"`
	DecisionID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"decision_id"`
	ReferenceCode  string     `gorm:"size:6;not null;index" json:"reference_code"`
	AppellantID    uuid.UUID  `gorm:"type:uuid;not null" json:"appellant_id"`
	Justification  string     `gorm:"size:2000" json:"justification"`
	Resolution     string     `gorm:"size:20;not null;default:'pending'" json:"resolution"`
	ResolutionNote string     `gorm:"size:1000" json:"resolution_note,omitempty"`
	ResolvedBy     string     `gorm:"size:64" json:"resolved_by,omitempty"`
	SubmittedAt    time.Time  `gorm:"not null" json:"submitted_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

func (a *Appeal) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
