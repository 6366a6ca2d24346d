package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PolicySetting stores a per-app override of a moderation policy value.
type PolicySetting struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AppID     string    `gorm:"size:50;not null;uniqueIndex:idx_policy_app_key,priority:1" json:"app_id"`
	Key       string    `gorm:"size:100;not null;uniqueIndex:idx_policy_app_key,priority:2" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedBy string    `gorm:"size:64" json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures UUID is set before creation
func (ps *PolicySetting) BeforeCreate(tx *gorm.DB) error {
	if ps.ID == uuid.Nil {
		ps.ID = uuid.New()
	}
	return nil
}

func (PolicySetting) TableName() string {
	return "policy_settings"
}
