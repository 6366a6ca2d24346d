package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Content is a moderated piece of user content (post, comment, image, ...).
type Content struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AppID    string    `gorm:"size:50;not null;index" json:"-"`
	OwnerID  uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	Kind     string    `gorm:"size:50;not null" json:"kind"`
	Body     string    `gorm:"type:text" json:"body"`
	MediaURL string    `gorm:"size:1000" json:"media_url,omitempty"`
	StatusRecord
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Content) TableName() string {
	return "contents"
}

func (c *Content) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = StatusPublished
	}
	if c.StatusEnteredAt.IsZero() {
		c.StatusEnteredAt = time.Now().UTC()
	}
	return nil
}
