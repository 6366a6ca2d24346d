package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Account is the moderation view of a user. Identity and credentials live in
// the auth service; this row carries role, trust score and lifecycle state.
type Account struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AppID      string    `gorm:"size:50;not null;index" json:"-"`
	Email      string    `gorm:"size:255" json:"email,omitempty"`
	Role       string    `gorm:"size:20;default:'user'" json:"role"`
	TrustScore int       `gorm:"not null;default:0" json:"trust_score"`
	StatusRecord
	PurgeAfter *time.Time `gorm:"index" json:"purge_after,omitempty"`
	// State the owner deleted from. Restore returns to it, deadline included.
	PreDeleteStatus Status     `gorm:"size:20" json:"-"`
	PreDeleteDueAt  *time.Time `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Elevated reports whether the account is immune to community escalation.
func (a *Account) Elevated() bool {
	return a.Role == RoleAdmin
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	if a.StatusEnteredAt.IsZero() {
		a.StatusEnteredAt = time.Now().UTC()
	}
	return nil
}
