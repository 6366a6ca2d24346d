package models

import "time"

type TargetType string

const (
	TargetContent TargetType = "content"
	TargetAccount TargetType = "account"
)

func (t TargetType) Valid() bool {
	return t == TargetContent || t == TargetAccount
}

// Status is the visibility state of a piece of content or an account.
type Status string

const (
	// Content states
	StatusPublished Status = "published"
	StatusRemoved   Status = "removed"

	// Account states
	StatusActive  Status = "active"
	StatusFrozen  Status = "frozen"
	StatusBlocked Status = "blocked"
	StatusDeleted Status = "deleted"

	// Shared
	StatusModeration Status = "moderation"
)

// OpenStatus returns the fully-open state for a target type.
func OpenStatus(t TargetType) Status {
	if t == TargetAccount {
		return StatusActive
	}
	return StatusPublished
}

// StatusRecord is embedded into Content and Account. DueAt is only set while
// the target waits for a moderator inside the review SLA.
type StatusRecord struct {
	Status          Status     `gorm:"size:20;not null;index" json:"status"`
	StatusReason    string     `gorm:"size:500" json:"status_reason,omitempty"`
	StatusEnteredAt time.Time  `gorm:"not null" json:"status_entered_at"`
	DueAt           *time.Time `gorm:"index" json:"due_at,omitempty"`
}
