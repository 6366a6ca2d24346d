package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DecisionType string

const (
	DecisionApproved   DecisionType = "approved"
	DecisionRemoved    DecisionType = "removed"
	DecisionFlagged    DecisionType = "flagged"
	DecisionModeration DecisionType = "moderation"
)

func (d DecisionType) Valid() bool {
	switch d {
	case DecisionApproved, DecisionRemoved, DecisionFlagged, DecisionModeration:
		return true
	}
	return false
}

// IssuerSystem marks decisions made without a human moderator.
const IssuerSystem = "system"

// Decision origins, used for auditing and for strike resets on appeal.
const (
	OriginEscalation = "escalation"
	OriginClassifier = "classifier"
	OriginModerator  = "moderator"
	OriginStrike     = "strike"
	OriginSLA        = "sla"
	OriginAppeal     = "appeal"

	// OriginSelf is used for owner-driven account transitions. These move the
	// status record without writing a Decision.
	OriginSelf = "self"
)

// Decision is an immutable ruling on a target. The newest row per target is
// the active one.
type Decision struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AppID         string         `gorm:"size:50;not null;uniqueIndex:idx_decisions_app_code;index:idx_decisions_target" json:"-"`
	TargetType    TargetType     `gorm:"size:20;not null;index:idx_decisions_target" json:"target_type"`
	TargetID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_decisions_target" json:"target_id"`
	Decision      DecisionType   `gorm:"size:20;not null" json:"decision"`
	Reason        string         `gorm:"size:500" json:"reason"`
	Issuer        string         `gorm:"size:64;not null" json:"issuer"`
	Origin        string         `gorm:"size:20;not null" json:"origin"`
	ReferenceCode string         `gorm:"size:6;not null;uniqueIndex:idx_decisions_app_code" json:"reference_code"`
	Metadata      datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
}

// HumanIssued reports whether a moderator, not the engine, made the ruling.
func (d *Decision) HumanIssued() bool {
	return d.Issuer != IssuerSystem
}

func (d *Decision) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
