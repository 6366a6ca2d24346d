package services

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatusView is what feed and profile renderers read about a target.
// Reason and reference code are only shown to the owner and moderators.
type StatusView struct {
	TargetType    models.TargetType `json:"target_type"`
	TargetID      uuid.UUID         `json:"target_id"`
	Status        models.Status     `json:"status"`
	Visible       bool              `json:"visible"`
	Reason        string            `json:"reason,omitempty"`
	ReferenceCode string            `json:"reference_code,omitempty"`
	DueAt         *time.Time        `json:"due_at,omitempty"`
}

type StatusService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStatusService(db *gorm.DB) *StatusService {
	return &StatusService{db: db, now: time.Now}
}

// View resolves the status of t as seen by viewer. Moderation past its
// review deadline already reads as open here.
func (s *StatusService) View(ctx context.Context, t Target, viewer uuid.UUID, moderator bool) (*StatusView, error) {
	db := s.db.WithContext(ctx)
	state, err := loadTarget(db, t, false)
	if err != nil {
		return nil, err
	}

	status := Effective(t.Type, state.Record, s.now())
	isOwner := viewer != uuid.Nil && viewer == state.OwnerID
	view := &StatusView{
		TargetType: t.Type,
		TargetID:   t.ID,
		Status:     status,
		Visible:    Visible(t.Type, status, isOwner, moderator),
	}
	if !isOwner && !moderator {
		return view, nil
	}

	if status == state.Record.Status {
		view.Reason = state.Record.StatusReason
		view.DueAt = state.Record.DueAt
	}
	latest, err := latestDecision(db, t, false)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		view.ReferenceCode = latest.ReferenceCode
	}
	return view, nil
}
