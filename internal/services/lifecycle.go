package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Target identifies one moderated item inside an app.
type Target struct {
	AppID string
	Type  models.TargetType
	ID    uuid.UUID
}

func (t Target) logAttrs() []any {
	return []any{"app_id", t.AppID, "target_type", string(t.Type), "target_id", t.ID.String()}
}

// anyOrigin admits every origin except self-service.
var anyOrigin []string

var contentTransitions = map[models.Status]map[models.Status][]string{
	models.StatusPublished: {
		models.StatusModeration: anyOrigin,
		models.StatusRemoved:    anyOrigin,
	},
	models.StatusModeration: {
		models.StatusPublished: anyOrigin,
		models.StatusRemoved:   anyOrigin,
	},
	models.StatusRemoved: {
		models.StatusPublished: {models.OriginAppeal},
	},
}

var accountTransitions = map[models.Status]map[models.Status][]string{
	models.StatusActive: {
		models.StatusModeration: anyOrigin,
		models.StatusBlocked:    anyOrigin,
		models.StatusFrozen:     {models.OriginSelf},
		models.StatusDeleted:    {models.OriginSelf},
	},
	models.StatusModeration: {
		models.StatusActive:  anyOrigin,
		models.StatusBlocked: anyOrigin,
		models.StatusDeleted: {models.OriginSelf},
	},
	models.StatusFrozen: {
		models.StatusActive:  {models.OriginSelf},
		models.StatusBlocked: anyOrigin,
		models.StatusDeleted: {models.OriginSelf},
	},
	models.StatusBlocked: {
		models.StatusActive:  {models.OriginAppeal},
		models.StatusDeleted: {models.OriginSelf},
	},
	models.StatusDeleted: {
		models.StatusActive:     {models.OriginSelf},
		models.StatusFrozen:     {models.OriginSelf},
		models.StatusModeration: {models.OriginSelf},
	},
}

// CanTransition reports whether origin may move a target of type tt from one
// status to another. Staying in the same status is always allowed.
func CanTransition(tt models.TargetType, from, to models.Status, origin string) bool {
	if from == to {
		return true
	}
	table := contentTransitions
	if tt == models.TargetAccount {
		table = accountTransitions
	}
	origins, ok := table[from][to]
	if !ok {
		return false
	}
	if origins == nil {
		return origin != models.OriginSelf
	}
	for _, o := range origins {
		if o == origin {
			return true
		}
	}
	return false
}

// StatusFor maps a ruling onto the status it puts a target in, given the
// target's current status. Approval never overrides an owner's own freeze or
// deletion.
func StatusFor(tt models.TargetType, current models.Status, d models.DecisionType) models.Status {
	switch d {
	case models.DecisionApproved:
		if current == models.StatusFrozen || current == models.StatusDeleted {
			return current
		}
		return models.OpenStatus(tt)
	case models.DecisionRemoved:
		if tt == models.TargetAccount {
			return models.StatusBlocked
		}
		return models.StatusRemoved
	default:
		return models.StatusModeration
	}
}

// Enter builds the record for a fresh status. Only moderation carries a
// review deadline.
func Enter(to models.Status, reason string, now time.Time, sla time.Duration) models.StatusRecord {
	rec := models.StatusRecord{
		Status:          to,
		StatusReason:    reason,
		StatusEnteredAt: now,
	}
	if to == models.StatusModeration {
		due := now.Add(sla)
		rec.DueAt = &due
	}
	return rec
}

// Effective returns the status readers should see. A moderation state past
// its deadline reads as open even before the sweeper persists it.
func Effective(tt models.TargetType, rec models.StatusRecord, now time.Time) models.Status {
	if SLAExpired(rec, now) {
		return models.OpenStatus(tt)
	}
	return rec.Status
}

func SLAExpired(rec models.StatusRecord, now time.Time) bool {
	return rec.Status == models.StatusModeration && rec.DueAt != nil && !now.Before(*rec.DueAt)
}

// Visible reports whether a viewer may see a target in the given status.
func Visible(tt models.TargetType, status models.Status, isOwner, isModerator bool) bool {
	if isOwner || isModerator {
		return true
	}
	return status == models.OpenStatus(tt)
}

// targetState is the lifecycle view of a content row or an account row.
type targetState struct {
	OwnerID uuid.UUID
	Record  models.StatusRecord
	Body    string
	Media   string
}

func loadTarget(tx *gorm.DB, t Target, lock bool) (*targetState, error) {
	if !t.Type.Valid() || t.ID == uuid.Nil {
		return nil, ErrInvalidTarget
	}
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	q = q.Where("app_id = ? AND id = ?", t.AppID, t.ID)

	switch t.Type {
	case models.TargetContent:
		var c models.Content
		if err := q.First(&c).Error; err != nil {
			return nil, notFoundAs(err, ErrInvalidTarget)
		}
		return &targetState{OwnerID: c.OwnerID, Record: c.StatusRecord, Body: c.Body, Media: c.MediaURL}, nil
	default:
		var a models.Account
		if err := q.First(&a).Error; err != nil {
			return nil, notFoundAs(err, ErrInvalidTarget)
		}
		return &targetState{OwnerID: a.ID, Record: a.StatusRecord}, nil
	}
}

func writeStatus(tx *gorm.DB, t Target, rec models.StatusRecord) error {
	var model interface{} = &models.Content{}
	if t.Type == models.TargetAccount {
		model = &models.Account{}
	}
	var due interface{} = gorm.Expr("NULL")
	if rec.DueAt != nil {
		due = *rec.DueAt
	}
	res := tx.Model(model).
		Where("app_id = ? AND id = ?", t.AppID, t.ID).
		Updates(map[string]interface{}{
			"status":            rec.Status,
			"status_reason":     rec.StatusReason,
			"status_entered_at": rec.StatusEnteredAt,
			"due_at":            due,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to write status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTarget
	}
	return nil
}

// transition moves t to the given status inside tx, enforcing the
// transition table. It returns the record that was written.
func transition(tx *gorm.DB, t Target, current models.StatusRecord, to models.Status, origin, reason string, now time.Time, sla time.Duration) (models.StatusRecord, error) {
	if !CanTransition(t.Type, current.Status, to, origin) {
		return current, fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, t.Type, current.Status, to)
	}
	if current.Status == to {
		return current, nil
	}
	rec := Enter(to, reason, now, sla)
	if err := writeStatus(tx, t, rec); err != nil {
		return current, err
	}
	return rec, nil
}

func notFoundAs(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
