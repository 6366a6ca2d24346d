package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/observability"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AppealResolution struct {
	Appeal   *models.Appeal   `json:"appeal"`
	Decision *models.Decision `json:"decision"`
}

// AppealService accepts one appeal per decision and turns its resolution
// into a new decision. History is never rewritten.
type AppealService struct {
	db       *gorm.DB
	recorder *DecisionRecorder
	notify   dispatcher
	now      func() time.Time
}

func NewAppealService(db *gorm.DB, recorder *DecisionRecorder, queue *TaskQueue, notifier Notifier) *AppealService {
	return &AppealService{
		db:       db,
		recorder: recorder,
		notify:   dispatcher{queue: queue, notifier: notifier},
		now:      time.Now,
	}
}

func (s *AppealService) SubmitAppeal(ctx context.Context, appID string, appellantID uuid.UUID, code, justification string) (*models.Appeal, error) {
	code = strings.TrimSpace(code)
	var appeal *models.Appeal
	var decision models.Decision

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("app_id = ? AND reference_code = ?", appID, code).First(&decision).Error; err != nil {
			return notFoundAs(err, ErrUnknownReferenceCode)
		}
		// Only the owner may appeal. Anyone else sees the code as unknown.
		target := Target{AppID: appID, Type: decision.TargetType, ID: decision.TargetID}
		state, err := loadTarget(tx, target, false)
		if errors.Is(err, ErrInvalidTarget) {
			return ErrUnknownReferenceCode
		}
		if err != nil {
			return err
		}
		if state.OwnerID != appellantID {
			return ErrUnknownReferenceCode
		}
		// A ruling that came out of an appeal is final.
		if decision.Origin == models.OriginAppeal {
			return ErrAlreadyAppealed
		}
		var appealed int64
		if err := tx.Model(&models.Appeal{}).Where("decision_id = ?", decision.ID).Count(&appealed).Error; err != nil {
			return fmt.Errorf("failed to check appeals: %w", err)
		}
		if appealed > 0 {
			return ErrAlreadyAppealed
		}
		latest, err := latestDecision(tx, target, false)
		if err != nil {
			return err
		}
		if latest != nil && latest.ID != decision.ID {
			return fmt.Errorf("%w: decision superseded", ErrUnknownReferenceCode)
		}

		appeal = &models.Appeal{
			AppID:         appID,
			DecisionID:    decision.ID,
			ReferenceCode: decision.ReferenceCode,
			AppellantID:   appellantID,
			Justification: justification,
			Resolution:    models.AppealPending,
			SubmittedAt:   s.now().UTC(),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(appeal)
		if res.Error != nil {
			return fmt.Errorf("failed to create appeal: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyAppealed
		}

		return tx.Create(&models.ReviewTask{
			AppID:      appID,
			TargetType: decision.TargetType,
			TargetID:   decision.TargetID,
			DecisionID: &decision.ID,
			Kind:       models.TaskKindAppeal,
			Priority:   models.TaskPriorityNormal,
			Status:     models.TaskOpen,
			Note:       truncate(justification, 500),
		}).Error
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyAppealed) {
			observability.Appeals.WithLabelValues("duplicate").Inc()
		}
		return nil, err
	}

	observability.Appeals.WithLabelValues("submitted").Inc()
	slog.Info("appeal submitted", "app_id", appID, "reference_code", code,
		"target_type", string(decision.TargetType), "target_id", decision.TargetID.String())
	s.notify.send(Notification{
		AppID:      appID,
		UserID:     appellantID,
		ObjectType: decision.TargetType,
		ObjectID:   decision.TargetID,
		Content:    fmt.Sprintf("Your appeal for reference %s is queued for review.", code),
	})
	return appeal, nil
}

// ResolveAppeal settles a pending appeal. Overturning records the inverse
// ruling; upholding confirms the original one. Overturning a strike block
// also resets the strike ledger.
func (s *AppealService) ResolveAppeal(ctx context.Context, appID, code, outcome, note, moderatorID string) (*AppealResolution, error) {
	if outcome != models.AppealUpheld && outcome != models.AppealOverturned {
		return nil, ErrInvalidDecision
	}
	now := s.now().UTC()

	var appeal models.Appeal
	var rec *recorded
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("app_id = ? AND reference_code = ?", appID, code).First(&appeal).Error; err != nil {
			return notFoundAs(err, ErrAppealNotFound)
		}
		res := tx.Model(&models.Appeal{}).
			Where("id = ? AND resolution = ?", appeal.ID, models.AppealPending).
			Updates(map[string]interface{}{
				"resolution":      outcome,
				"resolution_note": note,
				"resolved_by":     moderatorID,
				"resolved_at":     now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to resolve appeal: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAppealResolved
		}
		appeal.Resolution = outcome
		appeal.ResolutionNote = note
		appeal.ResolvedBy = moderatorID
		appeal.ResolvedAt = &now

		var original models.Decision
		if err := tx.Where("id = ?", appeal.DecisionID).First(&original).Error; err != nil {
			return fmt.Errorf("failed to load appealed decision: %w", err)
		}

		reason := "appeal " + outcome
		if note != "" {
			reason += ": " + note
		}
		var err error
		rec, err = s.recorder.recordTx(tx, DecisionInput{
			Target:   Target{AppID: appID, Type: original.TargetType, ID: original.TargetID},
			Decision: appealRuling(original.Decision, outcome),
			Reason:   truncate(reason, 500),
			Issuer:   moderatorID,
			Origin:   models.OriginAppeal,
			Metadata: map[string]interface{}{"appealed_reference_code": original.ReferenceCode},
		})
		if err != nil {
			return err
		}

		if outcome == models.AppealOverturned && original.Origin == models.OriginStrike {
			return resetStrikesTx(tx, appID, original.TargetID, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.Appeals.WithLabelValues(outcome).Inc()
	s.recorder.announce(rec)
	return &AppealResolution{Appeal: &appeal, Decision: rec.decision}, nil
}

// appealRuling is the decision an appeal outcome produces for the original
// ruling.
func appealRuling(original models.DecisionType, outcome string) models.DecisionType {
	wasApproved := original == models.DecisionApproved
	if outcome == models.AppealOverturned {
		if wasApproved {
			return models.DecisionRemoved
		}
		return models.DecisionApproved
	}
	if wasApproved {
		return models.DecisionApproved
	}
	return models.DecisionRemoved
}

// truncate cuts s to at most n bytes without splitting a character.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
