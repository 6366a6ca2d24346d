package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/observability"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Evaluation is the outcome of one escalation check.
type Evaluation struct {
	Action    models.EscalationAction `json:"action"`
	Aggregate float64                 `json:"aggregate"`
	Immune    bool                    `json:"immune"`
	Reason    string                  `json:"reason,omitempty"`
	Decision  *models.Decision        `json:"decision,omitempty"`
}

// Evaluator turns the weighted report aggregate into escalation actions.
// Each threshold fires at most once until a human ruling resolves it.
type Evaluator struct {
	db       *gorm.DB
	policy   *PolicyService
	recorder *DecisionRecorder
	now      func() time.Time
}

func NewEvaluator(db *gorm.DB, policy *PolicyService, recorder *DecisionRecorder) *Evaluator {
	return &Evaluator{db: db, policy: policy, recorder: recorder, now: time.Now}
}

// Aggregate sums the weight of pending reports against t. It is always
// computed from the report rows.
func Aggregate(db *gorm.DB, t Target) (float64, error) {
	var total float64
	err := db.Model(&models.Report{}).
		Scopes(tenant.ForTarget(t.AppID, string(t.Type), t.ID)).
		Where("status = ?", models.ReportStatusPending).
		Select("COALESCE(SUM(weight), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate reports: %w", err)
	}
	// weights carry one decimal; drop float noise before comparing thresholds
	return math.Round(total*1e6) / 1e6, nil
}

func (e *Evaluator) Evaluate(ctx context.Context, t Target) (*Evaluation, error) {
	var ev *Evaluation
	var rec *recorded
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ev, rec, err = e.evaluateTx(tx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	if ev.Action != models.EscalationNone {
		observability.Escalations.WithLabelValues(string(t.Type), string(ev.Action)).Inc()
		slog.Info("escalation fired", append(t.logAttrs(), "action", string(ev.Action), "aggregate", ev.Aggregate)...)
	}
	e.recorder.announce(rec)
	return ev, nil
}

func (e *Evaluator) evaluateTx(tx *gorm.DB, t Target) (*Evaluation, *recorded, error) {
	state, err := loadTarget(tx, t, true)
	if err != nil {
		return nil, nil, err
	}

	if reason, err := immunity(tx, t, state); err != nil {
		return nil, nil, err
	} else if reason != "" {
		return &Evaluation{Action: models.EscalationNone, Immune: true, Reason: reason}, nil, nil
	}

	open := models.OpenStatus(t.Type)
	if state.Record.Status != open && state.Record.Status != models.StatusModeration {
		return &Evaluation{Action: models.EscalationNone, Reason: "target is " + string(state.Record.Status)}, nil, nil
	}

	w, err := Aggregate(tx, t)
	if err != nil {
		return nil, nil, err
	}
	observability.AggregateWeight.Observe(w)

	policy, err := e.policy.forDB(tx, t.AppID)
	if err != nil {
		return nil, nil, err
	}

	ev := &Evaluation{Action: models.EscalationNone, Aggregate: w}
	switch {
	case w >= policy.PriorityThreshold:
		claimed, err := claimEscalation(tx, t, models.EscalationPriority, w)
		if err != nil || !claimed {
			return ev, nil, err
		}
		// priority supersedes rescan; a later rescan crossing must not fire.
		if _, err := claimEscalation(tx, t, models.EscalationRescan, w); err != nil {
			return nil, nil, err
		}
		ev.Action = models.EscalationPriority

		review := &ReviewRequest{
			Kind:     models.TaskKindEscalation,
			Priority: models.TaskPriorityHigh,
			Note:     fmt.Sprintf("weighted reports reached %.1f", w),
		}
		if state.Record.Status != open {
			if err := tx.Create(&models.ReviewTask{
				AppID:      t.AppID,
				TargetType: t.Type,
				TargetID:   t.ID,
				Kind:       review.Kind,
				Priority:   review.Priority,
				Status:     models.TaskOpen,
				Note:       review.Note,
			}).Error; err != nil {
				return nil, nil, fmt.Errorf("failed to queue review task: %w", err)
			}
			return ev, nil, nil
		}

		rec, err := e.recorder.recordTx(tx, DecisionInput{
			Target:   t,
			Decision: models.DecisionModeration,
			Reason:   "community reports reached the priority review threshold",
			Issuer:   models.IssuerSystem,
			Origin:   models.OriginEscalation,
			Metadata: map[string]interface{}{"aggregate": w},
			Review:   review,
		})
		if err != nil {
			return nil, nil, err
		}
		ev.Decision = rec.decision
		return ev, rec, nil

	case w >= policy.RescanThreshold:
		claimed, err := claimEscalation(tx, t, models.EscalationRescan, w)
		if err != nil || !claimed {
			return ev, nil, err
		}
		ev.Action = models.EscalationRescan
	}
	return ev, nil, nil
}

// immunity is checked before any threshold. It returns a non-empty reason
// when the target can never escalate.
func immunity(tx *gorm.DB, t Target, state *targetState) (string, error) {
	var owners []models.Account
	if err := tx.Where("app_id = ? AND id = ?", t.AppID, state.OwnerID).Limit(1).Find(&owners).Error; err != nil {
		return "", fmt.Errorf("failed to load owner: %w", err)
	}
	if len(owners) == 1 && owners[0].Elevated() {
		return "owner holds an elevated role", nil
	}

	last, err := latestDecision(tx, t, true)
	if err != nil {
		return "", fmt.Errorf("failed to load decisions: %w", err)
	}
	if last != nil && last.Decision == models.DecisionApproved {
		return "approved by a moderator", nil
	}
	return "", nil
}

// claimEscalation inserts the open escalation row for action. It reports
// false when that level already fired and is still unresolved.
func claimEscalation(tx *gorm.DB, t Target, action models.EscalationAction, w float64) (bool, error) {
	esc := models.Escalation{
		AppID:      t.AppID,
		TargetType: t.Type,
		TargetID:   t.ID,
		Action:     action,
		Aggregate:  w,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&esc)
	if res.Error != nil {
		return false, fmt.Errorf("failed to record escalation: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
