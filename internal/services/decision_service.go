package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/observability"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxReferenceCodeAttempts = 5

// referenceCode is swapped in tests to force collisions.
var referenceCode = func() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ReviewRequest asks the recorder to open a human review task next to the
// decision it writes.
type ReviewRequest struct {
	Kind     string
	Priority string
	Note     string
}

type DecisionInput struct {
	Target   Target
	Decision models.DecisionType
	Reason   string
	Issuer   string
	Origin   string
	Metadata map[string]interface{}
	Review   *ReviewRequest
}

// recorded carries what the post-commit step needs.
type recorded struct {
	decision *models.Decision
	ownerID  uuid.UUID
	status   models.Status
}

// DecisionRecorder is the single writer of decisions and of moderation-driven
// status changes. A decision and the status it causes commit together.
type DecisionRecorder struct {
	db     *gorm.DB
	policy *PolicyService
	notify dispatcher
	now    func() time.Time
}

func NewDecisionRecorder(db *gorm.DB, policy *PolicyService, queue *TaskQueue, notifier Notifier) *DecisionRecorder {
	return &DecisionRecorder{
		db:     db,
		policy: policy,
		notify: dispatcher{queue: queue, notifier: notifier},
		now:    time.Now,
	}
}

func (r *DecisionRecorder) Record(ctx context.Context, in DecisionInput) (*models.Decision, error) {
	var rec *recorded
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rec, err = r.recordTx(tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.announce(rec)
	return rec.decision, nil
}

func (r *DecisionRecorder) recordTx(tx *gorm.DB, in DecisionInput) (*recorded, error) {
	if !in.Decision.Valid() {
		return nil, ErrInvalidDecision
	}
	if in.Issuer == "" {
		in.Issuer = models.IssuerSystem
	}
	now := r.now().UTC()

	state, err := loadTarget(tx, in.Target, true)
	if err != nil {
		return nil, err
	}
	if in.Origin == models.OriginSLA && !SLAExpired(state.Record, now) {
		return nil, errSLASuperseded
	}

	to := StatusFor(in.Target.Type, state.Record.Status, in.Decision)
	if !CanTransition(in.Target.Type, state.Record.Status, to, in.Origin) {
		return nil, fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, in.Target.Type, state.Record.Status, to)
	}

	policy, err := r.policy.forDB(tx, in.Target.AppID)
	if err != nil {
		return nil, err
	}

	d := &models.Decision{
		AppID:      in.Target.AppID,
		TargetType: in.Target.Type,
		TargetID:   in.Target.ID,
		Decision:   in.Decision,
		Reason:     in.Reason,
		Issuer:     in.Issuer,
		Origin:     in.Origin,
		CreatedAt:  now,
	}
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode decision metadata: %w", err)
		}
		d.Metadata = datatypes.JSON(raw)
	}
	if err := insertDecision(tx, d); err != nil {
		return nil, err
	}

	if _, err := transition(tx, in.Target, state.Record, to, in.Origin, in.Reason, now, policy.ReviewSLA); err != nil {
		return nil, err
	}

	if d.HumanIssued() && (d.Decision == models.DecisionApproved || d.Decision == models.DecisionRemoved) {
		if err := resolveOpenWork(tx, in.Target, now); err != nil {
			return nil, err
		}
	}

	if in.Review != nil {
		task := models.ReviewTask{
			AppID:      in.Target.AppID,
			TargetType: in.Target.Type,
			TargetID:   in.Target.ID,
			DecisionID: &d.ID,
			Kind:       in.Review.Kind,
			Priority:   in.Review.Priority,
			Status:     models.TaskOpen,
			Note:       in.Review.Note,
		}
		if err := tx.Create(&task).Error; err != nil {
			return nil, fmt.Errorf("failed to queue review task: %w", err)
		}
	}

	return &recorded{decision: d, ownerID: state.OwnerID, status: to}, nil
}

// insertDecision allocates a reference code that is unique within the app.
func insertDecision(tx *gorm.DB, d *models.Decision) error {
	for attempt := 0; attempt < maxReferenceCodeAttempts; attempt++ {
		code, err := referenceCode()
		if err != nil {
			return fmt.Errorf("failed to generate reference code: %w", err)
		}
		d.ReferenceCode = code
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(d)
		if res.Error != nil {
			return fmt.Errorf("failed to create decision: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return nil
		}
		slog.Warn("reference code collision", "app_id", d.AppID, "attempt", attempt+1)
	}
	return ErrReferenceCodeExhausted
}

// resolveOpenWork closes everything a human ruling settles: pending reports,
// open escalations and open review tasks for the target.
func resolveOpenWork(tx *gorm.DB, t Target, now time.Time) error {
	scope := tenant.ForTarget(t.AppID, string(t.Type), t.ID)

	if err := tx.Model(&models.Report{}).Scopes(scope).
		Where("status = ?", models.ReportStatusPending).
		Updates(map[string]interface{}{"status": models.ReportStatusResolved, "resolved_at": now}).Error; err != nil {
		return fmt.Errorf("failed to resolve reports: %w", err)
	}
	if err := tx.Model(&models.Escalation{}).Scopes(scope).
		Where("resolved_at IS NULL").
		Update("resolved_at", now).Error; err != nil {
		return fmt.Errorf("failed to resolve escalations: %w", err)
	}
	if err := tx.Model(&models.ReviewTask{}).Scopes(scope).
		Where("status = ?", models.TaskOpen).
		Updates(map[string]interface{}{"status": models.TaskClosed, "closed_at": now}).Error; err != nil {
		return fmt.Errorf("failed to close review tasks: %w", err)
	}
	return nil
}

func (r *DecisionRecorder) announce(rec *recorded) {
	if rec == nil {
		return
	}
	d := rec.decision
	observability.Decisions.WithLabelValues(string(d.Decision), d.Origin).Inc()
	slog.Info("decision recorded",
		"app_id", d.AppID,
		"target_type", string(d.TargetType),
		"target_id", d.TargetID.String(),
		"reference_code", d.ReferenceCode,
		"decision", string(d.Decision),
		"origin", d.Origin,
		"issuer", d.Issuer,
		"status", string(rec.status),
	)
	r.notify.send(Notification{
		AppID:      d.AppID,
		UserID:     rec.ownerID,
		ObjectType: d.TargetType,
		ObjectID:   d.TargetID,
		Content:    decisionMessage(d),
	})
}

func decisionMessage(d *models.Decision) string {
	switch d.Decision {
	case models.DecisionApproved:
		return fmt.Sprintf("Your %s has been reviewed and is visible again. Reference %s.", d.TargetType, d.ReferenceCode)
	case models.DecisionRemoved:
		return fmt.Sprintf("Your %s was removed: %s. You can appeal with reference %s.", d.TargetType, d.Reason, d.ReferenceCode)
	default:
		return fmt.Sprintf("Your %s is under review. Reference %s.", d.TargetType, d.ReferenceCode)
	}
}

// Latest returns the active decision for a target, or nil when it has none.
func (r *DecisionRecorder) Latest(ctx context.Context, t Target) (*models.Decision, error) {
	return latestDecision(r.db.WithContext(ctx), t, false)
}

// History lists every decision for a target, newest first.
func (r *DecisionRecorder) History(ctx context.Context, t Target) ([]models.Decision, error) {
	var decisions []models.Decision
	err := r.db.WithContext(ctx).
		Scopes(tenant.ForTarget(t.AppID, string(t.Type), t.ID)).
		Order("created_at DESC").
		Find(&decisions).Error
	return decisions, err
}

func latestDecision(db *gorm.DB, t Target, humanOnly bool) (*models.Decision, error) {
	q := db.Scopes(tenant.ForTarget(t.AppID, string(t.Type), t.ID))
	if humanOnly {
		q = q.Where("issuer <> ?", models.IssuerSystem)
	}
	var decisions []models.Decision
	if err := q.Order("created_at DESC").Limit(1).Find(&decisions).Error; err != nil {
		return nil, err
	}
	if len(decisions) == 0 {
		return nil, nil
	}
	return &decisions[0], nil
}
