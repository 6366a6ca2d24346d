package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/observability"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReportInput struct {
	ReporterID uuid.UUID
	Target     Target
	Reason     string
	FreeText   string
}

type ReportResult struct {
	Report     *models.Report
	Evaluation *Evaluation
}

// ModerationService is the report intake path and the moderator's view of
// the queue.
type ModerationService struct {
	db        *gorm.DB
	evaluator *Evaluator
	recorder  *DecisionRecorder
	rescans   *RescanService
	queue     *TaskQueue
}

func NewModerationService(db *gorm.DB, evaluator *Evaluator, recorder *DecisionRecorder, rescans *RescanService, queue *TaskQueue) *ModerationService {
	return &ModerationService{
		db:        db,
		evaluator: evaluator,
		recorder:  recorder,
		rescans:   rescans,
		queue:     queue,
	}
}

// SubmitReport stores a weighted report and runs the escalation check. Only
// ErrInvalidTarget and ErrDuplicateReport reach the caller; evaluation
// failures degrade to no action.
func (s *ModerationService) SubmitReport(ctx context.Context, in ReportInput) (*ReportResult, error) {
	t := in.Target
	if !t.Type.Valid() || t.ID == uuid.Nil {
		observability.ReportsSubmitted.WithLabelValues(string(t.Type), "invalid").Inc()
		return nil, ErrInvalidTarget
	}
	db := s.db.WithContext(ctx)

	if _, err := loadTarget(db, t, false); err != nil {
		if errors.Is(err, ErrInvalidTarget) {
			observability.ReportsSubmitted.WithLabelValues(string(t.Type), "invalid").Inc()
		}
		return nil, err
	}

	trust, err := reporterTrust(db, t.AppID, in.ReporterID)
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		AppID:      t.AppID,
		ReporterID: in.ReporterID,
		TargetType: t.Type,
		TargetID:   t.ID,
		Reason:     in.Reason,
		FreeText:   in.FreeText,
		Weight:     ReportWeight(trust),
		Status:     models.ReportStatusPending,
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(report)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to create report: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		observability.ReportsSubmitted.WithLabelValues(string(t.Type), "duplicate").Inc()
		return nil, ErrDuplicateReport
	}
	observability.ReportsSubmitted.WithLabelValues(string(t.Type), "accepted").Inc()

	ev, err := s.evaluator.Evaluate(ctx, t)
	if err != nil {
		slog.Error("escalation evaluation failed", append(t.logAttrs(), "error", err)...)
		ev = &Evaluation{Action: models.EscalationNone}
	}

	if ev.Action == models.EscalationRescan && s.rescans != nil && s.queue != nil {
		if !s.queue.Submit(models.TaskKindRescan, func(ctx context.Context) error {
			return s.rescans.Rescan(ctx, t)
		}) {
			slog.Warn("rescan not queued", t.logAttrs()...)
		}
	}

	return &ReportResult{Report: report, Evaluation: ev}, nil
}

// reporterTrust treats unknown reporters as zero trust.
func reporterTrust(db *gorm.DB, appID string, reporterID uuid.UUID) (int, error) {
	var accounts []models.Account
	if err := db.Where("app_id = ? AND id = ?", appID, reporterID).Limit(1).Find(&accounts).Error; err != nil {
		return 0, fmt.Errorf("failed to load reporter: %w", err)
	}
	if len(accounts) == 0 {
		return 0, nil
	}
	return accounts[0].TrustScore, nil
}

// Decide records a moderator's ruling.
func (s *ModerationService) Decide(ctx context.Context, t Target, decision models.DecisionType, reason, moderatorID string) (*models.Decision, error) {
	return s.recorder.Record(ctx, DecisionInput{
		Target:   t,
		Decision: decision,
		Reason:   reason,
		Issuer:   moderatorID,
		Origin:   models.OriginModerator,
	})
}

func (s *ModerationService) ListReports(ctx context.Context, appID, status string, limit, offset int) ([]models.Report, int64, error) {
	var reports []models.Report
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Report{}).Scopes(tenant.ForTenant(appID))
	if status != "" {
		query = query.Where("status = ?", status)
	}
	query.Count(&total)

	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&reports).Error; err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// ReviewQueue lists open review tasks, high priority first.
func (s *ModerationService) ReviewQueue(ctx context.Context, appID string, limit, offset int) ([]models.ReviewTask, int64, error) {
	var tasks []models.ReviewTask
	var total int64

	query := s.db.WithContext(ctx).Model(&models.ReviewTask{}).
		Scopes(tenant.ForTenant(appID)).
		Where("status = ?", models.TaskOpen)
	query.Count(&total)

	err := query.
		Order("CASE WHEN priority = '" + models.TaskPriorityHigh + "' THEN 0 ELSE 1 END, created_at ASC").
		Limit(limit).Offset(offset).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}
