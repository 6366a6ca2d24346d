package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"gorm.io/gorm"
)

const rescanSampleLimit = 20

// FeatureSet reports per-app feature switches. *tenant.Registry satisfies it.
type FeatureSet interface {
	HasFeature(appID, feature string) bool
}

// RescanService re-inspects a target with the classifier after a rescan
// escalation. It runs on the task queue, never on the request path.
type RescanService struct {
	db         *gorm.DB
	classifier Classifier
	recorder   *DecisionRecorder
	features   FeatureSet
	timeout    time.Duration
}

func NewRescanService(db *gorm.DB, classifier Classifier, recorder *DecisionRecorder, features FeatureSet, timeout time.Duration) *RescanService {
	return &RescanService{db: db, classifier: classifier, recorder: recorder, features: features, timeout: timeout}
}

func (s *RescanService) imagesEnabled(appID string) bool {
	return s.features != nil && s.features.HasFeature(appID, tenant.FeatureImageRescan)
}

// Rescan classifies t and records a flagged decision on a violation. A
// classifier failure is logged and treated as safe.
func (s *RescanService) Rescan(ctx context.Context, t Target) error {
	state, err := loadTarget(s.db.WithContext(ctx), t, false)
	if err != nil {
		return err
	}
	if state.Record.Status != models.OpenStatus(t.Type) {
		slog.Info("rescan skipped, target no longer open", append(t.logAttrs(), "status", string(state.Record.Status))...)
		return nil
	}

	sample, err := s.sample(ctx, t, state)
	if err != nil {
		return err
	}

	verdict, err := ClassifyFailOpen(ctx, s.classifier, sample, s.timeout)
	if err != nil {
		slog.Warn("classifier failed, failing open", append(t.logAttrs(), "error", err)...)
		return nil
	}
	if verdict.Safe {
		return nil
	}

	reason := verdict.Reason
	if reason == "" {
		reason = "automated rescan found a policy violation"
	}
	_, err = s.recorder.Record(ctx, DecisionInput{
		Target:   t,
		Decision: models.DecisionFlagged,
		Reason:   reason,
		Issuer:   models.IssuerSystem,
		Origin:   models.OriginClassifier,
		Metadata: map[string]interface{}{"category": verdict.Category, "reason": verdict.Reason},
		Review: &ReviewRequest{
			Kind:     models.TaskKindRescan,
			Priority: models.TaskPriorityNormal,
			Note:     verdict.Category,
		},
	})
	// A moderator may have acted while the classifier was running.
	if errors.Is(err, ErrInvalidTransition) {
		return nil
	}
	return err
}

// sample builds the classifier input. Accounts are judged by their most
// recent content. Media is only sent for apps with image rescans enabled.
func (s *RescanService) sample(ctx context.Context, t Target, state *targetState) (Sample, error) {
	images := s.imagesEnabled(t.AppID)
	if t.Type == models.TargetContent {
		sample := Sample{Text: state.Body}
		if images {
			sample.ImageURL = state.Media
		}
		return sample, nil
	}

	var contents []models.Content
	err := s.db.WithContext(ctx).
		Where("app_id = ? AND owner_id = ?", t.AppID, t.ID).
		Order("created_at DESC").
		Limit(rescanSampleLimit).
		Find(&contents).Error
	if err != nil {
		return Sample{}, fmt.Errorf("failed to load account content: %w", err)
	}
	var sample Sample
	bodies := make([]string, 0, len(contents))
	for _, c := range contents {
		if c.Body != "" {
			bodies = append(bodies, c.Body)
		}
		if images && sample.ImageURL == "" {
			sample.ImageURL = c.MediaURL
		}
	}
	sample.Text = strings.Join(bodies, "\n")
	return sample, nil
}
