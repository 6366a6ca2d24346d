package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/observability"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const slaSweepBatch = 200

// SLASweeper restores targets left in moderation past their review
// deadline, and purges accounts whose deletion grace has ended.
type SLASweeper struct {
	db       *gorm.DB
	recorder *DecisionRecorder
	accounts *AccountService
	interval time.Duration
	now      func() time.Time
}

func NewSLASweeper(db *gorm.DB, recorder *DecisionRecorder, accounts *AccountService, interval time.Duration) *SLASweeper {
	return &SLASweeper{db: db, recorder: recorder, accounts: accounts, interval: interval, now: time.Now}
}

// Start runs a sweep immediately and then on every interval until done is
// closed.
func (s *SLASweeper) Start(done <-chan struct{}) {
	go func() {
		s.run()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.run()
			case <-done:
				return
			}
		}
	}()
}

func (s *SLASweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	if n, err := s.Sweep(ctx); err != nil {
		slog.Error("SLA sweep failed", "error", err)
	} else if n > 0 {
		slog.Info("SLA sweep restored targets", "count", n)
	}
	if s.accounts != nil {
		if _, err := s.accounts.PurgeExpired(ctx); err != nil {
			slog.Error("account purge failed", "error", err)
		}
	}
}

// Sweep records a system approval for every target whose review deadline
// has passed. A moderator ruling that lands first wins.
func (s *SLASweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now().UTC()
	restored := 0

	for _, tt := range []models.TargetType{models.TargetContent, models.TargetAccount} {
		targets, err := s.overdue(ctx, tt, now)
		if err != nil {
			return restored, err
		}
		for _, t := range targets {
			_, err := s.recorder.Record(ctx, DecisionInput{
				Target:   t,
				Decision: models.DecisionApproved,
				Reason:   "review deadline passed without a moderator decision",
				Issuer:   models.IssuerSystem,
				Origin:   models.OriginSLA,
			})
			switch {
			case errors.Is(err, errSLASuperseded):
				continue
			case err != nil:
				slog.Error("SLA restore failed", append(t.logAttrs(), "error", err)...)
				continue
			}
			observability.SLARestorations.WithLabelValues(string(tt)).Inc()
			restored++
		}
	}
	return restored, nil
}

func (s *SLASweeper) overdue(ctx context.Context, tt models.TargetType, now time.Time) ([]Target, error) {
	var model interface{} = &models.Content{}
	if tt == models.TargetAccount {
		model = &models.Account{}
	}
	var rows []struct {
		ID    uuid.UUID
		AppID string
	}
	err := s.db.WithContext(ctx).Model(model).
		Select("id", "app_id").
		Where("status = ? AND due_at IS NOT NULL AND due_at <= ?", models.StatusModeration, now).
		Order("due_at ASC").
		Limit(slaSweepBatch).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	targets := make([]Target, 0, len(rows))
	for _, r := range rows {
		targets = append(targets, Target{AppID: r.AppID, Type: tt, ID: r.ID})
	}
	return targets, nil
}
