package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountService covers owner-driven account transitions and the trust score
// that feeds report weights.
type AccountService struct {
	db    *gorm.DB
	grace time.Duration
	now   func() time.Time
}

func NewAccountService(db *gorm.DB, grace time.Duration) *AccountService {
	return &AccountService{db: db, grace: grace, now: time.Now}
}

// Ensure creates the moderation row for an authenticated user on first use.
func (s *AccountService) Ensure(ctx context.Context, appID string, id uuid.UUID, email string) (*models.Account, error) {
	db := s.db.WithContext(ctx)
	acc := models.Account{ID: id, AppID: appID, Email: email, Role: models.RoleUser}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&acc).Error; err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	if err := db.Where("app_id = ? AND id = ?", appID, id).First(&acc).Error; err != nil {
		return nil, notFoundAs(err, ErrInvalidTarget)
	}
	return &acc, nil
}

func (s *AccountService) Get(ctx context.Context, appID string, id uuid.UUID) (*models.Account, error) {
	var acc models.Account
	if err := s.db.WithContext(ctx).Where("app_id = ? AND id = ?", appID, id).First(&acc).Error; err != nil {
		return nil, notFoundAs(err, ErrInvalidTarget)
	}
	return &acc, nil
}

func (s *AccountService) Freeze(ctx context.Context, appID string, id uuid.UUID, reason string) (*models.Account, error) {
	return s.selfTransition(ctx, appID, id, models.StatusFrozen, reason, func(tx *gorm.DB, acc *models.Account, now time.Time) (map[string]interface{}, error) {
		if acc.Status == models.StatusDeleted {
			return nil, fmt.Errorf("%w: use restore for deleted accounts", ErrInvalidTransition)
		}
		return nil, nil
	})
}

func (s *AccountService) Reactivate(ctx context.Context, appID string, id uuid.UUID) (*models.Account, error) {
	return s.selfTransition(ctx, appID, id, models.StatusActive, "reactivated by owner", func(tx *gorm.DB, acc *models.Account, now time.Time) (map[string]interface{}, error) {
		if acc.Status == models.StatusDeleted {
			return nil, fmt.Errorf("%w: use restore for deleted accounts", ErrInvalidTransition)
		}
		return nil, nil
	})
}

// Delete soft-deletes the account. It stays restorable until PurgeAfter.
func (s *AccountService) Delete(ctx context.Context, appID string, id uuid.UUID, reason string) (*models.Account, error) {
	return s.selfTransition(ctx, appID, id, models.StatusDeleted, reason, func(tx *gorm.DB, acc *models.Account, now time.Time) (map[string]interface{}, error) {
		var due interface{} = gorm.Expr("NULL")
		if acc.DueAt != nil {
			due = *acc.DueAt
		}
		return map[string]interface{}{
			"purge_after":       now.Add(s.grace),
			"pre_delete_status": acc.Status,
			"pre_delete_due_at": due,
		}, nil
	})
}

// Restore undoes a self-deletion inside the grace period. The account goes
// back to the state it was deleted from, so a pending review keeps its
// deadline. A ruling made while deleted takes precedence.
func (s *AccountService) Restore(ctx context.Context, appID string, id uuid.UUID) (*models.Account, error) {
	t := Target{AppID: appID, Type: models.TargetAccount, ID: id}
	var acc models.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("app_id = ? AND id = ?", appID, id).First(&acc).Error; err != nil {
			return notFoundAs(err, ErrInvalidTarget)
		}
		now := s.now().UTC()

		if acc.Status != models.StatusDeleted {
			return fmt.Errorf("%w: account is not deleted", ErrInvalidTransition)
		}
		if acc.PurgeAfter != nil && !now.Before(*acc.PurgeAfter) {
			return ErrGraceExpired
		}
		last, err := latestDecision(tx, t, false)
		if err != nil {
			return err
		}
		rec, err := restoredRecord(&acc, last, now)
		if err != nil {
			return err
		}
		if !CanTransition(t.Type, acc.Status, rec.Status, models.OriginSelf) {
			return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, t.Type, acc.Status, rec.Status)
		}
		if err := writeStatus(tx, t, rec); err != nil {
			return err
		}
		if err := tx.Model(&models.Account{}).Where("app_id = ? AND id = ?", appID, id).
			Updates(map[string]interface{}{
				"purge_after":       gorm.Expr("NULL"),
				"pre_delete_status": "",
				"pre_delete_due_at": gorm.Expr("NULL"),
			}).Error; err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}
		return tx.Where("app_id = ? AND id = ?", appID, id).First(&acc).Error
	})
	if err != nil {
		return nil, err
	}
	slog.Info("account restored by owner", "app_id", appID, "account_id", id.String(), "status", string(acc.Status))
	return &acc, nil
}

// restoredRecord picks the status a deleted account returns to.
func restoredRecord(acc *models.Account, last *models.Decision, now time.Time) (models.StatusRecord, error) {
	// Deleting a blocked account must not clear the block.
	if last != nil && last.Decision == models.DecisionRemoved {
		return models.StatusRecord{}, fmt.Errorf("%w: account was blocked", ErrInvalidTransition)
	}
	settled := last != nil && last.Decision == models.DecisionApproved

	rec := models.StatusRecord{Status: models.StatusActive, StatusReason: "restored by owner", StatusEnteredAt: now}
	switch acc.PreDeleteStatus {
	case models.StatusFrozen:
		rec.Status = models.StatusFrozen
	case models.StatusModeration:
		if !settled {
			rec.Status = models.StatusModeration
			rec.DueAt = acc.PreDeleteDueAt
		}
	case models.StatusBlocked:
		if !settled {
			return models.StatusRecord{}, fmt.Errorf("%w: account was blocked", ErrInvalidTransition)
		}
	}
	return rec, nil
}

type accountHook func(tx *gorm.DB, acc *models.Account, now time.Time) (map[string]interface{}, error)

func (s *AccountService) selfTransition(ctx context.Context, appID string, id uuid.UUID, to models.Status, reason string, hook accountHook) (*models.Account, error) {
	t := Target{AppID: appID, Type: models.TargetAccount, ID: id}
	var acc models.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("app_id = ? AND id = ?", appID, id).First(&acc).Error; err != nil {
			return notFoundAs(err, ErrInvalidTarget)
		}
		now := s.now().UTC()

		var extra map[string]interface{}
		if hook != nil {
			var err error
			if extra, err = hook(tx, &acc, now); err != nil {
				return err
			}
		}
		if _, err := transition(tx, t, acc.StatusRecord, to, models.OriginSelf, reason, now, 0); err != nil {
			return err
		}
		if len(extra) > 0 {
			if err := tx.Model(&models.Account{}).Where("app_id = ? AND id = ?", appID, id).Updates(extra).Error; err != nil {
				return fmt.Errorf("failed to update account: %w", err)
			}
		}
		return tx.Where("app_id = ? AND id = ?", appID, id).First(&acc).Error
	})
	if err != nil {
		return nil, err
	}
	slog.Info("account status changed by owner", "app_id", appID, "account_id", id.String(), "status", string(acc.Status))
	return &acc, nil
}

func (s *AccountService) SetTrustScore(ctx context.Context, appID string, id uuid.UUID, score int) (*models.Account, error) {
	if score < 0 || score > 100 {
		return nil, ErrInvalidTrustScore
	}
	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("app_id = ? AND id = ?", appID, id).
		Update("trust_score", score)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update trust score: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidTarget
	}
	return s.Get(ctx, appID, id)
}

// PurgeExpired hard-deletes accounts whose deletion grace has ended, along
// with their content. Decisions stay for audit.
func (s *AccountService) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	var purged int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var accounts []models.Account
		if err := tx.Where("status = ? AND purge_after IS NOT NULL AND purge_after <= ?", models.StatusDeleted, now).
			Limit(500).Find(&accounts).Error; err != nil {
			return err
		}
		for _, acc := range accounts {
			if err := tx.Where("app_id = ? AND owner_id = ?", acc.AppID, acc.ID).Delete(&models.Content{}).Error; err != nil {
				return fmt.Errorf("failed to purge content: %w", err)
			}
			if err := tx.Where("app_id = ? AND account_id = ?", acc.AppID, acc.ID).Delete(&models.StrikeLedger{}).Error; err != nil {
				return fmt.Errorf("failed to purge strike ledger: %w", err)
			}
			if err := tx.Where("app_id = ? AND id = ?", acc.AppID, acc.ID).Delete(&models.Account{}).Error; err != nil {
				return fmt.Errorf("failed to purge account: %w", err)
			}
			purged++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		slog.Info("purged deleted accounts", "count", purged)
	}
	return purged, nil
}
