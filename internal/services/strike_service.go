package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/observability"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StrikeResult struct {
	Count    int              `json:"strike_count"`
	Ceiling  int              `json:"ceiling"`
	Terminal bool             `json:"terminal"`
	Decision *models.Decision `json:"decision,omitempty"`
}

// StrikeService keeps the per-account strike ledger. Crossing the ceiling
// blocks the account through a system decision that can be appealed.
type StrikeService struct {
	db       *gorm.DB
	policy   *PolicyService
	recorder *DecisionRecorder
	now      func() time.Time
}

func NewStrikeService(db *gorm.DB, policy *PolicyService, recorder *DecisionRecorder) *StrikeService {
	return &StrikeService{db: db, policy: policy, recorder: recorder, now: time.Now}
}

func (s *StrikeService) AddStrike(ctx context.Context, appID string, accountID uuid.UUID, reason, source string) (*StrikeResult, error) {
	var result *StrikeResult
	var rec *recorded
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, rec, err = s.addStrikeTx(tx, appID, accountID, reason, source)
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.Strikes.WithLabelValues(fmt.Sprint(rec != nil)).Inc()
	slog.Info("strike added", "app_id", appID, "account_id", accountID.String(),
		"strike_count", result.Count, "ceiling", result.Ceiling, "source", source)
	s.recorder.announce(rec)
	return result, nil
}

func (s *StrikeService) addStrikeTx(tx *gorm.DB, appID string, accountID uuid.UUID, reason, source string) (*StrikeResult, *recorded, error) {
	t := Target{AppID: appID, Type: models.TargetAccount, ID: accountID}
	state, err := loadTarget(tx, t, true)
	if err != nil {
		return nil, nil, err
	}
	now := s.now().UTC()

	ledger := models.StrikeLedger{AppID: appID, AccountID: accountID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ledger).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to open strike ledger: %w", err)
	}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("app_id = ? AND account_id = ?", appID, accountID).
		First(&ledger).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load strike ledger: %w", err)
	}

	prev := ledger.StrikeCount
	if err := tx.Model(&models.StrikeLedger{}).
		Where("app_id = ? AND account_id = ?", appID, accountID).
		Updates(map[string]interface{}{"strike_count": prev + 1, "last_strike_at": now}).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to update strike ledger: %w", err)
	}
	if err := tx.Create(&models.StrikeEvent{
		AppID:     appID,
		AccountID: accountID,
		Reason:    reason,
		Source:    source,
	}).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to record strike: %w", err)
	}

	policy, err := s.policy.forDB(tx, appID)
	if err != nil {
		return nil, nil, err
	}
	result := &StrikeResult{
		Count:    prev + 1,
		Ceiling:  policy.StrikeCeiling,
		Terminal: prev+1 >= policy.StrikeCeiling,
	}

	crossed := prev < policy.StrikeCeiling && result.Count >= policy.StrikeCeiling
	if !crossed {
		return result, nil, nil
	}
	switch state.Record.Status {
	case models.StatusBlocked, models.StatusDeleted:
		slog.Info("strike ceiling reached on inactive account", "app_id", appID,
			"account_id", accountID.String(), "status", string(state.Record.Status))
		return result, nil, nil
	}

	rec, err := s.recorder.recordTx(tx, DecisionInput{
		Target:   t,
		Decision: models.DecisionRemoved,
		Reason:   fmt.Sprintf("strike ceiling reached (%d): %s", policy.StrikeCeiling, reason),
		Issuer:   models.IssuerSystem,
		Origin:   models.OriginStrike,
		Metadata: map[string]interface{}{"strike_count": result.Count, "source": source},
		Review: &ReviewRequest{
			Kind:     models.TaskKindStrike,
			Priority: models.TaskPriorityNormal,
			Note:     reason,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	result.Decision = rec.decision
	return result, rec, nil
}

// resetStrikesTx clears the ledger after the violation behind it was overturned.
func resetStrikesTx(tx *gorm.DB, appID string, accountID uuid.UUID, now time.Time) error {
	err := tx.Model(&models.StrikeLedger{}).
		Where("app_id = ? AND account_id = ?", appID, accountID).
		Updates(map[string]interface{}{"strike_count": 0, "reset_at": now}).Error
	if err != nil {
		return fmt.Errorf("failed to reset strikes: %w", err)
	}
	return nil
}

// Ledger returns the account's ledger; accounts without strikes get an
// empty one.
func (s *StrikeService) Ledger(ctx context.Context, appID string, accountID uuid.UUID) (*models.StrikeLedger, error) {
	var ledgers []models.StrikeLedger
	err := s.db.WithContext(ctx).
		Where("app_id = ? AND account_id = ?", appID, accountID).
		Limit(1).Find(&ledgers).Error
	if err != nil {
		return nil, err
	}
	if len(ledgers) == 0 {
		return &models.StrikeLedger{AppID: appID, AccountID: accountID}, nil
	}
	return &ledgers[0], nil
}
