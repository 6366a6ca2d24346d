package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/config"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"gorm.io/gorm"
)

const (
	PolicyRescanThreshold   = "rescan_threshold"
	PolicyPriorityThreshold = "priority_threshold"
	PolicyReviewSLA         = "review_sla"
	PolicyStrikeCeiling     = "strike_ceiling"
)

// PolicyService resolves the moderation policy of an app: environment
// defaults overlaid with per-app rows from policy_settings.
type PolicyService struct {
	db       *gorm.DB
	defaults config.Policy
}

func NewPolicyService(db *gorm.DB, defaults config.Policy) *PolicyService {
	return &PolicyService{db: db, defaults: defaults}
}

func (s *PolicyService) Defaults() config.Policy {
	return s.defaults
}

// For returns the effective policy for appID. Unreadable overrides are
// ignored so a bad row can never disable moderation.
func (s *PolicyService) For(ctx context.Context, appID string) (config.Policy, error) {
	return s.forDB(s.db.WithContext(ctx), appID)
}

func (s *PolicyService) forDB(db *gorm.DB, appID string) (config.Policy, error) {
	policy := s.defaults

	var rows []models.PolicySetting
	if err := db.Scopes(tenant.ForTenant(appID)).Find(&rows).Error; err != nil {
		return policy, fmt.Errorf("failed to load policy: %w", err)
	}
	for _, row := range rows {
		_ = applyPolicyValue(&policy, row.Key, row.Value)
	}
	return policy, nil
}

// Set validates and upserts one override.
func (s *PolicyService) Set(ctx context.Context, appID, key, value, updatedBy string) (*models.PolicySetting, error) {
	candidate, err := s.For(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := applyPolicyValue(&candidate, key, value); err != nil {
		return nil, err
	}
	if candidate.PriorityThreshold < candidate.RescanThreshold {
		return nil, fmt.Errorf("%w: priority threshold below rescan threshold", ErrInvalidPolicy)
	}

	db := s.db.WithContext(ctx)
	var setting models.PolicySetting
	err = db.Where("app_id = ? AND key = ?", appID, key).First(&setting).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		setting = models.PolicySetting{AppID: appID, Key: key, Value: value, UpdatedBy: updatedBy}
		if err := db.Create(&setting).Error; err != nil {
			return nil, fmt.Errorf("failed to create policy setting: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to query policy setting: %w", err)
	default:
		setting.Value = value
		setting.UpdatedBy = updatedBy
		if err := db.Save(&setting).Error; err != nil {
			return nil, fmt.Errorf("failed to update policy setting: %w", err)
		}
	}
	return &setting, nil
}

// List returns the raw overrides stored for appID.
func (s *PolicyService) List(ctx context.Context, appID string) ([]models.PolicySetting, error) {
	var rows []models.PolicySetting
	err := s.db.WithContext(ctx).Scopes(tenant.ForTenant(appID)).Order("key").Find(&rows).Error
	return rows, err
}

func applyPolicyValue(p *config.Policy, key, value string) error {
	switch key {
	case PolicyRescanThreshold, PolicyPriorityThreshold:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("%w: %s must be a positive number", ErrInvalidPolicy, key)
		}
		if key == PolicyRescanThreshold {
			p.RescanThreshold = f
		} else {
			p.PriorityThreshold = f
		}
	case PolicyReviewSLA:
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: %s must be a positive duration", ErrInvalidPolicy, key)
		}
		p.ReviewSLA = d
	case PolicyStrikeCeiling:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: %s must be a positive integer", ErrInvalidPolicy, key)
		}
		p.StrikeCeiling = n
	default:
		return fmt.Errorf("%w: unknown key %q", ErrInvalidPolicy, key)
	}
	return nil
}
