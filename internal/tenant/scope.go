package tenant

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ForTenant returns a GORM scope that filters by app_id.
func ForTenant(appID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("app_id = ?", appID)
	}
}

// ForTarget narrows a tenant query to rows about one moderation target.
func ForTarget(appID, targetType string, targetID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("app_id = ? AND target_type = ? AND target_id = ?", appID, targetType, targetID)
	}
}
