package logging

import (
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"gorm.io/gorm"
)

// StartCleanup runs a daily goroutine that deletes system_logs older than
// retentionDays.
func StartCleanup(db *gorm.DB, retentionDays int, done chan struct{}) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				PruneSystemLogs(db, retentionDays, time.Now())
			case <-done:
				return
			}
		}
	}()
}

// PruneSystemLogs deletes entries older than retentionDays relative to now.
func PruneSystemLogs(db *gorm.DB, retentionDays int, now time.Time) int64 {
	cutoff := now.AddDate(0, 0, -retentionDays)
	result := db.Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		slog.Error("log cleanup failed", "error", result.Error)
		return 0
	}
	if result.RowsAffected > 0 {
		slog.Info("log cleanup completed", "deleted", result.RowsAffected)
	}
	return result.RowsAffected
}
