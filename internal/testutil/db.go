// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/database"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const AppID = "testapp"

var dbSeq atomic.Int64

// NewDB opens a private in-memory sqlite database with every model migrated.
// A single connection serialises transactions the way row locks would.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:moderation_%d?mode=memory&cache=shared&_busy_timeout=5000", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// SeedAccount inserts an active account with the given trust score and role.
func SeedAccount(t testing.TB, db *gorm.DB, trust int, role string) *models.Account {
	t.Helper()
	acc := &models.Account{
		ID:         uuid.New(),
		AppID:      AppID,
		Role:       role,
		TrustScore: trust,
	}
	require.NoError(t, db.Create(acc).Error)
	return acc
}

// SeedContent inserts a published content item owned by owner.
func SeedContent(t testing.TB, db *gorm.DB, owner uuid.UUID, body string) *models.Content {
	t.Helper()
	c := &models.Content{
		ID:      uuid.New(),
		AppID:   AppID,
		OwnerID: owner,
		Kind:    "post",
		Body:    body,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}
