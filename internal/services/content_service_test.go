package services

import (
	"context"
	"testing"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterContent(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewContentService(db, NewKeywordClassifier())
	owner := testutil.SeedAccount(t, db, 50, models.RoleUser)

	c, err := svc.Register(context.Background(), testutil.AppID, ContentInput{OwnerID: owner.ID, Body: "a quiet morning walk"})
	require.NoError(t, err)
	assert.Equal(t, "post", c.Kind)
	assert.Equal(t, models.StatusPublished, c.Status)
	assert.Equal(t, owner.ID, c.OwnerID)
}

func TestRegisterContentRejectsFilteredText(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewContentService(db, NewKeywordClassifier())
	owner := testutil.SeedAccount(t, db, 50, models.RoleUser)

	_, err := svc.Register(context.Background(), testutil.AppID, ContentInput{OwnerID: owner.ID, Body: "visit www.example.com now"})
	assert.ErrorIs(t, err, ErrContentRejected)
	assert.Contains(t, err.Error(), "URLs")
}

func TestRegisterContentRequiresActiveOwner(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewContentService(db, nil)
	owner := testutil.SeedAccount(t, db, 50, models.RoleUser)
	require.NoError(t, db.Model(&models.Account{}).Where("id = ?", owner.ID).Update("status", models.StatusFrozen).Error)

	_, err := svc.Register(context.Background(), testutil.AppID, ContentInput{OwnerID: owner.ID, Body: "hello"})
	assert.ErrorIs(t, err, ErrAccountInactive)

	_, err = svc.Register(context.Background(), testutil.AppID, ContentInput{OwnerID: uuid.New(), Body: "hello"})
	assert.ErrorIs(t, err, ErrInvalidTarget)
}
