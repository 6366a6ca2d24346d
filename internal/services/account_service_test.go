package services

import (
	"context"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureIsIdempotent(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	id := uuid.New()

	acc, err := e.accounts.Ensure(ctx, testutil.AppID, id, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, acc.Status)
	assert.Equal(t, models.RoleUser, acc.Role)

	_, err = e.accounts.SetTrustScore(ctx, testutil.AppID, id, 80)
	require.NoError(t, err)

	again, err := e.accounts.Ensure(ctx, testutil.AppID, id, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 80, again.TrustScore)
	assert.Equal(t, int64(1), e.count(t, &models.Account{}, "id = ?", id))
}

func TestFreezeAndReactivate(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	acc := testutil.SeedAccount(t, e.db, 50, models.RoleUser)

	frozen, err := e.accounts.Freeze(ctx, testutil.AppID, acc.ID, "taking a break")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFrozen, frozen.Status)
	assert.Equal(t, "taking a break", frozen.StatusReason)

	active, err := e.accounts.Reactivate(ctx, testutil.AppID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, active.Status)

	// no decisions are written for owner actions
	assert.Equal(t, int64(0), e.count(t, &models.Decision{}, "target_id = ?", acc.ID))
}

func TestBlockedAccountCannotSelfReactivate(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	acc := testutil.SeedAccount(t, e.db, 50, models.RoleUser)
	_, err := e.moderation.Decide(ctx, accountTarget(acc), models.DecisionRemoved, "ban evasion", "mod-1")
	require.NoError(t, err)

	_, err = e.accounts.Reactivate(ctx, testutil.AppID, acc.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = e.accounts.Freeze(ctx, testutil.AppID, acc.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// deleting works, but restoring does not lift the block
	_, err = e.accounts.Delete(ctx, testutil.AppID, acc.ID, "leaving")
	require.NoError(t, err)
	_, err = e.accounts.Restore(ctx, testutil.AppID, acc.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.StatusDeleted, e.reloadAccount(t, acc.ID).Status)
}

func TestDeleteAndRestoreWithinGrace(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	acc := testutil.SeedAccount(t, e.db, 50, models.RoleUser)

	deleted, err := e.accounts.Delete(ctx, testutil.AppID, acc.ID, "leaving")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeleted, deleted.Status)
	require.NotNil(t, deleted.PurgeAfter)

	_, err = e.accounts.Reactivate(ctx, testutil.AppID, acc.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	restored, err := e.accounts.Restore(ctx, testutil.AppID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, restored.Status)
	assert.Nil(t, restored.PurgeAfter)

	_, err = e.accounts.Restore(ctx, testutil.AppID, acc.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRestoreKeepsPendingReview(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	acc := testutil.SeedAccount(t, e.db, 50, models.RoleUser)
	_, err := e.recorder.Record(ctx, DecisionInput{
		Target:   accountTarget(acc),
		Decision: models.DecisionModeration,
		Reason:   "community reports reached the priority review threshold",
		Origin:   models.OriginEscalation,
	})
	require.NoError(t, err)
	held := e.reloadAccount(t, acc.ID)
	require.Equal(t, models.StatusModeration, held.Status)
	require.NotNil(t, held.DueAt)

	deleted, err := e.accounts.Delete(ctx, testutil.AppID, acc.ID, "leaving")
	require.NoError(t, err)
	assert.Nil(t, deleted.DueAt)

	restored, err := e.accounts.Restore(ctx, testutil.AppID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusModeration, restored.Status)
	require.NotNil(t, restored.DueAt)
	assert.WithinDuration(t, *held.DueAt, *restored.DueAt, time.Second)
	assert.Empty(t, restored.PreDeleteStatus)
	assert.Nil(t, restored.PreDeleteDueAt)

	// the review deadline still applies after the round trip
	n, err := sweeperAt(e, 73*time.Hour).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.StatusActive, e.reloadAccount(t, acc.ID).Status)
}

func TestRestoreAfterApprovalWhileDeleted(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	acc := testutil.SeedAccount(t, e.db, 50, models.RoleUser)
	flag(t, e, accountTarget(acc))

	_, err := e.accounts.Delete(ctx, testutil.AppID, acc.ID, "leaving")
	require.NoError(t, err)
	e.recorder.now = func() time.Time { return time.Now().Add(time.Minute) }
	_, err = e.moderation.Decide(ctx, accountTarget(acc), models.DecisionApproved, "reports were unfounded", "mod-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeleted, e.reloadAccount(t, acc.ID).Status)

	restored, err := e.accounts.Restore(ctx, testutil.AppID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, restored.Status)
	assert.Nil(t, restored.DueAt)
}

func TestRestoreReturnsToFrozen(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	acc := testutil.SeedAccount(t, e.db, 50, models.RoleUser)

	_, err := e.accounts.Freeze(ctx, testutil.AppID, acc.ID, "exams")
	require.NoError(t, err)
	_, err = e.accounts.Delete(ctx, testutil.AppID, acc.ID, "leaving")
	require.NoError(t, err)

	// freezing is not a way around restore
	_, err = e.accounts.Freeze(ctx, testutil.AppID, acc.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	restored, err := e.accounts.Restore(ctx, testutil.AppID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFrozen, restored.Status)
}

func TestRestoreAfterGrace(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	acc := testutil.SeedAccount(t, e.db, 50, models.RoleUser)
	_, err := e.accounts.Delete(ctx, testutil.AppID, acc.ID, "leaving")
	require.NoError(t, err)

	e.accounts.now = func() time.Time { return time.Now().Add(721 * time.Hour) }
	_, err = e.accounts.Restore(ctx, testutil.AppID, acc.ID)
	assert.ErrorIs(t, err, ErrGraceExpired)
}

func TestPurgeExpired(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	gone := testutil.SeedAccount(t, e.db, 50, models.RoleUser)
	testutil.SeedContent(t, e.db, gone.ID, "old post")
	kept := testutil.SeedAccount(t, e.db, 50, models.RoleUser)

	_, err := e.accounts.Delete(ctx, testutil.AppID, gone.ID, "leaving")
	require.NoError(t, err)
	_, err = e.strikes.AddStrike(ctx, testutil.AppID, gone.ID, "fraud", "payments")
	require.NoError(t, err)

	n, err := e.accounts.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	e.accounts.now = func() time.Time { return time.Now().Add(721 * time.Hour) }
	n, err = e.accounts.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, int64(0), e.count(t, &models.Account{}, "id = ?", gone.ID))
	assert.Equal(t, int64(0), e.count(t, &models.Content{}, "owner_id = ?", gone.ID))
	assert.Equal(t, int64(0), e.count(t, &models.StrikeLedger{}, "account_id = ?", gone.ID))
	assert.Equal(t, int64(1), e.count(t, &models.Account{}, "id = ?", kept.ID))
}

func TestSetTrustScore(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	acc := testutil.SeedAccount(t, e.db, 50, models.RoleUser)

	updated, err := e.accounts.SetTrustScore(ctx, testutil.AppID, acc.ID, 0)
	require.NoError(t, err)
	assert.Zero(t, updated.TrustScore)

	_, err = e.accounts.SetTrustScore(ctx, testutil.AppID, acc.ID, 101)
	assert.ErrorIs(t, err, ErrInvalidTrustScore)
	_, err = e.accounts.SetTrustScore(ctx, testutil.AppID, acc.ID, -1)
	assert.ErrorIs(t, err, ErrInvalidTrustScore)
	_, err = e.accounts.SetTrustScore(ctx, testutil.AppID, uuid.New(), 50)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}
