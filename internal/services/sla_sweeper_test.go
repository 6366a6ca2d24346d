package services

import (
	"context"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flag(t *testing.T, e *engine, target Target) *models.Decision {
	t.Helper()
	d, err := e.recorder.Record(context.Background(), DecisionInput{
		Target:   target,
		Decision: models.DecisionFlagged,
		Reason:   "suspicious",
		Origin:   models.OriginClassifier,
	})
	require.NoError(t, err)
	return d
}

// sweeperAt returns a sweeper, and a recorder clock, fixed at now+offset.
func sweeperAt(e *engine, offset time.Duration) *SLASweeper {
	at := time.Now().Add(offset)
	clock := func() time.Time { return at }
	e.recorder.now = clock
	s := NewSLASweeper(e.db, e.recorder, e.accounts, time.Minute)
	s.now = clock
	return s
}

func TestSweepRestoresOverdueContent(t *testing.T) {
	e := newEngine(t)
	post := e.content(t)
	flag(t, e, contentTarget(post))
	require.Equal(t, models.StatusModeration, e.reloadContent(t, post.ID).Status)

	n, err := sweeperAt(e, 49*time.Hour).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reloaded := e.reloadContent(t, post.ID)
	assert.Equal(t, models.StatusPublished, reloaded.Status)
	assert.Nil(t, reloaded.DueAt)

	latest, err := e.recorder.Latest(context.Background(), contentTarget(post))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionApproved, latest.Decision)
	assert.Equal(t, models.OriginSLA, latest.Origin)
	assert.Equal(t, models.IssuerSystem, latest.Issuer)

	n, err = sweeperAt(e, 50*time.Hour).Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepLeavesTargetsInsideDeadline(t *testing.T) {
	e := newEngine(t)
	post := e.content(t)
	flag(t, e, contentTarget(post))

	n, err := sweeperAt(e, 47*time.Hour).Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, models.StatusModeration, e.reloadContent(t, post.ID).Status)
}

func TestSweepLosesToModeratorRuling(t *testing.T) {
	e := newEngine(t)
	post := e.content(t)
	flag(t, e, contentTarget(post))
	_, err := e.moderation.Decide(context.Background(), contentTarget(post), models.DecisionRemoved, "confirmed", "mod-1")
	require.NoError(t, err)

	n, err := sweeperAt(e, 49*time.Hour).Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, models.StatusRemoved, e.reloadContent(t, post.ID).Status)
}

func TestSweepRestoresAccounts(t *testing.T) {
	e := newEngine(t)
	acc := testutil.SeedAccount(t, e.db, 50, models.RoleUser)
	flag(t, e, accountTarget(acc))

	n, err := sweeperAt(e, 49*time.Hour).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.StatusActive, e.reloadAccount(t, acc.ID).Status)
}

func TestSweepKeepsEscalationsOpen(t *testing.T) {
	e := newEngine(t)
	post := e.content(t)
	target := contentTarget(post)
	for i := 0; i < 10; i++ {
		e.report(t, target, 90)
	}
	require.Equal(t, models.StatusModeration, e.reloadContent(t, post.ID).Status)

	n, err := sweeperAt(e, 49*time.Hour).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// SLA restoration is not a ruling, so the same burst cannot re-escalate.
	assert.Equal(t, int64(2), e.count(t, &models.Escalation{}, "target_id = ? AND resolved_at IS NULL", post.ID))
	res := e.report(t, target, 90)
	assert.Equal(t, models.EscalationNone, res.Evaluation.Action)
	assert.Equal(t, models.StatusPublished, e.reloadContent(t, post.ID).Status)
}
