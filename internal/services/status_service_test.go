package services

import (
	"context"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusViewHidesDetailsFromStrangers(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	post := e.content(t)
	d := removeContent(t, e, post)

	stranger, err := e.status.View(ctx, contentTarget(post), uuid.New(), false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRemoved, stranger.Status)
	assert.False(t, stranger.Visible)
	assert.Empty(t, stranger.Reason)
	assert.Empty(t, stranger.ReferenceCode)

	owner, err := e.status.View(ctx, contentTarget(post), post.OwnerID, false)
	require.NoError(t, err)
	assert.True(t, owner.Visible)
	assert.Equal(t, "hate speech", owner.Reason)
	assert.Equal(t, d.ReferenceCode, owner.ReferenceCode)

	mod, err := e.status.View(ctx, contentTarget(post), uuid.Nil, true)
	require.NoError(t, err)
	assert.True(t, mod.Visible)
	assert.Equal(t, d.ReferenceCode, mod.ReferenceCode)
}

func TestStatusViewOpenTarget(t *testing.T) {
	e := newEngine(t)
	post := e.content(t)

	view, err := e.status.View(context.Background(), contentTarget(post), uuid.Nil, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, view.Status)
	assert.True(t, view.Visible)
}

func TestStatusViewAppliesExpiredDeadline(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	post := e.content(t)
	flag(t, e, contentTarget(post))

	view, err := e.status.View(ctx, contentTarget(post), uuid.New(), false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusModeration, view.Status)
	assert.False(t, view.Visible)

	e.status.now = func() time.Time { return time.Now().Add(49 * time.Hour) }
	view, err = e.status.View(ctx, contentTarget(post), uuid.New(), false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, view.Status)
	assert.True(t, view.Visible)

	// the row itself is only rewritten by the sweeper
	assert.Equal(t, models.StatusModeration, e.reloadContent(t, post.ID).Status)
}

func TestStatusViewUnknownTarget(t *testing.T) {
	e := newEngine(t)
	_, err := e.status.View(context.Background(), Target{AppID: "testapp", Type: models.TargetContent, ID: uuid.New()}, uuid.Nil, false)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}
