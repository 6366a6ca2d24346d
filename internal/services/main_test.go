package services

import (
	"context"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/config"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// engine wires the services against a private sqlite database. No task
// queue is attached, so notifications and rescans never leave the test.
type engine struct {
	db         *gorm.DB
	policy     *PolicyService
	recorder   *DecisionRecorder
	evaluator  *Evaluator
	moderation *ModerationService
	appeals    *AppealService
	strikes    *StrikeService
	accounts   *AccountService
	status     *StatusService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	db := testutil.NewDB(t)
	policy := NewPolicyService(db, config.DefaultPolicy())
	recorder := NewDecisionRecorder(db, policy, nil, nil)
	evaluator := NewEvaluator(db, policy, recorder)
	return &engine{
		db:         db,
		policy:     policy,
		recorder:   recorder,
		evaluator:  evaluator,
		moderation: NewModerationService(db, evaluator, recorder, nil, nil),
		appeals:    NewAppealService(db, recorder, nil, nil),
		strikes:    NewStrikeService(db, policy, recorder),
		accounts:   NewAccountService(db, 720*time.Hour),
		status:     NewStatusService(db),
	}
}

func contentTarget(c *models.Content) Target {
	return Target{AppID: testutil.AppID, Type: models.TargetContent, ID: c.ID}
}

func accountTarget(a *models.Account) Target {
	return Target{AppID: testutil.AppID, Type: models.TargetAccount, ID: a.ID}
}

// report files a report from a fresh reporter with the given trust score.
func (e *engine) report(t *testing.T, target Target, trust int) *ReportResult {
	t.Helper()
	reporter := testutil.SeedAccount(t, e.db, trust, models.RoleUser)
	res, err := e.moderation.SubmitReport(context.Background(), ReportInput{
		ReporterID: reporter.ID,
		Target:     target,
		Reason:     "spam",
	})
	require.NoError(t, err)
	return res
}

func (e *engine) content(t *testing.T) *models.Content {
	t.Helper()
	owner := testutil.SeedAccount(t, e.db, 50, models.RoleUser)
	return testutil.SeedContent(t, e.db, owner.ID, "hello there")
}

func (e *engine) reloadContent(t *testing.T, id uuid.UUID) *models.Content {
	t.Helper()
	var c models.Content
	require.NoError(t, e.db.First(&c, "id = ?", id).Error)
	return &c
}

func (e *engine) reloadAccount(t *testing.T, id uuid.UUID) *models.Account {
	t.Helper()
	var a models.Account
	require.NoError(t, e.db.First(&a, "id = ?", id).Error)
	return &a
}

func (e *engine) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}
