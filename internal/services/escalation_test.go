package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/observability"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEscalationWorkedExample(t *testing.T) {
	e := newEngine(t)
	post := e.content(t)
	target := contentTarget(post)

	// A (trust 80) and B (trust 40)
	assert.Equal(t, models.EscalationNone, e.report(t, target, 80).Evaluation.Action)
	res := e.report(t, target, 40)
	assert.Equal(t, models.EscalationNone, res.Evaluation.Action)
	assert.InDelta(t, 1.4, res.Evaluation.Aggregate, 1e-9)

	rescans := 0
	for i := 0; i < 8; i++ {
		res = e.report(t, target, 40)
		if res.Evaluation.Action == models.EscalationRescan {
			rescans++
		}
	}
	assert.Equal(t, 1, rescans)
	assert.InDelta(t, 4.6, res.Evaluation.Aggregate, 1e-9)

	for i := 0; i < 2; i++ {
		res = e.report(t, target, 90)
		assert.Equal(t, models.EscalationNone, res.Evaluation.Action)
	}
	assert.InDelta(t, 6.6, res.Evaluation.Aggregate, 1e-9)
	assert.Equal(t, models.StatusPublished, e.reloadContent(t, post.ID).Status)

	priorities := 0
	for i := 0; i < 10; i++ {
		res = e.report(t, target, 90)
		if res.Evaluation.Action == models.EscalationPriority {
			priorities++
			require.NotNil(t, res.Evaluation.Decision)
			assert.Equal(t, models.DecisionModeration, res.Evaluation.Decision.Decision)
			assert.Equal(t, models.IssuerSystem, res.Evaluation.Decision.Issuer)
		}
	}
	assert.Equal(t, 1, priorities)

	got := e.reloadContent(t, post.ID)
	assert.Equal(t, models.StatusModeration, got.Status)
	require.NotNil(t, got.DueAt)
	assert.Equal(t, int64(1), e.count(t, &models.Decision{}, "target_id = ?", post.ID))
	assert.Equal(t, int64(1), e.count(t, &models.ReviewTask{}, "target_id = ? AND priority = ?", post.ID, models.TaskPriorityHigh))
}

func TestConcurrentReportsFireOnePriority(t *testing.T) {
	e := newEngine(t)
	post := e.content(t)
	target := contentTarget(post)

	reporters := make([]*models.Account, 50)
	for i := range reporters {
		reporters[i] = testutil.SeedAccount(t, e.db, 80, models.RoleUser)
	}

	var wg sync.WaitGroup
	actions := make(chan models.EscalationAction, len(reporters))
	errs := make(chan error, len(reporters))
	for _, r := range reporters {
		wg.Add(1)
		go func(reporter *models.Account) {
			defer wg.Done()
			res, err := e.moderation.SubmitReport(context.Background(), ReportInput{
				ReporterID: reporter.ID,
				Target:     target,
				Reason:     "abuse",
			})
			if err != nil {
				errs <- err
				return
			}
			actions <- res.Evaluation.Action
		}(r)
	}
	wg.Wait()
	close(actions)
	close(errs)

	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
	counts := map[models.EscalationAction]int{}
	for a := range actions {
		counts[a]++
	}
	assert.Equal(t, 1, counts[models.EscalationPriority])
	// an evaluation that jumps straight past both thresholds reports only priority
	assert.LessOrEqual(t, counts[models.EscalationRescan], 1)

	w, err := Aggregate(e.db, target)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, w, 1e-9)
	assert.Equal(t, int64(1), e.count(t, &models.Escalation{}, "target_id = ? AND action = ?", post.ID, models.EscalationPriority))
	assert.Equal(t, int64(1), e.count(t, &models.Escalation{}, "target_id = ? AND action = ?", post.ID, models.EscalationRescan))
	assert.Equal(t, int64(1), e.count(t, &models.Decision{}, "target_id = ?", post.ID))
	assert.Equal(t, models.StatusModeration, e.reloadContent(t, post.ID).Status)
}

func TestDuplicateReportsNeverDoubleCount(t *testing.T) {
	e := newEngine(t)
	post := e.content(t)
	target := contentTarget(post)
	reporter := testutil.SeedAccount(t, e.db, 80, models.RoleUser)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, duplicates := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.moderation.SubmitReport(context.Background(), ReportInput{
				ReporterID: reporter.ID,
				Target:     target,
				Reason:     "spam",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrDuplicateReport):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 9, duplicates)
	w, err := Aggregate(e.db, target)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, w, 1e-9)
}

func TestReportAfterResolutionIsAccepted(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	post := e.content(t)
	target := contentTarget(post)
	reporter := testutil.SeedAccount(t, e.db, 80, models.RoleUser)

	in := ReportInput{ReporterID: reporter.ID, Target: target, Reason: "spam"}
	_, err := e.moderation.SubmitReport(ctx, in)
	require.NoError(t, err)

	_, err = e.moderation.Decide(ctx, target, models.DecisionRemoved, "confirmed spam", "mod-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), e.count(t, &models.Report{}, "target_id = ? AND status = ?", post.ID, models.ReportStatusPending))

	// the earlier report is resolved, so the unique pending slot is free again
	_, err = e.moderation.SubmitReport(ctx, in)
	require.NoError(t, err)
}

func TestZeroWeightReportsAreRecorded(t *testing.T) {
	e := newEngine(t)
	post := e.content(t)
	target := contentTarget(post)

	for i := 0; i < 20; i++ {
		res := e.report(t, target, 5)
		assert.Equal(t, models.EscalationNone, res.Evaluation.Action)
		assert.Zero(t, res.Report.Weight)
	}
	assert.Equal(t, int64(20), e.count(t, &models.Report{}, "target_id = ?", post.ID))
	w, err := Aggregate(e.db, target)
	require.NoError(t, err)
	assert.Zero(t, w)
}

func TestElevatedOwnerIsImmune(t *testing.T) {
	e := newEngine(t)
	admin := testutil.SeedAccount(t, e.db, 100, models.RoleAdmin)
	post := testutil.SeedContent(t, e.db, admin.ID, "announcement")
	target := contentTarget(post)

	var last *ReportResult
	for i := 0; i < 15; i++ {
		last = e.report(t, target, 90)
		assert.Equal(t, models.EscalationNone, last.Evaluation.Action)
	}
	assert.True(t, last.Evaluation.Immune)
	assert.Equal(t, models.StatusPublished, e.reloadContent(t, post.ID).Status)

	// accounts are owned by themselves
	last = e.report(t, accountTarget(admin), 90)
	assert.True(t, last.Evaluation.Immune)
}

func TestModeratorApprovalGrantsImmunity(t *testing.T) {
	e := newEngine(t)
	post := e.content(t)
	target := contentTarget(post)

	_, err := e.moderation.Decide(context.Background(), target, models.DecisionApproved, "looks fine", "mod-1")
	require.NoError(t, err)

	var last *ReportResult
	for i := 0; i < 12; i++ {
		last = e.report(t, target, 90)
		assert.Equal(t, models.EscalationNone, last.Evaluation.Action)
	}
	assert.True(t, last.Evaluation.Immune)
	assert.Equal(t, int64(0), e.count(t, &models.Escalation{}, "target_id = ?", post.ID))
}

func TestSystemApprovalDoesNotGrantImmunity(t *testing.T) {
	e := newEngine(t)
	post := e.content(t)
	target := contentTarget(post)

	_, err := e.recorder.Record(context.Background(), DecisionInput{
		Target:   target,
		Decision: models.DecisionApproved,
		Reason:   "auto",
		Origin:   models.OriginClassifier,
	})
	require.NoError(t, err)

	var fired bool
	for i := 0; i < 4; i++ {
		if e.report(t, target, 90).Evaluation.Action == models.EscalationRescan {
			fired = true
		}
	}
	assert.True(t, fired)
}

func TestRemovedTargetDoesNotEscalate(t *testing.T) {
	e := newEngine(t)
	post := e.content(t)
	target := contentTarget(post)

	_, err := e.recorder.Record(context.Background(), DecisionInput{
		Target:   target,
		Decision: models.DecisionRemoved,
		Reason:   "classifier",
		Origin:   models.OriginClassifier,
	})
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		res := e.report(t, target, 90)
		assert.Equal(t, models.EscalationNone, res.Evaluation.Action)
	}
}

func TestSubmitReportUnknownTarget(t *testing.T) {
	e := newEngine(t)
	reporter := testutil.SeedAccount(t, e.db, 80, models.RoleUser)

	_, err := e.moderation.SubmitReport(context.Background(), ReportInput{
		ReporterID: reporter.ID,
		Target:     Target{AppID: testutil.AppID, Type: models.TargetContent, ID: reporter.ID},
		Reason:     "spam",
	})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = e.moderation.SubmitReport(context.Background(), ReportInput{
		ReporterID: reporter.ID,
		Target:     Target{AppID: testutil.AppID, Type: "comment", ID: reporter.ID},
		Reason:     "spam",
	})
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestPriorityWhileAlreadyInModeration(t *testing.T) {
	e := newEngine(t)
	post := e.content(t)
	target := contentTarget(post)

	_, err := e.recorder.Record(context.Background(), DecisionInput{
		Target:   target,
		Decision: models.DecisionFlagged,
		Reason:   "classifier hit",
		Origin:   models.OriginClassifier,
	})
	require.NoError(t, err)

	priorities := 0
	for i := 0; i < 11; i++ {
		if e.report(t, target, 90).Evaluation.Action == models.EscalationPriority {
			priorities++
		}
	}
	assert.Equal(t, 1, priorities)
	// no second moderation decision, only the high priority task
	assert.Equal(t, int64(1), e.count(t, &models.Decision{}, "target_id = ?", post.ID))
	assert.Equal(t, int64(1), e.count(t, &models.ReviewTask{}, "target_id = ? AND priority = ?", post.ID, models.TaskPriorityHigh))
}

func TestRolledBackEscalationIsNotCounted(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	post := e.content(t)
	target := contentTarget(post)
	reporter := testutil.SeedAccount(t, e.db, 90, models.RoleUser)
	require.NoError(t, e.db.Create(&models.Report{
		AppID:      testutil.AppID,
		ReporterID: reporter.ID,
		TargetType: target.Type,
		TargetID:   target.ID,
		Reason:     "spam",
		Weight:     50,
		Status:     models.ReportStatusPending,
	}).Error)

	fired := observability.Escalations.WithLabelValues(string(models.TargetContent), string(models.EscalationPriority))
	before := counterValue(t, fired)

	// fail the decision insert so the whole evaluation rolls back
	creates := e.db.Callback().Create()
	require.NoError(t, creates.Before("gorm:create").Register("test:fail_decisions", func(db *gorm.DB) {
		if db.Statement.Schema != nil && db.Statement.Schema.Table == "decisions" {
			_ = db.AddError(errors.New("decisions unavailable"))
		}
	}))
	_, err := e.evaluator.Evaluate(ctx, target)
	require.Error(t, err)
	assert.Equal(t, before, counterValue(t, fired))
	assert.Equal(t, int64(0), e.count(t, &models.Escalation{}, "target_id = ?", post.ID))
	assert.Equal(t, models.StatusPublished, e.reloadContent(t, post.ID).Status)

	require.NoError(t, creates.Remove("test:fail_decisions"))
	ev, err := e.evaluator.Evaluate(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, models.EscalationPriority, ev.Action)
	assert.Equal(t, before+1, counterValue(t, fired))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
