package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/careerbase/apigov/internal/period"
	"github.com/careerbase/apigov/internal/service/latency"
	"github.com/careerbase/apigov/internal/storage"
	"github.com/careerbase/apigov/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type generatorHarness struct {
	generator *Generator
	calls     *storage.CallStore
	quotas    *storage.QuotaStore
	reports   *storage.ReportStore
}

func newTestGenerator(t *testing.T, services ...models.Service) *generatorHarness {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })

	serviceStore := storage.NewServiceStore(db)
	for i := range services {
		require.NoError(t, serviceStore.Upsert(context.Background(), &services[i]))
	}

	calls := storage.NewCallStore(db)
	quotas := storage.NewQuotaStore(db)
	reports := storage.NewReportStore(db)
	generator := NewGenerator(serviceStore, calls, quotas, reports, latency.NewRecorder(calls))
	return &generatorHarness{generator: generator, calls: calls, quotas: quotas, reports: reports}
}

func testService(name string, dailyLimit int) models.Service {
	return models.Service{Name: name, DisplayName: name, Enabled: true, DailyLimit: dailyLimit}
}

// Week of Monday 2026-03-09
var weekStart = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

func (h *generatorHarness) seedCalls(t *testing.T, service string, successes, failures, fallbacks int) {
	t.Helper()
	ctx := context.Background()
	at := weekStart.Add(time.Hour)
	insert := func(outcome models.CallOutcome, durationMs int64) {
		require.NoError(t, h.calls.Insert(ctx, &models.CallRecord{
			ServiceName: service,
			Endpoint:    "/v1/score",
			StartedAt:   at,
			DurationMs:  durationMs,
			Outcome:     outcome,
		}))
		at = at.Add(time.Minute)
	}
	for i := 0; i < successes; i++ {
		insert(models.OutcomeSuccess, int64(100*(i+1)))
	}
	for i := 0; i < failures; i++ {
		insert(models.OutcomeFailure, 50)
	}
	for i := 0; i < fallbacks; i++ {
		insert(models.OutcomeFallback, 80)
	}
}

func TestGenerate_PerServiceAndRollup(t *testing.T) {
	h := newTestGenerator(t, testService("resume-ai", 100), testService("job-search", 0))
	ctx := context.Background()

	h.seedCalls(t, "resume-ai", 8, 2, 0)
	h.seedCalls(t, "job-search", 5, 0, 0)

	reports, err := h.generator.Generate(ctx, models.PeriodWeekly, weekStart, "manual")
	require.NoError(t, err)
	require.Len(t, reports, 3) // two services plus the rollup

	byService := make(map[string]models.PeriodReport)
	for _, r := range reports {
		byService[r.ServiceName] = r
	}

	resume := byService["resume-ai"]
	assert.Equal(t, 10, resume.TotalCalls)
	assert.Equal(t, 8, resume.SuccessCount)
	assert.Equal(t, 2, resume.FailureCount)
	assert.InDelta(t, 0.2, resume.ErrorRate, 0.0001)

	rollup := byService[""]
	assert.Equal(t, 15, rollup.TotalCalls)
	assert.Equal(t, 13, rollup.SuccessCount)
}

func TestGenerate_IncludesQuotaUtilization(t *testing.T) {
	h := newTestGenerator(t, testService("resume-ai", 100))
	ctx := context.Background()

	// Quota consumed during the reported week
	key := period.Key(models.PeriodWeekly, weekStart)
	start, end := period.Bounds(models.PeriodWeekly, weekStart)
	for i := 0; i < 30; i++ {
		_, err := h.quotas.Increment(ctx, "resume-ai", models.PeriodWeekly, key, 120, start, end)
		require.NoError(t, err)
	}

	reports, err := h.generator.Generate(ctx, models.PeriodWeekly, weekStart, "manual")
	require.NoError(t, err)

	var resume models.PeriodReport
	for _, r := range reports {
		if r.ServiceName == "resume-ai" {
			resume = r
		}
	}
	assert.Equal(t, 120, resume.QuotaLimit)
	assert.Equal(t, 30, resume.QuotaUsed)
	assert.InDelta(t, 0.25, resume.QuotaUtilization, 0.0001)
}

func TestGenerate_EmptyPeriod(t *testing.T) {
	h := newTestGenerator(t, testService("resume-ai", 100))

	reports, err := h.generator.Generate(context.Background(), models.PeriodWeekly, weekStart, "manual")
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.Equal(t, 0, r.TotalCalls)
		assert.Equal(t, 0.0, r.ErrorRate)
		assert.Equal(t, int64(0), r.P95Ms)
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	h := newTestGenerator(t, testService("resume-ai", 100))
	ctx := context.Background()

	h.seedCalls(t, "resume-ai", 5, 0, 0)
	_, err := h.generator.Generate(ctx, models.PeriodWeekly, weekStart, "manual")
	require.NoError(t, err)

	// More traffic lands, then the period is regenerated
	h.seedCalls(t, "resume-ai", 3, 1, 0)
	_, err = h.generator.Generate(ctx, models.PeriodWeekly, weekStart, "manual")
	require.NoError(t, err)

	stored, err := h.reports.List(ctx, "resume-ai", models.PeriodWeekly, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1, "regeneration must replace, not duplicate")
	assert.Equal(t, 9, stored[0].TotalCalls)
}

func TestGenerate_InvalidPeriodType(t *testing.T) {
	h := newTestGenerator(t, testService("resume-ai", 100))

	_, err := h.generator.Generate(context.Background(), "hourly", weekStart, "manual")
	assert.Error(t, err)
}

func TestGeneratePrevious(t *testing.T) {
	h := newTestGenerator(t, testService("resume-ai", 100))
	ctx := context.Background()

	h.seedCalls(t, "resume-ai", 4, 0, 0)

	// "Now" is mid-way through the following week
	h.generator.nowFn = func() time.Time {
		return time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)
	}

	reports, err := h.generator.GeneratePrevious(ctx, models.PeriodWeekly, "scheduled")
	require.NoError(t, err)

	for _, r := range reports {
		assert.Equal(t, weekStart, r.PeriodStart.UTC())
	}
	var resume models.PeriodReport
	for _, r := range reports {
		if r.ServiceName == "resume-ai" {
			resume = r
		}
	}
	assert.Equal(t, 4, resume.TotalCalls)
}

func TestScheduler_ClosesOutPreviousWeekOnce(t *testing.T) {
	h := newTestGenerator(t, testService("resume-ai", 100))
	ctx := context.Background()

	h.seedCalls(t, "resume-ai", 3, 0, 0)

	scheduler := NewScheduler(h.generator, time.Hour)
	now := time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)
	scheduler.nowFn = func() time.Time { return now }
	h.generator.nowFn = scheduler.nowFn

	scheduler.check(ctx)
	scheduler.check(ctx) // same week, skipped

	stored, err := h.reports.List(ctx, "resume-ai", models.PeriodWeekly, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, weekStart, stored[0].PeriodStart.UTC())

	// A week later the next boundary is picked up
	now = now.AddDate(0, 0, 7)
	scheduler.check(ctx)

	stored, err = h.reports.List(ctx, "resume-ai", models.PeriodWeekly, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestScheduler_StartStop(t *testing.T) {
	h := newTestGenerator(t, testService("resume-ai", 100))

	scheduler := NewScheduler(h.generator, time.Hour)
	scheduler.Start(context.Background())
	scheduler.Start(context.Background()) // no-op
	scheduler.Stop()
	scheduler.Stop() // no-op
}

func TestScheduler_StopImmediatelyAfterStart(t *testing.T) {
	h := newTestGenerator(t, testService("resume-ai", 100))

	// Stop may run before the loop goroutine is scheduled; it must
	// still wait cleanly for the loop to exit
	scheduler := NewScheduler(h.generator, time.Hour)
	for i := 0; i < 25; i++ {
		scheduler.Start(context.Background())
		scheduler.Stop()
	}
}
