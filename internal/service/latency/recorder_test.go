package latency

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/careerbase/apigov/internal/storage"
	"github.com/careerbase/apigov/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T) (*Recorder, *storage.CallStore) {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })

	// Register the service so call inserts satisfy their foreign key
	services := storage.NewServiceStore(db)
	require.NoError(t, services.Upsert(context.Background(), &models.Service{
		Name:        "resume-ai",
		DisplayName: "Resume AI",
		Enabled:     true,
	}))

	calls := storage.NewCallStore(db)
	return NewRecorder(calls), calls
}

func recordCall(t *testing.T, calls *storage.CallStore, service, endpoint string, durationMs int64, startedAt time.Time) {
	t.Helper()
	require.NoError(t, calls.Insert(context.Background(), &models.CallRecord{
		ServiceName: service,
		Endpoint:    endpoint,
		StartedAt:   startedAt,
		DurationMs:  durationMs,
		Outcome:     models.OutcomeSuccess,
	}))
}

func TestPercentile_NearestRank(t *testing.T) {
	// 100 values: 10, 20, ..., 1000
	values := make([]int64, 100)
	for i := range values {
		values[i] = int64((i + 1) * 10)
	}

	assert.Equal(t, int64(500), Percentile(values, 0.50))
	assert.Equal(t, int64(950), Percentile(values, 0.95))
	assert.Equal(t, int64(990), Percentile(values, 0.99))
	assert.Equal(t, int64(1000), Percentile(values, 1.0))
}

func TestPercentile_SmallSamples(t *testing.T) {
	assert.Equal(t, int64(0), Percentile(nil, 0.95))
	assert.Equal(t, int64(7), Percentile([]int64{7}, 0.50))
	assert.Equal(t, int64(7), Percentile([]int64{7}, 0.99))

	// With two samples, p50 is the first and p95 the second
	assert.Equal(t, int64(3), Percentile([]int64{3, 9}, 0.50))
	assert.Equal(t, int64(9), Percentile([]int64{3, 9}, 0.95))
}

func TestStats_EmptyWindow(t *testing.T) {
	recorder, _ := newTestRecorder(t)

	stats, err := recorder.Stats(context.Background(), "resume-ai", "", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Count)
	assert.Equal(t, int64(0), stats.P95Ms)
}

func TestStats_ComputesOrderStatistics(t *testing.T) {
	recorder, calls := newTestRecorder(t)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 1; i <= 100; i++ {
		recordCall(t, calls, "resume-ai", "/v1/score", int64(i*10), base.Add(time.Duration(i)*time.Second))
	}

	stats, err := recorder.Stats(context.Background(), "resume-ai", "/v1/score", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 100, stats.Count)
	assert.Equal(t, int64(10), stats.MinMs)
	assert.Equal(t, int64(1000), stats.MaxMs)
	assert.Equal(t, int64(500), stats.P50Ms)
	assert.Equal(t, int64(950), stats.P95Ms)
	assert.Equal(t, int64(990), stats.P99Ms)
}

func TestStats_WindowFilter(t *testing.T) {
	recorder, calls := newTestRecorder(t)
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	recordCall(t, calls, "resume-ai", "/v1/score", 100, base.Add(-time.Hour))
	recordCall(t, calls, "resume-ai", "/v1/score", 900, base.Add(time.Hour))

	stats, err := recorder.Stats(context.Background(), "resume-ai", "", base, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, int64(900), stats.MaxMs)
}

func TestByEndpoint(t *testing.T) {
	recorder, calls := newTestRecorder(t)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	recordCall(t, calls, "resume-ai", "/v1/score", 100, base)
	recordCall(t, calls, "resume-ai", "/v1/score", 300, base)
	recordCall(t, calls, "resume-ai", "/v1/parse", 50, base)

	byEndpoint, err := recorder.ByEndpoint(context.Background(), "resume-ai", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, byEndpoint, 2)
	assert.Equal(t, 2, byEndpoint["/v1/score"].Count)
	assert.Equal(t, int64(300), byEndpoint["/v1/score"].MaxMs)
	assert.Equal(t, 1, byEndpoint["/v1/parse"].Count)
}
