package governor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/careerbase/apigov/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	mu       sync.Mutex
	exceeded *models.QuotaStatus
	commits  int
	checkErr error
}

func (f *fakeLedger) Exceeded(ctx context.Context, serviceName string) (*models.QuotaStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exceeded, f.checkErr
}

func (f *fakeLedger) Commit(ctx context.Context, serviceName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	return nil
}

func (f *fakeLedger) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commits
}

type fakeCalls struct {
	mu      sync.Mutex
	records []models.CallRecord
}

func (f *fakeCalls) Insert(ctx context.Context, record *models.CallRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeCalls) all() []models.CallRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CallRecord(nil), f.records...)
}

type fakeErrs struct {
	mu      sync.Mutex
	records []models.ErrorRecord
}

func (f *fakeErrs) Insert(ctx context.Context, record *models.ErrorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeErrs) all() []models.ErrorRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ErrorRecord(nil), f.records...)
}

type fakeAlerts struct {
	mu       sync.Mutex
	notified []string
}

func (f *fakeAlerts) AfterFailure(ctx context.Context, serviceName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, serviceName)
}

func (f *fakeAlerts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notified)
}

type testHarness struct {
	gov    *Governor
	ledger *fakeLedger
	calls  *fakeCalls
	errs   *fakeErrs
	alerts *fakeAlerts
}

func newTestGovernor(t *testing.T, svc models.Service, timeout time.Duration) *testHarness {
	t.Helper()
	h := &testHarness{
		ledger: &fakeLedger{},
		calls:  &fakeCalls{},
		errs:   &fakeErrs{},
		alerts: &fakeAlerts{},
	}
	h.gov = New(h.ledger, h.calls, h.errs, h.alerts, timeout)
	h.gov.Register(svc, timeout)
	return h
}

func enabledService(name string) models.Service {
	return models.Service{Name: name, DisplayName: name, Enabled: true, DailyLimit: 100}
}

func TestExecute_Success(t *testing.T) {
	h := newTestGovernor(t, enabledService("resume-ai"), time.Second)

	result, err := h.gov.Execute(context.Background(), "resume-ai", "/v1/score", "user-1",
		func(ctx context.Context) (any, error) { return "scored", nil }, nil)
	require.NoError(t, err)
	assert.Equal(t, "scored", result)

	records := h.calls.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeSuccess, records[0].Outcome)
	assert.Equal(t, "/v1/score", records[0].Endpoint)
	assert.Equal(t, "user-1", records[0].CallerID)

	assert.Equal(t, 1, h.ledger.commitCount())
	assert.Empty(t, h.errs.all())
	assert.Equal(t, 0, h.alerts.count())
}

func TestExecute_UnknownService(t *testing.T) {
	h := newTestGovernor(t, enabledService("resume-ai"), time.Second)

	_, err := h.gov.Execute(context.Background(), "no-such-service", "/v1/x", "",
		func(ctx context.Context) (any, error) { return nil, nil }, nil)
	assert.ErrorIs(t, err, ErrServiceUnknown)
	assert.Empty(t, h.calls.all())
}

func TestExecute_DisabledService(t *testing.T) {
	svc := enabledService("legacy-matcher")
	svc.Enabled = false
	h := newTestGovernor(t, svc, time.Second)

	_, err := h.gov.Execute(context.Background(), "legacy-matcher", "/v1/x", "",
		func(ctx context.Context) (any, error) { return nil, nil }, nil)
	assert.ErrorIs(t, err, ErrServiceDisabled)
	assert.Empty(t, h.calls.all())
}

func TestExecute_QuotaExhausted_SkipsPrimary(t *testing.T) {
	h := newTestGovernor(t, enabledService("resume-ai"), time.Second)
	h.ledger.exceeded = &models.QuotaStatus{
		ServiceName: "resume-ai",
		PeriodType:  models.PeriodDaily,
		Used:        100,
		Limit:       100,
	}

	invoked := false
	_, err := h.gov.Execute(context.Background(), "resume-ai", "/v1/score", "user-1",
		func(ctx context.Context) (any, error) {
			invoked = true
			return nil, nil
		}, nil)

	require.Error(t, err)
	assert.True(t, IsQuotaExhausted(err))
	assert.False(t, invoked, "primary must not run once quota is exhausted")

	records := h.calls.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeFailure, records[0].Outcome)
	assert.Equal(t, int64(0), records[0].DurationMs)

	errRecords := h.errs.all()
	require.Len(t, errRecords, 1)
	assert.Equal(t, models.KindQuotaExhausted, errRecords[0].Kind)
	assert.Equal(t, records[0].ID, errRecords[0].CallID)

	assert.Equal(t, 0, h.ledger.commitCount())
	assert.Equal(t, 1, h.alerts.count())
}

func TestExecute_QuotaExhausted_FallbackStillRuns(t *testing.T) {
	h := newTestGovernor(t, enabledService("resume-ai"), time.Second)
	h.ledger.exceeded = &models.QuotaStatus{
		ServiceName: "resume-ai",
		PeriodType:  models.PeriodDaily,
		Used:        100,
		Limit:       100,
	}

	result, err := h.gov.Execute(context.Background(), "resume-ai", "/v1/score", "user-1",
		func(ctx context.Context) (any, error) {
			t.Fatal("primary must not run once quota is exhausted")
			return nil, nil
		},
		func(ctx context.Context) (any, error) { return "cached", nil })
	require.NoError(t, err)
	assert.Equal(t, "cached", result)

	records := h.calls.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeFallback, records[0].Outcome)

	errRecords := h.errs.all()
	require.Len(t, errRecords, 1)
	assert.Equal(t, models.KindQuotaExhausted, errRecords[0].Kind)
	assert.Equal(t, 0, h.ledger.commitCount())
}

func TestExecute_RateLimited(t *testing.T) {
	svc := enabledService("resume-ai")
	svc.RatePerSec = 1
	h := newTestGovernor(t, svc, time.Second)

	op := func(ctx context.Context) (any, error) { return "ok", nil }

	// First call consumes the single burst token
	_, err := h.gov.Execute(context.Background(), "resume-ai", "/v1/score", "", op, nil)
	require.NoError(t, err)

	// Immediate second call is rejected, not queued
	_, err = h.gov.Execute(context.Background(), "resume-ai", "/v1/score", "", op, nil)
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))

	records := h.calls.all()
	require.Len(t, records, 2)
	assert.Equal(t, models.OutcomeFailure, records[1].Outcome)

	errRecords := h.errs.all()
	require.Len(t, errRecords, 1)
	assert.Equal(t, models.KindQuotaExhausted, errRecords[0].Kind)
}

func TestExecute_PrimaryFailure_NoFallback(t *testing.T) {
	h := newTestGovernor(t, enabledService("resume-ai"), time.Second)

	upstream := NewCallError("resume-ai", "/v1/score", 503, "service unavailable", nil)
	_, err := h.gov.Execute(context.Background(), "resume-ai", "/v1/score", "user-1",
		func(ctx context.Context) (any, error) { return nil, upstream }, nil)
	require.Error(t, err)

	records := h.calls.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeFailure, records[0].Outcome)
	assert.Equal(t, 503, records[0].HTTPStatus)

	errRecords := h.errs.all()
	require.Len(t, errRecords, 1)
	assert.Equal(t, models.KindUpstreamServer, errRecords[0].Kind)
	assert.Equal(t, records[0].ID, errRecords[0].CallID)

	assert.Equal(t, 0, h.ledger.commitCount())
	assert.Equal(t, 1, h.alerts.count())
}

func TestExecute_FallbackRescues(t *testing.T) {
	h := newTestGovernor(t, enabledService("resume-ai"), time.Second)

	upstream := NewCallError("resume-ai", "/v1/score", 500, "boom", nil)
	result, err := h.gov.Execute(context.Background(), "resume-ai", "/v1/score", "user-1",
		func(ctx context.Context) (any, error) { return nil, upstream },
		func(ctx context.Context) (any, error) { return "cached", nil })
	require.NoError(t, err)
	assert.Equal(t, "cached", result)

	// The rescue stays visible: outcome fallback plus the primary's error record
	records := h.calls.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeFallback, records[0].Outcome)

	errRecords := h.errs.all()
	require.Len(t, errRecords, 1)
	assert.Equal(t, models.KindUpstreamServer, errRecords[0].Kind)

	// Quota counts primary successes only
	assert.Equal(t, 0, h.ledger.commitCount())
	assert.Equal(t, 1, h.alerts.count())
}

func TestExecute_FallbackAlsoFails(t *testing.T) {
	h := newTestGovernor(t, enabledService("resume-ai"), time.Second)

	primaryErr := NewCallError("resume-ai", "/v1/score", 500, "boom", nil)
	_, err := h.gov.Execute(context.Background(), "resume-ai", "/v1/score", "",
		func(ctx context.Context) (any, error) { return nil, primaryErr },
		func(ctx context.Context) (any, error) { return nil, errors.New("cache miss") })

	// The primary error is what the caller sees
	require.Error(t, err)
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 500, ce.StatusCode)

	records := h.calls.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeFailure, records[0].Outcome)
}

func TestExecute_Timeout(t *testing.T) {
	h := newTestGovernor(t, enabledService("resume-ai"), 50*time.Millisecond)

	start := time.Now()
	result, err := h.gov.Execute(context.Background(), "resume-ai", "/v1/score", "",
		func(ctx context.Context) (any, error) {
			select {
			case <-time.After(5 * time.Second):
				return "too late", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
		func(ctx context.Context) (any, error) { return "cached", nil })
	elapsed := time.Since(start)

	// Timeout is rescued by the fallback; the primary was abandoned at the deadline
	require.NoError(t, err)
	assert.Equal(t, "cached", result)
	assert.Less(t, elapsed, time.Second)

	records := h.calls.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeFallback, records[0].Outcome)
	assert.GreaterOrEqual(t, records[0].DurationMs, int64(50))

	errRecords := h.errs.all()
	require.Len(t, errRecords, 1)
	assert.Equal(t, models.KindTimeout, errRecords[0].Kind)
}

func TestExecute_Timeout_NoFallback(t *testing.T) {
	h := newTestGovernor(t, enabledService("resume-ai"), 50*time.Millisecond)

	_, err := h.gov.Execute(context.Background(), "resume-ai", "/v1/score", "",
		func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecute_CallerContextCancellation(t *testing.T) {
	h := newTestGovernor(t, enabledService("resume-ai"), 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := h.gov.Execute(ctx, "resume-ai", "/v1/score", "",
		func(opCtx context.Context) (any, error) {
			<-opCtx.Done()
			return nil, opCtx.Err()
		}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegister_ZeroRateMeansNoLimiter(t *testing.T) {
	h := newTestGovernor(t, enabledService("resume-ai"), time.Second)

	// Burst of rapid calls all admitted when no rate is configured
	for i := 0; i < 20; i++ {
		_, err := h.gov.Execute(context.Background(), "resume-ai", "/v1/score", "",
			func(ctx context.Context) (any, error) { return "ok", nil }, nil)
		require.NoError(t, err)
	}
	assert.Len(t, h.calls.all(), 20)
}
