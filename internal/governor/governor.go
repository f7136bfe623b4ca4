package governor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/careerbase/apigov/internal/logging"
	"github.com/careerbase/apigov/internal/metrics"
	"github.com/careerbase/apigov/pkg/models"
	"golang.org/x/time/rate"
)

// Operation is one attempt against an upstream API. It must honor ctx
// cancellation; the governor abandons operations that outlive their deadline.
type Operation func(ctx context.Context) (any, error)

// QuotaLedger grants or denies budget for governed calls
type QuotaLedger interface {
	// Exceeded returns the first exhausted period's status, or nil when
	// the service still has budget in every configured period.
	Exceeded(ctx context.Context, serviceName string) (*models.QuotaStatus, error)
	// Commit counts one successful call against all configured periods
	Commit(ctx context.Context, serviceName string) error
}

// CallSink persists finished call attempts
type CallSink interface {
	Insert(ctx context.Context, record *models.CallRecord) error
}

// ErrorSink persists classified failures
type ErrorSink interface {
	Insert(ctx context.Context, record *models.ErrorRecord) error
}

// AlertNotifier is poked after every recorded failure so threshold
// evaluation happens close to the event instead of waiting for a sweep
type AlertNotifier interface {
	AfterFailure(ctx context.Context, serviceName string)
}

// serviceRuntime is the in-memory enforcement state for one service
type serviceRuntime struct {
	service models.Service
	limiter *rate.Limiter // nil when no rate smoothing configured
	timeout time.Duration
}

// Governor is the single enforcement point for outbound API calls.
// Every governed attempt passes quota and rate admission, runs under a
// deadline, and leaves exactly one call record behind.
type Governor struct {
	mu       sync.RWMutex
	services map[string]*serviceRuntime

	quota  QuotaLedger
	calls  CallSink
	errs   ErrorSink
	alerts AlertNotifier

	defaultTimeout time.Duration
}

// New creates a governor. alerts may be nil when no alerting is wired.
func New(quota QuotaLedger, calls CallSink, errs ErrorSink, alerts AlertNotifier, defaultTimeout time.Duration) *Governor {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &Governor{
		services:       make(map[string]*serviceRuntime),
		quota:          quota,
		calls:          calls,
		errs:           errs,
		alerts:         alerts,
		defaultTimeout: defaultTimeout,
	}
}

// Register installs a service for governance. timeout <= 0 uses the default.
// Re-registering replaces the runtime, dropping any accumulated rate tokens.
func (g *Governor) Register(svc models.Service, timeout time.Duration) {
	if timeout <= 0 {
		timeout = g.defaultTimeout
	}

	rt := &serviceRuntime{service: svc, timeout: timeout}
	if svc.RatePerSec > 0 {
		// Burst of at least 1 so a single call is always admittable
		burst := int(math.Ceil(svc.RatePerSec))
		if burst < 1 {
			burst = 1
		}
		rt.limiter = rate.NewLimiter(rate.Limit(svc.RatePerSec), burst)
	}

	g.mu.Lock()
	g.services[svc.Name] = rt
	g.mu.Unlock()
}

func (g *Governor) runtime(serviceName string) (*serviceRuntime, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rt, ok := g.services[serviceName]
	return rt, ok
}

// Execute runs a governed call. The primary operation runs under the
// service timeout; on primary failure the fallback (if any) runs under
// the caller's remaining context. Exactly one call record is written for
// every admitted invocation, and one more error record per failure, so
// fallback-rescued calls stay visible to operators.
func (g *Governor) Execute(ctx context.Context, serviceName, endpoint, callerID string, primary, fallback Operation) (any, error) {
	ctx = logging.WithService(ctx, serviceName)
	if callerID != "" {
		ctx = logging.WithCallerID(ctx, callerID)
	}

	rt, ok := g.runtime(serviceName)
	if !ok {
		return nil, fmt.Errorf("%s: %w", serviceName, ErrServiceUnknown)
	}
	if !rt.service.Enabled {
		return nil, fmt.Errorf("%s: %w", serviceName, ErrServiceDisabled)
	}

	// Quota admission: advisory check before the attempt, committed only
	// after a successful primary. A burst racing past the check can land a
	// few calls over the ceiling; the next check closes the gate.
	exceeded, err := g.quota.Exceeded(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("quota check failed: %w", err)
	}
	if exceeded != nil {
		rejErr := fmt.Errorf("%s %s quota reached (%d/%d): %w",
			serviceName, exceeded.PeriodType, exceeded.Used, exceeded.Limit, ErrQuotaExhausted)
		metrics.RecordQuotaRejection(serviceName, "quota")
		logging.Warn(ctx, "call rejected, quota exhausted",
			"endpoint", endpoint,
			"period", string(exceeded.PeriodType),
			"used", exceeded.Used,
			"limit", exceeded.Limit)
		return g.reject(ctx, rt, endpoint, callerID, fallback, rejErr)
	}

	// Rate admission is non-blocking: a call that cannot be admitted now
	// is rejected rather than queued, and counts as a quota-class rejection
	if rt.limiter != nil && !rt.limiter.Allow() {
		rejErr := fmt.Errorf("%s: %w", serviceName, ErrRateLimited)
		metrics.RecordQuotaRejection(serviceName, "rate_limit")
		logging.Warn(ctx, "call rejected, rate limit", "endpoint", endpoint)
		return g.reject(ctx, rt, endpoint, callerID, fallback, rejErr)
	}

	startedAt := time.Now().UTC()
	result, primaryErr := g.invoke(ctx, rt.timeout, primary)
	duration := time.Since(startedAt)

	record := &models.CallRecord{
		ServiceName: serviceName,
		Endpoint:    endpoint,
		CallerID:    callerID,
		StartedAt:   startedAt,
		DurationMs:  duration.Milliseconds(),
	}

	if primaryErr == nil {
		record.Outcome = models.OutcomeSuccess
		g.finishCall(ctx, record)
		if err := g.quota.Commit(ctx, serviceName); err != nil {
			logging.Error(ctx, "quota commit failed", "error", err)
		}
		return result, nil
	}

	// Primary failed. Run the fallback first to learn the final outcome,
	// then persist the call and its classified failure. Rescued calls keep
	// their error record so operators still see the primary failure.
	kind := Classify(primaryErr)
	record.HTTPStatus = StatusOf(primaryErr)

	var fbResult any
	var fbErr error
	if fallback != nil {
		fbResult, fbErr = fallback(ctx)
		if fbErr == nil {
			record.Outcome = models.OutcomeFallback
			metrics.RecordFallback(serviceName, "success")
		} else {
			metrics.RecordFallback(serviceName, "failure")
			logging.Error(ctx, "fallback failed after primary failure",
				"endpoint", endpoint,
				"error", fbErr)
		}
	}
	if record.Outcome == "" {
		record.Outcome = models.OutcomeFailure
	}

	g.finishCall(ctx, record)
	g.recordError(ctx, record, kind, primaryErr)
	g.notifyFailure(ctx, serviceName)

	if record.Outcome == models.OutcomeFallback {
		logging.Warn(ctx, "primary failed, fallback served",
			"endpoint", endpoint,
			"kind", string(kind),
			"error", primaryErr)
		return fbResult, nil
	}

	logging.Error(ctx, "governed call failed",
		"endpoint", endpoint,
		"kind", string(kind),
		"duration_ms", record.DurationMs,
		"error", primaryErr)
	return nil, primaryErr
}

// invoke runs op under a deadline. On timeout the operation goroutine is
// abandoned; it still observes ctx cancellation and is expected to exit.
func (g *Governor) invoke(ctx context.Context, timeout time.Duration, op Operation) (any, error) {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type opResult struct {
		value any
		err   error
	}
	done := make(chan opResult, 1)

	go func() {
		value, err := op(opCtx)
		done <- opResult{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-opCtx.Done():
		return nil, opCtx.Err()
	}
}

// reject handles a pre-attempt rejection: the primary never runs, but the
// fallback still gets its chance. Duration is zero; no upstream attempt
// happened.
func (g *Governor) reject(ctx context.Context, rt *serviceRuntime, endpoint, callerID string, fallback Operation, rejErr error) (any, error) {
	record := &models.CallRecord{
		ServiceName: rt.service.Name,
		Endpoint:    endpoint,
		CallerID:    callerID,
		StartedAt:   time.Now().UTC(),
		DurationMs:  0,
		Outcome:     models.OutcomeFailure,
	}

	var fbResult any
	fbErr := rejErr
	if fallback != nil {
		fbResult, fbErr = fallback(ctx)
		if fbErr == nil {
			record.Outcome = models.OutcomeFallback
			metrics.RecordFallback(rt.service.Name, "success")
		} else {
			metrics.RecordFallback(rt.service.Name, "failure")
		}
	}

	g.finishCall(ctx, record)
	g.recordError(ctx, record, models.KindQuotaExhausted, rejErr)
	g.notifyFailure(ctx, rt.service.Name)

	if fbErr == nil {
		return fbResult, nil
	}
	return nil, rejErr
}

func (g *Governor) finishCall(ctx context.Context, record *models.CallRecord) {
	if err := g.calls.Insert(ctx, record); err != nil {
		logging.Error(ctx, "failed to persist call record", "error", err)
		return
	}
	metrics.RecordGovernedCall(record.ServiceName, record.Endpoint, string(record.Outcome), time.Duration(record.DurationMs)*time.Millisecond)
}

// recordError persists the classified failure. Must run after finishCall;
// the error record references the call record by id.
func (g *Governor) recordError(ctx context.Context, call *models.CallRecord, kind models.ErrorKind, cause error) {
	errRecord := &models.ErrorRecord{
		CallID:      call.ID,
		ServiceName: call.ServiceName,
		Endpoint:    call.Endpoint,
		CallerID:    call.CallerID,
		Kind:        kind,
		Message:     cause.Error(),
	}
	if err := g.errs.Insert(ctx, errRecord); err != nil {
		logging.Error(ctx, "failed to persist error record", "error", err)
	}
	metrics.RecordCallError(call.ServiceName, string(kind))
}

func (g *Governor) notifyFailure(ctx context.Context, serviceName string) {
	if g.alerts != nil {
		g.alerts.AfterFailure(ctx, serviceName)
	}
}
