package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/careerbase/apigov/internal/logging"
	"github.com/careerbase/apigov/internal/metrics"
	"github.com/careerbase/apigov/internal/service/latency"
	"github.com/careerbase/apigov/internal/service/quota"
	"github.com/careerbase/apigov/internal/storage"
	"github.com/careerbase/apigov/pkg/models"
)

// Thresholds holds the alert trigger levels for one service
type Thresholds struct {
	ErrorRateThreshold  float64
	ErrorRateWindow     int
	LatencyP95CeilingMs int64
	LatencyWindow       time.Duration
	QuotaFloorPct       float64
	ResolveCooldown     time.Duration
}

// merge fills zero fields from the defaults
func (t Thresholds) merge(defaults Thresholds) Thresholds {
	if t.ErrorRateThreshold == 0 {
		t.ErrorRateThreshold = defaults.ErrorRateThreshold
	}
	if t.ErrorRateWindow == 0 {
		t.ErrorRateWindow = defaults.ErrorRateWindow
	}
	if t.LatencyP95CeilingMs == 0 {
		t.LatencyP95CeilingMs = defaults.LatencyP95CeilingMs
	}
	if t.LatencyWindow == 0 {
		t.LatencyWindow = defaults.LatencyWindow
	}
	if t.QuotaFloorPct == 0 {
		t.QuotaFloorPct = defaults.QuotaFloorPct
	}
	if t.ResolveCooldown == 0 {
		t.ResolveCooldown = defaults.ResolveCooldown
	}
	return t
}

// Engine evaluates alert conditions and drives the alert lifecycle.
// Error-rate and quota conditions are checked inline after every recorded
// failure; latency and auto-resolution run on the periodic sweep.
type Engine struct {
	alerts   *storage.AlertStore
	services *storage.ServiceStore
	calls    *storage.CallStore
	ledger   *quota.Ledger
	latency  *latency.Recorder

	defaults  Thresholds
	overrides map[string]Thresholds

	sweepInterval time.Duration
	nowFn         func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an alert engine. overrides may be nil.
func New(
	alerts *storage.AlertStore,
	services *storage.ServiceStore,
	calls *storage.CallStore,
	ledger *quota.Ledger,
	recorder *latency.Recorder,
	defaults Thresholds,
	overrides map[string]Thresholds,
	sweepInterval time.Duration,
) *Engine {
	if overrides == nil {
		overrides = make(map[string]Thresholds)
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &Engine{
		alerts:        alerts,
		services:      services,
		calls:         calls,
		ledger:        ledger,
		latency:       recorder,
		defaults:      defaults,
		overrides:     overrides,
		sweepInterval: sweepInterval,
		nowFn:         time.Now,
	}
}

func (e *Engine) thresholdsFor(serviceName string) Thresholds {
	if override, ok := e.overrides[serviceName]; ok {
		return override.merge(e.defaults)
	}
	return e.defaults
}

// AfterFailure evaluates the fast alert conditions for a service.
// Called by the governor after every recorded failure, including
// pre-attempt rejections.
func (e *Engine) AfterFailure(ctx context.Context, serviceName string) {
	th := e.thresholdsFor(serviceName)
	if err := e.evaluateErrorRate(ctx, serviceName, th); err != nil {
		logging.Error(ctx, "error rate evaluation failed", "error", err)
	}
	if err := e.evaluateQuotaFloor(ctx, serviceName, th); err != nil {
		logging.Error(ctx, "quota floor evaluation failed", "error", err)
	}
}

// evaluateErrorRate checks the failure fraction of the last N calls.
// Needs a full window before it fires; sparse new services stay quiet.
func (e *Engine) evaluateErrorRate(ctx context.Context, serviceName string, th Thresholds) error {
	outcomes, err := e.calls.RecentOutcomes(ctx, serviceName, th.ErrorRateWindow)
	if err != nil {
		return err
	}
	if len(outcomes) < th.ErrorRateWindow {
		return nil
	}

	failures := 0
	for _, o := range outcomes {
		// Fallback outcomes count: the primary failed even if the caller
		// was served from the fallback
		if o == models.OutcomeFailure || o == models.OutcomeFallback {
			failures++
		}
	}
	rate := float64(failures) / float64(len(outcomes))
	if rate < th.ErrorRateThreshold {
		return nil
	}

	severity := models.SeverityWarning
	if rate >= 2*th.ErrorRateThreshold {
		severity = models.SeverityCritical
	}
	return e.open(ctx, &models.Alert{
		ServiceName: serviceName,
		Type:        models.AlertElevatedErrorRate,
		Severity:    severity,
		Message: fmt.Sprintf("error rate %.0f%% over last %d calls (threshold %.0f%%)",
			rate*100, len(outcomes), th.ErrorRateThreshold*100),
	})
}

// evaluateQuotaFloor checks whether any limited period is at or below the
// configured remaining fraction
func (e *Engine) evaluateQuotaFloor(ctx context.Context, serviceName string, th Thresholds) error {
	statuses, err := e.ledger.Status(ctx, serviceName)
	if err != nil {
		return err
	}

	for _, st := range statuses {
		if st.Limit <= 0 {
			continue
		}
		remainingPct := float64(st.Remaining) / float64(st.Limit)
		if remainingPct > th.QuotaFloorPct {
			continue
		}

		severity := models.SeverityWarning
		if st.Remaining == 0 {
			severity = models.SeverityCritical
		}
		return e.open(ctx, &models.Alert{
			ServiceName: serviceName,
			Type:        models.AlertQuotaExhausted,
			Severity:    severity,
			Message: fmt.Sprintf("%s quota at %d/%d (%d remaining)",
				st.PeriodType, st.Used, st.Limit, st.Remaining),
		})
	}
	return nil
}

// evaluateLatency checks the p95 over the trailing window against the ceiling
func (e *Engine) evaluateLatency(ctx context.Context, serviceName string, th Thresholds) error {
	now := e.nowFn()
	stats, err := e.latency.Stats(ctx, serviceName, "", now.Add(-th.LatencyWindow), time.Time{})
	if err != nil {
		return err
	}
	if stats.Count == 0 || stats.P95Ms < th.LatencyP95CeilingMs {
		return nil
	}

	severity := models.SeverityWarning
	if stats.P95Ms >= 2*th.LatencyP95CeilingMs {
		severity = models.SeverityCritical
	}
	return e.open(ctx, &models.Alert{
		ServiceName: serviceName,
		Type:        models.AlertElevatedLatency,
		Severity:    severity,
		Message: fmt.Sprintf("p95 latency %dms over last %s (ceiling %dms)",
			stats.P95Ms, th.LatencyWindow, th.LatencyP95CeilingMs),
	})
}

// open transitions the alert through the store and records metrics when a
// new alert actually opened. Re-triggers of an open alert only bump its
// last trigger time.
func (e *Engine) open(ctx context.Context, alert *models.Alert) error {
	opened, err := e.alerts.Open(ctx, alert)
	if err != nil {
		return err
	}
	if opened {
		metrics.RecordAlertOpened(alert.ServiceName, string(alert.Type))
		logging.Warn(ctx, "alert opened",
			"alert_id", alert.ID,
			"alert_type", string(alert.Type),
			"severity", string(alert.Severity),
			"message", alert.Message)
	}
	return nil
}

// Sweep runs one pass of the periodic conditions: latency ceilings for
// every enabled service, then cooldown-based auto-resolution
func (e *Engine) Sweep(ctx context.Context) {
	services, err := e.services.ListEnabled(ctx)
	if err != nil {
		logging.Error(ctx, "sweep failed to list services", "error", err)
		return
	}

	for _, svc := range services {
		th := e.thresholdsFor(svc.Name)
		svcCtx := logging.WithService(ctx, svc.Name)
		if err := e.evaluateLatency(svcCtx, svc.Name, th); err != nil {
			logging.Error(svcCtx, "latency evaluation failed", "error", err)
		}
		if err := e.evaluateQuotaFloor(svcCtx, svc.Name, th); err != nil {
			logging.Error(svcCtx, "quota floor evaluation failed", "error", err)
		}
	}

	e.autoResolve(ctx)
}

// autoResolve closes open alerts whose condition has stopped re-triggering
// for a full cooldown
func (e *Engine) autoResolve(ctx context.Context) {
	open, err := e.alerts.Active(ctx, "")
	if err != nil {
		logging.Error(ctx, "auto-resolve failed to list alerts", "error", err)
		return
	}

	now := e.nowFn()
	for _, alert := range open {
		th := e.thresholdsFor(alert.ServiceName)
		if now.Sub(alert.LastTriggeredAt) < th.ResolveCooldown {
			continue
		}
		if err := e.alerts.Resolve(ctx, alert.ID, "auto"); err != nil {
			logging.Error(ctx, "auto-resolve failed", "alert_id", alert.ID, "error", err)
			continue
		}
		metrics.RecordAlertResolved(alert.ServiceName, string(alert.Type), "auto")
		logging.Info(ctx, "alert auto-resolved",
			"alert_id", alert.ID,
			"alert_type", string(alert.Type),
			"quiet_for", now.Sub(alert.LastTriggeredAt).String())
	}
}

// Resolve closes an alert on behalf of an operator
func (e *Engine) Resolve(ctx context.Context, id, resolvedBy string) error {
	alert, err := e.alerts.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := e.alerts.Resolve(ctx, id, resolvedBy); err != nil {
		return err
	}
	metrics.RecordAlertResolved(alert.ServiceName, string(alert.Type), "manual")
	logging.Audit(ctx, "alert_resolved",
		"alert_id", id,
		"alert_type", string(alert.Type),
		"resolved_by", resolvedBy)
	return nil
}

// Active returns open alerts, optionally filtered by service
func (e *Engine) Active(ctx context.Context, serviceName string) ([]models.Alert, error) {
	return e.alerts.Active(ctx, serviceName)
}

// Start launches the sweep loop. Stop with Stop.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return // already running
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.run(loopCtx)
	logging.Info(ctx, "alert sweep started", "interval", e.sweepInterval.String())
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

// Stop halts the sweep loop and waits for the in-flight pass to finish
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel = nil
	e.done = nil
}
