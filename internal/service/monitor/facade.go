package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/careerbase/apigov/internal/service/alerting"
	"github.com/careerbase/apigov/internal/service/errlog"
	"github.com/careerbase/apigov/internal/service/latency"
	"github.com/careerbase/apigov/internal/service/quota"
	"github.com/careerbase/apigov/internal/service/report"
	"github.com/careerbase/apigov/internal/storage"
	"github.com/careerbase/apigov/pkg/models"
)

// defaultWindow is the trailing window used when a query gives no bounds
const defaultWindow = 7 * 24 * time.Hour

// Facade is the single read surface for operators. It only composes the
// underlying components; the one state it can change is alert resolution
// and on-demand report generation, both of which delegate.
type Facade struct {
	services *storage.ServiceStore
	calls    *storage.CallStore
	ledger   *quota.Ledger
	errors   *errlog.Log
	alerts   *alerting.Engine
	latency  *latency.Recorder
	reports  *report.Generator

	nowFn func() time.Time
}

// New creates a monitoring facade
func New(
	services *storage.ServiceStore,
	calls *storage.CallStore,
	ledger *quota.Ledger,
	errors *errlog.Log,
	alerts *alerting.Engine,
	recorder *latency.Recorder,
	reports *report.Generator,
) *Facade {
	return &Facade{
		services: services,
		calls:    calls,
		ledger:   ledger,
		errors:   errors,
		alerts:   alerts,
		latency:  recorder,
		reports:  reports,
		nowFn:    time.Now,
	}
}

// ServiceOverview is one service's dashboard row
type ServiceOverview struct {
	Service    models.Service       `json:"service"`
	Usage      models.UsageStats    `json:"usage"`
	Quota      []models.QuotaStatus `json:"quota"`
	Latency    models.LatencyStats  `json:"latency"`
	ErrorCount int                  `json:"error_count"`
	OpenAlerts int                  `json:"open_alerts"`
}

// Dashboard is the aggregate operator view over a trailing window
type Dashboard struct {
	GeneratedAt time.Time         `json:"generated_at"`
	WindowStart time.Time         `json:"window_start"`
	WindowEnd   time.Time         `json:"window_end"`
	Services    []ServiceOverview `json:"services"`
	OpenAlerts  []models.Alert    `json:"open_alerts"`
}

// window fills unset bounds with the default trailing window
func (f *Facade) window(from, to time.Time) (time.Time, time.Time) {
	if to.IsZero() {
		to = f.nowFn().UTC()
	}
	if from.IsZero() {
		from = to.Add(-defaultWindow)
	}
	return from, to
}

// Services lists all registered service descriptors
func (f *Facade) Services(ctx context.Context) ([]models.Service, error) {
	return f.services.List(ctx)
}

// Usage aggregates call activity for a service over the window.
// Empty service aggregates across all services.
func (f *Facade) Usage(ctx context.Context, serviceName string, from, to time.Time) (*models.UsageStats, error) {
	from, to = f.window(from, to)
	return f.calls.Usage(ctx, models.UsageQuery{
		ServiceName: serviceName,
		StartTime:   from,
		EndTime:     to,
	})
}

// RemainingQuota reports current-period consumption for one service
func (f *Facade) RemainingQuota(ctx context.Context, serviceName string) ([]models.QuotaStatus, error) {
	return f.ledger.Status(ctx, serviceName)
}

// RemainingQuotaAll reports current-period consumption for every enabled service
func (f *Facade) RemainingQuotaAll(ctx context.Context) (map[string][]models.QuotaStatus, error) {
	return f.ledger.StatusAll(ctx)
}

// RecentErrors returns the newest classified failures
func (f *Facade) RecentErrors(ctx context.Context, serviceName string, limit int) ([]models.ErrorRecord, error) {
	return f.errors.Recent(ctx, serviceName, limit)
}

// ActiveAlerts returns open alerts, optionally filtered by service
func (f *Facade) ActiveAlerts(ctx context.Context, serviceName string) ([]models.Alert, error) {
	return f.alerts.Active(ctx, serviceName)
}

// ResolveAlert closes an alert on behalf of an operator
func (f *Facade) ResolveAlert(ctx context.Context, id, resolvedBy string) error {
	return f.alerts.Resolve(ctx, id, resolvedBy)
}

// Percentiles computes latency order statistics over the window
func (f *Facade) Percentiles(ctx context.Context, serviceName, endpoint string, from, to time.Time) (*models.LatencyStats, error) {
	from, to = f.window(from, to)
	return f.latency.Stats(ctx, serviceName, endpoint, from, to)
}

// GenerateReport builds reports on demand for the period containing at.
// A zero at closes out the previous period.
func (f *Facade) GenerateReport(ctx context.Context, periodType models.PeriodType, at time.Time) ([]models.PeriodReport, error) {
	if at.IsZero() {
		return f.reports.GeneratePrevious(ctx, periodType, "manual")
	}
	return f.reports.Generate(ctx, periodType, at, "manual")
}

// ListReports returns stored reports newest-first
func (f *Facade) ListReports(ctx context.Context, serviceName string, periodType models.PeriodType, limit int) ([]models.PeriodReport, error) {
	return f.reports.List(ctx, serviceName, periodType, limit)
}

// Dashboard builds the aggregate operator view over the default trailing
// window: per-service usage, quota, latency, and the open alert list.
func (f *Facade) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := f.nowFn().UTC()
	from, to := f.window(time.Time{}, now)

	services, err := f.services.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	openAlerts, err := f.alerts.Active(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	alertCounts := make(map[string]int)
	for _, a := range openAlerts {
		alertCounts[a.ServiceName]++
	}

	dashboard := &Dashboard{
		GeneratedAt: now,
		WindowStart: from,
		WindowEnd:   to,
		Services:    make([]ServiceOverview, 0, len(services)),
		OpenAlerts:  openAlerts,
	}

	for _, svc := range services {
		usage, err := f.calls.Usage(ctx, models.UsageQuery{
			ServiceName: svc.Name,
			StartTime:   from,
			EndTime:     to,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate usage for %s: %w", svc.Name, err)
		}

		quotas, err := f.ledger.Status(ctx, svc.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to read quota for %s: %w", svc.Name, err)
		}

		stats, err := f.latency.Stats(ctx, svc.Name, "", from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to compute latency for %s: %w", svc.Name, err)
		}

		errorCount, err := f.errors.CountSince(ctx, svc.Name, from)
		if err != nil {
			return nil, fmt.Errorf("failed to count errors for %s: %w", svc.Name, err)
		}

		dashboard.Services = append(dashboard.Services, ServiceOverview{
			Service:    svc,
			Usage:      *usage,
			Quota:      quotas,
			Latency:    *stats,
			ErrorCount: errorCount,
			OpenAlerts: alertCounts[svc.Name],
		})
	}

	return dashboard, nil
}
