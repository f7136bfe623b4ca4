package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/careerbase/apigov/internal/logging"
	"github.com/careerbase/apigov/internal/metrics"
	"github.com/careerbase/apigov/internal/period"
	"github.com/careerbase/apigov/internal/service/latency"
	"github.com/careerbase/apigov/internal/storage"
	"github.com/careerbase/apigov/pkg/models"
)

// Generator assembles period reports from the call log, quota counters,
// and latency views. Regeneration of an already reported period replaces
// the stored rows.
type Generator struct {
	services *storage.ServiceStore
	calls    *storage.CallStore
	quotas   *storage.QuotaStore
	reports  *storage.ReportStore
	latency  *latency.Recorder

	nowFn func() time.Time
}

// NewGenerator creates a report generator
func NewGenerator(
	services *storage.ServiceStore,
	calls *storage.CallStore,
	quotas *storage.QuotaStore,
	reports *storage.ReportStore,
	recorder *latency.Recorder,
) *Generator {
	return &Generator{
		services: services,
		calls:    calls,
		quotas:   quotas,
		reports:  reports,
		latency:  recorder,
		nowFn:    time.Now,
	}
}

// Generate builds and stores reports for the period containing at:
// one per registered service plus a cross-service rollup.
// trigger is "scheduled" or "manual".
func (g *Generator) Generate(ctx context.Context, periodType models.PeriodType, at time.Time, trigger string) ([]models.PeriodReport, error) {
	if !periodType.Valid() {
		return nil, fmt.Errorf("invalid period type %q", periodType)
	}
	start, end := period.Bounds(periodType, at)

	services, err := g.services.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	reports := make([]models.PeriodReport, 0, len(services)+1)
	for _, svc := range services {
		r, err := g.buildOne(ctx, svc.Name, periodType, start, end)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}

	// Cross-service rollup under the empty service name
	rollup, err := g.buildOne(ctx, "", periodType, start, end)
	if err != nil {
		return nil, err
	}
	reports = append(reports, *rollup)

	for i := range reports {
		if err := g.reports.Upsert(ctx, &reports[i]); err != nil {
			return nil, fmt.Errorf("failed to store report: %w", err)
		}
	}

	metrics.RecordReportGenerated(string(periodType), trigger)
	logging.Info(ctx, "period reports generated",
		"period_type", string(periodType),
		"period_start", start.Format(time.RFC3339),
		"reports", len(reports),
		"trigger", trigger)
	return reports, nil
}

// GeneratePrevious closes out the period immediately before the one
// containing now
func (g *Generator) GeneratePrevious(ctx context.Context, periodType models.PeriodType, trigger string) ([]models.PeriodReport, error) {
	start, _ := period.Previous(periodType, g.nowFn())
	return g.Generate(ctx, periodType, start, trigger)
}

func (g *Generator) buildOne(ctx context.Context, serviceName string, periodType models.PeriodType, start, end time.Time) (*models.PeriodReport, error) {
	usage, err := g.calls.Usage(ctx, models.UsageQuery{
		ServiceName: serviceName,
		StartTime:   start,
		EndTime:     end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}

	stats, err := g.latency.Stats(ctx, serviceName, "", start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to compute latency: %w", err)
	}

	r := &models.PeriodReport{
		ServiceName:   serviceName,
		PeriodType:    periodType,
		PeriodStart:   start,
		PeriodEnd:     end,
		TotalCalls:    usage.TotalCalls,
		SuccessCount:  usage.SuccessCount,
		FailureCount:  usage.FailureCount,
		FallbackCount: usage.FallbackCount,
		ErrorRate:     usage.ErrorRate,
		P50Ms:         stats.P50Ms,
		P95Ms:         stats.P95Ms,
		P99Ms:         stats.P99Ms,
	}

	// Quota utilization is per-service; the rollup carries none
	if serviceName != "" {
		counter, err := g.quotas.GetForWindow(ctx, serviceName, periodType, start)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to load quota counter: %w", err)
		}
		if counter != nil {
			r.QuotaLimit = counter.Limit
			r.QuotaUsed = counter.Count
			if counter.Limit > 0 {
				r.QuotaUtilization = float64(counter.Count) / float64(counter.Limit)
			}
		}
	}
	return r, nil
}

// List returns stored reports newest-first
func (g *Generator) List(ctx context.Context, serviceName string, periodType models.PeriodType, limit int) ([]models.PeriodReport, error) {
	if limit <= 0 {
		limit = 20
	}
	return g.reports.List(ctx, serviceName, periodType, limit)
}
