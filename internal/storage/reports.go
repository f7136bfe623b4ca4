package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/careerbase/apigov/pkg/models"
	"github.com/google/uuid"
)

// ReportStore handles period report persistence
type ReportStore struct {
	db *DB
}

// NewReportStore creates a new report store
func NewReportStore(db *DB) *ReportStore {
	return &ReportStore{db: db}
}

// Upsert stores a report, overwriting any existing row for the same
// (service, period type, period start). Regeneration is idempotent.
func (s *ReportStore) Upsert(ctx context.Context, report *models.PeriodReport) error {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO period_reports (
			id, service_name, period_type, period_start, period_end,
			total_calls, success_count, failure_count, fallback_count, error_rate,
			p50_ms, p95_ms, p99_ms,
			quota_limit, quota_used, quota_utilization, generated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(service_name, period_type, period_start) DO UPDATE SET
			period_end = excluded.period_end,
			total_calls = excluded.total_calls,
			success_count = excluded.success_count,
			failure_count = excluded.failure_count,
			fallback_count = excluded.fallback_count,
			error_rate = excluded.error_rate,
			p50_ms = excluded.p50_ms,
			p95_ms = excluded.p95_ms,
			p99_ms = excluded.p99_ms,
			quota_limit = excluded.quota_limit,
			quota_used = excluded.quota_used,
			quota_utilization = excluded.quota_utilization,
			generated_at = excluded.generated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		report.ID,
		report.ServiceName,
		string(report.PeriodType),
		report.PeriodStart.UTC(),
		report.PeriodEnd.UTC(),
		report.TotalCalls,
		report.SuccessCount,
		report.FailureCount,
		report.FallbackCount,
		report.ErrorRate,
		report.P50Ms,
		report.P95Ms,
		report.P99Ms,
		report.QuotaLimit,
		report.QuotaUsed,
		report.QuotaUtilization,
		report.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert report: %w", err)
	}
	return nil
}

// List returns stored reports newest-first, optionally filtered by service
// (empty string = the all-services rollups) and period type.
func (s *ReportStore) List(ctx context.Context, serviceName string, periodType models.PeriodType, limit int) ([]models.PeriodReport, error) {
	query := `
		SELECT id, service_name, period_type, period_start, period_end,
			total_calls, success_count, failure_count, fallback_count, error_rate,
			p50_ms, p95_ms, p99_ms,
			quota_limit, quota_used, quota_utilization, generated_at
		FROM period_reports
		WHERE service_name = ?
	`
	args := []interface{}{serviceName}

	if periodType != "" {
		query += " AND period_type = ?"
		args = append(args, string(periodType))
	}
	query += " ORDER BY period_start DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.PeriodReport
	for rows.Next() {
		var r models.PeriodReport
		var periodType string
		if err := rows.Scan(
			&r.ID, &r.ServiceName, &periodType, &r.PeriodStart, &r.PeriodEnd,
			&r.TotalCalls, &r.SuccessCount, &r.FailureCount, &r.FallbackCount, &r.ErrorRate,
			&r.P50Ms, &r.P95Ms, &r.P99Ms,
			&r.QuotaLimit, &r.QuotaUsed, &r.QuotaUtilization, &r.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		r.PeriodType = models.PeriodType(periodType)
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return reports, nil
}
