package models

import "time"

// PeriodReport is a durable aggregation snapshot for one service (or all
// services) over one calendar period. Regenerating for the same
// (service, period type, period start) overwrites the stored row.
type PeriodReport struct {
	ID          string     `json:"id"`
	ServiceName string     `json:"service_name,omitempty"` // empty = all services
	PeriodType  PeriodType `json:"period_type"`
	PeriodStart time.Time  `json:"period_start"`
	PeriodEnd   time.Time  `json:"period_end"`

	TotalCalls    int     `json:"total_calls"`
	SuccessCount  int     `json:"success_count"`
	FailureCount  int     `json:"failure_count"`
	FallbackCount int     `json:"fallback_count"`
	ErrorRate     float64 `json:"error_rate"`

	P50Ms int64 `json:"p50_ms"`
	P95Ms int64 `json:"p95_ms"`
	P99Ms int64 `json:"p99_ms"`

	QuotaLimit       int     `json:"quota_limit"` // 0 = unlimited
	QuotaUsed        int     `json:"quota_used"`
	QuotaUtilization float64 `json:"quota_utilization"`

	GeneratedAt time.Time `json:"generated_at"`
}
