package cmd

// CLI-side response types. Timestamps stay strings because the CLI
// receives RFC3339 JSON and displays the values directly.

// Service represents a governed service from the API
type Service struct {
	Name         string  `json:"name"`
	DisplayName  string  `json:"display_name"`
	Enabled      bool    `json:"enabled"`
	DailyLimit   int     `json:"daily_limit"`
	WeeklyLimit  int     `json:"weekly_limit"`
	MonthlyLimit int     `json:"monthly_limit"`
	RatePerSec   float64 `json:"rate_per_sec"`
	CreatedAt    string  `json:"created_at"`
}

// QuotaStatus represents remaining quota for one service period
type QuotaStatus struct {
	ServiceName string  `json:"service_name"`
	PeriodType  string  `json:"period_type"`
	PeriodKey   string  `json:"period_key"`
	Used        int     `json:"used"`
	Limit       int     `json:"limit"`
	Remaining   int     `json:"remaining"`
	Utilization float64 `json:"utilization"`
}

// Alert represents an alert from the API
type Alert struct {
	ID              string `json:"id"`
	ServiceName     string `json:"service_name"`
	Type            string `json:"type"`
	Severity        string `json:"severity"`
	Message         string `json:"message"`
	OpenedAt        string `json:"opened_at"`
	LastTriggeredAt string `json:"last_triggered_at"`
	IsResolved      bool   `json:"is_resolved"`
	ResolvedBy      string `json:"resolved_by,omitempty"`
}

// ErrorRecord represents a logged call error
type ErrorRecord struct {
	ID          string `json:"id"`
	CallID      string `json:"call_id"`
	ServiceName string `json:"service_name"`
	Endpoint    string `json:"endpoint"`
	CallerID    string `json:"caller_id,omitempty"`
	Kind        string `json:"kind"`
	Message     string `json:"message"`
	CreatedAt   string `json:"created_at"`
}

// UsageStats represents aggregated call volume for a window
type UsageStats struct {
	ServiceName   string                   `json:"service_name,omitempty"`
	TotalCalls    int                      `json:"total_calls"`
	SuccessCount  int                      `json:"success_count"`
	FailureCount  int                      `json:"failure_count"`
	FallbackCount int                      `json:"fallback_count"`
	ErrorRate     float64                  `json:"error_rate"`
	ByEndpoint    map[string]EndpointUsage `json:"by_endpoint,omitempty"`
	PeriodStart   string                   `json:"period_start,omitempty"`
	PeriodEnd     string                   `json:"period_end,omitempty"`
}

// EndpointUsage represents per-endpoint call volume
type EndpointUsage struct {
	Calls    int     `json:"calls"`
	Failures int     `json:"failures"`
	AvgMs    float64 `json:"avg_ms"`
}

// LatencyStats represents latency percentiles for a window
type LatencyStats struct {
	ServiceName string `json:"service_name,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	P50Ms       int64  `json:"p50_ms"`
	P95Ms       int64  `json:"p95_ms"`
	P99Ms       int64  `json:"p99_ms"`
	MinMs       int64  `json:"min_ms"`
	MaxMs       int64  `json:"max_ms"`
	Count       int    `json:"count"`
}

// PeriodReport represents a stored usage report
type PeriodReport struct {
	ID          string `json:"id"`
	ServiceName string `json:"service_name,omitempty"`
	PeriodType  string `json:"period_type"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`

	TotalCalls    int     `json:"total_calls"`
	SuccessCount  int     `json:"success_count"`
	FailureCount  int     `json:"failure_count"`
	FallbackCount int     `json:"fallback_count"`
	ErrorRate     float64 `json:"error_rate"`

	P50Ms int64 `json:"p50_ms"`
	P95Ms int64 `json:"p95_ms"`
	P99Ms int64 `json:"p99_ms"`

	QuotaLimit       int     `json:"quota_limit"`
	QuotaUsed        int     `json:"quota_used"`
	QuotaUtilization float64 `json:"quota_utilization"`

	GeneratedAt string `json:"generated_at"`
}

// ServiceOverview is one service's row in the dashboard response
type ServiceOverview struct {
	Service    Service       `json:"service"`
	Usage      UsageStats    `json:"usage"`
	Quota      []QuotaStatus `json:"quota"`
	Latency    LatencyStats  `json:"latency"`
	ErrorCount int           `json:"error_count"`
	OpenAlerts int           `json:"open_alerts"`
}

// Dashboard is the combined operator overview
type Dashboard struct {
	GeneratedAt string            `json:"generated_at"`
	WindowStart string            `json:"window_start"`
	WindowEnd   string            `json:"window_end"`
	Services    []ServiceOverview `json:"services"`
	OpenAlerts  []Alert           `json:"open_alerts"`
}
