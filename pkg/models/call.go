package models

import "time"

// CallOutcome records which branch of a governed call produced the result
type CallOutcome string

const (
	OutcomeSuccess  CallOutcome = "success"
	OutcomeFailure  CallOutcome = "failure"
	OutcomeFallback CallOutcome = "fallback"
)

// ErrorKind classifies a failed call attempt
type ErrorKind string

const (
	KindQuotaExhausted ErrorKind = "quota_exhausted"
	KindTimeout        ErrorKind = "timeout"
	KindUpstreamClient ErrorKind = "upstream_client_error"
	KindUpstreamServer ErrorKind = "upstream_server_error"
	KindMalformed      ErrorKind = "malformed_response"
	KindUnknown        ErrorKind = "unknown"
)

// CallRecord is one row per completed governed attempt, success or failure.
// Written exactly once per Execute invocation; immutable afterward.
type CallRecord struct {
	ID          string      `json:"id"`
	ServiceName string      `json:"service_name"`
	Endpoint    string      `json:"endpoint"`
	CallerID    string      `json:"caller_id,omitempty"` // initiating user or job, if known
	StartedAt   time.Time   `json:"started_at"`
	DurationMs  int64       `json:"duration_ms"`
	Outcome     CallOutcome `json:"outcome"`
	HTTPStatus  int         `json:"http_status,omitempty"` // 0 when the failure carried no status
}

// ErrorRecord is one row per failed attempt, referencing its CallRecord
type ErrorRecord struct {
	ID          string    `json:"id"`
	CallID      string    `json:"call_id"`
	ServiceName string    `json:"service_name"`
	Endpoint    string    `json:"endpoint"`
	CallerID    string    `json:"caller_id,omitempty"`
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// UsageQuery defines criteria for usage statistics
type UsageQuery struct {
	ServiceName string    `json:"service_name,omitempty"` // empty = all services
	StartTime   time.Time `json:"start_time,omitempty"`
	EndTime     time.Time `json:"end_time,omitempty"`
}

// EndpointUsage is the per-endpoint breakdown within a usage summary
type EndpointUsage struct {
	Calls    int     `json:"calls"`
	Failures int     `json:"failures"`
	AvgMs    float64 `json:"avg_ms"`
}

// UsageStats aggregates governed call activity for a service and date range
type UsageStats struct {
	ServiceName   string                   `json:"service_name,omitempty"`
	TotalCalls    int                      `json:"total_calls"`
	SuccessCount  int                      `json:"success_count"`
	FailureCount  int                      `json:"failure_count"`
	FallbackCount int                      `json:"fallback_count"`
	ErrorRate     float64                  `json:"error_rate"`
	ByEndpoint    map[string]EndpointUsage `json:"by_endpoint,omitempty"`
	PeriodStart   time.Time                `json:"period_start,omitempty"`
	PeriodEnd     time.Time                `json:"period_end,omitempty"`
}

// LatencyStats holds order-statistic response time metrics for a filtered window
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
