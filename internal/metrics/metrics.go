package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP request metrics for the operator API server
var (
	// HTTPRequestDuration tracks the duration of HTTP requests
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests by method, path, and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestsTotal counts the total number of HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)
)

// Governed outbound call metrics
var (
	// GovernedCallsTotal counts governed call attempts by service, endpoint, and outcome
	GovernedCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apigov_calls_total",
			Help: "Total number of governed API calls by service, endpoint, and outcome",
		},
		[]string{"service", "endpoint", "outcome"},
	)

	// GovernedCallDuration tracks primary call duration by service and endpoint
	GovernedCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "apigov_call_duration_seconds",
			Help: "Duration of governed API calls by service and endpoint",
			// 10ms to 60s, tuned for third-party SaaS latencies
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"service", "endpoint"},
	)

	// CallErrorsTotal counts classified failures by service and error kind
	CallErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apigov_call_errors_total",
			Help: "Total number of classified call failures by service and kind",
		},
		[]string{"service", "kind"},
	)

	// QuotaRejections counts calls rejected before the primary was attempted
	QuotaRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apigov_quota_rejections_total",
			Help: "Total number of calls rejected by quota or rate limiting before any attempt",
		},
		[]string{"service", "reason"},
	)

	// QuotaRemaining tracks remaining budget by service and period type
	QuotaRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "apigov_quota_remaining",
			Help: "Remaining quota budget by service and period type (-1 = unlimited)",
		},
		[]string{"service", "period"},
	)

	// FallbacksTotal counts fallback invocations by service and result
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apigov_fallbacks_total",
			Help: "Total number of fallback invocations by service and result",
		},
		[]string{"service", "result"},
	)

	// AlertsOpened counts alert open transitions by service and alert type
	AlertsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apigov_alerts_opened_total",
			Help: "Total number of alerts opened by service and type",
		},
		[]string{"service", "type"},
	)

	// AlertsResolved counts alert resolutions by service, type, and resolver
	AlertsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apigov_alerts_resolved_total",
			Help: "Total number of alerts resolved by service, type, and resolver (auto/manual)",
		},
		[]string{"service", "type", "resolver"},
	)

	// AlertsActive tracks currently open alerts by service and type
	AlertsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "apigov_alerts_active",
			Help: "Number of currently open alerts by service and type",
		},
		[]string{"service", "type"},
	)

	// ReportsGenerated counts period report generations by period type and trigger
	ReportsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apigov_reports_generated_total",
			Help: "Total number of period reports generated by period type and trigger (scheduled/manual)",
		},
		[]string{"period", "trigger"},
	)
)

// Helper functions for common metric operations

// RecordGovernedCall records a finished governed call with its outcome
func RecordGovernedCall(service, endpoint, outcome string, duration time.Duration) {
	GovernedCallsTotal.WithLabelValues(service, endpoint, outcome).Inc()
	GovernedCallDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
}

// RecordCallError increments the classified failure counter
func RecordCallError(service, kind string) {
	CallErrorsTotal.WithLabelValues(service, kind).Inc()
}

// RecordQuotaRejection increments the pre-attempt rejection counter.
// reason is "quota" or "rate_limit".
func RecordQuotaRejection(service, reason string) {
	QuotaRejections.WithLabelValues(service, reason).Inc()
}

// UpdateQuotaRemaining sets the remaining budget gauge
func UpdateQuotaRemaining(service, period string, remaining int) {
	QuotaRemaining.WithLabelValues(service, period).Set(float64(remaining))
}

// RecordFallback records a fallback invocation; result is "success" or "failure"
func RecordFallback(service, result string) {
	FallbacksTotal.WithLabelValues(service, result).Inc()
}

// RecordAlertOpened increments the opened counter and the active gauge
func RecordAlertOpened(service, alertType string) {
	AlertsOpened.WithLabelValues(service, alertType).Inc()
	AlertsActive.WithLabelValues(service, alertType).Inc()
}

// RecordAlertResolved increments the resolved counter and decrements the active gauge.
// resolver is "auto" or "manual".
func RecordAlertResolved(service, alertType, resolver string) {
	AlertsResolved.WithLabelValues(service, alertType, resolver).Inc()
	AlertsActive.WithLabelValues(service, alertType).Dec()
}

// RecordReportGenerated increments the report generation counter
func RecordReportGenerated(period, trigger string) {
	ReportsGenerated.WithLabelValues(period, trigger).Inc()
}

// RecordHTTPRequest records the duration and increments the counter for an HTTP request
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}
