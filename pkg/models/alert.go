package models

import "time"

// AlertType identifies the operational condition an alert tracks
type AlertType string

const (
	AlertQuotaExhausted    AlertType = "quota_exhausted"
	AlertElevatedErrorRate AlertType = "elevated_error_rate"
	AlertElevatedLatency   AlertType = "elevated_latency"
)

// AlertSeverity ranks how urgent an alert is
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is a durable record of an ongoing operational anomaly for a service.
// At most one open alert exists per (service, type); repeated threshold
// crossings bump LastTriggeredAt instead of creating duplicates.
type Alert struct {
	ID              string        `json:"id"`
	ServiceName     string        `json:"service_name"`
	Type            AlertType     `json:"type"`
	Severity        AlertSeverity `json:"severity"`
	Message         string        `json:"message"`
	OpenedAt        time.Time     `json:"opened_at"`
	LastTriggeredAt time.Time     `json:"last_triggered_at"`
	IsResolved      bool          `json:"is_resolved"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty"`
	ResolvedBy      string        `json:"resolved_by,omitempty"` // "auto" or an operator label
}
