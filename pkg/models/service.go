package models

import "time"

// PeriodType identifies a calendar window over which quota is budgeted
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
)

// Valid reports whether the period type is one of the known values
func (p PeriodType) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	}
	return false
}

// Service describes an integrated third-party API.
// Created at bootstrap from configuration; immutable during normal operation.
type Service struct {
	Name         string    `json:"name"` // unique key, e.g. "openai"
	DisplayName  string    `json:"display_name"`
	Enabled      bool      `json:"enabled"`
	DailyLimit   int       `json:"daily_limit"`   // 0 = unlimited
	WeeklyLimit  int       `json:"weekly_limit"`  // 0 = unlimited
	MonthlyLimit int       `json:"monthly_limit"` // 0 = unlimited
	RatePerSec   float64   `json:"rate_per_sec"`  // 0 = no smoothing limiter
	CreatedAt    time.Time `json:"created_at"`
}

// LimitFor returns the configured limit for a period type (0 = unlimited)
func (s *Service) LimitFor(period PeriodType) int {
	switch period {
	case PeriodDaily:
		return s.DailyLimit
	case PeriodWeekly:
		return s.WeeklyLimit
	case PeriodMonthly:
		return s.MonthlyLimit
	}
	return 0
}

// QuotaCounter is one consumed-call counter row per (service, period type, period key).
// Count only ever increases within a period; a new period key lazily
// materializes a fresh zero-count row.
type QuotaCounter struct {
	ServiceName string     `json:"service_name"`
	PeriodType  PeriodType `json:"period_type"`
	PeriodKey   string     `json:"period_key"` // e.g. "2026-08-28", "2026-W35", "2026-08"
	Count       int        `json:"count"`
	Limit       int        `json:"limit"` // snapshot of the service limit when the row was created
	PeriodStart time.Time  `json:"period_start"`
	PeriodEnd   time.Time  `json:"period_end"`
}

// QuotaStatus is the read-side view of a counter for the monitoring surface
type QuotaStatus struct {
	ServiceName string     `json:"service_name"`
	PeriodType  PeriodType `json:"period_type"`
	PeriodKey   string     `json:"period_key"`
	Used        int        `json:"used"`
	Limit       int        `json:"limit"`     // 0 = unlimited
	Remaining   int        `json:"remaining"` // -1 when unlimited
	Utilization float64    `json:"utilization"`
}
