package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/careerbase/apigov/pkg/models"
	"github.com/google/uuid"
)

// CallStore handles the append-only governed call log
type CallStore struct {
	db *DB
}

// NewCallStore creates a new call store
func NewCallStore(db *DB) *CallStore {
	return &CallStore{db: db}
}

// Insert appends a completed call attempt
func (s *CallStore) Insert(ctx context.Context, record *models.CallRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	query := `
		INSERT INTO call_records (id, service_name, endpoint, caller_id, started_at, duration_ms, outcome, http_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var callerID sql.NullString
	if record.CallerID != "" {
		callerID = sql.NullString{String: record.CallerID, Valid: true}
	}
	var httpStatus sql.NullInt64
	if record.HTTPStatus != 0 {
		httpStatus = sql.NullInt64{Int64: int64(record.HTTPStatus), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.ServiceName,
		record.Endpoint,
		callerID,
		record.StartedAt.UTC(),
		record.DurationMs,
		string(record.Outcome),
		httpStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to insert call record: %w", err)
	}
	return nil
}

// Usage aggregates call counts for the given query, with a per-endpoint breakdown
func (s *CallStore) Usage(ctx context.Context, query models.UsageQuery) (*models.UsageStats, error) {
	sqlQuery := `
		SELECT
			COUNT(*) as total_calls,
			COALESCE(SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'failure' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'fallback' THEN 1 ELSE 0 END), 0)
		FROM call_records
		WHERE 1=1
	`

	var args []interface{}

	if query.ServiceName != "" {
		sqlQuery += " AND service_name = ?"
		args = append(args, query.ServiceName)
	}
	if !query.StartTime.IsZero() {
		sqlQuery += " AND started_at >= ?"
		args = append(args, query.StartTime.UTC())
	}
	if !query.EndTime.IsZero() {
		sqlQuery += " AND started_at < ?"
		args = append(args, query.EndTime.UTC())
	}

	stats := &models.UsageStats{
		ServiceName: query.ServiceName,
		ByEndpoint:  make(map[string]models.EndpointUsage),
		PeriodStart: query.StartTime,
		PeriodEnd:   query.EndTime,
	}

	err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(
		&stats.TotalCalls,
		&stats.SuccessCount,
		&stats.FailureCount,
		&stats.FallbackCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage stats: %w", err)
	}

	if stats.TotalCalls > 0 {
		stats.ErrorRate = float64(stats.FailureCount) / float64(stats.TotalCalls)
	}

	// Per-endpoint breakdown
	endpointQuery := `
		SELECT
			endpoint,
			COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = 'failure' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_ms), 0)
		FROM call_records
		WHERE 1=1
	`
	endpointArgs := make([]interface{}, 0, len(args))

	if query.ServiceName != "" {
		endpointQuery += " AND service_name = ?"
		endpointArgs = append(endpointArgs, query.ServiceName)
	}
	if !query.StartTime.IsZero() {
		endpointQuery += " AND started_at >= ?"
		endpointArgs = append(endpointArgs, query.StartTime.UTC())
	}
	if !query.EndTime.IsZero() {
		endpointQuery += " AND started_at < ?"
		endpointArgs = append(endpointArgs, query.EndTime.UTC())
	}

	endpointQuery += " GROUP BY endpoint"

	rows, err := s.db.QueryContext(ctx, endpointQuery, endpointArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to get endpoint breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var endpoint string
		var usage models.EndpointUsage
		if err := rows.Scan(&endpoint, &usage.Calls, &usage.Failures, &usage.AvgMs); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint row: %w", err)
		}
		stats.ByEndpoint[endpoint] = usage
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating endpoint rows: %w", err)
	}

	return stats, nil
}

// Durations returns the sorted durations of calls matching the filter.
// The sort happens in SQL so percentile computation is a pure index walk.
func (s *CallStore) Durations(ctx context.Context, serviceName, endpoint string, start, end time.Time) ([]int64, error) {
	query := `SELECT duration_ms FROM call_records WHERE 1=1`
	var args []interface{}

	if serviceName != "" {
		query += " AND service_name = ?"
		args = append(args, serviceName)
	}
	if endpoint != "" {
		query += " AND endpoint = ?"
		args = append(args, endpoint)
	}
	if !start.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, start.UTC())
	}
	if !end.IsZero() {
		query += " AND started_at < ?"
		args = append(args, end.UTC())
	}

	query += " ORDER BY duration_ms ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query durations: %w", err)
	}
	defer rows.Close()

	var durations []int64
	for rows.Next() {
		var d int64
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan duration: %w", err)
		}
		durations = append(durations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating durations: %w", err)
	}
	return durations, nil
}

// Endpoints returns the distinct endpoints recorded for a service in a window
func (s *CallStore) Endpoints(ctx context.Context, serviceName string, start, end time.Time) ([]string, error) {
	query := `SELECT DISTINCT endpoint FROM call_records WHERE service_name = ?`
	args := []interface{}{serviceName}

	if !start.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, start.UTC())
	}
	if !end.IsZero() {
		query += " AND started_at < ?"
		args = append(args, end.UTC())
	}
	query += " ORDER BY endpoint ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint: %w", err)
		}
		endpoints = append(endpoints, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating endpoints: %w", err)
	}
	return endpoints, nil
}

// RecentOutcomes returns the outcomes of the service's last N calls,
// newest first. The alert engine evaluates its trailing error-rate
// window over this.
func (s *CallStore) RecentOutcomes(ctx context.Context, serviceName string, limit int) ([]models.CallOutcome, error) {
	query := `
		SELECT outcome FROM call_records
		WHERE service_name = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, serviceName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.CallOutcome
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, models.CallOutcome(o))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}
	return outcomes, nil
}
