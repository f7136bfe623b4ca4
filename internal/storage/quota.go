package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/careerbase/apigov/pkg/models"
)

// QuotaStore handles quota counter persistence
type QuotaStore struct {
	db *DB
}

// NewQuotaStore creates a new quota store
func NewQuotaStore(db *DB) *QuotaStore {
	return &QuotaStore{db: db}
}

// Increment atomically bumps the counter for (service, period type, period key),
// lazily creating a zeroed row for a fresh period, and returns the new count.
// A single upsert statement carries the whole increment so concurrent callers
// can never lose an update.
func (s *QuotaStore) Increment(ctx context.Context, serviceName string, periodType models.PeriodType, periodKey string, limit int, periodStart, periodEnd time.Time) (int, error) {
	query := `
		INSERT INTO quota_counters (service_name, period_type, period_key, count, limit_count, period_start, period_end)
		VALUES (?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(service_name, period_type, period_key) DO UPDATE SET
			count = count + 1
		RETURNING count
	`

	var count int
	err := s.db.QueryRowContext(ctx, query,
		serviceName, string(periodType), periodKey, limit, periodStart.UTC(), periodEnd.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment quota counter: %w", err)
	}
	return count, nil
}

// Get retrieves the counter for (service, period type, period key).
// Returns ErrNotFound when no call has been counted this period yet.
func (s *QuotaStore) Get(ctx context.Context, serviceName string, periodType models.PeriodType, periodKey string) (*models.QuotaCounter, error) {
	query := `
		SELECT service_name, period_type, period_key, count, limit_count, period_start, period_end
		FROM quota_counters
		WHERE service_name = ? AND period_type = ? AND period_key = ?
	`

	var c models.QuotaCounter
	err := s.db.QueryRowContext(ctx, query, serviceName, string(periodType), periodKey).Scan(
		&c.ServiceName,
		&c.PeriodType,
		&c.PeriodKey,
		&c.Count,
		&c.Limit,
		&c.PeriodStart,
		&c.PeriodEnd,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quota counter: %w", err)
	}
	return &c, nil
}

// GetForWindow returns the counter whose period contains the given instant,
// used by reports to read historical utilization. Returns ErrNotFound when
// the service saw no calls in that period.
func (s *QuotaStore) GetForWindow(ctx context.Context, serviceName string, periodType models.PeriodType, at time.Time) (*models.QuotaCounter, error) {
	query := `
		SELECT service_name, period_type, period_key, count, limit_count, period_start, period_end
		FROM quota_counters
		WHERE service_name = ? AND period_type = ? AND period_start <= ? AND period_end > ?
	`

	at = at.UTC()
	var c models.QuotaCounter
	err := s.db.QueryRowContext(ctx, query, serviceName, string(periodType), at, at).Scan(
		&c.ServiceName,
		&c.PeriodType,
		&c.PeriodKey,
		&c.Count,
		&c.Limit,
		&c.PeriodStart,
		&c.PeriodEnd,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quota counter for window: %w", err)
	}
	return &c, nil
}
