package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/careerbase/apigov/pkg/models"
)

// ServiceStore handles the service descriptor registry
type ServiceStore struct {
	db *DB
}

// NewServiceStore creates a new service store
func NewServiceStore(db *DB) *ServiceStore {
	return &ServiceStore{db: db}
}

// Upsert creates or updates a service descriptor. Called at bootstrap to
// sync configuration into the registry; descriptors are immutable afterward.
func (s *ServiceStore) Upsert(ctx context.Context, svc *models.Service) error {
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO services (name, display_name, enabled, daily_limit, weekly_limit, monthly_limit, rate_per_sec, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			display_name = excluded.display_name,
			enabled = excluded.enabled,
			daily_limit = excluded.daily_limit,
			weekly_limit = excluded.weekly_limit,
			monthly_limit = excluded.monthly_limit,
			rate_per_sec = excluded.rate_per_sec
	`
	_, err := s.db.ExecContext(ctx, query,
		svc.Name,
		svc.DisplayName,
		svc.Enabled,
		svc.DailyLimit,
		svc.WeeklyLimit,
		svc.MonthlyLimit,
		svc.RatePerSec,
		svc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert service: %w", err)
	}
	return nil
}

// Get retrieves a service descriptor by name
func (s *ServiceStore) Get(ctx context.Context, name string) (*models.Service, error) {
	query := `
		SELECT name, display_name, enabled, daily_limit, weekly_limit, monthly_limit, rate_per_sec, created_at
		FROM services WHERE name = ?
	`

	var svc models.Service
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&svc.Name,
		&svc.DisplayName,
		&svc.Enabled,
		&svc.DailyLimit,
		&svc.WeeklyLimit,
		&svc.MonthlyLimit,
		&svc.RatePerSec,
		&svc.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &svc, nil
}

// List returns all service descriptors ordered by name
func (s *ServiceStore) List(ctx context.Context) ([]models.Service, error) {
	query := `
		SELECT name, display_name, enabled, daily_limit, weekly_limit, monthly_limit, rate_per_sec, created_at
		FROM services ORDER BY name ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var services []models.Service
	for rows.Next() {
		var svc models.Service
		if err := rows.Scan(
			&svc.Name,
			&svc.DisplayName,
			&svc.Enabled,
			&svc.DailyLimit,
			&svc.WeeklyLimit,
			&svc.MonthlyLimit,
			&svc.RatePerSec,
			&svc.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating services: %w", err)
	}
	return services, nil
}

// ListEnabled returns all enabled service descriptors ordered by name
func (s *ServiceStore) ListEnabled(ctx context.Context) ([]models.Service, error) {
	query := `
		SELECT name, display_name, enabled, daily_limit, weekly_limit, monthly_limit, rate_per_sec, created_at
		FROM services WHERE enabled = 1 ORDER BY name ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled services: %w", err)
	}
	defer rows.Close()

	var services []models.Service
	for rows.Next() {
		var svc models.Service
		if err := rows.Scan(
			&svc.Name,
			&svc.DisplayName,
			&svc.Enabled,
			&svc.DailyLimit,
			&svc.WeeklyLimit,
			&svc.MonthlyLimit,
			&svc.RatePerSec,
			&svc.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating services: %w", err)
	}
	return services, nil
}
