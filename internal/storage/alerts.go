package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/careerbase/apigov/pkg/models"
	"github.com/google/uuid"
)

// AlertStore handles alert lifecycle persistence. The open/resolve
// transitions are single conditional statements so concurrent callers
// can never create duplicate open alerts or double-resolve.
type AlertStore struct {
	db *DB
}

// NewAlertStore creates a new alert store
func NewAlertStore(db *DB) *AlertStore {
	return &AlertStore{db: db}
}

// Open transitions (service, type) from none to open, or touches the
// existing open alert. Returns true when a new alert row was created.
// The partial unique index idx_alerts_one_open makes the insert race-free.
func (s *AlertStore) Open(ctx context.Context, alert *models.Alert) (bool, error) {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if alert.OpenedAt.IsZero() {
		alert.OpenedAt = now
	}
	alert.LastTriggeredAt = now

	insert := `
		INSERT OR IGNORE INTO alerts (id, service_name, alert_type, severity, message, opened_at, last_triggered_at, is_resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`
	result, err := s.db.ExecContext(ctx, insert,
		alert.ID,
		alert.ServiceName,
		string(alert.Type),
		string(alert.Severity),
		alert.Message,
		alert.OpenedAt,
		alert.LastTriggeredAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to open alert: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read open alert result: %w", err)
	}
	if rows > 0 {
		return true, nil
	}

	// An open alert already exists; bump its trigger time so the
	// cooldown-based auto-resolve keeps waiting.
	touch := `
		UPDATE alerts SET last_triggered_at = ?, message = ?
		WHERE service_name = ? AND alert_type = ? AND is_resolved = 0
	`
	if _, err := s.db.ExecContext(ctx, touch, alert.LastTriggeredAt, alert.Message, alert.ServiceName, string(alert.Type)); err != nil {
		return false, fmt.Errorf("failed to touch open alert: %w", err)
	}
	return false, nil
}

// Resolve closes an open alert by id. resolvedBy is "auto" or an operator label.
// Returns ErrNotFound when the alert does not exist or is already resolved.
func (s *AlertStore) Resolve(ctx context.Context, id, resolvedBy string) error {
	query := `
		UPDATE alerts SET is_resolved = 1, resolved_at = ?, resolved_by = ?
		WHERE id = ? AND is_resolved = 0
	`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), resolvedBy, id)
	if err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read resolve result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Get retrieves an alert by id
func (s *AlertStore) Get(ctx context.Context, id string) (*models.Alert, error) {
	query := `
		SELECT id, service_name, alert_type, severity, message, opened_at, last_triggered_at, is_resolved, resolved_at, resolved_by
		FROM alerts WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)
	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

// GetOpen retrieves the open alert for (service, type), if any
func (s *AlertStore) GetOpen(ctx context.Context, serviceName string, alertType models.AlertType) (*models.Alert, error) {
	query := `
		SELECT id, service_name, alert_type, severity, message, opened_at, last_triggered_at, is_resolved, resolved_at, resolved_by
		FROM alerts WHERE service_name = ? AND alert_type = ? AND is_resolved = 0
	`
	row := s.db.QueryRowContext(ctx, query, serviceName, string(alertType))
	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open alert: %w", err)
	}
	return alert, nil
}

// Active returns all open alerts, optionally filtered by service, newest-first
func (s *AlertStore) Active(ctx context.Context, serviceName string) ([]models.Alert, error) {
	query := `
		SELECT id, service_name, alert_type, severity, message, opened_at, last_triggered_at, is_resolved, resolved_at, resolved_by
		FROM alerts WHERE is_resolved = 0
	`
	var args []interface{}
	if serviceName != "" {
		query += " AND service_name = ?"
		args = append(args, serviceName)
	}
	query += " ORDER BY opened_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return alerts, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row scanner) (*models.Alert, error) {
	var a models.Alert
	var alertType, severity string
	var resolvedAt sql.NullTime
	var resolvedBy sql.NullString

	err := row.Scan(
		&a.ID,
		&a.ServiceName,
		&alertType,
		&severity,
		&a.Message,
		&a.OpenedAt,
		&a.LastTriggeredAt,
		&a.IsResolved,
		&resolvedAt,
		&resolvedBy,
	)
	if err != nil {
		return nil, err
	}

	a.Type = models.AlertType(alertType)
	a.Severity = models.AlertSeverity(severity)
	if resolvedAt.Valid {
		a.ResolvedAt = &resolvedAt.Time
	}
	a.ResolvedBy = resolvedBy.String
	return &a, nil
}
