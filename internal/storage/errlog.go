package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/careerbase/apigov/pkg/models"
	"github.com/google/uuid"
)

// ErrorStore handles the append-only failure log
type ErrorStore struct {
	db *DB
}

// NewErrorStore creates a new error store
func NewErrorStore(db *DB) *ErrorStore {
	return &ErrorStore{db: db}
}

// Insert appends a classified failure
func (s *ErrorStore) Insert(ctx context.Context, record *models.ErrorRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO error_records (id, call_id, service_name, endpoint, caller_id, kind, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var callerID sql.NullString
	if record.CallerID != "" {
		callerID = sql.NullString{String: record.CallerID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.CallID,
		record.ServiceName,
		record.Endpoint,
		callerID,
		string(record.Kind),
		record.Message,
		record.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert error record: %w", err)
	}
	return nil
}

// Recent returns the newest failures, optionally filtered by service
func (s *ErrorStore) Recent(ctx context.Context, serviceName string, limit int) ([]models.ErrorRecord, error) {
	query := `
		SELECT id, call_id, service_name, endpoint, caller_id, kind, message, created_at
		FROM error_records
	`
	var args []interface{}

	if serviceName != "" {
		query += " WHERE service_name = ?"
		args = append(args, serviceName)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent errors: %w", err)
	}
	defer rows.Close()

	var records []models.ErrorRecord
	for rows.Next() {
		var r models.ErrorRecord
		var callerID sql.NullString
		var kind string
		if err := rows.Scan(&r.ID, &r.CallID, &r.ServiceName, &r.Endpoint, &callerID, &kind, &r.Message, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan error record: %w", err)
		}
		r.CallerID = callerID.String
		r.Kind = models.ErrorKind(kind)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating error records: %w", err)
	}
	return records, nil
}

// CountSince returns the number of failures for a service after the cutoff
func (s *ErrorStore) CountSince(ctx context.Context, serviceName string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM error_records WHERE service_name = ? AND created_at > ?`

	var count int
	err := s.db.QueryRowContext(ctx, query, serviceName, since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count errors: %w", err)
	}
	return count, nil
}
