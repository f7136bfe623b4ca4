package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Serialize writes through a single connection; SQLite doesn't handle
	// concurrent writers well, and the quota increment depends on it
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &DB{db}, nil
}

// Migrate runs database migrations
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationServices,
		migrationQuotaCounters,
		migrationCallRecords,
		migrationErrorRecords,
		migrationAlerts,
		migrationPeriodReports,
		migrationIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

const migrationServices = `
CREATE TABLE IF NOT EXISTS services (
	name TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	daily_limit INTEGER NOT NULL DEFAULT 0,
	weekly_limit INTEGER NOT NULL DEFAULT 0,
	monthly_limit INTEGER NOT NULL DEFAULT 0,
	rate_per_sec REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const migrationQuotaCounters = `
CREATE TABLE IF NOT EXISTS quota_counters (
	service_name TEXT NOT NULL,
	period_type TEXT NOT NULL,
	period_key TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	limit_count INTEGER NOT NULL DEFAULT 0,
	period_start DATETIME NOT NULL,
	period_end DATETIME NOT NULL,

	PRIMARY KEY (service_name, period_type, period_key),
	FOREIGN KEY (service_name) REFERENCES services(name)
);
`

const migrationCallRecords = `
CREATE TABLE IF NOT EXISTS call_records (
	id TEXT PRIMARY KEY,
	service_name TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	caller_id TEXT,
	started_at DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL,
	outcome TEXT NOT NULL,
	http_status INTEGER,

	FOREIGN KEY (service_name) REFERENCES services(name)
);
`

const migrationErrorRecords = `
CREATE TABLE IF NOT EXISTS error_records (
	id TEXT PRIMARY KEY,
	call_id TEXT NOT NULL,
	service_name TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	caller_id TEXT,
	kind TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,

	FOREIGN KEY (call_id) REFERENCES call_records(id)
);
`

const migrationAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	service_name TEXT NOT NULL,
	alert_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	opened_at DATETIME NOT NULL,
	last_triggered_at DATETIME NOT NULL,
	is_resolved INTEGER NOT NULL DEFAULT 0,
	resolved_at DATETIME,
	resolved_by TEXT
);

-- The core alert invariant: at most one open alert per (service, type).
-- Concurrent opens race on this index instead of on application checks.
CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_one_open
ON alerts(service_name, alert_type)
WHERE is_resolved = 0;
`

const migrationPeriodReports = `
CREATE TABLE IF NOT EXISTS period_reports (
	id TEXT PRIMARY KEY,
	service_name TEXT NOT NULL DEFAULT '',
	period_type TEXT NOT NULL,
	period_start DATETIME NOT NULL,
	period_end DATETIME NOT NULL,
	total_calls INTEGER NOT NULL DEFAULT 0,
	success_count INTEGER NOT NULL DEFAULT 0,
	failure_count INTEGER NOT NULL DEFAULT 0,
	fallback_count INTEGER NOT NULL DEFAULT 0,
	error_rate REAL NOT NULL DEFAULT 0,
	p50_ms INTEGER NOT NULL DEFAULT 0,
	p95_ms INTEGER NOT NULL DEFAULT 0,
	p99_ms INTEGER NOT NULL DEFAULT 0,
	quota_limit INTEGER NOT NULL DEFAULT 0,
	quota_used INTEGER NOT NULL DEFAULT 0,
	quota_utilization REAL NOT NULL DEFAULT 0,
	generated_at DATETIME NOT NULL,

	UNIQUE (service_name, period_type, period_start)
);
`

const migrationIndexes = `
CREATE INDEX IF NOT EXISTS idx_call_records_service_started ON call_records(service_name, started_at);
CREATE INDEX IF NOT EXISTS idx_call_records_started ON call_records(started_at);
CREATE INDEX IF NOT EXISTS idx_error_records_service_created ON error_records(service_name, created_at);
CREATE INDEX IF NOT EXISTS idx_error_records_created ON error_records(created_at);
CREATE INDEX IF NOT EXISTS idx_alerts_service ON alerts(service_name);
CREATE INDEX IF NOT EXISTS idx_period_reports_lookup ON period_reports(service_name, period_type, period_start);
`
