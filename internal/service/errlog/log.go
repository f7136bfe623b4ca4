package errlog

import (
	"context"
	"time"

	"github.com/careerbase/apigov/internal/storage"
	"github.com/careerbase/apigov/pkg/models"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Log is the read surface over the append-only failure log. Writes go
// through the governor; nothing else appends.
type Log struct {
	errs *storage.ErrorStore
}

// New creates an error log view
func New(errs *storage.ErrorStore) *Log {
	return &Log{errs: errs}
}

// Recent returns the newest failures, optionally filtered by service.
// limit <= 0 uses the default; oversized limits are clamped.
func (l *Log) Recent(ctx context.Context, serviceName string, limit int) ([]models.ErrorRecord, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return l.errs.Recent(ctx, serviceName, limit)
}

// CountSince returns the number of failures for a service after the cutoff
func (l *Log) CountSince(ctx context.Context, serviceName string, since time.Time) (int, error) {
	return l.errs.CountSince(ctx, serviceName, since)
}
