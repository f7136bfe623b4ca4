package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/careerbase/apigov/internal/metrics"
	"github.com/careerbase/apigov/internal/period"
	"github.com/careerbase/apigov/internal/storage"
	"github.com/careerbase/apigov/pkg/models"
)

var allPeriods = []models.PeriodType{models.PeriodDaily, models.PeriodWeekly, models.PeriodMonthly}

// Ledger tracks per-service call consumption against daily, weekly, and
// monthly budgets. Counters roll over implicitly: a new period derives a
// new key and the first commit materializes a fresh row.
type Ledger struct {
	services *storage.ServiceStore
	counters *storage.QuotaStore

	nowFn func() time.Time
}

// NewLedger creates a quota ledger
func NewLedger(services *storage.ServiceStore, counters *storage.QuotaStore) *Ledger {
	return &Ledger{
		services: services,
		counters: counters,
		nowFn:    time.Now,
	}
}

// Exceeded returns the status of the first exhausted period for the
// service, or nil when every configured budget still has room.
// Periods with limit 0 are unlimited and never exhaust.
func (l *Ledger) Exceeded(ctx context.Context, serviceName string) (*models.QuotaStatus, error) {
	svc, err := l.services.Get(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to load service: %w", err)
	}

	now := l.nowFn()
	for _, pt := range allPeriods {
		limit := svc.LimitFor(pt)
		if limit <= 0 {
			continue
		}
		counter, err := l.counters.Get(ctx, serviceName, pt, period.Key(pt, now))
		if errors.Is(err, storage.ErrNotFound) {
			continue // nothing consumed this period yet
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load counter: %w", err)
		}
		if counter.Count >= limit {
			status := statusFrom(serviceName, pt, counter.PeriodKey, counter.Count, limit)
			return &status, nil
		}
	}
	return nil, nil
}

// Commit counts one successful call against every period window.
// Unlimited periods are counted too so usage history stays complete.
func (l *Ledger) Commit(ctx context.Context, serviceName string) error {
	svc, err := l.services.Get(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to load service: %w", err)
	}

	now := l.nowFn()
	for _, pt := range allPeriods {
		key := period.Key(pt, now)
		start, end := period.Bounds(pt, now)
		limit := svc.LimitFor(pt)

		count, err := l.counters.Increment(ctx, serviceName, pt, key, limit, start, end)
		if err != nil {
			return fmt.Errorf("failed to increment %s counter: %w", pt, err)
		}
		if limit > 0 {
			remaining := limit - count
			if remaining < 0 {
				remaining = 0
			}
			metrics.UpdateQuotaRemaining(serviceName, string(pt), remaining)
		}
	}
	return nil
}

// Status reports current-period consumption for all three windows
func (l *Ledger) Status(ctx context.Context, serviceName string) ([]models.QuotaStatus, error) {
	svc, err := l.services.Get(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to load service: %w", err)
	}

	now := l.nowFn()
	statuses := make([]models.QuotaStatus, 0, len(allPeriods))
	for _, pt := range allPeriods {
		key := period.Key(pt, now)
		used := 0
		counter, err := l.counters.Get(ctx, serviceName, pt, key)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to load counter: %w", err)
		}
		if counter != nil {
			used = counter.Count
		}
		statuses = append(statuses, statusFrom(serviceName, pt, key, used, svc.LimitFor(pt)))
	}
	return statuses, nil
}

// StatusAll reports current-period consumption for every enabled service
func (l *Ledger) StatusAll(ctx context.Context) (map[string][]models.QuotaStatus, error) {
	services, err := l.services.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	result := make(map[string][]models.QuotaStatus, len(services))
	for _, svc := range services {
		statuses, err := l.Status(ctx, svc.Name)
		if err != nil {
			return nil, err
		}
		result[svc.Name] = statuses
	}
	return result, nil
}

func statusFrom(serviceName string, pt models.PeriodType, key string, used, limit int) models.QuotaStatus {
	status := models.QuotaStatus{
		ServiceName: serviceName,
		PeriodType:  pt,
		PeriodKey:   key,
		Used:        used,
		Limit:       limit,
		Remaining:   -1,
	}
	if limit > 0 {
		remaining := limit - used
		if remaining < 0 {
			remaining = 0
		}
		status.Remaining = remaining
		status.Utilization = float64(used) / float64(limit)
	}
	return status
}
