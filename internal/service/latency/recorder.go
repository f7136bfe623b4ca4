package latency

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/careerbase/apigov/internal/storage"
	"github.com/careerbase/apigov/pkg/models"
)

// Recorder computes order-statistic latency views over the call log.
// Durations come back from storage already sorted, so each percentile
// is a single index lookup.
type Recorder struct {
	calls *storage.CallStore
}

// NewRecorder creates a latency recorder
func NewRecorder(calls *storage.CallStore) *Recorder {
	return &Recorder{calls: calls}
}

// Stats computes p50/p95/p99, min, and max for calls matching the filter.
// Empty service or endpoint widens the filter; zero times mean unbounded.
// A window with no calls returns zeroed stats with Count 0, not an error.
func (r *Recorder) Stats(ctx context.Context, serviceName, endpoint string, start, end time.Time) (*models.LatencyStats, error) {
	durations, err := r.calls.Durations(ctx, serviceName, endpoint, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load durations: %w", err)
	}

	stats := &models.LatencyStats{
		ServiceName: serviceName,
		Endpoint:    endpoint,
		Count:       len(durations),
	}
	if len(durations) == 0 {
		return stats, nil
	}

	stats.MinMs = durations[0]
	stats.MaxMs = durations[len(durations)-1]
	stats.P50Ms = Percentile(durations, 0.50)
	stats.P95Ms = Percentile(durations, 0.95)
	stats.P99Ms = Percentile(durations, 0.99)
	return stats, nil
}

// ByEndpoint computes stats separately for each endpoint a service hit
// in the window
func (r *Recorder) ByEndpoint(ctx context.Context, serviceName string, start, end time.Time) (map[string]*models.LatencyStats, error) {
	endpoints, err := r.calls.Endpoints(ctx, serviceName, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}

	result := make(map[string]*models.LatencyStats, len(endpoints))
	for _, ep := range endpoints {
		stats, err := r.Stats(ctx, serviceName, ep, start, end)
		if err != nil {
			return nil, err
		}
		result[ep] = stats
	}
	return result, nil
}

// Percentile returns the nearest-rank percentile of an ascending-sorted
// slice: the value at rank ceil(p*n). p must be in (0, 1].
func Percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
