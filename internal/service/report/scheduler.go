package report

import (
	"context"
	"sync"
	"time"

	"github.com/careerbase/apigov/internal/logging"
	"github.com/careerbase/apigov/internal/period"
	"github.com/careerbase/apigov/pkg/models"
)

// Scheduler closes out weekly reports shortly after each week ends.
// It polls rather than sleeping until the boundary so restarts and
// clock adjustments need no special handling; generation is idempotent,
// so an extra pass only rewrites the same rows.
type Scheduler struct {
	generator     *Generator
	checkInterval time.Duration

	nowFn func() time.Time

	mu       sync.Mutex
	lastWeek string // period key of the last week closed out
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a report scheduler
func NewScheduler(generator *Generator, checkInterval time.Duration) *Scheduler {
	if checkInterval <= 0 {
		checkInterval = time.Hour
	}
	return &Scheduler{
		generator:     generator,
		checkInterval: checkInterval,
		nowFn:         time.Now,
	}
}

// Start launches the scheduling loop. An immediate pass runs first so a
// server restarted after a week boundary does not wait a full interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return // already running
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	// The loop closes its own copy of done; Stop may nil the field
	// before the goroutine gets scheduled.
	go s.run(loopCtx, done)
	logging.Info(ctx, "report scheduler started", "check_interval", s.checkInterval.String())
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.check(ctx)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

// check generates reports for the previous week if that week has not been
// closed out by this process yet
func (s *Scheduler) check(ctx context.Context) {
	prevStart, _ := period.Previous(models.PeriodWeekly, s.nowFn())
	key := period.Key(models.PeriodWeekly, prevStart)

	s.mu.Lock()
	alreadyDone := s.lastWeek == key
	s.mu.Unlock()
	if alreadyDone {
		return
	}

	if _, err := s.generator.Generate(ctx, models.PeriodWeekly, prevStart, "scheduled"); err != nil {
		logging.Error(ctx, "scheduled report generation failed", "week", key, "error", err)
		return
	}

	s.mu.Lock()
	s.lastWeek = key
	s.mu.Unlock()
}

// Stop halts the scheduling loop and waits for an in-flight pass
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
