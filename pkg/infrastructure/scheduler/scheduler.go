package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vsinha/vmi/pkg/application/dto"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

// CycleFunc runs one ingestion cycle. attempt is 0 for a scheduled run and
// increases for each retry.
type CycleFunc func(ctx context.Context, trigger string, attempt int)

// Config holds the daily trigger time
type Config struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// Scheduler fires a cycle once a day at a fixed wall-clock time and arranges
// one-off retries requested by the cycle itself
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	spec     string
	run      CycleFunc
	logger   *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	retry   *time.Timer
	attempt int
}

// Verify interface compliance
var _ repositories.RetryScheduler = (*Scheduler)(nil)

// New creates a scheduler for the daily time in config
func New(config Config, run CycleFunc, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := config.Location
	if loc == nil {
		loc = time.Local
	}

	spec := fmt.Sprintf("%d %d * * *", config.Minute, config.Hour)
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid daily schedule %02d:%02d: %w", config.Hour, config.Minute, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		schedule: schedule,
		spec:     spec,
		run:      run,
		logger:   logger,
		ctx:      context.Background(),
	}, nil
}

// Start begins firing daily cycles. Cycles and retries run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(s.spec, s.fire); err != nil {
		return fmt.Errorf("failed to register daily cycle: %w", err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("schedule", s.spec), zap.Time("next", s.NextRun(time.Now())))
	return nil
}

// Stop halts the daily trigger and cancels any pending retry. The returned
// context is done once a running cycle has finished.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	s.mu.Unlock()
	return s.cron.Stop()
}

// NextRun returns the first daily trigger after from
func (s *Scheduler) NextRun(from time.Time) time.Time {
	return s.schedule.Next(from.In(s.location()))
}

func (s *Scheduler) location() *time.Location {
	return s.cron.Location()
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	ctx := s.ctx
	s.attempt = 0
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	s.mu.Unlock()

	s.run(ctx, dto.TriggerScheduled, 0)
}

// ScheduleRetry runs one more cycle after the given delay. A pending retry is
// replaced rather than stacked.
func (s *Scheduler) ScheduleRetry(after time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retry != nil {
		s.retry.Stop()
	}
	s.attempt++
	attempt := s.attempt
	ctx := s.ctx

	s.logger.Info("retry scheduled", zap.Duration("after", after), zap.Int("attempt", attempt))
	s.retry = time.AfterFunc(after, func() {
		s.mu.Lock()
		s.retry = nil
		s.mu.Unlock()
		s.run(ctx, dto.TriggerRetry, attempt)
	})
}

// RetryPending reports whether a retry is waiting to fire
func (s *Scheduler) RetryPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retry != nil
}
