// Package scheduler triggers the daily maintenance cycle: retention purge,
// review sweep, then the campaign run.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hunthawk-systems/hunthawk/internal/config"
	"github.com/hunthawk-systems/hunthawk/internal/logging"
)

// Jobs is the slice of the service the scheduler drives.
type Jobs interface {
	Purge(ctx context.Context) error
	ReviewSweep(ctx context.Context) (int, error)
	RunCampaignAsync(ctx context.Context, date time.Time) (string, error)
}

type Scheduler struct {
	jobs Jobs
	cfg  config.SchedulerConfig
	log  *logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool

	now func() time.Time
}

func New(jobs Jobs, cfg config.SchedulerConfig, log *logging.Logger) *Scheduler {
	return &Scheduler{
		jobs: jobs,
		cfg:  cfg,
		log:  log,
		now:  time.Now,
	}
}

// parseRunAt parses the configured "HH:MM" trigger time.
func parseRunAt(runAt string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(runAt, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid run_at %q: %w", runAt, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid run_at %q", runAt)
	}
	return hour, minute, nil
}

// nextRun returns the next occurrence of the trigger time after now.
func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	hour, minute, err := parseRunAt(s.cfg.RunAt)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	go s.loop(ctx, hour, minute)
	s.log.InfoContext(ctx, "scheduler started", "run_at", s.cfg.RunAt)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, hour, minute int) {
	defer close(s.done)
	for {
		wait := nextRun(s.now(), hour, minute).Sub(s.now())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle runs purge and review sweep inline, then hands the campaign to the
// task runner. Failures are logged and retried on the next trigger; all three
// stages are idempotent re-runs.
func (s *Scheduler) runCycle(ctx context.Context) {
	if err := s.jobs.Purge(ctx); err != nil {
		s.log.ErrorContext(ctx, "retention purge failed", "error", err)
	}
	if n, err := s.jobs.ReviewSweep(ctx); err != nil {
		s.log.ErrorContext(ctx, "review sweep failed", "error", err)
	} else if n > 0 {
		s.log.InfoContext(ctx, "review sweep moved analytics to review", "count", n)
	}
	taskID, err := s.jobs.RunCampaignAsync(ctx, s.now())
	if err != nil {
		s.log.ErrorContext(ctx, "campaign launch failed", "error", err)
		return
	}
	s.log.InfoContext(ctx, "daily campaign launched", "task_id", taskID)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.cancel()
	<-s.done
	s.started = false
}
