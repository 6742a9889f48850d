// Package scheduler runs the periodic maintenance jobs on gocron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Job is one named periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler wraps a gocron scheduler whose jobs never overlap themselves.
type Scheduler struct {
	s      gocron.Scheduler
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{s: s, logger: logger, ctx: ctx, cancel: cancel}, nil
}

// Add registers job. A run still in progress when the next tick fires causes
// that tick to be skipped.
func (s *Scheduler) Add(job Job) error {
	_, err := s.s.NewJob(
		gocron.DurationJob(job.Interval),
		gocron.NewTask(s.wrap(job)),
		gocron.WithName(job.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name, err)
	}
	return nil
}

func (s *Scheduler) wrap(job Job) func() {
	return func() {
		start := time.Now()
		if err := job.Run(s.ctx); err != nil {
			s.logger.ErrorContext(s.ctx, "scheduled job failed",
				"job", job.Name,
				"error", err,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return
		}
		s.logger.DebugContext(s.ctx, "scheduled job finished",
			"job", job.Name,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Scheduler) Start() {
	s.s.Start()
}

// Shutdown cancels running jobs' context and waits for them to return.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.s.Shutdown()
}
