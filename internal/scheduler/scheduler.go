// Package scheduler triggers the daily weather alert batch.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/neexbeast/weather-advisory/internal/advisory"
)

// BatchRunner is the batch operation the scheduler fires.
type BatchRunner interface {
	RunAll(ctx context.Context) (advisory.Summary, error)
}

// Scheduler runs the advisory batch once a day at a fixed wall-clock time.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    BatchRunner
	at        string
	log       *slog.Logger

	// mu keeps a slow run from overlapping the next trigger.
	mu sync.Mutex
}

// New creates a Scheduler firing at "HH:MM" in loc.
func New(runner BatchRunner, at string, loc *time.Location, log *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		runner:    runner,
		at:        at,
		log:       log,
	}
}

// Start registers the daily job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Day().At(s.at).Do(s.run); err != nil {
		return fmt.Errorf("scheduling daily alert batch at %s: %w", s.at, err)
	}
	s.scheduler.StartAsync()

	_, next := s.scheduler.NextRun()
	s.log.Info("daily alert batch scheduled", "at", s.at, "next_run", next)
	return nil
}

// NextRun reports when the batch fires next. Zero before Start.
func (s *Scheduler) NextRun() time.Time {
	_, next := s.scheduler.NextRun()
	return next
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) run() {
	if !s.mu.TryLock() {
		s.log.Warn("skipping scheduled alert batch: previous run still in progress")
		return
	}
	defer s.mu.Unlock()

	s.log.Info("scheduler: running daily alert batch")
	sum, err := s.runner.RunAll(context.Background())
	if err != nil {
		s.log.Error("scheduled alert batch failed", "err", err)
		return
	}
	s.log.Info("scheduler: completed daily alert batch",
		"run_id", sum.RunID,
		"alerts_sent", sum.AlertsSent,
		"errors", sum.Errors,
	)
}
