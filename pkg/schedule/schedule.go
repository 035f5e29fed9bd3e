// Package schedule runs soak tests at cron-style times. Jobs run on the
// caller's goroutine, one after another; a tick that arrives while a job
// is still running is skipped.
package schedule

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts the standard five-field cron syntax
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Schedule is a named soak test configuration.
type Schedule struct {
	Name     string
	CronExpr string
	// MaxRuns stops the runner after this many jobs. Zero runs until the
	// context is cancelled.
	MaxRuns int
}

// Validate checks the cron expression.
func (s Schedule) Validate() error {
	if s.CronExpr == "" {
		return fmt.Errorf("cron expression is required")
	}
	if _, err := parser.Parse(s.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	if s.MaxRuns < 0 {
		return fmt.Errorf("max runs cannot be negative")
	}
	return nil
}

// Next returns the first run time after t.
func (s Schedule) Next(t time.Time) (time.Time, error) {
	sched, err := parser.Parse(s.CronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return sched.Next(t), nil
}

// Job is one scheduled execution.
type Job func(ctx context.Context) error

// Runner executes a job on a schedule.
type Runner struct {
	logger *log.Logger
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time
}

// NewRunner creates a schedule runner
func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		logger: logger,
		now:    time.Now,
		after:  time.After,
	}
}

// Run waits for each scheduled time and executes job. It returns when the
// context is cancelled, MaxRuns jobs have run, or a job fails.
func (r *Runner) Run(ctx context.Context, s Schedule, job Job) (int, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	sched, _ := parser.Parse(s.CronExpr)

	r.logger.Printf("Starting schedule '%s' with cron expression: %s", s.Name, s.CronExpr)

	runs := 0
	for s.MaxRuns == 0 || runs < s.MaxRuns {
		next := sched.Next(r.now())
		r.logger.Printf("Next run of '%s' at %s", s.Name, next.Format("2006-01-02 15:04:05"))

		select {
		case <-ctx.Done():
			r.logger.Printf("Schedule '%s' stopped after %d runs", s.Name, runs)
			return runs, nil
		case <-r.after(next.Sub(r.now())):
		}

		r.logger.Printf("Executing scheduled job: %s", s.Name)
		if err := job(ctx); err != nil {
			return runs, fmt.Errorf("scheduled job %s failed: %w", s.Name, err)
		}
		runs++
	}

	r.logger.Printf("Schedule '%s' completed %d runs", s.Name, runs)
	return runs, nil
}
