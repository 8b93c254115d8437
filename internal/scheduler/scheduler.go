// Package scheduler runs a task once per day at a configured wall-clock
// time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Scheduler fires a task daily at a fixed HH:MM local time.
type Scheduler struct {
	hour   int
	minute int
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New parses checkTime as "HH:MM" (24-hour clock) and returns a scheduler.
func New(checkTime string, logger *slog.Logger) (*Scheduler, error) {
	t, err := time.Parse("15:04", checkTime)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid check time %q: %w", checkTime, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		hour:   t.Hour(),
		minute: t.Minute(),
		logger: logger,
		now:    time.Now,
	}, nil
}

// NextRun returns the next occurrence of the configured time strictly after
// now. A time earlier today that has already passed rolls over to tomorrow.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks, invoking task at each scheduled time until ctx is cancelled.
// Task errors are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, task func(context.Context) error) error {
	for {
		next := s.NextRun(s.now())
		s.logger.Info("next check scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := task(ctx); err != nil {
			s.logger.Error("scheduled run failed", "error", err)
		}
	}
}
