// Package schedule triggers the poll cycle on a fixed interval.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs jobs at a fixed period without overlap: a tick that
// arrives while the previous run is still going is skipped, and the
// next run fires on the original cadence.
type Scheduler struct {
	cron *cron.Cron
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Every registers job to run once per interval, starting one interval
// after Start. The job is responsible for its own error handling; a
// failing run never stops the schedule.
func (s *Scheduler) Every(interval time.Duration, job func()) error {
	if interval <= 0 {
		return errors.New("schedule: interval must be positive")
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), job); err != nil {
		return fmt.Errorf("schedule: register job: %w", err)
	}
	return nil
}

// Start begins firing registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
