// Package schedule wraps the cron runner that fires the daily closing at a
// fixed local wall-clock time.
package schedule

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

// New builds a scheduler whose cron expressions are evaluated in loc.
func New(loc *time.Location, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
		log:  log,
	}
}

// Add registers job under a cron expression (e.g. "59 23 * * *").
func (s *Scheduler) Add(spec string, job func()) error {
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	s.log.Info("scheduled job registered", "spec", spec)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for any running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
