// Package sweeper schedules the periodic hygiene sweep that deletes known
// junk titles from every partition.
package sweeper

import (
	"time"

	"github.com/go-co-op/gocron"

	"github.com/ndimoski/taskmirror/pkg/models"
	"github.com/ndimoski/taskmirror/pkg/service"
)

type Sweeper struct {
	scheduler *gocron.Scheduler
	engine    *service.LifecycleEngine
	owner     models.OwnerFilter
	interval  time.Duration
	logger    service.Logger
}

func New(engine *service.LifecycleEngine, owner models.OwnerFilter, interval time.Duration, logger service.Logger) *Sweeper {
	return &Sweeper{
		scheduler: gocron.NewScheduler(time.Local),
		engine:    engine,
		owner:     owner,
		interval:  interval,
		logger:    logger,
	}
}

// Start runs the sweep on the configured interval until Stop. Failures are
// logged and retried on the next tick; the sweep is idempotent.
func (s *Sweeper) Start() {
	_, err := s.scheduler.Every(s.interval).Do(func() {
		if err := s.engine.HygieneSweep(s.owner); err != nil {
			s.logger.Errorf("Scheduled hygiene sweep failed: %v", err)
		}
	})
	if err != nil {
		s.logger.Errorf("Failed to schedule hygiene sweep: %v", err)
		return
	}
	s.scheduler.StartAsync()
	s.logger.Infof("Hygiene sweep scheduled every %s", s.interval)
}

func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}
