package backup

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs system backups on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	svc    *Service
	before func(context.Context)
	logger *zap.Logger
}

// NewScheduler registers svc.Run under schedule, a standard five-field cron
// expression. before, when non-nil, runs ahead of each backup.
func NewScheduler(ctx context.Context, schedule string, svc *Service, before func(context.Context), logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		svc:    svc,
		before: before,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.run(ctx) }); err != nil {
		return nil, fmt.Errorf("invalid backup schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running scheduled backups.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("backup scheduler started")
}

// Stop stops the scheduler and waits for a running backup to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("backup scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	if s.before != nil {
		s.before(ctx)
	}
	if _, err := s.svc.Run(ctx); err != nil {
		s.logger.Error("scheduled backup failed", zap.Error(err))
	}
}
