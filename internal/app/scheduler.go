/**
 * @description
 * Cron scheduler setup for scheduled jobs.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/ticketrack/payments-service/internal/config"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.config.ReminderCronSpec, s.jobs.SendPaymentReminders); err != nil {
		s.logger.Error("failed to schedule payment reminder job", "error", err)
	} else {
		s.logger.Info("scheduled payment reminder job", "schedule", s.config.ReminderCronSpec)
	}

	if _, err := s.cron.AddFunc(s.config.ExpiryCronSpec, s.jobs.ExpireSplitPayments); err != nil {
		s.logger.Error("failed to schedule split payment expiry job", "error", err)
	} else {
		s.logger.Info("scheduled split payment expiry job", "schedule", s.config.ExpiryCronSpec)
	}

	if _, err := s.cron.AddFunc(s.config.DripCronSpec, s.jobs.RunDripCampaigns); err != nil {
		s.logger.Error("failed to schedule drip campaign job", "error", err)
	} else {
		s.logger.Info("scheduled drip campaign job", "schedule", s.config.DripCronSpec)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
