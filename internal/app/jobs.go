/**
 * @description
 * Scheduled job implementations for the payments service. Each job wraps one
 * Service operation with logging so it can run under the cron scheduler.
 */
package app

import (
	"context"
	"log/slog"
	"time"
)

const jobTimeout = 5 * time.Minute

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	service *Service
	logger  *slog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(service *Service, logger *slog.Logger) *Jobs {
	return &Jobs{
		service: service,
		logger:  logger,
	}
}

// SendPaymentReminders emails unpaid shares that are due a reminder.
func (j *Jobs) SendPaymentReminders() {
	j.logger.Info("starting payment reminder job")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	sent, err := j.service.SendPaymentReminders(ctx)
	if err != nil {
		j.logger.Error("payment reminder job failed", "error", err)
		return
	}
	j.logger.Info("payment reminder job finished", "sent", sent)
}

// ExpireSplitPayments sweeps pending split payments past their deadline.
func (j *Jobs) ExpireSplitPayments() {
	j.logger.Info("starting split payment expiry job")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	expired, err := j.service.ExpirePendingSplitPayments(ctx)
	if err != nil {
		j.logger.Error("split payment expiry job failed", "error", err)
		return
	}
	j.logger.Info("split payment expiry job finished", "expired", expired)
}

// RunDripCampaigns executes one batch of due drip campaign steps.
func (j *Jobs) RunDripCampaigns() {
	j.logger.Info("starting drip campaign job")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := j.service.RunDripBatch(ctx)
	if err != nil {
		j.logger.Error("drip campaign job failed", "error", err)
		return
	}
	j.logger.Info("drip campaign job finished",
		"processed", result.Processed, "sent", result.Sent, "skipped", result.Skipped, "failed", result.Failed)
}
