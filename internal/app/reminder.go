/**
 * @description
 * Payment reminder logic for unpaid shares. The scheduler invokes
 * SendPaymentReminders on an interval; each eligible share gets at most
 * maxReminders reminders, spaced at least minReminderInterval apart, and the
 * reminder counter only moves after a successful send so a failed delivery is
 * retried on the next run.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ticketrack/payments-service/internal/domain"
	"github.com/ticketrack/payments-service/internal/monitoring"
	"github.com/ticketrack/payments-service/pkg/messaging"
)

const (
	maxReminders        = 3
	minReminderInterval = 12 * time.Hour
)

// SendPaymentReminders emails every unpaid share that is due a reminder and
// returns how many reminders were sent.
func (s *Service) SendPaymentReminders(ctx context.Context) (int, error) {
	candidates, err := s.repo.ListSharesDueReminder(ctx, maxReminders, minReminderInterval, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list reminder candidates: %w", err)
	}

	sent := 0
	for _, candidate := range candidates {
		if err := s.sendReminder(ctx, candidate); err != nil {
			log.Printf("level=warn component=reminders msg=\"reminder send failed\" share_id=%s err=%v", candidate.Share.ID, err)
			continue
		}
		// Counter moves only after the send succeeded.
		if err := s.repo.RecordReminderSent(ctx, candidate.Share.ID, s.now()); err != nil {
			log.Printf("level=error component=reminders msg=\"reminder bookkeeping failed\" share_id=%s err=%v", candidate.Share.ID, err)
			continue
		}
		monitoring.TrackReminderSent()
		sent++
	}

	if len(candidates) > 0 {
		log.Printf("level=info component=reminders msg=\"reminder run finished\" due=%d sent=%d", len(candidates), sent)
	}
	return sent, nil
}

func (s *Service) sendReminder(ctx context.Context, candidate domain.ReminderCandidate) error {
	share := candidate.Share
	hours := candidate.HoursRemaining(s.now())
	payLink := fmt.Sprintf("%s/pay-share/%s", s.baseURL, share.PaymentToken)

	urgency := fmt.Sprintf("You have %d hours left", hours)
	if hours <= 1 {
		urgency = "Time is almost up"
	}

	return s.dispatcher.Send(ctx, messaging.ChannelEmail, messaging.Message{
		Recipient: share.Email,
		Subject:   fmt.Sprintf("Reminder: pay your share for %s", candidate.EventTitle),
		Body: fmt.Sprintf(
			"<p>Hi %s,</p><p>Your share of <strong>%s %s</strong> for <strong>%s</strong> is still unpaid.</p>"+
				"<p>%s before the group's tickets are released.</p>"+
				"<p><a href=\"%s\">Pay your share</a></p>",
			share.Name, share.Currency, share.ShareAmount.StringFixed(2),
			candidate.EventTitle, urgency, payLink,
		),
	})
}
