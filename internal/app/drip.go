/**
 * @description
 * Drip campaign runner. The scheduler invokes RunDripBatch on an interval;
 * each run claims up to dripBatchSize due steps, executes each one against its
 * contact, records the outcome, and always advances the enrollment so a
 * failing step cannot wedge a campaign.
 *
 * A contact who opted out of a channel produces a skipped execution, not a
 * failed one.
 */

package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ticketrack/payments-service/internal/domain"
	"github.com/ticketrack/payments-service/internal/monitoring"
	"github.com/ticketrack/payments-service/internal/store"
	"github.com/ticketrack/payments-service/pkg/messaging"
)

const dripBatchSize = 50

// RunDripBatch executes one batch of due drip steps.
func (s *Service) RunDripBatch(ctx context.Context) (*domain.DripRunResult, error) {
	due, err := s.repo.ListDueDripSteps(ctx, dripBatchSize, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list due drip steps: %w", err)
	}

	result := &domain.DripRunResult{}
	for _, step := range due {
		result.Processed++

		status, detail := s.executeDripStep(ctx, step)
		switch status {
		case domain.ExecutionSent:
			result.Sent++
		case domain.ExecutionSkipped:
			result.Skipped++
		case domain.ExecutionFailed:
			result.Failed++
			if detail != nil {
				result.Errors = append(result.Errors, *detail)
			}
		}
		monitoring.TrackDripStep(step.ActionType, status)

		if err := s.repo.RecordDripExecution(ctx, step.EnrollmentID, step.StepID, status, detail); err != nil {
			log.Printf("level=error component=drip msg=\"execution record failed\" enrollment_id=%s err=%v", step.EnrollmentID, err)
		}
		// The enrollment advances whatever the outcome was.
		if err := s.repo.AdvanceDripEnrollment(ctx, step.EnrollmentID, s.now()); err != nil {
			log.Printf("level=error component=drip msg=\"enrollment advance failed\" enrollment_id=%s err=%v", step.EnrollmentID, err)
		}
	}

	if result.Processed > 0 {
		log.Printf("level=info component=drip msg=\"drip run finished\" processed=%d sent=%d skipped=%d failed=%d",
			result.Processed, result.Sent, result.Skipped, result.Failed)
	}
	return result, nil
}

func (s *Service) executeDripStep(ctx context.Context, step domain.DueDripStep) (string, *string) {
	contact, err := s.repo.FindContactByID(ctx, step.ContactID)
	if err != nil {
		if errors.Is(err, store.ErrContactNotFound) {
			// A deleted contact skips the step; the enrollment drains out.
			return domain.ExecutionSkipped, nil
		}
		return failed(fmt.Sprintf("contact lookup: %v", err))
	}

	render := stepRenderer(contact)

	switch step.ActionType {
	case domain.ActionSendEmail:
		if !contact.EmailOptIn || contact.Email == "" {
			return domain.ExecutionSkipped, nil
		}
		err := s.dispatcher.Send(ctx, messaging.ChannelEmail, messaging.Message{
			Recipient: contact.Email,
			Subject:   render(step.ActionConfig.Subject),
			Body:      render(step.ActionConfig.Body),
		})
		if err != nil {
			return failed(fmt.Sprintf("email send: %v", err))
		}
		return domain.ExecutionSent, nil

	case domain.ActionSendSMS:
		if !contact.SMSOptIn || contact.Phone == "" {
			return domain.ExecutionSkipped, nil
		}
		err := s.dispatcher.Send(ctx, messaging.ChannelSMS, messaging.Message{
			Recipient: contact.Phone,
			Body:      render(step.ActionConfig.Message),
		})
		if err != nil {
			return failed(fmt.Sprintf("sms send: %v", err))
		}
		return domain.ExecutionSent, nil

	case domain.ActionSendWhatsApp:
		if !contact.WhatsAppOptIn || contact.Phone == "" {
			return domain.ExecutionSkipped, nil
		}
		err := s.dispatcher.Send(ctx, messaging.ChannelWhatsApp, messaging.Message{
			Recipient: contact.Phone,
			Body:      render(step.ActionConfig.Message),
		})
		if err != nil {
			return failed(fmt.Sprintf("whatsapp send: %v", err))
		}
		return domain.ExecutionSent, nil

	case domain.ActionAddTag:
		if err := s.repo.AddContactTag(ctx, contact.ID, step.ActionConfig.Tag); err != nil {
			return failed(fmt.Sprintf("add tag: %v", err))
		}
		return domain.ExecutionSent, nil

	case domain.ActionRemoveTag:
		if err := s.repo.RemoveContactTag(ctx, contact.ID, step.ActionConfig.Tag); err != nil {
			return failed(fmt.Sprintf("remove tag: %v", err))
		}
		return domain.ExecutionSent, nil

	case domain.ActionWebhook:
		if err := s.callStepWebhook(ctx, step); err != nil {
			return failed(fmt.Sprintf("webhook call: %v", err))
		}
		return domain.ExecutionSent, nil

	default:
		return failed(fmt.Sprintf("unknown action type %q", step.ActionType))
	}
}

func (s *Service) callStepWebhook(ctx context.Context, step domain.DueDripStep) error {
	body := step.ActionConfig.Payload
	if len(body) == 0 {
		body = []byte("{}")
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", step.ActionConfig.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook target returned status %d", resp.StatusCode)
	}
	return nil
}

// stepRenderer substitutes contact placeholders in step templates.
func stepRenderer(contact *domain.Contact) func(string) string {
	firstName := contact.FullName
	if i := strings.IndexByte(firstName, ' '); i > 0 {
		firstName = firstName[:i]
	}
	replacer := strings.NewReplacer(
		"{{first_name}}", firstName,
		"{{full_name}}", contact.FullName,
		"{{name}}", contact.FullName,
		"{{email}}", contact.Email,
		"{{phone}}", contact.Phone,
	)
	return replacer.Replace
}

func failed(detail string) (string, *string) {
	return domain.ExecutionFailed, &detail
}
