/**
 * @description
 * Contact and drip-campaign models for the automation runner. An enrollment is
 * one contact's progress through a campaign; a due step is the denormalized
 * view the runner polls for (enrollment + step + campaign in one row).
 */

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Drip step action types.
const (
	ActionSendEmail    = "send_email"
	ActionSendSMS      = "send_sms"
	ActionSendWhatsApp = "send_whatsapp"
	ActionAddTag       = "add_tag"
	ActionRemoveTag    = "remove_tag"
	ActionWebhook      = "webhook"
)

// Drip step execution outcomes.
const (
	ExecutionSent    = "sent"
	ExecutionSkipped = "skipped"
	ExecutionFailed  = "failed"
)

// Contact is an organizer's marketing contact with per-channel consent.
type Contact struct {
	ID            uuid.UUID `json:"id"`
	OrganizerID   uuid.UUID `json:"organizer_id"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	FullName      string    `json:"full_name"`
	EmailOptIn    bool      `json:"email_opt_in"`
	SMSOptIn      bool      `json:"sms_opt_in"`
	WhatsAppOptIn bool      `json:"whatsapp_opt_in"`
	Tags          []string  `json:"tags"`
	CreatedAt     time.Time `json:"created_at"`
}

// DripStepConfig is the per-action configuration stored on a campaign step.
type DripStepConfig struct {
	Subject string          `json:"subject,omitempty"`
	Body    string          `json:"body,omitempty"`
	Message string          `json:"message,omitempty"`
	Tag     string          `json:"tag,omitempty"`
	URL     string          `json:"url,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DueDripStep is one pending step the runner must execute: the enrollment to
// advance, the contact to act on, and the action to take.
type DueDripStep struct {
	EnrollmentID uuid.UUID      `json:"enrollment_id"`
	CampaignID   uuid.UUID      `json:"campaign_id"`
	StepID       uuid.UUID      `json:"step_id"`
	ContactID    uuid.UUID      `json:"contact_id"`
	OrganizerID  uuid.UUID      `json:"organizer_id"`
	ActionType   string         `json:"action_type"`
	ActionConfig DripStepConfig `json:"action_config"`
	DueAt        time.Time      `json:"due_at"`
}

// DripRunResult aggregates one runner invocation for observability.
type DripRunResult struct {
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}
