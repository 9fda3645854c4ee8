/**
 * @description
 * Domain models for the split (group) payment flow. A SplitPaymentRequest groups
 * the shares of one group ticket purchase; a PaymentShare is one payer's portion.
 * Shares are created together with the request and are never deleted; a paid
 * share is the audit record of that payer's contribution.
 *
 * @dependencies
 * - time: Standard Go library.
 * - github.com/google/uuid: For identifiers.
 * - github.com/shopspring/decimal: Monetary amounts in major currency units.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Split payment request statuses.
const (
	SplitStatusPending   = "pending"
	SplitStatusCompleted = "completed"
	SplitStatusExpired   = "expired"
	SplitStatusCancelled = "cancelled"
)

// Payment share statuses.
const (
	ShareStatusPending = "pending"
	ShareStatusPaid    = "paid"
	ShareStatusFailed  = "failed"
)

// Split types.
const (
	SplitTypeEqual  = "equal"
	SplitTypeCustom = "custom"
)

// TicketSelection is one line of the group's ticket order, priced in major units.
type TicketSelection struct {
	TicketTypeID uuid.UUID       `json:"ticket_type_id"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
}

// SplitPaymentRequest groups all shares for one group purchase.
type SplitPaymentRequest struct {
	ID              uuid.UUID         `json:"id"`
	EventID         uuid.UUID         `json:"event_id"`
	SessionID       *uuid.UUID        `json:"session_id,omitempty"`
	InitiatedBy     uuid.UUID         `json:"initiated_by"`
	TicketSelection []TicketSelection `json:"ticket_selection"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	ServiceFee      decimal.Decimal   `json:"service_fee"`
	GrandTotal      decimal.Decimal   `json:"grand_total"`
	Currency        string            `json:"currency"`
	SplitType       string            `json:"split_type"`
	Status          string            `json:"status"`
	OrderID         *uuid.UUID        `json:"order_id,omitempty"`
	ExpiresAt       time.Time         `json:"expires_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// PaymentShare is one payer's portion of a SplitPaymentRequest.
type PaymentShare struct {
	ID               uuid.UUID       `json:"id"`
	SplitPaymentID   uuid.UUID       `json:"split_payment_id"`
	UserID           *uuid.UUID      `json:"user_id,omitempty"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	ShareAmount      decimal.Decimal `json:"share_amount"`
	Currency         string          `json:"currency"`
	PaymentStatus    string          `json:"payment_status"`
	PaymentReference *string         `json:"payment_reference,omitempty"`
	PaymentMethod    *string         `json:"payment_method,omitempty"`
	PaymentToken     string          `json:"payment_token"`
	ReminderCount    int             `json:"reminder_count"`
	LastReminderAt   *time.Time      `json:"last_reminder_at,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// SplitMember is one invitee in a create-split-payment request.
type SplitMember struct {
	Email  string           `json:"email"`
	Name   string           `json:"name"`
	UserID *uuid.UUID       `json:"user_id,omitempty"`
	Amount *decimal.Decimal `json:"amount,omitempty"` // required for custom splits
}

// ReminderCandidate is a pending share joined with the context needed to
// compose a reminder message.
type ReminderCandidate struct {
	Share      PaymentShare `json:"share"`
	EventTitle string       `json:"event_title"`
	ExpiresAt  time.Time    `json:"expires_at"`
}

// HoursRemaining reports the whole hours left until the split deadline,
// rounded to the nearest hour and never negative.
func (r ReminderCandidate) HoursRemaining(now time.Time) int {
	hours := int(r.ExpiresAt.Sub(now).Round(time.Hour) / time.Hour)
	if hours < 0 {
		return 0
	}
	return hours
}

// CreateSplitPaymentPayload is the request body for creating a split payment.
type CreateSplitPaymentPayload struct {
	EventID         uuid.UUID         `json:"event_id"`
	SessionID       *uuid.UUID        `json:"session_id,omitempty"`
	TicketSelection []TicketSelection `json:"ticket_selection"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	ServiceFee      decimal.Decimal   `json:"service_fee"`
	Currency        string            `json:"currency"`
	Members         []SplitMember     `json:"members"`
	SplitType       string            `json:"split_type"`
	DeadlineHours   int               `json:"deadline_hours"`
}
