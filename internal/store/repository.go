/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the payments service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation and handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ticketrack/payments-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Event and order methods
	FindEventByID(ctx context.Context, eventID uuid.UUID) (*domain.Event, error)
	FindOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	SetOrderPaymentReference(ctx context.Context, orderID uuid.UUID, provider, reference string) error
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID, provider, reference string) (bool, error)
	CreateGroupOrderRecord(ctx context.Context, order *domain.Order) error

	// Gateway configuration methods
	FindActiveGatewayConfig(ctx context.Context, provider, countryCode string) (*domain.GatewayConfig, error)
	ListActiveProvidersForCountry(ctx context.Context, countryCode string) ([]string, error)

	// Split payment methods
	CreateSplitPaymentWithShares(ctx context.Context, sp *domain.SplitPaymentRequest, shares []domain.PaymentShare) error
	FindSplitPaymentByID(ctx context.Context, splitID uuid.UUID) (*domain.SplitPaymentRequest, error)
	FindSharesBySplitPaymentID(ctx context.Context, splitID uuid.UUID) ([]domain.PaymentShare, error)
	FindShareByID(ctx context.Context, shareID uuid.UUID) (*domain.PaymentShare, error)
	FindShareByPaymentToken(ctx context.Context, token string) (*domain.PaymentShare, error)
	SetSharePaymentReference(ctx context.Context, shareID uuid.UUID, provider, reference string) error
	// MarkSharePaid transitions a share from unpaid to paid. It reports false
	// when the share was already paid, making webhook retries idempotent.
	MarkSharePaid(ctx context.Context, shareID uuid.UUID, reference, method string, paidAt time.Time) (bool, error)
	// CompleteSplitPaymentIfAllPaid transitions a pending split to completed
	// only when every share is paid. Exactly one caller wins the transition.
	CompleteSplitPaymentIfAllPaid(ctx context.Context, splitID uuid.UUID, completedAt time.Time) (bool, error)
	AttachOrderToSplitPayment(ctx context.Context, splitID uuid.UUID, orderID uuid.UUID) error
	CancelSplitPayment(ctx context.Context, splitID uuid.UUID, initiatedBy uuid.UUID) (bool, error)
	ExpirePendingSplitPaymentsPastDeadline(ctx context.Context, now time.Time) ([]domain.SplitPaymentRequest, error)

	// Reminder methods
	ListSharesDueReminder(ctx context.Context, maxReminders int, minInterval time.Duration, now time.Time) ([]domain.ReminderCandidate, error)
	RecordReminderSent(ctx context.Context, shareID uuid.UUID, sentAt time.Time) error

	// Webhook idempotency methods
	RecordWebhookEvent(ctx context.Context, provider, eventID string) (bool, error)

	// Drip campaign methods
	ListDueDripSteps(ctx context.Context, limit int, now time.Time) ([]domain.DueDripStep, error)
	FindContactByID(ctx context.Context, contactID uuid.UUID) (*domain.Contact, error)
	AdvanceDripEnrollment(ctx context.Context, enrollmentID uuid.UUID, now time.Time) error
	RecordDripExecution(ctx context.Context, enrollmentID, stepID uuid.UUID, status string, detail *string) error
	AddContactTag(ctx context.Context, contactID uuid.UUID, tag string) error
	RemoveContactTag(ctx context.Context, contactID uuid.UUID, tag string) error
}
