/**
 * @description
 * Order and event models for the regular (non-split) checkout path. Orders are
 * created by the storefront before checkout; this service attaches provider
 * references and settles them from webhook confirmations.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order statuses.
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusExpired   = "expired"
)

// Order is a regular single-payer checkout order.
type Order struct {
	ID               uuid.UUID       `json:"id"`
	OrderNumber      string          `json:"order_number"`
	EventID          uuid.UUID       `json:"event_id"`
	UserID           *uuid.UUID      `json:"user_id,omitempty"`
	BuyerEmail       string          `json:"buyer_email"`
	BuyerName        string          `json:"buyer_name"`
	Status           string          `json:"status"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Currency         string          `json:"currency"`
	PaymentProvider  *string         `json:"payment_provider,omitempty"`
	PaymentReference *string         `json:"payment_reference,omitempty"`
	IsGroupOrder     bool            `json:"is_group_order"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Event carries the catalog fields this service needs for checkout and
// notifications. The catalog itself is owned by the ticketing service.
type Event struct {
	ID          uuid.UUID `json:"id"`
	OrganizerID uuid.UUID `json:"organizer_id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	CountryCode string    `json:"country_code"`
	Currency    string    `json:"currency"`
	StartDate   time.Time `json:"start_date"`
}
