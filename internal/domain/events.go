/**
 * @description
 * Event payloads published to RabbitMQ at split-payment lifecycle points.
 * Downstream consumers (analytics, organizer dashboards) subscribe to the
 * `ticketrack.events` topic exchange.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SharePaidEvent is published when one share transitions to paid.
type SharePaidEvent struct {
	SplitPaymentID uuid.UUID       `json:"split_payment_id"`
	ShareID        uuid.UUID       `json:"share_id"`
	PayerEmail     string          `json:"payer_email"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Provider       string          `json:"provider"`
	Timestamp      time.Time       `json:"timestamp"`
}

// SplitCompletedEvent is published exactly once when every share of a request
// is paid and the group order has been issued.
type SplitCompletedEvent struct {
	SplitPaymentID uuid.UUID       `json:"split_payment_id"`
	EventID        uuid.UUID       `json:"event_id"`
	OrderID        uuid.UUID       `json:"order_id"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
	Currency       string          `json:"currency"`
	Timestamp      time.Time       `json:"timestamp"`
}

// OrderPaidEvent is published when a regular single-payer order settles.
type OrderPaidEvent struct {
	OrderID    uuid.UUID       `json:"order_id"`
	EventID    uuid.UUID       `json:"event_id"`
	BuyerEmail string          `json:"buyer_email"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Provider   string          `json:"provider"`
	Timestamp  time.Time       `json:"timestamp"`
}

// SplitExpiredEvent is published by the expiry sweep for each request it
// transitions from pending to expired.
type SplitExpiredEvent struct {
	SplitPaymentID uuid.UUID `json:"split_payment_id"`
	EventID        uuid.UUID `json:"event_id"`
	Timestamp      time.Time `json:"timestamp"`
}
