/**
 * @description
 * PostgreSQL queries for the split payment flow: request and share creation,
 * the paid-share and completion state transitions, reminders, and the expiry
 * sweep. The two transitions that webhooks race on (MarkSharePaid and
 * CompleteSplitPaymentIfAllPaid) are single conditional UPDATEs so that
 * exactly one concurrent caller wins.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ticketrack/payments-service/internal/domain"
)

// CreateSplitPaymentWithShares inserts a split payment request and all of its
// shares in a single transaction.
func (r *PostgresRepository) CreateSplitPaymentWithShares(ctx context.Context, sp *domain.SplitPaymentRequest, shares []domain.PaymentShare) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	selection, err := json.Marshal(sp.TicketSelection)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket selection: %w", err)
	}

	spQuery := `
		INSERT INTO group_split_payments (id, event_id, session_id, initiated_by, ticket_selection,
		                                  total_amount, service_fee, grand_total, currency, split_type,
		                                  status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())`
	_, err = tx.Exec(ctx, spQuery,
		sp.ID, sp.EventID, sp.SessionID, sp.InitiatedBy, selection,
		sp.TotalAmount, sp.ServiceFee, sp.GrandTotal, sp.Currency, sp.SplitType,
		sp.Status, sp.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert split payment: %w", err)
	}

	shareQuery := `
		INSERT INTO group_split_shares (id, split_payment_id, user_id, name, email, share_amount,
		                                currency, payment_status, payment_token, reminder_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, NOW(), NOW())`
	for _, share := range shares {
		_, err = tx.Exec(ctx, shareQuery,
			share.ID, share.SplitPaymentID, share.UserID, share.Name, share.Email,
			share.ShareAmount, share.Currency, share.PaymentStatus, share.PaymentToken,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payment share: %w", err)
		}
	}

	return tx.Commit(ctx)
}

const splitPaymentColumns = `
	id, event_id, session_id, initiated_by, ticket_selection, total_amount, service_fee,
	grand_total, currency, split_type, status, order_id, expires_at, completed_at, created_at, updated_at`

func scanSplitPayment(row pgx.Row) (*domain.SplitPaymentRequest, error) {
	var sp domain.SplitPaymentRequest
	var selection []byte
	err := row.Scan(
		&sp.ID, &sp.EventID, &sp.SessionID, &sp.InitiatedBy, &selection,
		&sp.TotalAmount, &sp.ServiceFee, &sp.GrandTotal, &sp.Currency, &sp.SplitType,
		&sp.Status, &sp.OrderID, &sp.ExpiresAt, &sp.CompletedAt, &sp.CreatedAt, &sp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(selection) > 0 {
		if err := json.Unmarshal(selection, &sp.TicketSelection); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ticket selection: %w", err)
		}
	}
	return &sp, nil
}

// FindSplitPaymentByID retrieves a split payment request by its ID.
func (r *PostgresRepository) FindSplitPaymentByID(ctx context.Context, splitID uuid.UUID) (*domain.SplitPaymentRequest, error) {
	query := `SELECT ` + splitPaymentColumns + ` FROM group_split_payments WHERE id = $1`
	sp, err := scanSplitPayment(r.db.QueryRow(ctx, query, splitID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSplitNotFound
		}
		return nil, err
	}
	return sp, nil
}

const shareColumns = `
	id, split_payment_id, user_id, name, email, share_amount, currency, payment_status,
	payment_reference, payment_method, payment_token, reminder_count, last_reminder_at,
	paid_at, created_at, updated_at`

func scanShare(row pgx.Row) (*domain.PaymentShare, error) {
	var s domain.PaymentShare
	err := row.Scan(
		&s.ID, &s.SplitPaymentID, &s.UserID, &s.Name, &s.Email, &s.ShareAmount,
		&s.Currency, &s.PaymentStatus, &s.PaymentReference, &s.PaymentMethod,
		&s.PaymentToken, &s.ReminderCount, &s.LastReminderAt, &s.PaidAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindSharesBySplitPaymentID lists all shares of a split payment, oldest first.
func (r *PostgresRepository) FindSharesBySplitPaymentID(ctx context.Context, splitID uuid.UUID) ([]domain.PaymentShare, error) {
	query := `SELECT ` + shareColumns + ` FROM group_split_shares WHERE split_payment_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, splitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shares []domain.PaymentShare
	for rows.Next() {
		share, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		shares = append(shares, *share)
	}
	return shares, rows.Err()
}

// FindShareByID retrieves a payment share by its ID.
func (r *PostgresRepository) FindShareByID(ctx context.Context, shareID uuid.UUID) (*domain.PaymentShare, error) {
	query := `SELECT ` + shareColumns + ` FROM group_split_shares WHERE id = $1`
	share, err := scanShare(r.db.QueryRow(ctx, query, shareID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrShareNotFound
		}
		return nil, err
	}
	return share, nil
}

// FindShareByPaymentToken retrieves a payment share by its opaque pay-link token.
func (r *PostgresRepository) FindShareByPaymentToken(ctx context.Context, token string) (*domain.PaymentShare, error) {
	query := `SELECT ` + shareColumns + ` FROM group_split_shares WHERE payment_token = $1`
	share, err := scanShare(r.db.QueryRow(ctx, query, token))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrShareNotFound
		}
		return nil, err
	}
	return share, nil
}

// SetSharePaymentReference stores the provider and session reference picked at
// checkout time so the webhook can be correlated later.
func (r *PostgresRepository) SetSharePaymentReference(ctx context.Context, shareID uuid.UUID, provider, reference string) error {
	query := `
		UPDATE group_split_shares
		SET payment_method = $2, payment_reference = $3, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, shareID, provider, reference)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrShareNotFound
	}
	return nil
}

// MarkSharePaid transitions a share to paid unless it already is. The status
// guard makes duplicate webhook deliveries a no-op.
func (r *PostgresRepository) MarkSharePaid(ctx context.Context, shareID uuid.UUID, reference, method string, paidAt time.Time) (bool, error) {
	query := `
		UPDATE group_split_shares
		SET payment_status = 'paid', payment_reference = $2, payment_method = $3, paid_at = $4, updated_at = NOW()
		WHERE id = $1 AND payment_status <> 'paid'`
	tag, err := r.db.Exec(ctx, query, shareID, reference, method, paidAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CompleteSplitPaymentIfAllPaid completes a pending split only when no unpaid
// share remains. The NOT EXISTS guard and the status check run in one
// statement, so concurrent webhook handlers cannot both win.
func (r *PostgresRepository) CompleteSplitPaymentIfAllPaid(ctx context.Context, splitID uuid.UUID, completedAt time.Time) (bool, error) {
	query := `
		UPDATE group_split_payments
		SET status = 'completed', completed_at = $2, updated_at = NOW()
		WHERE id = $1
		  AND status = 'pending'
		  AND NOT EXISTS (
		      SELECT 1 FROM group_split_shares
		      WHERE split_payment_id = $1 AND payment_status <> 'paid'
		  )`
	tag, err := r.db.Exec(ctx, query, splitID, completedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AttachOrderToSplitPayment links the group order created by the ticketing
// service back to the completed split payment.
func (r *PostgresRepository) AttachOrderToSplitPayment(ctx context.Context, splitID uuid.UUID, orderID uuid.UUID) error {
	query := `UPDATE group_split_payments SET order_id = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, splitID, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSplitNotFound
	}
	return nil
}

// CancelSplitPayment cancels a pending split. Only the initiator may cancel,
// and only while no share has been paid.
func (r *PostgresRepository) CancelSplitPayment(ctx context.Context, splitID uuid.UUID, initiatedBy uuid.UUID) (bool, error) {
	query := `
		UPDATE group_split_payments
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1
		  AND initiated_by = $2
		  AND status = 'pending'
		  AND NOT EXISTS (
		      SELECT 1 FROM group_split_shares
		      WHERE split_payment_id = $1 AND payment_status = 'paid'
		  )`
	tag, err := r.db.Exec(ctx, query, splitID, initiatedBy)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ExpirePendingSplitPaymentsPastDeadline transitions every pending split whose
// deadline has passed to expired and returns the affected rows.
func (r *PostgresRepository) ExpirePendingSplitPaymentsPastDeadline(ctx context.Context, now time.Time) ([]domain.SplitPaymentRequest, error) {
	query := `
		UPDATE group_split_payments
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'pending' AND expires_at <= $1
		RETURNING ` + splitPaymentColumns
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.SplitPaymentRequest
	for rows.Next() {
		sp, err := scanSplitPayment(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, *sp)
	}
	return expired, rows.Err()
}

// ListSharesDueReminder lists unpaid shares of pending, unexpired splits that
// have not hit the reminder cap and were not reminded within minInterval.
func (r *PostgresRepository) ListSharesDueReminder(ctx context.Context, maxReminders int, minInterval time.Duration, now time.Time) ([]domain.ReminderCandidate, error) {
	query := `
		SELECT ` + shareColumnsPrefixed + `, e.title, sp.expires_at
		FROM group_split_shares s
		JOIN group_split_payments sp ON sp.id = s.split_payment_id
		JOIN events e ON e.id = sp.event_id
		WHERE s.payment_status = 'pending'
		  AND sp.status = 'pending'
		  AND sp.expires_at > $3
		  AND s.reminder_count < $1
		  AND (s.last_reminder_at IS NULL OR s.last_reminder_at <= $2)
		ORDER BY sp.expires_at ASC`
	rows, err := r.db.Query(ctx, query, maxReminders, now.Add(-minInterval), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []domain.ReminderCandidate
	for rows.Next() {
		var c domain.ReminderCandidate
		s := &c.Share
		err := rows.Scan(
			&s.ID, &s.SplitPaymentID, &s.UserID, &s.Name, &s.Email, &s.ShareAmount,
			&s.Currency, &s.PaymentStatus, &s.PaymentReference, &s.PaymentMethod,
			&s.PaymentToken, &s.ReminderCount, &s.LastReminderAt, &s.PaidAt, &s.CreatedAt, &s.UpdatedAt,
			&c.EventTitle, &c.ExpiresAt,
		)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

const shareColumnsPrefixed = `
	s.id, s.split_payment_id, s.user_id, s.name, s.email, s.share_amount, s.currency, s.payment_status,
	s.payment_reference, s.payment_method, s.payment_token, s.reminder_count, s.last_reminder_at,
	s.paid_at, s.created_at, s.updated_at`

// RecordReminderSent increments the reminder counter after a successful send.
func (r *PostgresRepository) RecordReminderSent(ctx context.Context, shareID uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE group_split_shares
		SET reminder_count = reminder_count + 1, last_reminder_at = $2, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, shareID, sentAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrShareNotFound
	}
	return nil
}
