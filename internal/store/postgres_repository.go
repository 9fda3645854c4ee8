/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface
 * for events, orders, gateway configuration, and webhook idempotency records.
 * Split payment and drip campaign queries live in their own files.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ticketrack/payments-service/internal/domain"
)

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrGatewayNotConfigured = errors.New("no active payment gateway for country")
	ErrSplitNotFound        = errors.New("split payment not found")
	ErrShareNotFound        = errors.New("payment share not found")
	ErrContactNotFound      = errors.New("contact not found")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindEventByID retrieves an event by its ID.
func (r *PostgresRepository) FindEventByID(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	var event domain.Event
	query := `SELECT id, organizer_id, title, slug, country_code, currency, start_date FROM events WHERE id = $1`
	err := r.db.QueryRow(ctx, query, eventID).Scan(
		&event.ID, &event.OrganizerID, &event.Title, &event.Slug,
		&event.CountryCode, &event.Currency, &event.StartDate,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

// FindOrderByID retrieves an order by its ID.
func (r *PostgresRepository) FindOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	query := `
		SELECT id, event_id, order_number, buyer_email, buyer_name, status, total_amount,
		       currency, payment_provider, payment_reference, is_group_order, paid_at, created_at, updated_at
		FROM orders WHERE id = $1`
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&order.ID, &order.EventID, &order.OrderNumber, &order.BuyerEmail, &order.BuyerName,
		&order.Status, &order.TotalAmount, &order.Currency, &order.PaymentProvider,
		&order.PaymentReference, &order.IsGroupOrder, &order.PaidAt, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// SetOrderPaymentReference stores the provider and session reference picked at
// checkout time so the webhook can be correlated later.
func (r *PostgresRepository) SetOrderPaymentReference(ctx context.Context, orderID uuid.UUID, provider, reference string) error {
	query := `
		UPDATE orders
		SET payment_provider = $2, payment_reference = $3, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, orderID, provider, reference)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// MarkOrderPaid transitions a pending order to completed. It reports false
// when the order was already settled, making webhook retries idempotent.
func (r *PostgresRepository) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, provider, reference string) (bool, error) {
	query := `
		UPDATE orders
		SET status = 'completed', payment_provider = $2, payment_reference = $3, paid_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`
	tag, err := r.db.Exec(ctx, query, orderID, provider, reference)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CreateGroupOrderRecord inserts the local order row mirroring a group order
// issued by the ticketing service for a completed split payment.
func (r *PostgresRepository) CreateGroupOrderRecord(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, event_id, order_number, buyer_email, buyer_name, status, total_amount,
		                    currency, payment_provider, payment_reference, is_group_order, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true, $11, NOW(), NOW())`
	_, err := r.db.Exec(ctx, query,
		order.ID, order.EventID, order.OrderNumber, order.BuyerEmail, order.BuyerName,
		order.Status, order.TotalAmount, order.Currency, order.PaymentProvider,
		order.PaymentReference, order.PaidAt,
	)
	return err
}

// FindActiveGatewayConfig looks up an active gateway configuration for one
// provider and country. Callers walk domain.GatewayFallbackRegions to resolve
// regional fallbacks.
func (r *PostgresRepository) FindActiveGatewayConfig(ctx context.Context, provider, countryCode string) (*domain.GatewayConfig, error) {
	var cfg domain.GatewayConfig
	query := `
		SELECT id, provider, country_code, is_active, secret_key, public_key, webhook_secret, created_at, updated_at
		FROM payment_gateway_configs
		WHERE provider = $1 AND country_code = $2 AND is_active = true`
	err := r.db.QueryRow(ctx, query, provider, countryCode).Scan(
		&cfg.ID, &cfg.Provider, &cfg.CountryCode, &cfg.IsActive,
		&cfg.SecretKey, &cfg.PublicKey, &cfg.WebhookSecret, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrGatewayNotConfigured
		}
		return nil, err
	}
	return &cfg, nil
}

// ListActiveProvidersForCountry returns the provider names with an active
// configuration usable from the given country, including regional fallbacks.
func (r *PostgresRepository) ListActiveProvidersForCountry(ctx context.Context, countryCode string) ([]string, error) {
	providers := []string{}
	for _, provider := range []string{domain.ProviderStripe, domain.ProviderPaystack, domain.ProviderFlutterwave, domain.ProviderPayPal} {
		for _, region := range domain.GatewayFallbackRegions(provider, countryCode) {
			cfg, err := r.FindActiveGatewayConfig(ctx, provider, region)
			if err != nil {
				if errors.Is(err, ErrGatewayNotConfigured) {
					continue
				}
				return nil, err
			}
			if cfg != nil {
				providers = append(providers, provider)
				break
			}
		}
	}
	return providers, nil
}

// RecordWebhookEvent records a provider event id and reports whether the event
// is new. A false return means the event was already processed.
func (r *PostgresRepository) RecordWebhookEvent(ctx context.Context, provider, eventID string) (bool, error) {
	query := `
		INSERT INTO webhook_events (provider, event_id, received_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (provider, event_id) DO NOTHING`
	tag, err := r.db.Exec(ctx, query, provider, eventID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
