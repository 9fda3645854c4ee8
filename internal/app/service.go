/**
 * @description
 * This file contains the core business logic for the payments service. The
 * `Service` struct orchestrates checkout session creation, coordinating
 * between the database repository, the gateway provider registry, the
 * ticketing service client, the messaging dispatcher, and the message broker.
 *
 * Key features:
 * - Resolves the gateway configuration for a provider and event country,
 *   walking regional fallbacks.
 * - Creates hosted checkout sessions for orders and for split payment shares
 *   through one provider-agnostic interface.
 * - Refuses to create a session for a share that is already paid, before any
 *   provider call is made.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/payments, pkg/messaging, pkg/ticketing, pkg/rabbitmq: For external
 *   service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ticketrack/payments-service/internal/domain"
	"github.com/ticketrack/payments-service/internal/monitoring"
	"github.com/ticketrack/payments-service/internal/store"
	"github.com/ticketrack/payments-service/pkg/messaging"
	"github.com/ticketrack/payments-service/pkg/payments"
	"github.com/ticketrack/payments-service/pkg/rabbitmq"
	"github.com/ticketrack/payments-service/pkg/ticketing"
)

var (
	ErrShareAlreadyPaid    = errors.New("share has already been paid")
	ErrOrderAlreadySettled = errors.New("order has already been settled")
	ErrSplitNotPayable     = errors.New("split payment is no longer accepting payments")
	ErrProviderNotOffered  = errors.New("payment provider not available for this event")
)

// TicketingClient is the subset of the ticketing service client the payments
// service depends on.
type TicketingClient interface {
	CreateGroupOrder(ctx context.Context, payload ticketing.CreateGroupOrderRequest) (*ticketing.CreateGroupOrderResponse, error)
	ReleaseHold(ctx context.Context, payload ticketing.ReleaseHoldRequest) error
}

// Service provides the core business logic for payments.
type Service struct {
	repo          store.Repository
	providers     *payments.Registry
	ticketing     TicketingClient
	dispatcher    *messaging.Dispatcher
	eventProducer rabbitmq.Publisher
	baseURL       string
	now           func() time.Time
}

// NewService creates a new payments service instance. baseURL is the public
// storefront origin used to build success, cancel, and pay-link URLs.
func NewService(repo store.Repository, providers *payments.Registry, ticketingClient TicketingClient, dispatcher *messaging.Dispatcher, producer rabbitmq.Publisher, baseURL string) *Service {
	return &Service{
		repo:          repo,
		providers:     providers,
		ticketing:     ticketingClient,
		dispatcher:    dispatcher,
		eventProducer: producer,
		baseURL:       strings.TrimRight(baseURL, "/"),
		now:           time.Now,
	}
}

// resolveGateway finds the active gateway configuration for a provider and an
// event's country, walking the provider's regional fallbacks in order.
func (s *Service) resolveGateway(ctx context.Context, provider, countryCode string) (*domain.GatewayConfig, error) {
	for _, region := range domain.GatewayFallbackRegions(provider, countryCode) {
		cfg, err := s.repo.FindActiveGatewayConfig(ctx, provider, region)
		if err != nil {
			if errors.Is(err, store.ErrGatewayNotConfigured) {
				continue
			}
			return nil, err
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("%w: provider=%s country=%s", ErrProviderNotOffered, provider, countryCode)
}

// ListProvidersForEvent returns the provider names a buyer can pay with for an
// event, based on active gateway configurations for the event's country.
func (s *Service) ListProvidersForEvent(ctx context.Context, eventID uuid.UUID) ([]string, error) {
	event, err := s.repo.FindEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListActiveProvidersForCountry(ctx, event.CountryCode)
}

// CreateOrderCheckout creates a hosted checkout session for a regular order.
func (s *Service) CreateOrderCheckout(ctx context.Context, orderID uuid.UUID, provider string) (*payments.SessionResult, error) {
	order, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusPending {
		return nil, ErrOrderAlreadySettled
	}

	event, err := s.repo.FindEventByID(ctx, order.EventID)
	if err != nil {
		return nil, err
	}

	spec := payments.SessionSpec{
		TargetKind: payments.TargetOrder,
		TargetID:   order.ID.String(),
		EventID:    event.ID.String(),
		EventTitle: event.Title,
		PayerEmail: order.BuyerEmail,
		PayerName:  order.BuyerName,
		Amount:     order.TotalAmount,
		Currency:   order.Currency,
		Reference:  newPaymentReference("ord"),
		SuccessURL: fmt.Sprintf("%s/e/%s/checkout/success?order=%s", s.baseURL, event.Slug, order.ID),
		CancelURL:  fmt.Sprintf("%s/e/%s/checkout?order=%s", s.baseURL, event.Slug, order.ID),
	}

	result, err := s.createSession(ctx, provider, event.CountryCode, spec)
	if err != nil {
		monitoring.TrackCheckoutSession(provider, payments.TargetOrder, "error")
		return nil, err
	}

	if err := s.repo.SetOrderPaymentReference(ctx, order.ID, result.Provider, result.SessionID); err != nil {
		return nil, fmt.Errorf("failed to attach payment reference to order: %w", err)
	}

	monitoring.TrackCheckoutSession(provider, payments.TargetOrder, "created")
	return result, nil
}

// CreateShareCheckout creates a hosted checkout session for one payment share,
// looked up by its pay-link token. An already paid share never reaches the
// gateway: the check runs before any provider call.
func (s *Service) CreateShareCheckout(ctx context.Context, token string, provider string) (*payments.SessionResult, error) {
	share, err := s.repo.FindShareByPaymentToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if share.PaymentStatus == domain.ShareStatusPaid {
		return nil, ErrShareAlreadyPaid
	}

	split, err := s.repo.FindSplitPaymentByID(ctx, share.SplitPaymentID)
	if err != nil {
		return nil, err
	}
	if split.Status != domain.SplitStatusPending || !split.ExpiresAt.After(s.now()) {
		return nil, ErrSplitNotPayable
	}

	event, err := s.repo.FindEventByID(ctx, split.EventID)
	if err != nil {
		return nil, err
	}

	spec := payments.SessionSpec{
		TargetKind:     payments.TargetShare,
		TargetID:       share.ID.String(),
		SplitPaymentID: split.ID.String(),
		EventID:        event.ID.String(),
		EventTitle:     event.Title,
		PayerEmail:     share.Email,
		PayerName:      share.Name,
		Amount:         share.ShareAmount,
		Currency:       share.Currency,
		Reference:      newPaymentReference("shr"),
		SuccessURL:     fmt.Sprintf("%s/pay-share/%s/success", s.baseURL, share.PaymentToken),
		CancelURL:      fmt.Sprintf("%s/pay-share/%s", s.baseURL, share.PaymentToken),
	}

	result, err := s.createSession(ctx, provider, event.CountryCode, spec)
	if err != nil {
		monitoring.TrackCheckoutSession(provider, payments.TargetShare, "error")
		return nil, err
	}

	if err := s.repo.SetSharePaymentReference(ctx, share.ID, result.Provider, result.SessionID); err != nil {
		return nil, fmt.Errorf("failed to attach payment reference to share: %w", err)
	}

	monitoring.TrackCheckoutSession(provider, payments.TargetShare, "created")
	return result, nil
}

// createSession resolves the gateway credentials and delegates to the
// provider client.
func (s *Service) createSession(ctx context.Context, provider, countryCode string, spec payments.SessionSpec) (*payments.SessionResult, error) {
	gateway, err := s.resolveGateway(ctx, provider, countryCode)
	if err != nil {
		return nil, err
	}

	client, err := s.providers.Provider(provider, gateway.SecretKey)
	if err != nil {
		return nil, err
	}

	result, err := client.CreateSession(ctx, spec)
	if err != nil {
		log.Printf("level=error component=checkout msg=\"session creation failed\" provider=%s target=%s err=%v", provider, spec.TargetKind, err)
		return nil, fmt.Errorf("failed to create %s checkout session: %w", provider, err)
	}
	return result, nil
}

// RegisterWebhookEvent records a provider event id and reports whether it is
// new. Handlers skip processing for deliveries seen before.
func (s *Service) RegisterWebhookEvent(ctx context.Context, provider, eventID string) (bool, error) {
	if strings.TrimSpace(eventID) == "" {
		return true, nil
	}
	return s.repo.RecordWebhookEvent(ctx, provider, eventID)
}

// newPaymentReference builds a unique provider-facing reference.
func newPaymentReference(prefix string) string {
	return fmt.Sprintf("tkt_%s_%s", prefix, strings.ReplaceAll(uuid.New().String(), "-", ""))
}
