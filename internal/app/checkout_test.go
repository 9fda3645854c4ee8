package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ticketrack/payments-service/internal/domain"
	"github.com/ticketrack/payments-service/internal/store"
	"github.com/ticketrack/payments-service/pkg/messaging"
	"github.com/ticketrack/payments-service/pkg/payments"
)

type countingProvider struct {
	name     string
	sessions int
	lastSpec payments.SessionSpec
}

func (p *countingProvider) Name() string { return p.name }

func (p *countingProvider) CreateSession(ctx context.Context, spec payments.SessionSpec) (*payments.SessionResult, error) {
	p.sessions++
	p.lastSpec = spec
	return &payments.SessionResult{Provider: p.name, SessionID: "sess_1", RedirectURL: "https://checkout.example.com/sess_1"}, nil
}

type checkoutRepoStub struct {
	store.Repository

	share *domain.PaymentShare
	split *domain.SplitPaymentRequest
	event *domain.Event
	order *domain.Order

	gateways map[string]*domain.GatewayConfig // keyed provider/region

	shareRefProvider  string
	shareRefSessionID string
	orderRefSet       bool
}

func (s *checkoutRepoStub) FindShareByPaymentToken(ctx context.Context, token string) (*domain.PaymentShare, error) {
	if s.share == nil || s.share.PaymentToken != token {
		return nil, store.ErrShareNotFound
	}
	return s.share, nil
}

func (s *checkoutRepoStub) FindSplitPaymentByID(ctx context.Context, splitID uuid.UUID) (*domain.SplitPaymentRequest, error) {
	return s.split, nil
}

func (s *checkoutRepoStub) FindEventByID(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	return s.event, nil
}

func (s *checkoutRepoStub) FindOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	if s.order == nil {
		return nil, store.ErrOrderNotFound
	}
	return s.order, nil
}

func (s *checkoutRepoStub) FindActiveGatewayConfig(ctx context.Context, provider, countryCode string) (*domain.GatewayConfig, error) {
	cfg, ok := s.gateways[provider+"/"+countryCode]
	if !ok {
		return nil, store.ErrGatewayNotConfigured
	}
	return cfg, nil
}

func (s *checkoutRepoStub) SetSharePaymentReference(ctx context.Context, shareID uuid.UUID, provider, sessionID string) error {
	s.shareRefProvider = provider
	s.shareRefSessionID = sessionID
	return nil
}

func (s *checkoutRepoStub) SetOrderPaymentReference(ctx context.Context, orderID uuid.UUID, provider, sessionID string) error {
	s.orderRefSet = true
	return nil
}

func checkoutFixture() (*checkoutRepoStub, *countingProvider, *Service) {
	splitID := uuid.New()
	eventID := uuid.New()
	repo := &checkoutRepoStub{
		share: &domain.PaymentShare{
			ID:             uuid.New(),
			SplitPaymentID: splitID,
			Name:           "Ada",
			Email:          "ada@example.com",
			ShareAmount:    decimal.RequireFromString("5000.00"),
			Currency:       "NGN",
			PaymentStatus:  domain.ShareStatusPending,
			PaymentToken:   "tok_abc",
		},
		split: &domain.SplitPaymentRequest{
			ID:        splitID,
			EventID:   eventID,
			Status:    domain.SplitStatusPending,
			ExpiresAt: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		},
		event:    &domain.Event{ID: eventID, Title: "Lagos Tech Fest", Slug: "lagos-tech-fest", CountryCode: "NG", Currency: "NGN"},
		gateways: map[string]*domain.GatewayConfig{},
	}

	provider := &countingProvider{name: domain.ProviderPaystack}
	registry := payments.NewRegistry()
	registry.Register(domain.ProviderPaystack, func(secretKey string) payments.CheckoutProvider { return provider })
	registry.Register(domain.ProviderStripe, func(secretKey string) payments.CheckoutProvider { return provider })

	svc := NewService(repo, registry, &stubTicketingClient{}, messaging.NewDispatcher(), &recordingPublisher{}, "https://tickets.example.com")
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return repo, provider, svc
}

func TestCreateShareCheckout(t *testing.T) {
	t.Run("creates a session and persists the reference", func(t *testing.T) {
		repo, provider, svc := checkoutFixture()
		repo.gateways["paystack/NG"] = &domain.GatewayConfig{
			Provider:    domain.ProviderPaystack,
			CountryCode: "NG",
			SecretKey:   "sk_ng",
			CreatedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		}

		result, err := svc.CreateShareCheckout(context.Background(), "tok_abc", domain.ProviderPaystack)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.RedirectURL == "" {
			t.Fatal("expected a redirect URL")
		}
		if provider.sessions != 1 {
			t.Fatalf("expected one provider session, got %d", provider.sessions)
		}
		if provider.lastSpec.TargetKind != payments.TargetShare {
			t.Fatalf("expected share target kind, got %q", provider.lastSpec.TargetKind)
		}
		if repo.shareRefSessionID != "sess_1" {
			t.Fatalf("expected session reference persisted, got %q", repo.shareRefSessionID)
		}
	})

	t.Run("already paid share never reaches the gateway", func(t *testing.T) {
		repo, provider, svc := checkoutFixture()
		repo.share.PaymentStatus = domain.ShareStatusPaid
		repo.gateways["paystack/NG"] = &domain.GatewayConfig{Provider: domain.ProviderPaystack, CountryCode: "NG", SecretKey: "sk_ng"}

		if _, err := svc.CreateShareCheckout(context.Background(), "tok_abc", domain.ProviderPaystack); !errors.Is(err, ErrShareAlreadyPaid) {
			t.Fatalf("expected ErrShareAlreadyPaid, got %v", err)
		}
		if provider.sessions != 0 {
			t.Fatalf("expected no provider sessions, got %d", provider.sessions)
		}
	})

	t.Run("expired split is no longer payable", func(t *testing.T) {
		repo, provider, svc := checkoutFixture()
		repo.split.ExpiresAt = time.Date(2025, 5, 30, 12, 0, 0, 0, time.UTC)
		repo.gateways["paystack/NG"] = &domain.GatewayConfig{Provider: domain.ProviderPaystack, CountryCode: "NG", SecretKey: "sk_ng"}

		if _, err := svc.CreateShareCheckout(context.Background(), "tok_abc", domain.ProviderPaystack); !errors.Is(err, ErrSplitNotPayable) {
			t.Fatalf("expected ErrSplitNotPayable, got %v", err)
		}
		if provider.sessions != 0 {
			t.Fatalf("expected no provider sessions, got %d", provider.sessions)
		}
	})

	t.Run("falls back to a regional gateway config", func(t *testing.T) {
		repo, provider, svc := checkoutFixture()
		repo.event.CountryCode = "GH"
		repo.gateways["stripe/GB"] = &domain.GatewayConfig{Provider: domain.ProviderStripe, CountryCode: "GB", SecretKey: "sk_gb"}

		if _, err := svc.CreateShareCheckout(context.Background(), "tok_abc", domain.ProviderStripe); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if provider.sessions != 1 {
			t.Fatalf("expected one provider session, got %d", provider.sessions)
		}
	})

	t.Run("no configured region yields ErrProviderNotOffered", func(t *testing.T) {
		_, _, svc := checkoutFixture()

		if _, err := svc.CreateShareCheckout(context.Background(), "tok_abc", domain.ProviderPaystack); !errors.Is(err, ErrProviderNotOffered) {
			t.Fatalf("expected ErrProviderNotOffered, got %v", err)
		}
	})
}

func TestCreateOrderCheckout_SettledOrderIsRejected(t *testing.T) {
	repo, provider, svc := checkoutFixture()
	repo.order = &domain.Order{
		ID:          uuid.New(),
		EventID:     repo.event.ID,
		Status:      domain.OrderStatusCompleted,
		TotalAmount: decimal.RequireFromString("15000.00"),
		Currency:    "NGN",
	}
	repo.gateways["paystack/NG"] = &domain.GatewayConfig{Provider: domain.ProviderPaystack, CountryCode: "NG", SecretKey: "sk_ng"}

	if _, err := svc.CreateOrderCheckout(context.Background(), repo.order.ID, domain.ProviderPaystack); !errors.Is(err, ErrOrderAlreadySettled) {
		t.Fatalf("expected ErrOrderAlreadySettled, got %v", err)
	}
	if provider.sessions != 0 {
		t.Fatalf("expected no provider sessions, got %d", provider.sessions)
	}
}
