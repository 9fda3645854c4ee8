package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ticketrack/payments-service/internal/domain"
	"github.com/ticketrack/payments-service/internal/store"
)

type lifecycleRepoStub struct {
	store.Repository

	event *domain.Event

	createdSplit  *domain.SplitPaymentRequest
	createdShares []domain.PaymentShare

	cancelResult bool
	expired      []domain.SplitPaymentRequest
}

func (s *lifecycleRepoStub) FindEventByID(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	return s.event, nil
}

func (s *lifecycleRepoStub) CreateSplitPaymentWithShares(ctx context.Context, sp *domain.SplitPaymentRequest, shares []domain.PaymentShare) error {
	s.createdSplit = sp
	s.createdShares = shares
	return nil
}

func (s *lifecycleRepoStub) CancelSplitPayment(ctx context.Context, splitID uuid.UUID, initiatedBy uuid.UUID) (bool, error) {
	return s.cancelResult, nil
}

func (s *lifecycleRepoStub) ExpirePendingSplitPaymentsPastDeadline(ctx context.Context, now time.Time) ([]domain.SplitPaymentRequest, error) {
	return s.expired, nil
}

func (s *lifecycleRepoStub) FindSharesBySplitPaymentID(ctx context.Context, splitID uuid.UUID) ([]domain.PaymentShare, error) {
	return []domain.PaymentShare{{
		ID:             uuid.New(),
		SplitPaymentID: splitID,
		Name:           "Ada",
		Email:          "ada@example.com",
	}}, nil
}

func splitPayload(members int) domain.CreateSplitPaymentPayload {
	payload := domain.CreateSplitPaymentPayload{
		EventID:     uuid.New(),
		TotalAmount: decimal.RequireFromString("28000.00"),
		ServiceFee:  decimal.RequireFromString("2000.00"),
		Currency:    "NGN",
		SplitType:   domain.SplitTypeEqual,
		TicketSelection: []domain.TicketSelection{
			{TicketTypeID: uuid.New(), Quantity: members, Price: decimal.RequireFromString("9500.00")},
		},
	}
	for i := 0; i < members; i++ {
		payload.Members = append(payload.Members, domain.SplitMember{
			Name:  "Payer",
			Email: "payer@example.com",
		})
	}
	return payload
}

func TestCreateSplitPayment(t *testing.T) {
	event := &domain.Event{ID: uuid.New(), Title: "Lagos Tech Fest", Slug: "lagos-tech-fest", CountryCode: "NG", Currency: "NGN"}

	t.Run("creates one share per member with unique pay tokens", func(t *testing.T) {
		repo := &lifecycleRepoStub{event: event}
		email := &recordingMessenger{}
		svc := newTestService(repo, &stubTicketingClient{}, email, &recordingPublisher{})

		sp, shares, err := svc.CreateSplitPayment(context.Background(), uuid.New(), splitPayload(3))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !sp.GrandTotal.Equal(decimal.RequireFromString("30000.00")) {
			t.Fatalf("expected grand total 30000.00, got %s", sp.GrandTotal)
		}
		if len(shares) != 3 {
			t.Fatalf("expected 3 shares, got %d", len(shares))
		}
		tokens := map[string]bool{}
		for _, share := range shares {
			if share.PaymentToken == "" {
				t.Fatal("expected a payment token on every share")
			}
			tokens[share.PaymentToken] = true
		}
		if len(tokens) != 3 {
			t.Fatalf("expected unique tokens, got %d distinct of 3", len(tokens))
		}
		if len(email.sent) != 3 {
			t.Fatalf("expected one invite email per member, got %d", len(email.sent))
		}
		if !strings.Contains(email.sent[0].Body, shares[0].PaymentToken) {
			t.Fatal("expected the invite to carry the member's pay link")
		}
	})

	t.Run("deadline defaults to 48 hours and caps at a week", func(t *testing.T) {
		repo := &lifecycleRepoStub{event: event}
		svc := newTestService(repo, &stubTicketingClient{}, &recordingMessenger{}, &recordingPublisher{})
		now := svc.now()

		sp, _, err := svc.CreateSplitPayment(context.Background(), uuid.New(), splitPayload(2))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !sp.ExpiresAt.Equal(now.Add(48 * time.Hour)) {
			t.Fatalf("expected default 48h deadline, got %s", sp.ExpiresAt)
		}

		capped := splitPayload(2)
		capped.DeadlineHours = 500
		sp, _, err = svc.CreateSplitPayment(context.Background(), uuid.New(), capped)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !sp.ExpiresAt.Equal(now.Add(168 * time.Hour)) {
			t.Fatalf("expected deadline capped at 168h, got %s", sp.ExpiresAt)
		}
	})

	t.Run("rejects a one-member split", func(t *testing.T) {
		repo := &lifecycleRepoStub{event: event}
		svc := newTestService(repo, &stubTicketingClient{}, &recordingMessenger{}, &recordingPublisher{})

		if _, _, err := svc.CreateSplitPayment(context.Background(), uuid.New(), splitPayload(1)); !errors.Is(err, ErrTooFewMembers) {
			t.Fatalf("expected ErrTooFewMembers, got %v", err)
		}
		if repo.createdSplit != nil {
			t.Fatal("nothing must be persisted for an invalid payload")
		}
	})

	t.Run("rejects an oversized group", func(t *testing.T) {
		repo := &lifecycleRepoStub{event: event}
		svc := newTestService(repo, &stubTicketingClient{}, &recordingMessenger{}, &recordingPublisher{})

		if _, _, err := svc.CreateSplitPayment(context.Background(), uuid.New(), splitPayload(21)); !errors.Is(err, ErrTooManyMembers) {
			t.Fatalf("expected ErrTooManyMembers, got %v", err)
		}
	})
}

func TestCancelSplitPayment(t *testing.T) {
	t.Run("cancels a pending request", func(t *testing.T) {
		repo := &lifecycleRepoStub{cancelResult: true}
		svc := newTestService(repo, &stubTicketingClient{}, &recordingMessenger{}, &recordingPublisher{})

		if err := svc.CancelSplitPayment(context.Background(), uuid.New(), uuid.New()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("reports a request that cannot be cancelled", func(t *testing.T) {
		repo := &lifecycleRepoStub{cancelResult: false}
		svc := newTestService(repo, &stubTicketingClient{}, &recordingMessenger{}, &recordingPublisher{})

		if err := svc.CancelSplitPayment(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, ErrNotCancellable) {
			t.Fatalf("expected ErrNotCancellable, got %v", err)
		}
	})
}

func TestExpirePendingSplitPayments(t *testing.T) {
	expired := []domain.SplitPaymentRequest{
		{ID: uuid.New(), EventID: uuid.New()},
		{ID: uuid.New(), EventID: uuid.New()},
	}
	repo := &lifecycleRepoStub{
		expired: expired,
		event:   &domain.Event{ID: uuid.New(), Title: "Lagos Tech Fest", CountryCode: "NG"},
	}
	publisher := &recordingPublisher{}
	ticketingClient := &stubTicketingClient{}
	email := &recordingMessenger{}
	svc := newTestService(repo, ticketingClient, email, publisher)

	count, err := svc.ExpirePendingSplitPayments(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 expired, got %d", count)
	}
	if ticketingClient.releaseCalls != 2 {
		t.Fatalf("expected a hold release per expired split, got %d", ticketingClient.releaseCalls)
	}
	if len(email.sent) != 2 {
		t.Fatalf("expected an expiry notice per split, got %d", len(email.sent))
	}
	for _, key := range publisher.routingKeys {
		if key != "split.expired" {
			t.Fatalf("unexpected routing key %q", key)
		}
	}
	if len(publisher.routingKeys) != 2 {
		t.Fatalf("expected 2 expiry events, got %d", len(publisher.routingKeys))
	}
}
