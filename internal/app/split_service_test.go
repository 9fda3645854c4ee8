package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ticketrack/payments-service/internal/domain"
	"github.com/ticketrack/payments-service/internal/store"
	"github.com/ticketrack/payments-service/pkg/messaging"
	"github.com/ticketrack/payments-service/pkg/payments"
	"github.com/ticketrack/payments-service/pkg/ticketing"
)

type recordingMessenger struct {
	sent []messaging.Message
	err  error
}

func (m *recordingMessenger) Channel() string { return messaging.ChannelEmail }

func (m *recordingMessenger) Send(ctx context.Context, msg messaging.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type recordingPublisher struct {
	routingKeys []string
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.routingKeys = append(p.routingKeys, routingKey)
	return nil
}

func (p *recordingPublisher) Close() {}

type stubTicketingClient struct {
	createCalls  int
	releaseCalls int
	orderID      string
	orderNumber  string
	createErr    error
}

func (c *stubTicketingClient) CreateGroupOrder(ctx context.Context, payload ticketing.CreateGroupOrderRequest) (*ticketing.CreateGroupOrderResponse, error) {
	c.createCalls++
	if c.createErr != nil {
		return nil, c.createErr
	}
	return &ticketing.CreateGroupOrderResponse{
		OrderID:     c.orderID,
		OrderNumber: c.orderNumber,
		TicketCount: 3,
	}, nil
}

func (c *stubTicketingClient) ReleaseHold(ctx context.Context, payload ticketing.ReleaseHoldRequest) error {
	c.releaseCalls++
	return nil
}

type confirmRepoStub struct {
	store.Repository

	split  *domain.SplitPaymentRequest
	shares []domain.PaymentShare
	event  *domain.Event

	markPaidResult      bool
	completeResult      bool
	markPaidCalled      bool
	completeCalled      bool
	attachedOrderID     uuid.UUID
	groupOrderRecorded  bool
	groupOrderRecord    *domain.Order
}

func (s *confirmRepoStub) MarkSharePaid(ctx context.Context, shareID uuid.UUID, reference, method string, paidAt time.Time) (bool, error) {
	s.markPaidCalled = true
	return s.markPaidResult, nil
}

func (s *confirmRepoStub) CompleteSplitPaymentIfAllPaid(ctx context.Context, splitID uuid.UUID, completedAt time.Time) (bool, error) {
	s.completeCalled = true
	return s.completeResult, nil
}

func (s *confirmRepoStub) FindShareByID(ctx context.Context, shareID uuid.UUID) (*domain.PaymentShare, error) {
	for i := range s.shares {
		if s.shares[i].ID == shareID {
			return &s.shares[i], nil
		}
	}
	return nil, store.ErrShareNotFound
}

func (s *confirmRepoStub) FindSplitPaymentByID(ctx context.Context, splitID uuid.UUID) (*domain.SplitPaymentRequest, error) {
	return s.split, nil
}

func (s *confirmRepoStub) FindSharesBySplitPaymentID(ctx context.Context, splitID uuid.UUID) ([]domain.PaymentShare, error) {
	return s.shares, nil
}

func (s *confirmRepoStub) FindEventByID(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	return s.event, nil
}

func (s *confirmRepoStub) AttachOrderToSplitPayment(ctx context.Context, splitID uuid.UUID, orderID uuid.UUID) error {
	s.attachedOrderID = orderID
	return nil
}

func (s *confirmRepoStub) CreateGroupOrderRecord(ctx context.Context, order *domain.Order) error {
	s.groupOrderRecorded = true
	s.groupOrderRecord = order
	return nil
}

func newTestService(repo store.Repository, ticketingClient TicketingClient, email *recordingMessenger, publisher *recordingPublisher) *Service {
	dispatcher := messaging.NewDispatcher()
	dispatcher.Register(email)
	svc := NewService(repo, payments.NewRegistry(), ticketingClient, dispatcher, publisher, "https://tickets.example.com")
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func testSplitFixture(members int) (*domain.SplitPaymentRequest, []domain.PaymentShare, *domain.Event) {
	splitID := uuid.New()
	eventID := uuid.New()
	sp := &domain.SplitPaymentRequest{
		ID:         splitID,
		EventID:    eventID,
		GrandTotal: decimal.RequireFromString("30000.00"),
		Currency:   "NGN",
		Status:     domain.SplitStatusPending,
		ExpiresAt:  time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC),
		TicketSelection: []domain.TicketSelection{
			{TicketTypeID: uuid.New(), Quantity: members, Price: decimal.RequireFromString("10000.00")},
		},
	}
	shares := make([]domain.PaymentShare, 0, members)
	for i := 0; i < members; i++ {
		shares = append(shares, domain.PaymentShare{
			ID:             uuid.New(),
			SplitPaymentID: splitID,
			Name:           "Payer",
			Email:          "payer@example.com",
			ShareAmount:    decimal.RequireFromString("10000.00"),
			Currency:       "NGN",
			PaymentStatus:  domain.ShareStatusPaid,
			PaymentToken:   "tok",
		})
	}
	event := &domain.Event{ID: eventID, Title: "Lagos Tech Fest", Slug: "lagos-tech-fest", CountryCode: "NG", Currency: "NGN"}
	return sp, shares, event
}

func TestConfirmSharePayment_LastShareCompletesSplitOnce(t *testing.T) {
	sp, shares, event := testSplitFixture(3)
	orderID := uuid.New()
	repo := &confirmRepoStub{
		split:          sp,
		shares:         shares,
		event:          event,
		markPaidResult: true,
		completeResult: true,
	}
	email := &recordingMessenger{}
	publisher := &recordingPublisher{}
	ticketingClient := &stubTicketingClient{orderID: orderID.String(), orderNumber: "TKT-1042"}
	svc := newTestService(repo, ticketingClient, email, publisher)

	if err := svc.ConfirmSharePayment(context.Background(), shares[2].ID, domain.ProviderPaystack, "ref_123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ticketingClient.createCalls != 1 {
		t.Fatalf("expected exactly one group order creation, got %d", ticketingClient.createCalls)
	}
	if repo.attachedOrderID != orderID {
		t.Fatalf("expected order %s attached to split, got %s", orderID, repo.attachedOrderID)
	}
	if !repo.groupOrderRecorded {
		t.Fatal("expected local group order record to be created")
	}
	if len(email.sent) != 3 {
		t.Fatalf("expected one confirmation email per payer (3), got %d", len(email.sent))
	}

	wantKeys := map[string]bool{}
	for _, key := range publisher.routingKeys {
		wantKeys[key] = true
	}
	if !wantKeys["split.share.paid"] || !wantKeys["split.completed"] {
		t.Fatalf("expected share paid and completion events, got %v", publisher.routingKeys)
	}
}

func TestConfirmSharePayment_DuplicateDeliveryIsNoOp(t *testing.T) {
	sp, shares, event := testSplitFixture(3)
	repo := &confirmRepoStub{
		split:          sp,
		shares:         shares,
		event:          event,
		markPaidResult: false,
	}
	email := &recordingMessenger{}
	publisher := &recordingPublisher{}
	ticketingClient := &stubTicketingClient{orderID: uuid.New().String()}
	svc := newTestService(repo, ticketingClient, email, publisher)

	if err := svc.ConfirmSharePayment(context.Background(), shares[0].ID, domain.ProviderStripe, "cs_abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.completeCalled {
		t.Fatal("completion must not be attempted for a duplicate confirmation")
	}
	if ticketingClient.createCalls != 0 {
		t.Fatalf("expected no group order creation, got %d", ticketingClient.createCalls)
	}
	if len(email.sent) != 0 {
		t.Fatalf("expected no emails, got %d", len(email.sent))
	}
	if len(publisher.routingKeys) != 0 {
		t.Fatalf("expected no events, got %v", publisher.routingKeys)
	}
}

func TestConfirmSharePayment_NotLastShareDoesNotComplete(t *testing.T) {
	sp, shares, event := testSplitFixture(3)
	repo := &confirmRepoStub{
		split:          sp,
		shares:         shares,
		event:          event,
		markPaidResult: true,
		completeResult: false,
	}
	email := &recordingMessenger{}
	publisher := &recordingPublisher{}
	ticketingClient := &stubTicketingClient{}
	svc := newTestService(repo, ticketingClient, email, publisher)

	if err := svc.ConfirmSharePayment(context.Background(), shares[0].ID, domain.ProviderFlutterwave, "tx_ref_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !repo.completeCalled {
		t.Fatal("expected completion check to run")
	}
	if ticketingClient.createCalls != 0 {
		t.Fatalf("expected no group order creation, got %d", ticketingClient.createCalls)
	}
	if len(email.sent) != 0 {
		t.Fatalf("expected no confirmation emails yet, got %d", len(email.sent))
	}
}

func TestSplitAmounts(t *testing.T) {
	eq := func(amounts []decimal.Decimal, want ...string) bool {
		if len(amounts) != len(want) {
			return false
		}
		for i := range want {
			if !amounts[i].Equal(decimal.RequireFromString(want[i])) {
				return false
			}
		}
		return true
	}

	t.Run("equal split distributes remainder cents to first members", func(t *testing.T) {
		payload := domain.CreateSplitPaymentPayload{
			SplitType: domain.SplitTypeEqual,
			Members:   []domain.SplitMember{{}, {}, {}},
		}
		amounts, err := splitAmounts(payload, decimal.RequireFromString("100.00"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !eq(amounts, "33.34", "33.33", "33.33") {
			t.Fatalf("unexpected amounts: %v", amounts)
		}
	})

	t.Run("custom split must sum to grand total", func(t *testing.T) {
		a := decimal.RequireFromString("40.00")
		b := decimal.RequireFromString("50.00")
		payload := domain.CreateSplitPaymentPayload{
			SplitType: domain.SplitTypeCustom,
			Members:   []domain.SplitMember{{Amount: &a}, {Amount: &b}},
		}
		if _, err := splitAmounts(payload, decimal.RequireFromString("100.00")); err != ErrSharesDoNotSum {
			t.Fatalf("expected ErrSharesDoNotSum, got %v", err)
		}
	})

	t.Run("custom split requires an amount per member", func(t *testing.T) {
		a := decimal.RequireFromString("40.00")
		payload := domain.CreateSplitPaymentPayload{
			SplitType: domain.SplitTypeCustom,
			Members:   []domain.SplitMember{{Amount: &a}, {}},
		}
		if _, err := splitAmounts(payload, decimal.RequireFromString("100.00")); err != ErrMissingShareAmnt {
			t.Fatalf("expected ErrMissingShareAmnt, got %v", err)
		}
	})
}
