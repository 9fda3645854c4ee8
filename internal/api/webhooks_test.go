package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ticketrack/payments-service/internal/app"
	"github.com/ticketrack/payments-service/internal/domain"
	"github.com/ticketrack/payments-service/internal/store"
	"github.com/ticketrack/payments-service/pkg/messaging"
	"github.com/ticketrack/payments-service/pkg/payments"
	"github.com/ticketrack/payments-service/pkg/ticketing"
)

type webhookRepoStub struct {
	store.Repository

	seenEvent bool

	orderPaidID  uuid.UUID
	orderPaidRef string
	sharePaidID  uuid.UUID
	sharePaidRef string
}

func (s *webhookRepoStub) RecordWebhookEvent(ctx context.Context, provider, eventID string) (bool, error) {
	return !s.seenEvent, nil
}

func (s *webhookRepoStub) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, provider, reference string) (bool, error) {
	s.orderPaidID = orderID
	s.orderPaidRef = reference
	return true, nil
}

func (s *webhookRepoStub) FindOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return &domain.Order{
		ID:          orderID,
		EventID:     uuid.New(),
		BuyerEmail:  "buyer@example.com",
		TotalAmount: decimal.RequireFromString("15000.00"),
		Currency:    "NGN",
	}, nil
}

func (s *webhookRepoStub) MarkSharePaid(ctx context.Context, shareID uuid.UUID, reference, method string, paidAt time.Time) (bool, error) {
	s.sharePaidID = shareID
	s.sharePaidRef = reference
	return true, nil
}

func (s *webhookRepoStub) FindShareByID(ctx context.Context, shareID uuid.UUID) (*domain.PaymentShare, error) {
	return &domain.PaymentShare{
		ID:             shareID,
		SplitPaymentID: uuid.New(),
		Email:          "payer@example.com",
		ShareAmount:    decimal.RequireFromString("5000.00"),
		Currency:       "NGN",
	}, nil
}

func (s *webhookRepoStub) CompleteSplitPaymentIfAllPaid(ctx context.Context, splitID uuid.UUID, completedAt time.Time) (bool, error) {
	return false, nil
}

type webhookTicketingStub struct{}

func (webhookTicketingStub) CreateGroupOrder(ctx context.Context, payload ticketing.CreateGroupOrderRequest) (*ticketing.CreateGroupOrderResponse, error) {
	return nil, fmt.Errorf("not expected in webhook tests")
}

func (webhookTicketingStub) ReleaseHold(ctx context.Context, payload ticketing.ReleaseHoldRequest) error {
	return nil
}

func newWebhookFixture(repo *webhookRepoStub) *WebhookHandlers {
	service := app.NewService(repo, payments.NewRegistry(), webhookTicketingStub{}, messaging.NewDispatcher(), nil, "https://tickets.example.com")
	return NewWebhookHandlers(service, WebhookSecrets{
		StripeSigningSecret: "whsec_test",
		PaystackSecretKey:   "sk_test_abc",
		FlutterwaveHash:     "flw-secret-hash",
	}, nil)
}

func TestFlutterwaveWebhookHandler(t *testing.T) {
	orderID := uuid.New()
	payload := fmt.Sprintf(
		`{"event":"charge.completed","data":{"id":413,"tx_ref":"tkt_ord_ref","status":"successful"},"meta_data":{"type":"order","order_id":"%s"}}`,
		orderID,
	)

	t.Run("rejects a bad verification hash", func(t *testing.T) {
		repo := &webhookRepoStub{}
		handlers := newWebhookFixture(repo)

		req := httptest.NewRequest("POST", "/webhooks/flutterwave", bytes.NewBufferString(payload))
		req.Header.Set("verif-hash", "wrong-hash")
		rec := httptest.NewRecorder()
		handlers.FlutterwaveWebhookHandler(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if repo.orderPaidRef != "" {
			t.Fatal("a rejected delivery must not settle anything")
		}
	})

	t.Run("settles the order on a verified charge", func(t *testing.T) {
		repo := &webhookRepoStub{}
		handlers := newWebhookFixture(repo)

		req := httptest.NewRequest("POST", "/webhooks/flutterwave", bytes.NewBufferString(payload))
		req.Header.Set("verif-hash", "flw-secret-hash")
		rec := httptest.NewRecorder()
		handlers.FlutterwaveWebhookHandler(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if repo.orderPaidID != orderID {
			t.Fatalf("expected order %s settled, got %s", orderID, repo.orderPaidID)
		}
		if repo.orderPaidRef != "tkt_ord_ref" {
			t.Fatalf("expected tx_ref persisted as reference, got %q", repo.orderPaidRef)
		}
	})

	t.Run("acknowledges a duplicate delivery without settling", func(t *testing.T) {
		repo := &webhookRepoStub{seenEvent: true}
		handlers := newWebhookFixture(repo)

		req := httptest.NewRequest("POST", "/webhooks/flutterwave", bytes.NewBufferString(payload))
		req.Header.Set("verif-hash", "flw-secret-hash")
		rec := httptest.NewRecorder()
		handlers.FlutterwaveWebhookHandler(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if repo.orderPaidRef != "" {
			t.Fatal("a duplicate delivery must not settle anything")
		}
	})

	t.Run("ignores an unsuccessful charge", func(t *testing.T) {
		repo := &webhookRepoStub{}
		handlers := newWebhookFixture(repo)

		failedPayload := `{"event":"charge.completed","data":{"id":414,"tx_ref":"tkt_ord_ref","status":"failed"}}`
		req := httptest.NewRequest("POST", "/webhooks/flutterwave", bytes.NewBufferString(failedPayload))
		req.Header.Set("verif-hash", "flw-secret-hash")
		rec := httptest.NewRecorder()
		handlers.FlutterwaveWebhookHandler(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if repo.orderPaidRef != "" {
			t.Fatal("a failed charge must not settle anything")
		}
	})
}

func TestPaystackWebhookHandler(t *testing.T) {
	shareID := uuid.New()
	splitID := uuid.New()
	payload := fmt.Sprintf(
		`{"event":"charge.success","data":{"id":912,"reference":"tkt_shr_ref","metadata":{"type":"split_payment","share_id":"%s","split_payment_id":"%s"}}}`,
		shareID, splitID,
	)

	sign := func(body, secret string) string {
		mac := hmac.New(sha512.New, []byte(secret))
		mac.Write([]byte(body))
		return hex.EncodeToString(mac.Sum(nil))
	}

	t.Run("rejects a bad signature", func(t *testing.T) {
		repo := &webhookRepoStub{}
		handlers := newWebhookFixture(repo)

		req := httptest.NewRequest("POST", "/webhooks/paystack", bytes.NewBufferString(payload))
		req.Header.Set("x-paystack-signature", sign(payload, "sk_wrong"))
		rec := httptest.NewRecorder()
		handlers.PaystackWebhookHandler(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if repo.sharePaidRef != "" {
			t.Fatal("a rejected delivery must not settle anything")
		}
	})

	t.Run("confirms the share on a verified charge", func(t *testing.T) {
		repo := &webhookRepoStub{}
		handlers := newWebhookFixture(repo)

		req := httptest.NewRequest("POST", "/webhooks/paystack", bytes.NewBufferString(payload))
		req.Header.Set("x-paystack-signature", sign(payload, "sk_test_abc"))
		rec := httptest.NewRecorder()
		handlers.PaystackWebhookHandler(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if repo.sharePaidID != shareID {
			t.Fatalf("expected share %s confirmed, got %s", shareID, repo.sharePaidID)
		}
		if repo.sharePaidRef != "tkt_shr_ref" {
			t.Fatalf("expected reference persisted, got %q", repo.sharePaidRef)
		}
	})
}

func TestStripeWebhookHandler(t *testing.T) {
	shareID := uuid.New()
	payload := fmt.Sprintf(
		`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1","metadata":{"type":"split_payment","share_id":"%s"}}}}`,
		shareID,
	)

	signStripe := func(body, secret string, ts int64) string {
		mac := hmac.New(sha256.New, []byte(secret))
		fmt.Fprintf(mac, "%d.%s", ts, body)
		return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
	}

	t.Run("rejects a missing signature", func(t *testing.T) {
		repo := &webhookRepoStub{}
		handlers := newWebhookFixture(repo)

		req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewBufferString(payload))
		rec := httptest.NewRecorder()
		handlers.StripeWebhookHandler(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rejects a stale signature", func(t *testing.T) {
		repo := &webhookRepoStub{}
		handlers := newWebhookFixture(repo)

		req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewBufferString(payload))
		req.Header.Set("Stripe-Signature", signStripe(payload, "whsec_test", time.Now().Add(-time.Hour).Unix()))
		rec := httptest.NewRecorder()
		handlers.StripeWebhookHandler(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("confirms the share on a verified event", func(t *testing.T) {
		repo := &webhookRepoStub{}
		handlers := newWebhookFixture(repo)

		req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewBufferString(payload))
		req.Header.Set("Stripe-Signature", signStripe(payload, "whsec_test", time.Now().Unix()))
		rec := httptest.NewRecorder()
		handlers.StripeWebhookHandler(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if repo.sharePaidID != shareID {
			t.Fatalf("expected share %s confirmed, got %s", shareID, repo.sharePaidID)
		}
		if repo.sharePaidRef != "cs_test_1" {
			t.Fatalf("expected session id persisted as reference, got %q", repo.sharePaidRef)
		}
	})

	t.Run("ignores unrelated event types", func(t *testing.T) {
		repo := &webhookRepoStub{}
		handlers := newWebhookFixture(repo)

		other := `{"id":"evt_2","type":"invoice.paid","data":{"object":{}}}`
		req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewBufferString(other))
		req.Header.Set("Stripe-Signature", signStripe(other, "whsec_test", time.Now().Unix()))
		rec := httptest.NewRecorder()
		handlers.StripeWebhookHandler(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if repo.sharePaidRef != "" {
			t.Fatal("an unrelated event must not settle anything")
		}
	})
}
