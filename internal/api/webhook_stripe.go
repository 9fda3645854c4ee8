/**
 * @description
 * Stripe webhook endpoint. Deliveries are authenticated with Stripe's signed
 * `Stripe-Signature` header (timestamped HMAC-SHA256 over the raw body)
 * before any parsing of the payload is trusted.
 */

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ticketrack/payments-service/internal/domain"
	"github.com/ticketrack/payments-service/pkg/payments/stripeclient"
)

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeCheckoutSession struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// StripeWebhookHandler processes Stripe event deliveries.
func (h *WebhookHandlers) StripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if err := stripeclient.VerifySignature(body, sigHeader, h.secrets.StripeSigningSecret, stripeclient.DefaultSignatureTolerance, time.Now()); err != nil {
		reject(w, domain.ProviderStripe, err)
		return
	}

	var event stripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		reject(w, domain.ProviderStripe, err)
		return
	}

	if event.Type != "checkout.session.completed" {
		acknowledge(w, domain.ProviderStripe, "ignored")
		return
	}

	isNew, err := h.service.RegisterWebhookEvent(r.Context(), domain.ProviderStripe, event.ID)
	if err != nil {
		fail(w, domain.ProviderStripe, err)
		return
	}
	if !isNew {
		acknowledge(w, domain.ProviderStripe, "duplicate")
		return
	}

	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		fail(w, domain.ProviderStripe, err)
		return
	}

	err = h.settlePayment(r, domain.ProviderStripe,
		session.Metadata["type"], session.Metadata["share_id"], session.Metadata["order_id"], session.ID)
	if err != nil {
		fail(w, domain.ProviderStripe, err)
		return
	}
	acknowledge(w, domain.ProviderStripe, "processed")
}
