/**
 * @description
 * Shared plumbing for the gateway webhook endpoints. Every provider's handler
 * follows the same shape: read the raw body, authenticate the delivery with
 * the provider's own scheme, deduplicate by event id, then apply the payment
 * to its target (an order or a split payment share) from the metadata the
 * session was created with.
 *
 * A delivery that fails authentication is rejected with 400. A delivery for an
 * already-settled target is acknowledged with 200 so the provider stops
 * retrying.
 *
 * @dependencies
 * - io, log, net/http: Standard Go libraries.
 * - internal/app, internal/monitoring: Service logic and metrics.
 */

package api

import (
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/ticketrack/payments-service/internal/app"
	"github.com/ticketrack/payments-service/internal/monitoring"
	"github.com/ticketrack/payments-service/pkg/payments"
	"github.com/ticketrack/payments-service/pkg/payments/paypalclient"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookSecrets carries the per-provider credentials used to authenticate
// incoming webhook deliveries.
type WebhookSecrets struct {
	StripeSigningSecret string
	PaystackSecretKey   string
	FlutterwaveHash     string
	PayPalWebhookID     string
}

// WebhookHandlers holds the service and verification material for the
// gateway webhook endpoints.
type WebhookHandlers struct {
	service *app.Service
	secrets WebhookSecrets
	paypal  *paypalclient.Client
}

// NewWebhookHandlers creates a new instance of WebhookHandlers. paypal may be
// nil when the PayPal gateway is not configured.
func NewWebhookHandlers(service *app.Service, secrets WebhookSecrets, paypal *paypalclient.Client) *WebhookHandlers {
	return &WebhookHandlers{service: service, secrets: secrets, paypal: paypal}
}

// readBody reads and returns the raw request body, bounded to maxWebhookBody.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Unable to read request body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// settlePayment routes a verified payment confirmation to its target based on
// the metadata attached at session creation time.
func (h *WebhookHandlers) settlePayment(r *http.Request, provider, targetType, shareID, orderID, reference string) error {
	ctx := r.Context()

	switch targetType {
	case payments.TargetShare:
		id, err := uuid.Parse(shareID)
		if err != nil {
			log.Printf("level=warn component=webhooks msg=\"invalid share id in metadata\" provider=%s share_id=%q", provider, shareID)
			return nil
		}
		return h.service.ConfirmSharePayment(ctx, id, provider, reference)

	case payments.TargetOrder:
		id, err := uuid.Parse(orderID)
		if err != nil {
			log.Printf("level=warn component=webhooks msg=\"invalid order id in metadata\" provider=%s order_id=%q", provider, orderID)
			return nil
		}
		return h.service.SettleOrderPayment(ctx, id, provider, reference)

	default:
		// Not a payment this service created; acknowledge and move on.
		log.Printf("level=info component=webhooks msg=\"unrecognized payment metadata ignored\" provider=%s type=%q", provider, targetType)
		return nil
	}
}

// acknowledge finishes a webhook request, tracking the outcome.
func acknowledge(w http.ResponseWriter, provider, status string) {
	monitoring.TrackWebhookEvent(provider, status)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"received":true}`))
}

// reject finishes a webhook request that failed authentication.
func reject(w http.ResponseWriter, provider string, err error) {
	monitoring.TrackWebhookEvent(provider, "rejected")
	log.Printf("level=warn component=webhooks msg=\"webhook rejected\" provider=%s err=%v", provider, err)
	http.Error(w, "Invalid signature", http.StatusBadRequest)
}

// fail finishes a webhook request whose processing errored; the provider will
// redeliver.
func fail(w http.ResponseWriter, provider string, err error) {
	monitoring.TrackWebhookEvent(provider, "error")
	log.Printf("level=error component=webhooks msg=\"webhook processing failed\" provider=%s err=%v", provider, err)
	http.Error(w, "Processing failed", http.StatusInternalServerError)
}
