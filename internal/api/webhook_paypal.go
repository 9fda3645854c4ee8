/**
 * @description
 * PayPal webhook endpoint. PayPal deliveries carry transmission headers
 * rather than a locally verifiable HMAC, so authentication is a server-side
 * call to PayPal's verify-webhook-signature API before any processing.
 *
 * On CHECKOUT.ORDER.APPROVED the order is captured; the resulting
 * PAYMENT.CAPTURE.COMPLETED delivery settles the payment from the capture's
 * custom_id ("order:<id>" or "split_payment:<share_id>:<split_id>").
 */

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ticketrack/payments-service/internal/domain"
	"github.com/ticketrack/payments-service/pkg/payments"
	"github.com/ticketrack/payments-service/pkg/payments/paypalclient"
)

type paypalEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

type paypalResource struct {
	ID       string `json:"id"`
	CustomID string `json:"custom_id"`
}

// PayPalWebhookHandler processes PayPal event deliveries.
func (h *WebhookHandlers) PayPalWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if h.paypal == nil {
		reject(w, domain.ProviderPayPal, errors.New("paypal gateway not configured"))
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}

	verification := paypalclient.WebhookVerification{
		AuthAlgo:         r.Header.Get("Paypal-Auth-Algo"),
		CertURL:          r.Header.Get("Paypal-Cert-Url"),
		TransmissionID:   r.Header.Get("Paypal-Transmission-Id"),
		TransmissionSig:  r.Header.Get("Paypal-Transmission-Sig"),
		TransmissionTime: r.Header.Get("Paypal-Transmission-Time"),
		WebhookID:        h.secrets.PayPalWebhookID,
	}
	if err := h.paypal.VerifyWebhookSignature(r.Context(), verification, body); err != nil {
		reject(w, domain.ProviderPayPal, err)
		return
	}

	var event paypalEvent
	if err := json.Unmarshal(body, &event); err != nil {
		reject(w, domain.ProviderPayPal, err)
		return
	}

	isNew, err := h.service.RegisterWebhookEvent(r.Context(), domain.ProviderPayPal, event.ID)
	if err != nil {
		fail(w, domain.ProviderPayPal, err)
		return
	}
	if !isNew {
		acknowledge(w, domain.ProviderPayPal, "duplicate")
		return
	}

	var resource paypalResource
	if err := json.Unmarshal(event.Resource, &resource); err != nil {
		fail(w, domain.ProviderPayPal, err)
		return
	}

	switch event.EventType {
	case "CHECKOUT.ORDER.APPROVED":
		if _, err := h.paypal.CaptureOrder(r.Context(), resource.ID); err != nil {
			fail(w, domain.ProviderPayPal, err)
			return
		}
		acknowledge(w, domain.ProviderPayPal, "captured")

	case "PAYMENT.CAPTURE.COMPLETED":
		targetType, shareID, orderID := parsePayPalCustomID(resource.CustomID)
		if err := h.settlePayment(r, domain.ProviderPayPal, targetType, shareID, orderID, resource.ID); err != nil {
			fail(w, domain.ProviderPayPal, err)
			return
		}
		acknowledge(w, domain.ProviderPayPal, "processed")

	default:
		acknowledge(w, domain.ProviderPayPal, "ignored")
	}
}

// parsePayPalCustomID splits the custom_id set at order creation back into
// its target type and ids.
func parsePayPalCustomID(customID string) (targetType, shareID, orderID string) {
	parts := strings.Split(customID, ":")
	switch {
	case len(parts) >= 2 && parts[0] == payments.TargetShare:
		return payments.TargetShare, parts[1], ""
	case len(parts) == 2 && parts[0] == payments.TargetOrder:
		return payments.TargetOrder, "", parts[1]
	default:
		return "", "", ""
	}
}
