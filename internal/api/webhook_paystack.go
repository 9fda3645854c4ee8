/**
 * @description
 * Paystack webhook endpoint. Deliveries are authenticated by recomputing the
 * HMAC-SHA512 of the raw body with the account secret key and comparing it to
 * the `x-paystack-signature` header.
 */

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ticketrack/payments-service/internal/domain"
	"github.com/ticketrack/payments-service/pkg/payments/paystackclient"
)

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64             `json:"id"`
		Reference string            `json:"reference"`
		Status    string            `json:"status"`
		Metadata  map[string]string `json:"metadata"`
	} `json:"data"`
}

// PaystackWebhookHandler processes Paystack event deliveries.
func (h *WebhookHandlers) PaystackWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	signature := r.Header.Get("x-paystack-signature")
	if err := paystackclient.VerifySignature(body, signature, h.secrets.PaystackSecretKey); err != nil {
		reject(w, domain.ProviderPaystack, err)
		return
	}

	var event paystackEvent
	if err := json.Unmarshal(body, &event); err != nil {
		reject(w, domain.ProviderPaystack, err)
		return
	}

	if event.Event != "charge.success" {
		acknowledge(w, domain.ProviderPaystack, "ignored")
		return
	}

	isNew, err := h.service.RegisterWebhookEvent(r.Context(), domain.ProviderPaystack, fmt.Sprintf("%d", event.Data.ID))
	if err != nil {
		fail(w, domain.ProviderPaystack, err)
		return
	}
	if !isNew {
		acknowledge(w, domain.ProviderPaystack, "duplicate")
		return
	}

	err = h.settlePayment(r, domain.ProviderPaystack,
		event.Data.Metadata["type"], event.Data.Metadata["share_id"], event.Data.Metadata["order_id"], event.Data.Reference)
	if err != nil {
		fail(w, domain.ProviderPaystack, err)
		return
	}
	acknowledge(w, domain.ProviderPaystack, "processed")
}
