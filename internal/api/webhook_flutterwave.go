/**
 * @description
 * Flutterwave webhook endpoint. Deliveries are authenticated by comparing the
 * `verif-hash` header against the static hash configured on the Flutterwave
 * dashboard, in constant time.
 */

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ticketrack/payments-service/internal/domain"
	"github.com/ticketrack/payments-service/pkg/payments/flutterwaveclient"
)

type flutterwaveEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID     int64  `json:"id"`
		TxRef  string `json:"tx_ref"`
		Status string `json:"status"`
	} `json:"data"`
	MetaData map[string]string `json:"meta_data"`
}

// FlutterwaveWebhookHandler processes Flutterwave event deliveries.
func (h *WebhookHandlers) FlutterwaveWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	hash := r.Header.Get("verif-hash")
	if err := flutterwaveclient.VerifyHash(hash, h.secrets.FlutterwaveHash); err != nil {
		reject(w, domain.ProviderFlutterwave, err)
		return
	}

	var event flutterwaveEvent
	if err := json.Unmarshal(body, &event); err != nil {
		reject(w, domain.ProviderFlutterwave, err)
		return
	}

	if event.Event != "charge.completed" || event.Data.Status != "successful" {
		acknowledge(w, domain.ProviderFlutterwave, "ignored")
		return
	}

	isNew, err := h.service.RegisterWebhookEvent(r.Context(), domain.ProviderFlutterwave, fmt.Sprintf("%d", event.Data.ID))
	if err != nil {
		fail(w, domain.ProviderFlutterwave, err)
		return
	}
	if !isNew {
		acknowledge(w, domain.ProviderFlutterwave, "duplicate")
		return
	}

	err = h.settlePayment(r, domain.ProviderFlutterwave,
		event.MetaData["type"], event.MetaData["share_id"], event.MetaData["order_id"], event.Data.TxRef)
	if err != nil {
		fail(w, domain.ProviderFlutterwave, err)
		return
	}
	acknowledge(w, domain.ProviderFlutterwave, "processed")
}
