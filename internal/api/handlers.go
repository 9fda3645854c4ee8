/**
 * @description
 * This file contains the HTTP handlers for the payments service's checkout
 * endpoints. Handlers are responsible for parsing incoming requests, calling
 * the appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ticketrack/payments-service/internal/app"
	"github.com/ticketrack/payments-service/internal/store"
	"github.com/ticketrack/payments-service/pkg/payments"
)

const (
	checkoutRateLimit       = 10
	checkoutRateLimitWindow = time.Minute
)

// RateLimiter throttles checkout session creation per target.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// PaymentHandlers holds the application service that handlers will use.
type PaymentHandlers struct {
	service     *app.Service
	rateLimiter RateLimiter
}

// NewPaymentHandlers creates a new instance of PaymentHandlers.
func NewPaymentHandlers(service *app.Service, rateLimiter RateLimiter) *PaymentHandlers {
	return &PaymentHandlers{service: service, rateLimiter: rateLimiter}
}

type checkoutRequest struct {
	Provider string `json:"provider"`
}

type checkoutResponse struct {
	Provider    string `json:"provider"`
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// ListProvidersHandler returns the payment providers available for an event.
func (h *PaymentHandlers) ListProvidersHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid event ID")
		return
	}

	providers, err := h.service.ListProvidersForEvent(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			h.writeError(w, http.StatusNotFound, "Event not found")
			return
		}
		log.Printf("level=error component=api msg=\"provider listing failed\" event_id=%s err=%v", eventID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list payment providers")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"providers": providers})
}

// OrderCheckoutHandler creates a hosted checkout session for an order.
func (h *PaymentHandlers) OrderCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Provider) == "" {
		h.writeError(w, http.StatusBadRequest, "Provider is required")
		return
	}

	if !h.allowCheckout(w, r, "checkout:order", orderID.String()) {
		return
	}

	result, err := h.service.CreateOrderCheckout(r.Context(), orderID, req.Provider)
	if err != nil {
		h.writeCheckoutError(w, err, "order", orderID.String())
		return
	}

	h.writeJSON(w, http.StatusCreated, checkoutResponse{
		Provider:    result.Provider,
		SessionID:   result.SessionID,
		RedirectURL: result.RedirectURL,
	})
}

type shareViewResponse struct {
	Share struct {
		Name          string `json:"name"`
		ShareAmount   string `json:"share_amount"`
		Currency      string `json:"currency"`
		PaymentStatus string `json:"payment_status"`
	} `json:"share"`
	SplitPayment struct {
		Status     string    `json:"status"`
		GrandTotal string    `json:"grand_total"`
		ExpiresAt  time.Time `json:"expires_at"`
		EventID    string    `json:"event_id"`
	} `json:"split_payment"`
}

// ShareViewHandler returns the pay-link view for one share. The token is the
// only credential: no account is required to pay a share.
func (h *PaymentHandlers) ShareViewHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	share, sp, err := h.service.GetShareByToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, store.ErrShareNotFound) {
			h.writeError(w, http.StatusNotFound, "Payment link not found")
			return
		}
		log.Printf("level=error component=api msg=\"share lookup failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to load payment link")
		return
	}

	var resp shareViewResponse
	resp.Share.Name = share.Name
	resp.Share.ShareAmount = share.ShareAmount.StringFixed(2)
	resp.Share.Currency = share.Currency
	resp.Share.PaymentStatus = share.PaymentStatus
	resp.SplitPayment.Status = sp.Status
	resp.SplitPayment.GrandTotal = sp.GrandTotal.StringFixed(2)
	resp.SplitPayment.ExpiresAt = sp.ExpiresAt
	resp.SplitPayment.EventID = sp.EventID.String()

	h.writeJSON(w, http.StatusOK, resp)
}

// ShareCheckoutHandler creates a hosted checkout session for one share,
// identified by its pay-link token.
func (h *PaymentHandlers) ShareCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Provider) == "" {
		h.writeError(w, http.StatusBadRequest, "Provider is required")
		return
	}

	if !h.allowCheckout(w, r, "checkout:share", token) {
		return
	}

	result, err := h.service.CreateShareCheckout(r.Context(), token, req.Provider)
	if err != nil {
		h.writeCheckoutError(w, err, "share", token)
		return
	}

	h.writeJSON(w, http.StatusCreated, checkoutResponse{
		Provider:    result.Provider,
		SessionID:   result.SessionID,
		RedirectURL: result.RedirectURL,
	})
}

// allowCheckout consumes the per-target rate limit and writes a 429 when it
// is exhausted.
func (h *PaymentHandlers) allowCheckout(w http.ResponseWriter, r *http.Request, scope, subject string) bool {
	if h.rateLimiter == nil {
		return true
	}
	count, retryAfter, err := h.rateLimiter.ConsumeRateLimit(r.Context(), scope, subject, checkoutRateLimit, checkoutRateLimitWindow)
	if err != nil {
		log.Printf("level=warn component=api msg=\"rate limiter unavailable\" scope=%s err=%v", scope, err)
		return true
	}
	if count > checkoutRateLimit {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		h.writeError(w, http.StatusTooManyRequests, "Too many checkout attempts. Please wait and try again.")
		return false
	}
	return true
}

func (h *PaymentHandlers) writeCheckoutError(w http.ResponseWriter, err error, target, id string) {
	switch {
	case errors.Is(err, store.ErrOrderNotFound), errors.Is(err, store.ErrShareNotFound):
		h.writeError(w, http.StatusNotFound, "Payment target not found")
	case errors.Is(err, app.ErrShareAlreadyPaid):
		h.writeError(w, http.StatusConflict, "This share has already been paid.")
	case errors.Is(err, app.ErrOrderAlreadySettled):
		h.writeError(w, http.StatusConflict, "This order has already been settled.")
	case errors.Is(err, app.ErrSplitNotPayable):
		h.writeError(w, http.StatusGone, "This split payment is no longer accepting payments.")
	case errors.Is(err, app.ErrProviderNotOffered), errors.Is(err, payments.ErrUnknownProvider):
		h.writeError(w, http.StatusBadRequest, "Payment provider not available for this event.")
	default:
		log.Printf("level=error component=api msg=\"checkout failed\" target=%s id=%s err=%v", target, id, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to create checkout session")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *PaymentHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *PaymentHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
