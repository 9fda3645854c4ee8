/**
 * @description
 * HTTP handlers for the authenticated split payment endpoints: creating a
 * request, viewing a request with its shares, and cancelling a request.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ticketrack/payments-service/internal/app"
	"github.com/ticketrack/payments-service/internal/domain"
	"github.com/ticketrack/payments-service/internal/store"
)

type splitPaymentResponse struct {
	SplitPayment *domain.SplitPaymentRequest `json:"split_payment"`
	Shares       []shareResponse             `json:"shares"`
}

// shareResponse omits the payment token for everyone except the share's own
// pay link; the initiator sees who paid, not how to pay on their behalf.
type shareResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	ShareAmount   string    `json:"share_amount"`
	Currency      string    `json:"currency"`
	PaymentStatus string    `json:"payment_status"`
	ReminderCount int       `json:"reminder_count"`
}

func buildSplitPaymentResponse(sp *domain.SplitPaymentRequest, shares []domain.PaymentShare) splitPaymentResponse {
	resp := splitPaymentResponse{SplitPayment: sp}
	for _, share := range shares {
		resp.Shares = append(resp.Shares, shareResponse{
			ID:            share.ID,
			Name:          share.Name,
			Email:         share.Email,
			ShareAmount:   share.ShareAmount.StringFixed(2),
			Currency:      share.Currency,
			PaymentStatus: share.PaymentStatus,
			ReminderCount: share.ReminderCount,
		})
	}
	return resp
}

func (h *PaymentHandlers) authenticatedUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}

// CreateSplitPaymentHandler handles requests to create a split payment.
func (h *PaymentHandlers) CreateSplitPaymentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	var payload domain.CreateSplitPaymentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sp, shares, err := h.service.CreateSplitPayment(r.Context(), userID, payload)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrEventNotFound):
			h.writeError(w, http.StatusNotFound, "Event not found")
		case errors.Is(err, app.ErrTooFewMembers),
			errors.Is(err, app.ErrTooManyMembers),
			errors.Is(err, app.ErrSharesDoNotSum),
			errors.Is(err, app.ErrMissingShareAmnt):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("level=error component=api msg=\"split creation failed\" user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusInternalServerError, "Unable to create split payment")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, buildSplitPaymentResponse(sp, shares))
}

// GetSplitPaymentHandler returns a split payment with its shares.
func (h *PaymentHandlers) GetSplitPaymentHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticatedUserID(w, r); !ok {
		return
	}

	splitID, err := uuid.Parse(chi.URLParam(r, "splitID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid split payment ID")
		return
	}

	sp, shares, err := h.service.GetSplitPayment(r.Context(), splitID)
	if err != nil {
		if errors.Is(err, store.ErrSplitNotFound) {
			h.writeError(w, http.StatusNotFound, "Split payment not found")
			return
		}
		log.Printf("level=error component=api msg=\"split lookup failed\" split_id=%s err=%v", splitID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to load split payment")
		return
	}

	h.writeJSON(w, http.StatusOK, buildSplitPaymentResponse(sp, shares))
}

// CancelSplitPaymentHandler cancels a pending split payment. Only the
// initiator can cancel, and only before any share has been paid.
func (h *PaymentHandlers) CancelSplitPaymentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	splitID, err := uuid.Parse(chi.URLParam(r, "splitID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid split payment ID")
		return
	}

	if err := h.service.CancelSplitPayment(r.Context(), splitID, userID); err != nil {
		if errors.Is(err, app.ErrNotCancellable) {
			h.writeError(w, http.StatusConflict, "This split payment can no longer be cancelled.")
			return
		}
		log.Printf("level=error component=api msg=\"split cancel failed\" split_id=%s err=%v", splitID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to cancel split payment")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": domain.SplitStatusCancelled})
}
