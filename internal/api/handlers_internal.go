/**
 * @description
 * Internal trigger endpoints. Sibling services (or an operator) can run the
 * reminder sweep, the expiry sweep, or a drip batch on demand instead of
 * waiting for the scheduler's next tick. Guarded by the internal API key.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries.
 * - internal/app: The operations being triggered.
 */

package api

import (
	"log"
	"net/http"
)

// RunRemindersHandler runs one payment reminder sweep.
func (h *PaymentHandlers) RunRemindersHandler(w http.ResponseWriter, r *http.Request) {
	sent, err := h.service.SendPaymentReminders(r.Context())
	if err != nil {
		log.Printf("level=error component=api msg=\"reminder trigger failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Reminder run failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}

// RunExpirySweepHandler runs one split payment expiry sweep.
func (h *PaymentHandlers) RunExpirySweepHandler(w http.ResponseWriter, r *http.Request) {
	expired, err := h.service.ExpirePendingSplitPayments(r.Context())
	if err != nil {
		log.Printf("level=error component=api msg=\"expiry trigger failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Expiry sweep failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"expired": expired})
}

// RunDripBatchHandler executes one batch of due drip steps.
func (h *PaymentHandlers) RunDripBatchHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunDripBatch(r.Context())
	if err != nil {
		log.Printf("level=error component=api msg=\"drip trigger failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Drip run failed")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}
