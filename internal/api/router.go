/**
 * @description
 * This file sets up the HTTP router for the payments service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * Route groups:
 * - Public: health, metrics, pay-link endpoints, and gateway webhooks (which
 *   authenticate themselves with provider signatures, never with JWTs).
 * - Internal: sweep triggers guarded by the internal API key.
 * - Authenticated: split payment management for logged-in buyers.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/prometheus/client_golang: Prometheus metrics endpoint.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PaymentRoutes creates and returns a new router for the payments service.
func PaymentRoutes(h *PaymentHandlers, wh *WebhookHandlers, jwksURL, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Handle("/metrics", promhttp.Handler())

	// Gateway webhooks authenticate with provider signatures.
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/stripe", wh.StripeWebhookHandler)
		r.Post("/paystack", wh.PaystackWebhookHandler)
		r.Post("/flutterwave", wh.FlutterwaveWebhookHandler)
		r.Post("/paypal", wh.PayPalWebhookHandler)
	})

	// Pay links are public: the share token is the credential.
	r.Get("/pay-share/{token}", h.ShareViewHandler)
	r.Post("/pay-share/{token}/checkout", h.ShareCheckoutHandler)

	// Storefront checkout endpoints.
	r.Get("/events/{eventID}/providers", h.ListProvidersHandler)
	r.Post("/orders/{orderID}/checkout", h.OrderCheckoutHandler)

	// Internal triggers for the scheduled sweeps, for sibling services and
	// operators.
	r.Group(func(r chi.Router) {
		r.Use(InternalAPIKeyMiddleware(internalAPIKey))

		r.Post("/internal/run/reminders", h.RunRemindersHandler)
		r.Post("/internal/run/expiry", h.RunExpirySweepHandler)
		r.Post("/internal/run/drip", h.RunDripBatchHandler)
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		r.Post("/split-payments", h.CreateSplitPaymentHandler)
		r.Get("/split-payments/{splitID}", h.GetSplitPaymentHandler)
		r.Post("/split-payments/{splitID}/cancel", h.CancelSplitPaymentHandler)
	})

	return r
}
