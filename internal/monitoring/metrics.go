/**
 * @description
 * Prometheus counters for the payments service. Registered via promauto at
 * package init and exposed on the /metrics endpoint by the API server.
 *
 * @dependencies
 * - github.com/prometheus/client_golang/prometheus: counter types.
 * - github.com/prometheus/client_golang/prometheus/promauto: auto-registration.
 */

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkoutSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_sessions_total",
			Help: "Checkout sessions created per provider",
		},
		[]string{"provider", "target", "status"},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook deliveries received per provider",
		},
		[]string{"provider", "status"},
	)

	splitCompletions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "split_payments_completed_total",
			Help: "Split payments that reached completed",
		},
	)

	splitExpirations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "split_payments_expired_total",
			Help: "Split payments expired by the sweep",
		},
	)

	remindersSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "share_reminders_sent_total",
			Help: "Payment reminder emails sent",
		},
	)

	dripStepsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drip_steps_executed_total",
			Help: "Drip campaign steps executed per outcome",
		},
		[]string{"action", "status"},
	)
)

// TrackCheckoutSession counts one checkout session attempt.
func TrackCheckoutSession(provider, target, status string) {
	checkoutSessions.WithLabelValues(provider, target, status).Inc()
}

// TrackWebhookEvent counts one webhook delivery.
func TrackWebhookEvent(provider, status string) {
	webhookEvents.WithLabelValues(provider, status).Inc()
}

// TrackSplitCompleted counts one completed split payment.
func TrackSplitCompleted() {
	splitCompletions.Inc()
}

// TrackSplitExpired counts split payments expired by the sweep.
func TrackSplitExpired(n int) {
	splitExpirations.Add(float64(n))
}

// TrackReminderSent counts one reminder delivery.
func TrackReminderSent() {
	remindersSent.Inc()
}

// TrackDripStep counts one executed drip step.
func TrackDripStep(action, status string) {
	dripStepsExecuted.WithLabelValues(action, status).Inc()
}
