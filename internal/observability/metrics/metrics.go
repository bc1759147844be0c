// Package metrics exposes Prometheus instruments for the metering engine.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the domain-level counters.
type Metrics struct {
	webhookDeliveries *prometheus.CounterVec
	sessionsStarted   prometheus.Counter
	minutesAccrued    prometheus.Counter
	rateLimitDenied   prometheus.Counter
}

// New registers the instruments on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the instruments on the given registry. Tests
// pass a fresh registry to avoid duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		webhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sessionmeter_webhook_deliveries_total",
			Help: "Webhook deliveries received, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		sessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionmeter_sessions_started_total",
			Help: "Conversations that transitioned into in_progress.",
		}),
		minutesAccrued: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionmeter_minutes_accrued_total",
			Help: "Billable minutes added to usage ledgers.",
		}),
		rateLimitDenied: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionmeter_webhook_rate_limited_total",
			Help: "Webhook deliveries rejected by the rate limiter.",
		}),
	}
}

func (m *Metrics) ObserveWebhookDelivery(eventType, outcome string) {
	if m == nil {
		return
	}
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		eventType = "unknown"
	}
	m.webhookDeliveries.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) ObserveSessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

func (m *Metrics) ObserveMinutesAccrued(minutes int64) {
	if m == nil || minutes <= 0 {
		return
	}
	m.minutesAccrued.Add(float64(minutes))
}

func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitDenied.Inc()
}
