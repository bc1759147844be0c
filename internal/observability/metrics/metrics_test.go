package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveWebhookDeliveryLabels(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.ObserveWebhookDelivery("system.replica_joined", "processed")
	m.ObserveWebhookDelivery("system.replica_joined", "processed")
	m.ObserveWebhookDelivery("", "ignored")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.webhookDeliveries.WithLabelValues("system.replica_joined", "processed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.webhookDeliveries.WithLabelValues("unknown", "ignored")))
}

func TestObserveMinutesAccruedIgnoresNonPositive(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.ObserveMinutesAccrued(3)
	m.ObserveMinutesAccrued(0)
	m.ObserveMinutesAccrued(-5)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.minutesAccrued))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveWebhookDelivery("system.shutdown", "processed")
		m.ObserveSessionStarted()
		m.ObserveMinutesAccrued(2)
		m.ObserveRateLimited()
	})
}
