package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the purchase subsystem counters on a private registry so that
// constructing more than one App in a process never trips duplicate
// registration.
type Metrics struct {
	registry *prometheus.Registry

	CheckoutsInitiated prometheus.Counter
	WebhookDeliveries  *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	checkouts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "upmarkt",
		Subsystem: "purchases",
		Name:      "checkouts_initiated_total",
		Help:      "Pending purchases created by checkout.",
	})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "upmarkt",
		Subsystem: "purchases",
		Name:      "webhook_deliveries_total",
		Help:      "Payment notifications by processing result.",
	}, []string{"result"})

	registry.MustRegister(checkouts, webhooks)

	return &Metrics{
		registry:           registry,
		CheckoutsInitiated: checkouts,
		WebhookDeliveries:  webhooks,
	}
}

func (m *Metrics) ObserveCheckout() {
	if m == nil {
		return
	}
	m.CheckoutsInitiated.Inc()
}

func (m *Metrics) ObserveWebhook(result string) {
	if m == nil {
		return
	}
	m.WebhookDeliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
