package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service exports.
// Each instance owns its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	CheckoutTotal        *prometheus.CounterVec
	OrphanOrders         prometheus.Counter
	WebhookEvents        *prometheus.CounterVec
	FulfillmentShortfall prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		CheckoutTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "checkout_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		OrphanOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "checkout_orphan_orders_total",
			Help:      "PENDING orders left without a payment intent after a gateway failure.",
		}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "webhook_events_total",
			Help:      "Payment webhook deliveries by outcome.",
		}, []string{"outcome"}),
		FulfillmentShortfall: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "fulfillment_shortfall_total",
			Help:      "Paid order items whose stock could not be decremented.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPLatency,
		m.CheckoutTotal,
		m.OrphanOrders,
		m.WebhookEvents,
		m.FulfillmentShortfall,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// nilでも呼べるようにしておく（テストや最小構成用）

func (m *Metrics) CheckoutOutcome(outcome string) {
	if m == nil {
		return
	}
	m.CheckoutTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) OrphanOrder() {
	if m == nil {
		return
	}
	m.OrphanOrders.Inc()
}

func (m *Metrics) WebhookOutcome(outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Shortfall() {
	if m == nil {
		return
	}
	m.FulfillmentShortfall.Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(seconds)
}
