package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the service's counters and histograms: lot lookups,
// payment-intent orchestrations and webhook processing.
type Metrics struct {
	lookupTotal    *prometheus.CounterVec
	intentTotal    *prometheus.CounterVec
	webhookTotal   *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cyparking",
			Subsystem: "lots",
			Name:      "nearby_lookup_total",
			Help:      "Total nearby-lot lookups",
		}, []string{"status"}),
		intentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cyparking",
			Subsystem: "payments",
			Name:      "intent_total",
			Help:      "Total payment-intent orchestrations",
		}, []string{"status"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cyparking",
			Subsystem: "payments",
			Name:      "webhook_total",
			Help:      "Total Stripe webhook deliveries",
		}, []string{"event_type", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cyparking",
			Subsystem: "payments",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of Stripe webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.lookupTotal, m.intentTotal, m.webhookTotal, m.webhookLatency)
	return m
}

func (m *Metrics) ObserveLookup(status string) {
	if m == nil {
		return
	}
	m.lookupTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveIntent(status string) {
	if m == nil {
		return
	}
	m.intentTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveWebhook(eventType, status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(eventType, status).Inc()
}

func (m *Metrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}
