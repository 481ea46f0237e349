package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records webhook and checkout processing metadata.
type PaymentMetrics struct {
	webhookDuration *prometheus.HistogramVec
	webhookOutcome  *prometheus.CounterVec
	checkoutTimeout prometheus.Counter
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	webhookDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_duration_seconds",
		Help:    "Duration of provider webhook processing in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	webhookOutcome := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Provider webhook events by type and outcome.",
	}, []string{"event_type", "outcome"})
	checkoutTimeout := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_timeouts_total",
		Help: "Checkout attempts abandoned at the deadline.",
	})
	reg.MustRegister(webhookDuration, webhookOutcome, checkoutTimeout)
	return &PaymentMetrics{
		webhookDuration: webhookDuration,
		webhookOutcome:  webhookOutcome,
		checkoutTimeout: checkoutTimeout,
	}
}

// ObserveWebhook records duration and outcome for one webhook delivery.
func (p *PaymentMetrics) ObserveWebhook(eventType, outcome string, duration time.Duration) {
	if p == nil {
		return
	}
	if p.webhookDuration != nil {
		p.webhookDuration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
	}
	if p.webhookOutcome != nil {
		p.webhookOutcome.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
	}
}

// IncCheckoutTimeout increments the deadline-abandonment counter.
func (p *PaymentMetrics) IncCheckoutTimeout() {
	if p == nil || p.checkoutTimeout == nil {
		return
	}
	p.checkoutTimeout.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
