package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PayoutMetrics records payout batch processing metadata.
type PayoutMetrics struct {
	duration *prometheus.HistogramVec
	applied  *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

// NewPayoutMetrics registers the payout metrics on the provided registerer.
func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payout_batch_duration_seconds",
		Help:    "Duration of payout batch processing in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_batches_applied_total",
		Help: "Successfully applied payout batches.",
	}, []string{"method"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_batches_rejected_total",
		Help: "Payout batches rejected wholesale.",
	}, []string{"method", "reason"})
	reg.MustRegister(duration, applied, rejected)
	return &PayoutMetrics{
		duration: duration,
		applied:  applied,
		rejected: rejected,
	}
}

// ObserveBatch records the duration for one payout batch.
func (p *PayoutMetrics) ObserveBatch(method string, duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(method)).Observe(duration.Seconds())
}

// IncApplied increments the applied counter for the method.
func (p *PayoutMetrics) IncApplied(method string) {
	if p == nil || p.applied == nil {
		return
	}
	p.applied.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncRejected increments the rejected counter for the method and reason.
func (p *PayoutMetrics) IncRejected(method, reason string) {
	if p == nil || p.rejected == nil {
		return
	}
	p.rejected.WithLabelValues(normalizeLabel(method), normalizeLabel(reason)).Inc()
}
