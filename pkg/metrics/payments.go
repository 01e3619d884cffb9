package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
)

// PaymentCallbackMetrics counts provider callbacks by how they were resolved.
type PaymentCallbackMetrics struct {
	callbacks *prometheus.CounterVec
}

func NewPaymentCallbackMetrics(reg prometheus.Registerer) *PaymentCallbackMetrics {
	if reg == nil {
		return &PaymentCallbackMetrics{}
	}
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "payment_callbacks_total",
		Help:      "Payment provider callbacks by provider and outcome.",
	}, []string{"provider", "outcome"})
	reg.MustRegister(callbacks)
	return &PaymentCallbackMetrics{callbacks: callbacks}
}

func (p *PaymentCallbackMetrics) Observe(provider, outcome string) {
	if p == nil || p.callbacks == nil {
		return
	}
	p.callbacks.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}
