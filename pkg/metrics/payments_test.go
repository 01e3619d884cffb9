package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPaymentCallbackMetricsCountsByProviderAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentCallbackMetrics(reg)
	m.Observe("ESEWA", OutcomeSuccess)
	m.Observe("ESEWA", OutcomeSuccess)
	m.Observe("KHALTI", OutcomeFailed)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	mf := findMetricFamily(mfs, "tinytales_payment_callbacks_total")
	if mf == nil {
		t.Fatalf("payment callback metric not registered")
	}

	got := map[string]float64{}
	for _, metric := range mf.GetMetric() {
		got[labelValue(metric, "provider")+"/"+labelValue(metric, "outcome")] = metric.GetCounter().GetValue()
	}
	if got["ESEWA/success"] != 2 || got["KHALTI/failed"] != 1 {
		t.Fatalf("unexpected counters %v", got)
	}
}

func TestNilPaymentCallbackMetricsIsNoop(t *testing.T) {
	var m *PaymentCallbackMetrics
	m.Observe("ESEWA", OutcomeSuccess)
	NewPaymentCallbackMetrics(nil).Observe("", "")
}

func labelValue(metric *dto.Metric, name string) string {
	for _, label := range metric.GetLabel() {
		if label.GetName() == name {
			return label.GetValue()
		}
	}
	return ""
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}
