package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "pending-order-expiry"
	m.ObserveRun(job, 250*time.Millisecond, nil)
	m.ObserveRun(job, 10*time.Millisecond, errors.New("boom"))
	m.AddAffected(job, 3)
	m.AddAffected(job, 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	assertCounter(t, mfs, "halcyon_cron_job_runs_total", map[string]string{"job": job, "outcome": "success"}, 1)
	assertCounter(t, mfs, "halcyon_cron_job_runs_total", map[string]string{"job": job, "outcome": "failure"}, 1)
	assertCounter(t, mfs, "halcyon_cron_rows_affected_total", map[string]string{"job": job}, 3)

	metric, err := findMetric(mfs, "halcyon_cron_job_duration_seconds", map[string]string{"job": job})
	if err != nil {
		t.Fatalf("fetch duration: %v", err)
	}
	if metric.GetHistogram().GetSampleCount() != 2 {
		t.Fatalf("expected 2 duration samples, got %d", metric.GetHistogram().GetSampleCount())
	}
}

func TestStorefrontCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewStorefront(reg)
	s.IncAppointmentConflict()
	s.IncAppointmentConflict()
	s.IncWebhookEvent("payment_intent.succeeded", "applied")
	s.IncPaymentIntent("created")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	assertCounter(t, mfs, "halcyon_appointment_conflicts_total", nil, 2)
	assertCounter(t, mfs, "halcyon_payment_webhook_events_total", map[string]string{"type": "payment_intent.succeeded", "outcome": "applied"}, 1)
	assertCounter(t, mfs, "halcyon_checkout_payment_intents_total", map[string]string{"outcome": "created"}, 1)
}

func TestNilRegistererIsNoop(t *testing.T) {
	var s *Storefront
	s.IncAppointmentConflict()
	NewStorefront(nil).IncWebhookEvent("x", "y")
	NewCronJobMetrics(nil).ObserveRun("job", time.Second, nil)
}

func assertCounter(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string, want float64) {
	t.Helper()
	metric, err := findMetric(mfs, name, labels)
	if err != nil {
		t.Fatal(err)
	}
	if got := metric.GetCounter().GetValue(); got != want {
		t.Fatalf("%s%v expected %v got %v", name, labels, want, got)
	}
}

func findMetric(mfs []*dto.MetricFamily, name string, labels map[string]string) (*dto.Metric, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matchesLabels(metric.GetLabel(), labels) {
				return metric, nil
			}
		}
		return nil, fmt.Errorf("metric %q missing labels %v", name, labels)
	}
	return nil, fmt.Errorf("metric %q not found", name)
}

func matchesLabels(pairs []*dto.LabelPair, labels map[string]string) bool {
	for name, value := range labels {
		found := false
		for _, pair := range pairs {
			if pair.GetName() == name && pair.GetValue() == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
