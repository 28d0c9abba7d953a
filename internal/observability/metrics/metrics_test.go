package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, want map[string]string) bool {
	matched := 0
	for _, pair := range metric.GetLabel() {
		if v, ok := want[pair.GetName()]; ok {
			if v != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveBooking("created")
	m.ObserveBooking("created")
	m.ObserveBooking("conflict")
	m.ObserveTransition("paid")
	m.ObserveLogin("patient", "success")
	m.ObserveVerification("paid")
	m.ObserveNotification("sent")
	m.ObserveWebhookLatency("order.paid", 0.2)

	if got := counterValue(t, reg, "clinic_appointments_bookings_total", map[string]string{"outcome": "created"}); got != 2 {
		t.Fatalf("expected 2 created bookings, got %v", got)
	}
	if got := counterValue(t, reg, "clinic_appointments_bookings_total", map[string]string{"outcome": "conflict"}); got != 1 {
		t.Fatalf("expected 1 conflict, got %v", got)
	}
	if got := counterValue(t, reg, "clinic_auth_logins_total", map[string]string{"role": "patient", "outcome": "success"}); got != 1 {
		t.Fatalf("expected 1 login, got %v", got)
	}
}

func TestBookingMetricsDefaultRegistry(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("registering on the default registry panicked: %v", r)
		}
	}()
	m := NewBookingMetrics(nil)
	m.ObserveNotification("failed")
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveBooking("created")
	m.ObserveTransition("cancelled")
	m.ObserveLogin("doctor", "throttled")
	m.ObserveVerification("incomplete")
	m.ObserveNotification("sent")
	m.ObserveWebhookLatency("order.paid", 0.1)
}
