package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestEngineMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngineMetrics(reg)
	m.ObserveEvent("webhook", "applied")
	m.ObserveEvent("webhook", "applied")
	m.ObserveDispatch("sent")
	m.ObserveReminderJob("created")
	m.ObserveReconnect()
	m.ObserveDroppedMessage()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if got := counterValue(families, "remindly_reconcile_events_total"); got != 2 {
		t.Fatalf("expected 2 applied events, got %v", got)
	}
	if got := counterValue(families, "remindly_livefeed_reconnects_total"); got != 1 {
		t.Fatalf("expected 1 reconnect, got %v", got)
	}
}

func TestEngineMetricsNilSafe(t *testing.T) {
	var m *EngineMetrics
	m.ObserveEvent("live", "deduped")
	m.ObserveDispatch("failed")
	m.ObserveReminderJob("cancelled")
	m.ObserveReconnect()
	m.ObserveDroppedMessage()
}

func counterValue(families []*dto.MetricFamily, name string) float64 {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range fam.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	return -1
}
