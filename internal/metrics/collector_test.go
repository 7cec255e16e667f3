package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/ripnet/ripd/internal/metrics"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.Metric {
			if matchesLabels(m, labels) {
				return metricValue(m)
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func matchesLabels(m *dto.Metric, labels map[string]string) bool {
	got := make(map[string]string, len(m.Label))
	for _, l := range m.Label {
		got[l.GetName()] = l.GetValue()
	}
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}

func metricValue(m *dto.Metric) float64 {
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Counter != nil:
		return m.Counter.GetValue()
	default:
		return 0
	}
}

func TestNewCollectorRegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	if c.Routes == nil || c.Packets == nil || c.TriggeredUpdates == nil || c.Forwarded == nil || c.Dropped == nil {
		t.Fatalf("NewCollector left a nil field: %+v", c)
	}

	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather: %v", err)
	}
}

func TestIncPacketsReceivedAndSent(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncPacketsReceived(metrics.KindResponse)
	c.IncPacketsReceived(metrics.KindRequest)
	c.IncPacketsSent()

	if got := gatherValue(t, reg, "ripd_rip_packets_total", map[string]string{"dir": metrics.DirInbound, "kind": metrics.KindResponse}); got != 1 {
		t.Fatalf("got %v inbound response packets, want 1", got)
	}
	if got := gatherValue(t, reg, "ripd_rip_packets_total", map[string]string{"dir": metrics.DirInbound, "kind": metrics.KindRequest}); got != 1 {
		t.Fatalf("got %v inbound request packets, want 1", got)
	}
	if got := gatherValue(t, reg, "ripd_rip_packets_total", map[string]string{"dir": metrics.DirOutbound}); got != 1 {
		t.Fatalf("got %v outbound packets, want 1", got)
	}
}

func TestIncDroppedLabelsByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncDropped(metrics.ReasonNoRoute)
	c.IncDropped(metrics.ReasonNoRoute)
	c.IncDropped(metrics.ReasonARPMiss)

	if got := gatherValue(t, reg, "ripd_rip_dropped_total", map[string]string{"reason": metrics.ReasonNoRoute}); got != 2 {
		t.Fatalf("got %v no_route drops, want 2", got)
	}
	if got := gatherValue(t, reg, "ripd_rip_dropped_total", map[string]string{"reason": metrics.ReasonARPMiss}); got != 1 {
		t.Fatalf("got %v arp_miss drops, want 1", got)
	}
}

func TestIncForwardedAndTriggeredUpdate(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncForwarded()
	c.IncForwarded()
	c.IncTriggeredUpdate()

	if got := gatherValue(t, reg, "ripd_rip_forwarded_total", nil); got != 2 {
		t.Fatalf("got %v forwarded, want 2", got)
	}
	if got := gatherValue(t, reg, "ripd_rip_triggered_updates_total", nil); got != 1 {
		t.Fatalf("got %v triggered updates, want 1", got)
	}
}

func TestSetRouteCountByState(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.SetRouteCountByState(4, 10, 1)

	if got := gatherValue(t, reg, "ripd_rip_routes", map[string]string{"state": metrics.StateDirect}); got != 4 {
		t.Fatalf("got %v direct routes, want 4", got)
	}
	if got := gatherValue(t, reg, "ripd_rip_routes", map[string]string{"state": metrics.StateLearned}); got != 10 {
		t.Fatalf("got %v learned routes, want 10", got)
	}
	if got := gatherValue(t, reg, "ripd_rip_routes", map[string]string{"state": metrics.StatePoisoned}); got != 1 {
		t.Fatalf("got %v poisoned routes, want 1", got)
	}
}
