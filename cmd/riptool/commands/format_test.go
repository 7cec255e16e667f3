package commands

import (
	"strings"
	"testing"
)

func TestFormatRoutesTable(t *testing.T) {
	out, err := formatRoutes([]routeView{
		{Addr: "192.168.3.0", Len: 24, IfIndex: 0, NextHop: "0.0.0.0", Metric: 1},
	}, formatTable)
	if err != nil {
		t.Fatalf("formatRoutes: %v", err)
	}
	if !strings.Contains(out, "192.168.3.0") || !strings.Contains(out, "DEST") {
		t.Fatalf("unexpected table output: %q", out)
	}
}

func TestFormatRoutesJSON(t *testing.T) {
	out, err := formatRoutes([]routeView{
		{Addr: "192.168.3.0", Len: 24, IfIndex: 0, NextHop: "0.0.0.0", Metric: 1},
	}, formatJSON)
	if err != nil {
		t.Fatalf("formatRoutes: %v", err)
	}
	if !strings.Contains(out, `"addr": "192.168.3.0"`) {
		t.Fatalf("unexpected JSON output: %q", out)
	}
}

func TestFormatRoutesUnsupportedFormat(t *testing.T) {
	if _, err := formatRoutes(nil, "xml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestFormatStatsTable(t *testing.T) {
	out, err := formatStats(statsView{RouteCount: 3, DirectCount: 1, LearnedCount: 2}, formatTable)
	if err != nil {
		t.Fatalf("formatStats: %v", err)
	}
	if !strings.Contains(out, "Total Routes:  3") {
		t.Fatalf("unexpected table output: %q", out)
	}
}

func TestFormatStatsJSON(t *testing.T) {
	out, err := formatStats(statsView{RouteCount: 3}, formatJSON)
	if err != nil {
		t.Fatalf("formatStats: %v", err)
	}
	if !strings.Contains(out, `"route_count": 3`) {
		t.Fatalf("unexpected JSON output: %q", out)
	}
}
