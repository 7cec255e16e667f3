package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ripnet/ripd/internal/config"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ripd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestDefaultConfigFailsValidationWithoutInterfaces(t *testing.T) {
	cfg := config.DefaultConfig()
	if err := config.Validate(cfg); err == nil {
		t.Fatalf("expected validation error for a config with no interfaces")
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeYAML(t, `
interfaces:
  - name: eth0
    addr: 192.168.3.2
  - name: eth1
    addr: 10.0.2.1
timers:
  periodic_interval: 10s
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Interfaces) != 2 {
		t.Fatalf("got %d interfaces, want 2", len(cfg.Interfaces))
	}
	if cfg.Timers.PeriodicInterval != 10*time.Second {
		t.Fatalf("got periodic interval %v, want 10s", cfg.Timers.PeriodicInterval)
	}
	// Untouched defaults should survive the merge.
	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("got metrics addr %q, want default :9100", cfg.Metrics.Addr)
	}
	if cfg.Debug.Addr != ":8090" {
		t.Fatalf("got debug addr %q, want default :8090", cfg.Debug.Addr)
	}
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	path := writeYAML(t, `
interfaces:
  - name: eth0
    addr: 192.168.3.2
`)
	t.Setenv("RIPD_METRICS_ADDR", ":9200")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Metrics.Addr != ":9200" {
		t.Fatalf("got metrics addr %q, want env override :9200", cfg.Metrics.Addr)
	}
}

func TestValidateRejectsBadInterfaceAddr(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Interfaces = []config.InterfaceConfig{{Name: "eth0", Addr: "not-an-ip"}}
	if err := config.Validate(cfg); err == nil {
		t.Fatalf("expected validation error for an unparseable interface address")
	}
}

func TestValidateRejectsIPv6InterfaceAddr(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Interfaces = []config.InterfaceConfig{{Name: "eth0", Addr: "2001:db8::1"}}
	if err := config.Validate(cfg); err == nil {
		t.Fatalf("expected validation error for an IPv6 interface address")
	}
}

func TestValidateRejectsNonPositivePeriodicInterval(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Interfaces = []config.InterfaceConfig{{Name: "eth0", Addr: "192.168.3.2"}}
	cfg.Timers.PeriodicInterval = 0
	if err := config.Validate(cfg); err == nil {
		t.Fatalf("expected validation error for a zero periodic interval")
	}
}

func TestValidateRejectsEmptyMetricsAddr(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Interfaces = []config.InterfaceConfig{{Name: "eth0", Addr: "192.168.3.2"}}
	cfg.Metrics.Addr = ""
	if err := config.Validate(cfg); err == nil {
		t.Fatalf("expected validation error for an empty metrics addr")
	}
}

func TestValidateRejectsEmptyDebugAddr(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Interfaces = []config.InterfaceConfig{{Name: "eth0", Addr: "192.168.3.2"}}
	cfg.Debug.Addr = ""
	if err := config.Validate(cfg); err == nil {
		t.Fatalf("expected validation error for an empty debug addr")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Interfaces = []config.InterfaceConfig{
		{Name: "eth0", Addr: "192.168.3.2"},
		{Name: "eth1", Addr: "10.0.2.1"},
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"debug": "DEBUG",
		"info":  "INFO",
		"warn":  "WARN",
		"error": "ERROR",
		"bogus": "INFO",
		"":      "INFO",
		"DeBuG": "DEBUG",
	}
	for in, want := range cases {
		if got := config.ParseLogLevel(in).String(); got != want {
			t.Errorf("ParseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
