// Package config manages the ripd daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables, layered as defaults, then
// file, then env. Command-line flags are not read here.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete ripd configuration.
type Config struct {
	Interfaces []InterfaceConfig `koanf:"interfaces"`
	Timers     TimerConfig       `koanf:"timers"`
	Metrics    MetricsConfig     `koanf:"metrics"`
	Debug      DebugConfig       `koanf:"debug"`
	Log        LogConfig         `koanf:"log"`
}

// InterfaceConfig describes one router-attached link: its local IPv4
// address and, for rawhal, the real NIC name to bind a raw socket to. This
// makes the set of attached interfaces a configurable, variable-length
// list instead of a fixed compile-time array.
type InterfaceConfig struct {
	// Name is the underlying NIC name (e.g. "eth0"), used by rawhal. It is
	// ignored by simhal-backed deployments.
	Name string `koanf:"name"`

	// Addr is the interface's local IPv4 address in dotted-decimal form.
	Addr string `koanf:"addr"`
}

// ParsedAddr parses Addr as a 4-byte IPv4 address.
func (ic InterfaceConfig) ParsedAddr() (net.IP, error) {
	ip := net.ParseIP(ic.Addr)
	if ip == nil {
		return nil, fmt.Errorf("interface %q: %w", ic.Name, ErrInvalidInterfaceAddr)
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("interface %q addr %q: %w", ic.Name, ic.Addr, ErrInvalidInterfaceAddr)
	}
	return v4, nil
}

// TimerConfig holds the control loop's timing knobs.
type TimerConfig struct {
	// PeriodicInterval is how often the full routing table is multicast
	// unsolicited. Defaults to 5s rather than RFC 2453's 30s recommendation,
	// and is configurable.
	PeriodicInterval time.Duration `koanf:"periodic_interval"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// DebugConfig holds the read-only introspection HTTP endpoint
// configuration (internal/debugserver).
type DebugConfig struct {
	// Addr is the HTTP listen address (e.g., ":8090").
	Addr string `koanf:"addr"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults. No
// interfaces are populated by default; the caller's configuration file must
// supply at least one (Validate enforces this).
func DefaultConfig() *Config {
	return &Config{
		Timers: TimerConfig{
			PeriodicInterval: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Debug: DebugConfig{
			Addr: ":8090",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for ripd configuration.
// Variables are named RIPD_<section>_<key>, e.g., RIPD_TIMERS_PERIODIC_INTERVAL.
const envPrefix = "RIPD_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (RIPD_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	RIPD_TIMERS_PERIODIC_INTERVAL -> timers.periodic_interval
//	RIPD_METRICS_ADDR             -> metrics.addr
//	RIPD_METRICS_PATH             -> metrics.path
//	RIPD_DEBUG_ADDR               -> debug.addr
//	RIPD_LOG_LEVEL                -> log.level
//	RIPD_LOG_FORMAT               -> log.format
//
// Uses koanf/v2 with file + env providers and YAML parser. Interfaces are
// not overridable via environment variables (there is no clean flat env
// encoding for a list of structs); they must come from the YAML file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms RIPD_TIMERS_PERIODIC_INTERVAL -> timers.periodic_interval.
// Strips the RIPD_ prefix, lowercases, and replaces the first _ (the
// section separator) with .; later underscores stay part of the key.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"timers.periodic_interval": defaults.Timers.PeriodicInterval.String(),
		"metrics.addr":             defaults.Metrics.Addr,
		"metrics.path":             defaults.Metrics.Path,
		"debug.addr":               defaults.Debug.Addr,
		"log.level":                defaults.Log.Level,
		"log.format":               defaults.Log.Format,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrNoInterfaces indicates the configuration declares no interfaces.
	ErrNoInterfaces = errors.New("at least one interface must be configured")

	// ErrInvalidInterfaceAddr indicates an interface's address does not
	// parse as IPv4.
	ErrInvalidInterfaceAddr = errors.New("interface addr must be a valid IPv4 address")

	// ErrInvalidPeriodicInterval indicates the periodic timer is zero or negative.
	ErrInvalidPeriodicInterval = errors.New("timers.periodic_interval must be > 0")

	// ErrEmptyMetricsAddr indicates the metrics listen address is empty.
	ErrEmptyMetricsAddr = errors.New("metrics.addr must not be empty")

	// ErrEmptyDebugAddr indicates the debug listen address is empty.
	ErrEmptyDebugAddr = errors.New("debug.addr must not be empty")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if len(cfg.Interfaces) == 0 {
		return ErrNoInterfaces
	}
	for i, ic := range cfg.Interfaces {
		if _, err := ic.ParsedAddr(); err != nil {
			return fmt.Errorf("interfaces[%d]: %w", i, err)
		}
	}

	if cfg.Timers.PeriodicInterval <= 0 {
		return ErrInvalidPeriodicInterval
	}

	if cfg.Metrics.Addr == "" {
		return ErrEmptyMetricsAddr
	}

	if cfg.Debug.Addr == "" {
		return ErrEmptyDebugAddr
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
