package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ccu-link/ccu-go/pkg/event"
	"github.com/ccu-link/ccu-go/pkg/health"
)

const sampleConfig = `
interfaces:
  - id: BidCos-RF
    reconnect:
      initial_seconds: 2
      max_seconds: 30
  - id: HmIP-RF
    health:
      allowed_delta: 5
      unknown_severity: warning

health:
  allowed_delta: 15
  ttl_seconds: 300
  cache_max_size: 500
  retry_delay_seconds: 15
  journal_size: 1000

incidents:
  store_path: /var/lib/ccu-link/incidents.db
  retention_days: 30
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(cfg.Interfaces) != 2 {
		t.Fatalf("len(Interfaces) = %d, want 2", len(cfg.Interfaces))
	}
	if cfg.Interfaces[0].ID != "BidCos-RF" {
		t.Errorf("Interfaces[0].ID = %q, want BidCos-RF", cfg.Interfaces[0].ID)
	}
	if cfg.Health.AllowedDelta != 15 {
		t.Errorf("Health.AllowedDelta = %d, want 15", cfg.Health.AllowedDelta)
	}
	if cfg.Incidents.StorePath != "/var/lib/ccu-link/incidents.db" {
		t.Errorf("Incidents.StorePath = %q", cfg.Incidents.StorePath)
	}
	if cfg.Incidents.RetentionDays != 30 {
		t.Errorf("Incidents.RetentionDays = %d, want 30", cfg.Incidents.RetentionDays)
	}
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(cfg.Interfaces) != 0 {
		t.Errorf("len(Interfaces) = %d, want 0", len(cfg.Interfaces))
	}

	// Zero values must produce a tracker config that construction-time
	// defaulting accepts.
	tc := cfg.TrackerConfig("BidCos-RF")
	if tc.AllowedDelta != 0 || tc.TTL != 0 {
		t.Errorf("zero config not preserved: %+v", tc)
	}
	if tc.UnknownSeverity != event.SeverityError {
		t.Errorf("UnknownSeverity = %v, want %v", tc.UnknownSeverity, event.SeverityError)
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"bad syntax", "interfaces: [", "YAML parse error"},
		{"missing id", "interfaces:\n  - reconnect: {}", "id is required"},
		{"duplicate id", "interfaces:\n  - id: a\n  - id: a", "duplicate id"},
		{"negative delta", "health:\n  allowed_delta: -1", "must not be negative"},
		{"negative ttl", "health:\n  ttl_seconds: -1", "must not be negative"},
		{"bad severity", "health:\n  unknown_severity: fatal", "unknown_severity"},
		{"negative retention", "incidents:\n  retention_days: -1", "must not be negative"},
		{
			"negative override",
			"interfaces:\n  - id: a\n    health:\n      journal_size: -1",
			"interfaces.a.health.journal_size",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %q, want substring %q", err, tc.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ccu-link.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Interfaces) != 2 {
		t.Errorf("len(Interfaces) = %d, want 2", len(cfg.Interfaces))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() on missing file: error = nil, want error")
	}
}

func TestTrackerConfigOverride(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// BidCos-RF has no override and inherits the global settings.
	base := cfg.TrackerConfig("BidCos-RF")
	want := health.Config{
		InterfaceID:     "BidCos-RF",
		AllowedDelta:    15,
		TTL:             5 * time.Minute,
		CacheMaxSize:    500,
		RetryDelay:      15 * time.Second,
		JournalSize:     1000,
		UnknownSeverity: event.SeverityError,
	}
	if base != want {
		t.Errorf("TrackerConfig(BidCos-RF) = %+v, want %+v", base, want)
	}

	// HmIP-RF overrides the health block wholesale.
	over := cfg.TrackerConfig("HmIP-RF")
	if over.AllowedDelta != 5 {
		t.Errorf("AllowedDelta = %d, want 5", over.AllowedDelta)
	}
	if over.UnknownSeverity != event.SeverityWarning {
		t.Errorf("UnknownSeverity = %v, want %v", over.UnknownSeverity, event.SeverityWarning)
	}
}

func TestBackoffConfig(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	bc := cfg.BackoffConfig("BidCos-RF")
	if bc.Initial != 2*time.Second {
		t.Errorf("Initial = %v, want 2s", bc.Initial)
	}
	if bc.Max != 30*time.Second {
		t.Errorf("Max = %v, want 30s", bc.Max)
	}

	// Unknown interfaces get the zero config, which maps to defaults.
	if bc := cfg.BackoffConfig("wired"); bc.Initial != 0 {
		t.Errorf("BackoffConfig(wired).Initial = %v, want 0", bc.Initial)
	}
}
