package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ccu-link/ccu-go/pkg/connection"
	"github.com/ccu-link/ccu-go/pkg/event"
	"github.com/ccu-link/ccu-go/pkg/health"
)

// Config is the on-disk configuration of the runtime core.
type Config struct {
	// Interfaces lists the backend interfaces to monitor.
	Interfaces []InterfaceConfig `yaml:"interfaces"`

	// Health holds the default ping/pong tracker settings, overridable
	// per interface.
	Health HealthConfig `yaml:"health"`

	// Incidents configures incident snapshot persistence.
	Incidents IncidentConfig `yaml:"incidents"`
}

// InterfaceConfig describes one backend interface.
type InterfaceConfig struct {
	// ID is the interface identifier, e.g. "BidCos-RF".
	ID string `yaml:"id"`

	// Health overrides the global health settings for this interface.
	Health *HealthConfig `yaml:"health,omitempty"`

	// Reconnect customizes the reconnection backoff.
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// HealthConfig holds the ping/pong tracker knobs.
type HealthConfig struct {
	// AllowedDelta is the tolerated mismatch count per side.
	AllowedDelta int `yaml:"allowed_delta"`

	// TTLSeconds is the token lifetime in seconds.
	TTLSeconds int `yaml:"ttl_seconds"`

	// CacheMaxSize caps the tokens tracked per side.
	CacheMaxSize int `yaml:"cache_max_size"`

	// RetryDelaySeconds is the unknown-pong re-check grace period.
	RetryDelaySeconds int `yaml:"retry_delay_seconds"`

	// JournalSize caps the diagnostic journal.
	JournalSize int `yaml:"journal_size"`

	// UnknownSeverity is "warning" or "error" (default).
	UnknownSeverity string `yaml:"unknown_severity"`
}

// IncidentConfig configures incident snapshot persistence.
type IncidentConfig struct {
	// StorePath is the SQLite database path. Empty disables persistence;
	// ":memory:" keeps snapshots for the process lifetime only.
	StorePath string `yaml:"store_path"`

	// RetentionDays prunes snapshots older than this. Zero keeps everything.
	RetentionDays int `yaml:"retention_days"`
}

// ReconnectConfig customizes the reconnection backoff of one interface.
type ReconnectConfig struct {
	InitialSeconds int     `yaml:"initial_seconds"`
	MaxSeconds     int     `yaml:"max_seconds"`
	Multiplier     float64 `yaml:"multiplier"`
	Jitter         float64 `yaml:"jitter"`
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data and validates it eagerly.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects invalid values. Zero values are allowed everywhere and
// fall back to defaults at construction time.
func (c *Config) Validate() error {
	if err := c.Health.validate("health"); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for i, ifc := range c.Interfaces {
		if ifc.ID == "" {
			return fmt.Errorf("interfaces[%d]: id is required", i)
		}
		if seen[ifc.ID] {
			return fmt.Errorf("interfaces[%d]: duplicate id %q", i, ifc.ID)
		}
		seen[ifc.ID] = true
		if ifc.Health != nil {
			if err := ifc.Health.validate("interfaces." + ifc.ID + ".health"); err != nil {
				return err
			}
		}
		if ifc.Reconnect.InitialSeconds < 0 || ifc.Reconnect.MaxSeconds < 0 {
			return fmt.Errorf("interfaces[%d]: reconnect delays must not be negative", i)
		}
	}
	if c.Incidents.RetentionDays < 0 {
		return fmt.Errorf("incidents.retention_days must not be negative")
	}
	return nil
}

func (h *HealthConfig) validate(prefix string) error {
	if h.AllowedDelta < 0 {
		return fmt.Errorf("%s.allowed_delta must not be negative", prefix)
	}
	if h.TTLSeconds < 0 {
		return fmt.Errorf("%s.ttl_seconds must not be negative", prefix)
	}
	if h.CacheMaxSize < 0 {
		return fmt.Errorf("%s.cache_max_size must not be negative", prefix)
	}
	if h.RetryDelaySeconds < 0 {
		return fmt.Errorf("%s.retry_delay_seconds must not be negative", prefix)
	}
	if h.JournalSize < 0 {
		return fmt.Errorf("%s.journal_size must not be negative", prefix)
	}
	switch h.UnknownSeverity {
	case "", "warning", "error":
	default:
		return fmt.Errorf("%s.unknown_severity must be \"warning\" or \"error\"", prefix)
	}
	return nil
}

// TrackerConfig builds the health tracker configuration for one interface,
// applying per-interface overrides on top of the global health settings.
func (c *Config) TrackerConfig(interfaceID string) health.Config {
	h := c.Health
	for _, ifc := range c.Interfaces {
		if ifc.ID == interfaceID && ifc.Health != nil {
			h = *ifc.Health
			break
		}
	}

	cfg := health.Config{
		InterfaceID:  interfaceID,
		AllowedDelta: h.AllowedDelta,
		TTL:          time.Duration(h.TTLSeconds) * time.Second,
		CacheMaxSize: h.CacheMaxSize,
		RetryDelay:   time.Duration(h.RetryDelaySeconds) * time.Second,
		JournalSize:  h.JournalSize,
	}
	if h.UnknownSeverity == "warning" {
		cfg.UnknownSeverity = event.SeverityWarning
	} else {
		cfg.UnknownSeverity = event.SeverityError
	}
	return cfg
}

// BackoffConfig builds the reconnection backoff settings for one interface.
func (c *Config) BackoffConfig(interfaceID string) connection.BackoffConfig {
	for _, ifc := range c.Interfaces {
		if ifc.ID == interfaceID {
			return connection.BackoffConfig{
				Initial:    time.Duration(ifc.Reconnect.InitialSeconds) * time.Second,
				Max:        time.Duration(ifc.Reconnect.MaxSeconds) * time.Second,
				Multiplier: ifc.Reconnect.Multiplier,
				Jitter:     ifc.Reconnect.Jitter,
			}
		}
	}
	return connection.BackoffConfig{}
}
