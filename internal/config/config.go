// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults; Load layers file and env on top.
// - Validate is the single gate; callers never check fields themselves.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
	_ "time/tzdata" // timezone must resolve on hosts without zoneinfo

	"github.com/robfig/cron/v3"

	"github.com/okian/clash/internal/domain/detect"
	"github.com/okian/clash/internal/domain/rules"
	"github.com/okian/clash/internal/domain/weights"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file.
	DBPath string `koanf:"db_path"`

	// Tenant scopes settings, groups and decisions.
	Tenant string `koanf:"tenant"`

	// MaxRangeDays caps the span of a detection request.
	MaxRangeDays int `koanf:"max_range_days"`

	// ConfigUpdateAttempts bounds the optimistic read-modify-write loop.
	ConfigUpdateAttempts int `koanf:"config_update_attempts"`

	// ScoreConcurrency bounds concurrent ratings lookups per detection.
	ScoreConcurrency int `koanf:"score_concurrency"`

	// RatingsTimeoutMS bounds a single ratings lookup; 0 disables it.
	RatingsTimeoutMS int `koanf:"ratings_timeout_ms"`

	// PerformerWindowMode is "sliding" or "pairwise".
	PerformerWindowMode string `koanf:"performer_window_mode"`

	// IndexThreshold is the event count above which detection buckets by week.
	IndexThreshold int `koanf:"index_threshold"`

	// Timezone turns feed timestamps into calendar dates.
	Timezone string `koanf:"timezone"`

	// MetricsEnabled toggles Prometheus collection.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	DefaultRules   RulesConfig   `koanf:"default_rules"`
	DefaultWeights WeightsConfig `koanf:"default_weights"`
	Catalog        CatalogConfig `koanf:"catalog"`
}

// RulesConfig seeds a tenant's conflict rule set.
type RulesConfig struct {
	DistanceThresholdMiles float64 `koanf:"distance_threshold_miles"`
	ConsecutiveWindowDays  int     `koanf:"consecutive_window_days"`
	TravelBufferDays       int     `koanf:"travel_buffer_days"`
	ColocationRadiusMiles  float64 `koanf:"colocation_radius_miles"`
	PerformerCeiling       int     `koanf:"performer_ceiling"`
}

// Rule converts to the domain type.
func (r RulesConfig) Rule() rules.ConflictRule {
	return rules.ConflictRule{
		DistanceThresholdMiles: r.DistanceThresholdMiles,
		ConsecutiveWindowDays:  r.ConsecutiveWindowDays,
		TravelBufferDays:       r.TravelBufferDays,
		ColocationRadiusMiles:  r.ColocationRadiusMiles,
		PerformerCeiling:       r.PerformerCeiling,
	}
}

// WeightsConfig seeds a tenant's scoring weights.
type WeightsConfig struct {
	VenueQuality        int `koanf:"venue_quality"`
	OrganizerReputation int `koanf:"organizer_reputation"`
	PerformerLineup     int `koanf:"performer_lineup"`
	LogisticsEase       int `koanf:"logistics_ease"`
	Readiness           int `koanf:"readiness"`
}

// Weights converts to the domain type.
func (w WeightsConfig) Weights() weights.ScoringWeights {
	return weights.ScoringWeights{
		VenueQuality:        w.VenueQuality,
		OrganizerReputation: w.OrganizerReputation,
		PerformerLineup:     w.PerformerLineup,
		LogisticsEase:       w.LogisticsEase,
		Readiness:           w.Readiness,
	}
}

// CatalogConfig configures catalog feeds.
type CatalogConfig struct {
	// SeedFile is imported at startup when set.
	SeedFile string `koanf:"seed_file"`
	// RefreshCron schedules feed refreshes; empty disables the scheduler.
	RefreshCron string `koanf:"refresh_cron"`
	// HorizonDays bounds recurrence expansion.
	HorizonDays int `koanf:"horizon_days"`
	// FetchRPS rate limits feed downloads; 0 disables limiting.
	FetchRPS float64  `koanf:"fetch_rps"`
	Sources  []Source `koanf:"sources"`
}

// Source is one ICS subscription.
type Source struct {
	ID  string `koanf:"id"`
	URL string `koanf:"url"`
}

// New creates a Config with defaults.
func New() *Config {
	d := rules.Defaults()
	w := weights.Defaults()
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		DBPath:               "clash.db",
		Tenant:               "default",
		MaxRangeDays:         366,
		ConfigUpdateAttempts: 5,
		ScoreConcurrency:     runtime.NumCPU() * 4,
		RatingsTimeoutMS:     2000,
		PerformerWindowMode:  string(detect.DefaultWindowMode),
		IndexThreshold:       detect.DefaultIndexThreshold,
		Timezone:             "UTC",
		MetricsEnabled:       true,
		DefaultRules: RulesConfig{
			DistanceThresholdMiles: d.DistanceThresholdMiles,
			ConsecutiveWindowDays:  d.ConsecutiveWindowDays,
			TravelBufferDays:       d.TravelBufferDays,
			ColocationRadiusMiles:  d.ColocationRadiusMiles,
			PerformerCeiling:       d.PerformerCeiling,
		},
		DefaultWeights: WeightsConfig{
			VenueQuality:        w.VenueQuality,
			OrganizerReputation: w.OrganizerReputation,
			PerformerLineup:     w.PerformerLineup,
			LogisticsEase:       w.LogisticsEase,
			Readiness:           w.Readiness,
		},
		Catalog: CatalogConfig{
			RefreshCron: "*/30 * * * *",
			HorizonDays: 180,
			FetchRPS:    2,
		},
	}
}

// Location returns the configured zone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RatingsTimeout returns RatingsTimeoutMS as a duration.
func (c *Config) RatingsTimeout() time.Duration {
	return time.Duration(c.RatingsTimeoutMS) * time.Millisecond
}

// Validate checks every field and reports the first problem wrapped in
// ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return invalid("addr must not be empty")
	case strings.TrimSpace(c.DBPath) == "":
		return invalid("db_path must not be empty")
	case strings.TrimSpace(c.Tenant) == "":
		return invalid("tenant must not be empty")
	case c.MaxRangeDays < 1:
		return invalid("max_range_days must be at least 1, got %d", c.MaxRangeDays)
	case c.ConfigUpdateAttempts < 1:
		return invalid("config_update_attempts must be at least 1, got %d", c.ConfigUpdateAttempts)
	case c.ScoreConcurrency < 1:
		return invalid("score_concurrency must be at least 1, got %d", c.ScoreConcurrency)
	case c.RatingsTimeoutMS < 0:
		return invalid("ratings_timeout_ms must not be negative")
	case !detect.WindowMode(c.PerformerWindowMode).Valid():
		return invalid("performer_window_mode must be sliding or pairwise, got %q", c.PerformerWindowMode)
	case c.IndexThreshold < 0:
		return invalid("index_threshold must not be negative")
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return invalid("unknown timezone %q", c.Timezone)
	}
	if err := c.DefaultRules.Rule().Validate(); err != nil {
		return fmt.Errorf("%w: default_rules: %w", ErrInvalidConfig, err)
	}
	if err := c.DefaultWeights.Weights().Validate(); err != nil {
		return fmt.Errorf("%w: default_weights: %w", ErrInvalidConfig, err)
	}
	return c.Catalog.validate()
}

func (c CatalogConfig) validate() error {
	if c.HorizonDays < 1 {
		return invalid("catalog.horizon_days must be at least 1, got %d", c.HorizonDays)
	}
	if c.FetchRPS < 0 {
		return invalid("catalog.fetch_rps must not be negative")
	}
	if c.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			return fmt.Errorf("%w: catalog.refresh_cron: %w", ErrInvalidConfig, err)
		}
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for i, s := range c.Sources {
		if strings.TrimSpace(s.ID) == "" || strings.TrimSpace(s.URL) == "" {
			return invalid("catalog.sources[%d] needs id and url", i)
		}
		if _, dup := seen[s.ID]; dup {
			return invalid("catalog.sources: duplicate id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
