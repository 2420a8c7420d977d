// Package daemon manages the Searchlight daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	Server       ServerConfig       `toml:"server"`
	Storage      StorageConfig      `toml:"storage"`
	Engine       EngineConfig       `toml:"engine"`
	Plans        PlansConfig        `toml:"plans"`
	Schedule     ScheduleConfig     `toml:"schedule"`
	Sources      SourcesConfig      `toml:"sources"`
	Notify       NotifyConfig       `toml:"notify"`
	Integrations IntegrationsConfig `toml:"integrations"`
	Telemetry    TelemetryConfig    `toml:"telemetry"`
}

// IntegrationsConfig points at the operator-run collaborator endpoints.
type IntegrationsConfig struct {
	ExecutorURL      string `toml:"executor_url"`      // change executor webhook; empty disables execution
	ExecutorToken    string `toml:"executor_token"`
	CorroborationURL string `toml:"corroboration_url"` // secondary-evidence check; empty disables corroboration
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig controls where the SQLite store lives.
type StorageConfig struct {
	Dir string `toml:"dir"`
}

// EngineConfig controls anomaly detection thresholds.
type EngineConfig struct {
	CurrentWindowDays  int      `toml:"current_window_days"`
	BaselineWindowDays int      `toml:"baseline_window_days"`
	MinSamples         int      `toml:"min_samples"`
	MildZ              float64  `toml:"mild_z"`
	ModerateZ          float64  `toml:"moderate_z"`
	SevereZ            float64  `toml:"severe_z"`
	InvertedMetrics    []string `toml:"inverted_metrics"`
	FetchTimeout       string   `toml:"fetch_timeout"`
}

// PlansConfig controls fix-plan lifecycle timing.
type PlansConfig struct {
	Cooldown string `toml:"cooldown"`
	TTL      string `toml:"ttl"`
	MaxItems int    `toml:"max_items"`
}

// ScheduleConfig controls automatic daily runs.
type ScheduleConfig struct {
	Cron  string   `toml:"cron"`  // empty disables scheduling
	Sites []string `toml:"sites"` // sites diagnosed on each tick
}

// SourceEndpoint configures one metric provider.
type SourceEndpoint struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// SourcesConfig maps each provider to its endpoint.
type SourcesConfig struct {
	GA4    SourceEndpoint `toml:"ga4"`
	GSC    SourceEndpoint `toml:"gsc"`
	Ads    SourceEndpoint `toml:"ads"`
	Uptime SourceEndpoint `toml:"uptime"`
}

// NotifyConfig controls Slack notifications.
type NotifyConfig struct {
	SlackToken   string `toml:"slack_token"`
	SlackChannel string `toml:"slack_channel"`
}

// TelemetryConfig controls observability endpoints.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := searchlightHome()
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8410,
		},
		Storage: StorageConfig{
			Dir: homeDir,
		},
		Engine: EngineConfig{
			CurrentWindowDays:  3,
			BaselineWindowDays: 14,
			MinSamples:         3,
			MildZ:              1,
			ModerateZ:          2,
			SevereZ:            3,
			InvertedMetrics:    []string{"error_rate"},
			FetchTimeout:       "30s",
		},
		Plans: PlansConfig{
			Cooldown: "72h",
			TTL:      "24h",
			MaxItems: 5,
		},
		Schedule: ScheduleConfig{
			Cron: "0 6 * * *", // daily, after providers finalize yesterday
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads config from ~/.searchlight/config.toml, falling back
// to defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(searchlightHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // no config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.searchlight/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(searchlightHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// searchlightHome returns the Searchlight data directory.
func searchlightHome() string {
	if env := os.Getenv("SEARCHLIGHT_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".searchlight")
}

// Home is exported for use by other packages.
func Home() string {
	return searchlightHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
