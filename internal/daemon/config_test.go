package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 8410 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8410)
	}
	if cfg.Engine.BaselineWindowDays != 14 {
		t.Errorf("Engine.BaselineWindowDays = %d, want 14", cfg.Engine.BaselineWindowDays)
	}
	if cfg.Engine.SevereZ != 3 {
		t.Errorf("Engine.SevereZ = %v, want 3", cfg.Engine.SevereZ)
	}
	if cfg.Plans.Cooldown != "72h" {
		t.Errorf("Plans.Cooldown = %q, want 72h", cfg.Plans.Cooldown)
	}
	if cfg.Plans.MaxItems != 5 {
		t.Errorf("Plans.MaxItems = %d, want 5", cfg.Plans.MaxItems)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SEARCHLIGHT_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Server.Port != DefaultConfig().Server.Port {
		t.Errorf("Port = %d, want default %d", cfg.Server.Port, DefaultConfig().Server.Port)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SEARCHLIGHT_HOME", home)

	content := `
[server]
port = 9000

[engine]
severe_z = 4.0
inverted_metrics = ["error_rate", "bounce_rate"]

[schedule]
cron = "30 5 * * *"
sites = ["site-1", "site-2"]

[sources.ga4]
base_url = "https://analytics.example.com"
api_key = "k1"
`
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want default", cfg.Server.Host)
	}
	if cfg.Engine.SevereZ != 4.0 {
		t.Errorf("SevereZ = %v, want 4.0", cfg.Engine.SevereZ)
	}
	if len(cfg.Engine.InvertedMetrics) != 2 {
		t.Errorf("InvertedMetrics = %v", cfg.Engine.InvertedMetrics)
	}
	if cfg.Schedule.Cron != "30 5 * * *" || len(cfg.Schedule.Sites) != 2 {
		t.Errorf("Schedule = %+v", cfg.Schedule)
	}
	if cfg.Sources.GA4.BaseURL != "https://analytics.example.com" {
		t.Errorf("GA4.BaseURL = %q", cfg.Sources.GA4.BaseURL)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Setenv("SEARCHLIGHT_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.Server.Port = 9100
	cfg.Notify.SlackChannel = "#seo-alerts"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if loaded.Server.Port != 9100 {
		t.Errorf("Port = %d, want 9100", loaded.Server.Port)
	}
	if loaded.Notify.SlackChannel != "#seo-alerts" {
		t.Errorf("SlackChannel = %q", loaded.Notify.SlackChannel)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		fallback time.Duration
		want     time.Duration
	}{
		{"72h", time.Hour, 72 * time.Hour},
		{"90m", time.Hour, 90 * time.Minute},
		{"", time.Hour, time.Hour},
		{"bogus", 24 * time.Hour, 24 * time.Hour},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.input, tt.fallback); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
