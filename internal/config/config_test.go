package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("defaults should load: %v", err)
	}

	if cfg.App.Name != "opusfeed" {
		t.Fatalf("unexpected app name %q", cfg.App.Name)
	}
	if cfg.Feed.DecisionCapacity != 20 || cfg.Feed.ActivityCapacity != 50 {
		t.Fatalf("unexpected feed defaults: %+v", cfg.Feed)
	}
	if cfg.Flash.Hold != 600*time.Millisecond {
		t.Fatalf("unexpected flash hold %s", cfg.Flash.Hold)
	}
	if cfg.Ranking.Weights.ReadyThreshold != 60 {
		t.Fatalf("unexpected ready threshold %v", cfg.Ranking.Weights.ReadyThreshold)
	}
	if cfg.Ranking.Weights.FreshnessMax != 30 || cfg.Ranking.Weights.WalletMax != 50 {
		t.Fatalf("unexpected weight caps: %+v", cfg.Ranking.Weights)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
stream:
  url: wss://example.com/events
feed:
  decision_capacity: 10
ranking:
  refresh_interval: 2s
  weights:
    ready_threshold: 75
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Stream.URL != "wss://example.com/events" {
		t.Fatalf("stream url not applied: %q", cfg.Stream.URL)
	}
	if cfg.Feed.DecisionCapacity != 10 {
		t.Fatalf("decision capacity not applied: %d", cfg.Feed.DecisionCapacity)
	}
	if cfg.Ranking.RefreshInterval != 2*time.Second {
		t.Fatalf("refresh interval not applied: %s", cfg.Ranking.RefreshInterval)
	}
	if cfg.Ranking.Weights.ReadyThreshold != 75 {
		t.Fatalf("threshold not applied: %v", cfg.Ranking.Weights.ReadyThreshold)
	}
	// Unset weights keep their defaults.
	if cfg.Ranking.Weights.WalletMax != 50 {
		t.Fatalf("wallet cap default lost: %v", cfg.Ranking.Weights.WalletMax)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Feed.DecisionCapacity = 0 },
		func(c *Config) { c.Feed.ActivityCapacity = -1 },
		func(c *Config) { c.Ranking.RefreshInterval = 0 },
		func(c *Config) { c.Flash.PriceThreshold = -0.1 },
		func(c *Config) { c.Export.MaxDataPoints = 0 },
		func(c *Config) { c.Alerting.Telegram.Enabled = true },
	}

	for i, mutate := range cases {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("load defaults: %v", err)
		}
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d should fail validation", i)
		}
	}
}
