package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model != "linear" {
		t.Errorf("expected model linear, got %s", cfg.Model)
	}
	if cfg.LR <= 0 {
		t.Error("lr should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero epochs", func(c *Config) { c.Epochs = 0 }},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"negative lr", func(c *Config) { c.LR = -0.1 }},
		{"momentum one", func(c *Config) { c.Momentum = 1.0 }},
		{"bad schedule", func(c *Config) { c.Schedule.Kind = "step" }},
		{"zero samples", func(c *Config) { c.Data.Samples = 0 }},
		{"early stop no patience", func(c *Config) {
			c.EarlyStopping.Enabled = true
			c.EarlyStopping.Patience = 0
		}},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected a validation error", tt.name)
		}
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	body := "epochs: 7\nlr: 0.5\nschedule:\n  kind: cosine\n  decay_steps: 7\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Epochs != 7 {
		t.Errorf("expected 7 epochs, got %d", cfg.Epochs)
	}
	if cfg.LR != 0.5 {
		t.Errorf("expected lr 0.5, got %f", cfg.LR)
	}
	if cfg.Schedule.Kind != "cosine" {
		t.Errorf("expected cosine schedule, got %s", cfg.Schedule.Kind)
	}
	if cfg.BatchSize != DefaultBatchSize {
		t.Errorf("unset fields must keep defaults, got batch size %d", cfg.BatchSize)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("epochs: -2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected a validation error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := DefaultConfig()
	cfg.Epochs = 42

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Epochs != 42 {
		t.Errorf("expected 42 epochs after round trip, got %d", loaded.Epochs)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("quick")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Epochs != 3 {
		t.Errorf("expected 3 epochs, got %d", cfg.Epochs)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("preset must validate: %v", err)
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets()
	if len(presets) == 0 {
		t.Error("expected presets")
	}
}
