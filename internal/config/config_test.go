package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir == "" {
		t.Error("DataDir default is empty")
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "console" {
		t.Errorf("logging defaults = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Language != "en-US" {
		t.Errorf("Language = %q, want en-US", cfg.Language)
	}
	if cfg.ProbeInterval != 10*time.Second {
		t.Errorf("ProbeInterval = %v, want 10s", cfg.ProbeInterval)
	}
	if cfg.ListenAddr != "127.0.0.1:8750" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MEDECHO_DATA_DIR", "/var/lib/medecho")
	t.Setenv("MEDECHO_LOG_FORMAT", "json")
	t.Setenv("MEDECHO_PROBE_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != "/var/lib/medecho" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q", cfg.LogFormat)
	}
	if cfg.ProbeInterval != 30*time.Second {
		t.Errorf("ProbeInterval = %v", cfg.ProbeInterval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"negative interval", func(c *Config) { c.ProbeInterval = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{DataDir: "/tmp/medecho", LogFormat: "console", ProbeInterval: time.Second}
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRemoteInferenceConfigured(t *testing.T) {
	cfg := &Config{}
	if cfg.RemoteInferenceConfigured() {
		t.Error("RemoteInferenceConfigured() = true with no keys")
	}
	cfg.GeminiAPIKey = "k"
	if !cfg.RemoteInferenceConfigured() {
		t.Error("RemoteInferenceConfigured() = false with gemini key")
	}
}
