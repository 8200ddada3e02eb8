// Package config loads runtime configuration from environment variables,
// with MEDECHO_-prefixed names and an optional .env file for development.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration. Every field has an environment
// variable of the same name; nothing but the data directory is required to
// run offline.
type Config struct {
	DataDir   string `mapstructure:"MEDECHO_DATA_DIR"`
	LogLevel  string `mapstructure:"MEDECHO_LOG_LEVEL"`
	LogFormat string `mapstructure:"MEDECHO_LOG_FORMAT"`

	// Remote inference
	GeminiAPIKey string `mapstructure:"MEDECHO_GEMINI_API_KEY"`
	GeminiModel  string `mapstructure:"MEDECHO_GEMINI_MODEL"`
	SpeechAPIKey string `mapstructure:"MEDECHO_SPEECH_API_KEY"`
	Language     string `mapstructure:"MEDECHO_LANGUAGE"`

	// Local fallbacks
	WhisperBinary string `mapstructure:"MEDECHO_WHISPER_BINARY"`
	WhisperModel  string `mapstructure:"MEDECHO_WHISPER_MODEL"`
	LlamaBinary   string `mapstructure:"MEDECHO_LLAMA_BINARY"`
	LlamaModel    string `mapstructure:"MEDECHO_LLAMA_MODEL"`

	// EHR mirror (optional)
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Status server
	ListenAddr string `mapstructure:"MEDECHO_LISTEN_ADDR"`

	// Connectivity
	ProbeInterval time.Duration `mapstructure:"MEDECHO_PROBE_INTERVAL"`

	// Export key; empty means a fresh key per session.
	ExportKey string `mapstructure:"MEDECHO_EXPORT_KEY"`
}

var keys = []string{
	"MEDECHO_DATA_DIR",
	"MEDECHO_LOG_LEVEL",
	"MEDECHO_LOG_FORMAT",
	"MEDECHO_GEMINI_API_KEY",
	"MEDECHO_GEMINI_MODEL",
	"MEDECHO_SPEECH_API_KEY",
	"MEDECHO_LANGUAGE",
	"MEDECHO_WHISPER_BINARY",
	"MEDECHO_WHISPER_MODEL",
	"MEDECHO_LLAMA_BINARY",
	"MEDECHO_LLAMA_MODEL",
	"DATABASE_URL",
	"MEDECHO_LISTEN_ADDR",
	"MEDECHO_PROBE_INTERVAL",
	"MEDECHO_EXPORT_KEY",
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	home, _ := os.UserHomeDir()
	v.SetDefault("MEDECHO_DATA_DIR", filepath.Join(home, ".medecho"))
	v.SetDefault("MEDECHO_LOG_LEVEL", "info")
	v.SetDefault("MEDECHO_LOG_FORMAT", "console")
	v.SetDefault("MEDECHO_GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("MEDECHO_LANGUAGE", "en-US")
	v.SetDefault("MEDECHO_WHISPER_BINARY", "whisper-cli")
	v.SetDefault("MEDECHO_LLAMA_BINARY", "llama-cli")
	v.SetDefault("MEDECHO_LISTEN_ADDR", "127.0.0.1:8750")
	v.SetDefault("MEDECHO_PROBE_INTERVAL", "10s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration is runnable.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("MEDECHO_DATA_DIR must not be empty")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("MEDECHO_LOG_FORMAT must be \"console\" or \"json\", got %q", c.LogFormat)
	}
	if c.ProbeInterval < 0 {
		return fmt.Errorf("MEDECHO_PROBE_INTERVAL must be positive, got %v", c.ProbeInterval)
	}
	return nil
}

// RemoteInferenceConfigured reports whether any cloud backend has a key.
func (c *Config) RemoteInferenceConfigured() bool {
	return c.GeminiAPIKey != "" || c.SpeechAPIKey != ""
}
