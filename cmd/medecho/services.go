package main

import (
	"path/filepath"

	"medecho/internal/clinical"
	"medecho/internal/config"
	"medecho/internal/export"
	"medecho/internal/history"
	"medecho/internal/llm"
	"medecho/internal/offline"
	"medecho/internal/transcribe"
)

// Service constructors shared by the subcommands. Each builds from the
// resolved runtime configuration; nothing here touches the network until a
// request is actually made.

func openStore(cfg *config.Config) (*offline.Store, error) {
	return offline.Open(cfg.DataDir)
}

func openHistory(cfg *config.Config) (*history.Store, error) {
	return history.Open(filepath.Join(cfg.DataDir, "history.db"))
}

func newEngine(cfg *config.Config) *clinical.Engine {
	chain := llm.NewChain(
		llm.NamedClient{Name: "gemini", Client: llm.NewGemini(llm.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		})},
		llm.NamedClient{Name: "local", Client: llm.NewLocal(llm.LocalConfig{
			Binary:    cfg.LlamaBinary,
			ModelPath: cfg.LlamaModel,
		})},
	)
	return clinical.NewEngine(chain)
}

func newTranscribeService(cfg *config.Config) *transcribe.Service {
	return transcribe.NewService(
		transcribe.NewGoogle(cfg.SpeechAPIKey),
		transcribe.NewWhisper(transcribe.WhisperConfig{
			Binary:    cfg.WhisperBinary,
			ModelPath: cfg.WhisperModel,
		}),
	)
}

// newPackager honors a configured key so exports decrypt across sessions;
// without one each run gets a fresh key.
func newPackager(cfg *config.Config) (*export.Packager, error) {
	if cfg.ExportKey != "" {
		return export.NewPackagerWithKey(cfg.ExportKey)
	}
	return export.NewPackager()
}
