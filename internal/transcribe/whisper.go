package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"medecho/internal/audio"
)

const (
	defaultWhisperBinary  = "whisper-cli"
	defaultWhisperTimeout = 120 * time.Second

	// whisper.cpp reports no per-utterance confidence; a fixed value keeps
	// downstream thresholds meaningful.
	whisperConfidence = 0.85
)

// WhisperConfig configures a WhisperClient.
type WhisperConfig struct {
	// Binary is the whisper.cpp CLI. Defaults to "whisper-cli" on PATH.
	Binary string

	// ModelPath is the GGML model file. Required.
	ModelPath string

	Timeout time.Duration
}

// WhisperClient runs whisper.cpp locally, so transcription works with no
// network at all. The binary expects a WAV file path, so audio is staged in
// a temp file per call.
type WhisperClient struct {
	binary    string
	modelPath string
	timeout   time.Duration

	lookPath func(string) (string, error)
}

// NewWhisper creates a local whisper.cpp client.
func NewWhisper(cfg WhisperConfig) *WhisperClient {
	if cfg.Binary == "" {
		cfg.Binary = defaultWhisperBinary
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultWhisperTimeout
	}
	return &WhisperClient{
		binary:    cfg.Binary,
		modelPath: cfg.ModelPath,
		timeout:   cfg.Timeout,
		lookPath:  exec.LookPath,
	}
}

// Available reports whether the binary and a model file are configured.
func (w *WhisperClient) Available() bool {
	if w.modelPath == "" {
		return false
	}
	_, err := w.lookPath(w.binary)
	return err == nil
}

// Transcribe stages the audio as a WAV file and runs one whisper.cpp
// invocation over it.
func (w *WhisperClient) Transcribe(ctx context.Context, audioBytes []byte, language string) (Result, error) {
	if !w.Available() {
		return Result{}, fmt.Errorf("whisper: %s not available", w.binary)
	}

	tmp, err := os.CreateTemp("", "medecho-whisper-*.wav")
	if err != nil {
		return Result{}, fmt.Errorf("whisper: staging audio: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	wav := audio.WrapPCM(audioBytes, audio.SampleRate)
	if _, err := tmp.Write(wav); err != nil {
		tmp.Close()
		return Result{}, fmt.Errorf("whisper: staging audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, fmt.Errorf("whisper: staging audio: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	args := []string{
		"-m", w.modelPath,
		"-f", filepath.Clean(tmpPath),
		"-l", "en",
		"--no-timestamps",
	}
	cmd := exec.CommandContext(ctx, w.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Result{}, fmt.Errorf("whisper: timed out after %v", w.timeout)
		}
		return Result{}, fmt.Errorf("whisper: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	return Result{
		Text:       strings.TrimSpace(stdout.String()),
		Confidence: whisperConfidence,
		Source:     SourceWhisper,
	}, nil
}
