package llm

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	defaultLocalBinary  = "llama-cli"
	defaultLocalTimeout = 120 * time.Second
	defaultLocalTokens  = 512
)

// LocalConfig configures a LocalClient.
type LocalConfig struct {
	// Binary is the llama.cpp CLI executable. Defaults to "llama-cli" on
	// PATH.
	Binary string

	// ModelPath is the GGUF model file passed to the binary. Required for
	// the client to be available.
	ModelPath string

	// Timeout bounds one generation. Defaults to 120s; local models on
	// clinic hardware are slow.
	Timeout time.Duration
}

// LocalClient runs a llama.cpp process per request. It exists so clinical
// reasoning keeps working with no network at all; quality is whatever the
// local model delivers.
type LocalClient struct {
	binary    string
	modelPath string
	timeout   time.Duration

	lookPath func(string) (string, error)
}

// NewLocal creates a local llama.cpp client.
func NewLocal(cfg LocalConfig) *LocalClient {
	if cfg.Binary == "" {
		cfg.Binary = defaultLocalBinary
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultLocalTimeout
	}
	return &LocalClient{
		binary:    cfg.Binary,
		modelPath: cfg.ModelPath,
		timeout:   cfg.Timeout,
		lookPath:  exec.LookPath,
	}
}

// Available reports whether both the binary and a model file are configured.
func (c *LocalClient) Available() bool {
	if c.modelPath == "" {
		return false
	}
	_, err := c.lookPath(c.binary)
	return err == nil
}

// Generate runs one llama.cpp invocation and returns its trimmed stdout.
func (c *LocalClient) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("local llm: %s not available", c.binary)
	}
	if maxTokens <= 0 {
		maxTokens = defaultLocalTokens
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{
		"-m", c.modelPath,
		"-p", prompt,
		"-n", strconv.Itoa(maxTokens),
		"--no-display-prompt",
	}
	cmd := exec.CommandContext(ctx, c.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("local llm: timed out after %v", c.timeout)
		}
		return "", fmt.Errorf("local llm: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", fmt.Errorf("local llm: empty output")
	}
	return text, nil
}
