// Package llm provides text-generation clients for clinical reasoning. A
// remote Gemini client is preferred; a local llama.cpp process serves as the
// fallback when the network or the API is unavailable.
package llm

import (
	"context"

	"medecho/internal/attempt"
	"medecho/internal/logging"
	"medecho/internal/observability"
	"medecho/internal/tokens"
)

// Client generates text from a prompt.
type Client interface {
	// Generate returns the model's completion for prompt. maxTokens <= 0
	// means the client's default.
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)

	// Available reports whether the client is usable right now. Generate on
	// an unavailable client fails fast.
	Available() bool
}

// NamedClient pairs a Client with the source name reported when it wins.
type NamedClient struct {
	Name   string
	Client Client
}

// Chain tries each client in order and returns the first successful
// completion together with the name of the client that produced it.
// Unavailable clients still get a turn; they fail fast and the chain moves
// on.
type Chain struct {
	clients []NamedClient
}

// NewChain builds a chain over the given named clients.
func NewChain(clients ...NamedClient) *Chain {
	return &Chain{clients: clients}
}

// Generate runs the chain for prompt. The returned source names the client
// that succeeded. When every client fails the joined errors are returned.
func (c *Chain) Generate(ctx context.Context, prompt string, maxTokens int) (text, source string, err error) {
	steps := make([]attempt.Step[string], len(c.clients))
	for i, nc := range c.clients {
		nc := nc
		steps[i] = attempt.Step[string]{
			Name: nc.Name,
			Run: func(ctx context.Context) (string, error) {
				return nc.Client.Generate(ctx, prompt, maxTokens)
			},
		}
	}
	lg := logging.WithComponent("llm")
	lg.Debug().
		Int("prompt_tokens_est", tokens.Estimate(prompt)).
		Int("max_tokens", maxTokens).
		Msg("running generation chain")

	text, source, err = attempt.First(ctx, steps...)
	if err == nil {
		observability.Default.RecordGeneration(source)
	}
	return text, source, err
}
