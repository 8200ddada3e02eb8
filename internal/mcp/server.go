// Package mcp exposes encounter tooling over the Model Context Protocol so
// agent frontends can redact text and inspect the offline store through a
// stdio server.
package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"medecho/internal/logging"
	"medecho/internal/offline"
	"medecho/internal/redact"
)

// Config configures the MCP server.
type Config struct {
	// Name is the server name reported to clients.
	Name string

	// Version is the server version reported to clients.
	Version string

	// DataDir is the offline store root the tools operate on.
	DataDir string
}

// Server wraps an MCP stdio server over the offline store.
type Server struct {
	server *mcp.Server
	store  *offline.Store

	closeOnce sync.Once
}

// NewServer creates the server and registers its tools. The offline store
// directory tree is created if missing.
func NewServer(cfg *Config) (*Server, error) {
	if cfg.Name == "" {
		cfg.Name = "medecho"
	}
	store, err := offline.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening offline store: %w", err)
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
		store:  store,
	}
	s.registerTools()
	return s, nil
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lg := logging.WithComponent("mcp")
	lg.Info().Msg("mcp server starting on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close releases server resources. Safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		lg := logging.WithComponent("mcp")
		lg.Debug().Msg("mcp server closed")
	})
	return nil
}

type redactArgs struct {
	Text string `json:"text" jsonschema:"the text to redact"`
}

type redactResult struct {
	Redacted string   `json:"redacted"`
	Labels   []string `json:"labels"`
}

type statsArgs struct{}

type pendingArgs struct{}

type pendingResult struct {
	Pending []offline.Record `json:"pending"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "medecho_redact",
		Description: "Redact PII from clinical text, returning the redacted text and the labels found",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args redactArgs) (*mcp.CallToolResult, redactResult, error) {
		redacted, labels := redact.Redact(args.Text)
		return nil, redactResult{Redacted: redacted, Labels: labels}, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "medecho_stats",
		Description: "Report offline store statistics: pending encounters, stored audio and images, total size",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args statsArgs) (*mcp.CallToolResult, offline.Stats, error) {
		stats, err := s.store.GetStats()
		if err != nil {
			return nil, offline.Stats{}, err
		}
		return nil, stats, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "medecho_pending",
		Description: "List encounters waiting in the offline store for processing",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args pendingArgs) (*mcp.CallToolResult, pendingResult, error) {
		pending, err := s.store.ListPending()
		if err != nil {
			return nil, pendingResult{}, err
		}
		return nil, pendingResult{Pending: pending}, nil
	})
}
