package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"medecho/internal/api"
	"medecho/internal/connectivity"
	"medecho/internal/mcp"
	"medecho/internal/observability"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local status HTTP server",
		Long: `serve exposes health, Prometheus metrics, offline store state, and
an on-demand redaction endpoint on loopback. A background connectivity
monitor feeds the health report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			if addr == "" {
				addr = cfg.ListenAddr
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}

			monitor := connectivity.NewMonitor(connectivity.MonitorConfig{
				Probe:     monitoredProbe(connectivity.NewProber(), observability.Default),
				Interval:  cfg.ProbeInterval,
				OnOnline:  observability.Default.OnlineTransitions.Inc,
				OnOffline: observability.Default.OfflineTransitions.Inc,
			})
			monitor.Start()
			defer monitor.Stop()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return api.New(store, monitor).Start(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default MEDECHO_LISTEN_ADDR)")
	return cmd
}

// monitoredProbe wraps a prober so every probe outcome is counted before the
// monitor sees it.
func monitoredProbe(p *connectivity.Prober, m *observability.Metrics) func(context.Context) bool {
	return func(ctx context.Context) bool {
		online := p.Online(ctx)
		m.RecordProbe(online)
		return online
	}
}

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP stdio server for agent integration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()

			server, err := mcp.NewServer(&mcp.Config{
				Version: version,
				DataDir: cfg.DataDir,
			})
			if err != nil {
				return fmt.Errorf("creating mcp server: %w", err)
			}
			defer server.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return server.Run(ctx)
		},
	}
}
