package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"medecho/internal/config"
	"medecho/internal/logging"
)

var version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "medecho",
		Short: "MedEcho - offline-capable clinical encounter assistant",
		Long: `medecho captures clinical encounters end to end: transcription,
PII redaction, structured extraction, differential diagnosis, medical
image analysis, and encrypted export.

Remote inference is used when the network allows it; everything degrades
to local models and the offline store when it does not.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
				cfg.DataDir = dir
			}
			logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
			setRuntimeConfig(cfg)
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("data-dir", "", "Override the data directory")

	// Add subcommands
	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newCaptureCmd(),
		newTranscribeCmd(),
		newPendingCmd(),
		newStatsCmd(),
		newSyncCmd(),
		newExportCmd(),
		newDecryptCmd(),
		newQRCmd(),
		newHistoryCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newServeCmd(),
		newMCPServerCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtimeConfig is resolved once in PersistentPreRunE and shared by every
// subcommand.
var runtimeConfig *config.Config

func setRuntimeConfig(cfg *config.Config) { runtimeConfig = cfg }

func getConfig() *config.Config {
	if runtimeConfig == nil {
		// Tests construct commands without the root pre-run.
		cfg, err := config.Load()
		if err != nil {
			cfg = &config.Config{DataDir: ".medecho", LogFormat: "console"}
		}
		runtimeConfig = cfg
	}
	return runtimeConfig
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"version": version})
			} else {
				fmt.Printf("medecho version %s\n", version)
			}
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			store, err := openStore(cfg)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{
					"status": "initialized",
					"path":   store.Root(),
				})
			} else {
				fmt.Printf("✓ Initialized data directory at %s\n", store.Root())
			}
			return nil
		},
	}
}
