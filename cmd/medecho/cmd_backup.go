package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"medecho/internal/backup"
)

func newBackupCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the encounter archive and pending offline records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()

			hist, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer hist.Close()

			store, err := openStore(cfg)
			if err != nil {
				return err
			}

			if outPath == "" {
				outPath = fmt.Sprintf("medecho-backup-%s.json", time.Now().UTC().Format("20060102-150405"))
			}
			snap, err := backup.Backup(cmd.Context(), hist, store, outPath)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"path":       outPath,
					"encounters": len(snap.Encounters),
					"pending":    len(snap.Pending),
				})
			}
			fmt.Printf("✓ Backed up %d encounters and %d pending records to %s\n",
				len(snap.Encounters), len(snap.Pending), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "Snapshot path (default medecho-backup-<timestamp>.json)")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "restore <snapshot>",
		Short: "Restore the encounter archive from a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()

			hist, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer hist.Close()

			store, err := openStore(cfg)
			if err != nil {
				return err
			}

			mode := backup.RestoreMerge
			if replace {
				mode = backup.RestoreReplace
			}
			result, err := backup.Restore(cmd.Context(), hist, store, args[0], mode)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(result)
			}
			fmt.Printf("✓ Restored %d encounters and %d pending records\n",
				result.Encounters, result.Pending)
			return nil
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "Clear the archive before restoring")
	return cmd
}
