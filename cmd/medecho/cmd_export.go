package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"medecho/internal/config"
	"medecho/internal/encounter"
	"medecho/internal/export"
	"medecho/internal/observability"
	"medecho/internal/qr"
)

func newExportCmd() *cobra.Command {
	var (
		outPath string
		keyPath string
		encrypt bool
	)

	cmd := &cobra.Command{
		Use:   "export <encounter-id>",
		Short: "Export an encounter from history as an encrypted file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()

			hist, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer hist.Close()

			enc, err := hist.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			pkg, err := newPackager(cfg)
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = enc.ID + ".medecho"
			}
			if err := exportTo(cfg, pkg, enc, encrypt, outPath); err != nil {
				return err
			}
			if keyPath != "" && pkg.EncryptionAvailable() {
				if err := pkg.WriteKeyFile(keyPath); err != nil {
					return err
				}
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"encounter_id": enc.ID,
					"path":         outPath,
					"encrypted":    encrypt && pkg.EncryptionAvailable(),
				})
			}
			fmt.Printf("✓ Exported encounter %s to %s\n", enc.ID, outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "Output path (default <id>.medecho)")
	cmd.Flags().StringVar(&keyPath, "key-file", "", "Also write the encryption key to this path")
	cmd.Flags().BoolVar(&encrypt, "encrypt", true, "Encrypt the export")
	return cmd
}

func newDecryptCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "decrypt <file>",
		Short: "Decrypt and print an exported encounter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			if key == "" {
				key = cfg.ExportKey
			}

			var pkg *export.Packager
			var err error
			if key != "" {
				if pkg, err = export.NewPackagerWithKey(key); err != nil {
					return err
				}
			} else {
				pkg = export.NewUnencrypted()
			}

			env, err := pkg.DecryptFile(args[0])
			if err != nil {
				return err
			}

			e := json.NewEncoder(os.Stdout)
			e.SetIndent("", "  ")
			return e.Encode(env)
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Fernet key (default MEDECHO_EXPORT_KEY)")
	return cmd
}

func newQRCmd() *cobra.Command {
	var (
		outPath string
		compact bool
		level   string
	)

	cmd := &cobra.Command{
		Use:   "qr <encounter-id>",
		Short: "Render an encounter summary as a QR code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()

			hist, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer hist.Close()

			enc, err := hist.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if outPath == "" {
				outPath = enc.ID + "_qr.png"
			}
			if err := qr.NewGenerator(level).GenerateFile(enc, compact, outPath); err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]string{
					"encounter_id": enc.ID,
					"path":         outPath,
				})
			}
			fmt.Printf("✓ QR code written to %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "Output PNG path (default <id>_qr.png)")
	cmd.Flags().BoolVar(&compact, "compact", false, "Encode only the compact summary")
	cmd.Flags().StringVar(&level, "level", "M", "Error correction level (L, M, Q, H)")
	return cmd
}

// exportTo writes one export, printing a session-generated key to stderr so
// the recipient can still decrypt once the process exits.
func exportTo(cfg *config.Config, pkg *export.Packager, enc *encounter.Encounter, encrypt bool, path string) error {
	if err := pkg.ExportFile(enc, encrypt, path); err != nil {
		return err
	}

	if info, err := os.Stat(path); err == nil {
		observability.Default.RecordExport(encrypt && pkg.EncryptionAvailable(), int(info.Size()))
	}

	if encrypt && cfg.ExportKey == "" && pkg.EncryptionAvailable() {
		fmt.Fprintf(os.Stderr, "Decryption key (share over a secure channel):\n%s\n",
			strings.TrimSpace(pkg.KeyHandoff()))
	}
	return nil
}

func writeExport(cfg *config.Config, enc *encounter.Encounter, encrypt bool, path string) error {
	pkg, err := newPackager(cfg)
	if err != nil {
		return err
	}
	return exportTo(cfg, pkg, enc, encrypt, path)
}

func writeQR(enc *encounter.Encounter, compact bool, path string) error {
	return qr.NewGenerator("M").GenerateFile(enc, compact, path)
}
