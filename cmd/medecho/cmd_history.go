package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [encounter-id]",
		Short: "List past encounters, or show one in full",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()

			hist, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer hist.Close()

			jsonOut, _ := cmd.Flags().GetBool("json")

			if len(args) == 1 {
				enc, err := hist.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					e := json.NewEncoder(os.Stdout)
					e.SetIndent("", "  ")
					return e.Encode(enc)
				}
				return printEncounter(cmd, enc)
			}

			entries, err := hist.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				e := json.NewEncoder(os.Stdout)
				e.SetIndent("", "  ")
				return e.Encode(entries)
			}

			if len(entries) == 0 {
				fmt.Println("No encounters recorded")
				return nil
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s  %s", e.ID, e.CreatedAt.Format("2006-01-02 15:04"))
				if e.Summary != "" {
					line += "  " + e.Summary
				}
				if e.Physician != "" {
					line += "  (" + e.Physician + ")"
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to list (0 for all)")
	return cmd
}
