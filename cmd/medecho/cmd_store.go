package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"medecho/internal/encounter"
	"medecho/internal/logging"
	"medecho/internal/observability"
)

func newPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List encounters waiting in the offline store",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(getConfig())
			if err != nil {
				return err
			}
			pending, err := store.ListPending()
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				e := json.NewEncoder(os.Stdout)
				e.SetIndent("", "  ")
				return e.Encode(pending)
			}

			if len(pending) == 0 {
				fmt.Println("No pending encounters")
				return nil
			}
			for _, rec := range pending {
				line := fmt.Sprintf("%s  %s", rec.EncounterID, rec.CreatedAt.Format("2006-01-02 15:04"))
				if rec.AudioPath != "" {
					line += "  [audio]"
				}
				if rec.ImagePath != "" {
					line += "  [image]"
				}
				if rec.Notes != "" {
					line += "  " + rec.Notes
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show offline store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(getConfig())
			if err != nil {
				return err
			}
			stats, err := store.GetStats()
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(stats)
			}

			fmt.Printf("Pending encounters:   %d\n", stats.Pending)
			fmt.Printf("Offline audio files:  %d\n", stats.AudioFiles)
			fmt.Printf("Offline images:       %d\n", stats.ImageFiles)
			fmt.Printf("Processed encounters: %d\n", stats.Processed)
			fmt.Printf("Total size:           %.2f MB\n", stats.TotalSizeMB)
			return nil
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Process encounters deferred while offline",
		Long: `sync replays every pending offline record through the encounter
pipeline: saved audio is transcribed, saved transcripts are processed
directly, and successfully processed records move to the processed
collection.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			ctx := cmd.Context()
			log := logging.WithComponent("sync")

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			pending, err := store.ListPending()
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Println("Nothing to sync")
				return nil
			}

			engine := newEngine(cfg)
			svc := newTranscribeService(cfg)

			processed := 0
			for _, rec := range pending {
				enc := encounter.New()
				enc.ID = rec.EncounterID
				enc.CreatedAt = rec.CreatedAt

				transcript := rec.Transcript
				if transcript == "" && rec.AudioPath != "" {
					audio, err := os.ReadFile(rec.AudioPath)
					if err != nil {
						log.Warn().Str("encounter_id", rec.EncounterID).Err(err).
							Msg("pending audio unreadable, skipping")
						continue
					}
					language := rec.Language
					if language == "" {
						language = cfg.Language
					}
					res := svc.Transcribe(ctx, audio, language)
					observability.Default.RecordTranscription(res.Source)
					if res.Text == "" {
						log.Warn().Str("encounter_id", rec.EncounterID).
							Msg("still no transcription backend, leaving pending")
						continue
					}
					transcript = res.Text
				}
				if transcript == "" {
					log.Warn().Str("encounter_id", rec.EncounterID).
						Msg("record has neither transcript nor audio, leaving pending")
					continue
				}

				enc.SetRawTranscript(transcript)
				observability.Default.RecordRedactions(enc.PIILabels)

				modality := "xray"
				if err := processEncounter(ctx, cfg, engine, enc, "", rec.ImagePath, modality); err != nil {
					log.Warn().Str("encounter_id", rec.EncounterID).Err(err).
						Msg("processing failed, leaving pending")
					continue
				}
				if err := recordHistory(ctx, cfg, enc); err != nil {
					log.Warn().Str("encounter_id", rec.EncounterID).Err(err).
						Msg("could not record encounter history")
				}
				if err := store.MarkProcessed(rec.EncounterID); err != nil {
					return err
				}
				observability.Default.EncountersProcessed.Inc()
				processed++
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]int{
					"processed": processed,
					"remaining": len(pending) - processed,
				})
			}
			fmt.Printf("✓ Processed %d of %d pending encounters\n", processed, len(pending))
			return nil
		},
	}
}
