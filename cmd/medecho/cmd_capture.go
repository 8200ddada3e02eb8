package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"medecho/internal/clinical"
	"medecho/internal/config"
	"medecho/internal/connectivity"
	"medecho/internal/ehr"
	"medecho/internal/encounter"
	"medecho/internal/imaging"
	"medecho/internal/logging"
	"medecho/internal/observability"
	"medecho/internal/offline"
	"medecho/internal/transcribe"
)

func newCaptureCmd() *cobra.Command {
	var (
		audioPath string
		text      string
		imagePath string
		modality  string
		mrn       string
		patient   string
		physician string
		notes     string
		outPath   string
		encrypt   bool
		qrPath    string
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture and process one clinical encounter",
		Long: `capture runs the full encounter pipeline: transcription, PII
redaction, structured extraction, differential diagnosis, optional EHR
context and image analysis, and a final synthesis.

When no backend can produce a transcript the raw inputs are parked in the
offline store and picked up later by "medecho sync".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if audioPath == "" && text == "" {
				return fmt.Errorf("one of --audio or --text is required")
			}

			cfg := getConfig()
			ctx := cmd.Context()
			store, err := openStore(cfg)
			if err != nil {
				return err
			}

			enc := encounter.New()
			enc.Patient = patient
			enc.Physician = physician
			observability.Default.EncountersStarted.Inc()
			log := logging.WithEncounter(enc.ID)

			var audio []byte
			if audioPath != "" {
				if audio, err = os.ReadFile(audioPath); err != nil {
					return fmt.Errorf("reading audio: %w", err)
				}
			}

			transcript := text
			if transcript == "" {
				res := newTranscribeService(cfg).Transcribe(ctx, audio, cfg.Language)
				observability.Default.RecordTranscription(res.Source)
				if res.Source == transcribe.SourceNone {
					return deferEncounter(cmd, store, enc, audio, imagePath, cfg, notes)
				}
				log.Info().Str("source", res.Source).Float64("confidence", res.Confidence).
					Msg("transcription complete")
				transcript = res.Text
			}

			enc.SetRawTranscript(transcript)
			observability.Default.RecordRedactions(enc.PIILabels)

			engine := newEngine(cfg)
			if err := processEncounter(ctx, cfg, engine, enc, mrn, imagePath, modality); err != nil {
				// Remote and local inference both failed; park the redacted
				// transcript for sync.
				log.Warn().Err(err).Msg("processing failed, deferring encounter")
				return deferEncounter(cmd, store, enc, audio, imagePath, cfg, notes)
			}

			if err := recordHistory(ctx, cfg, enc); err != nil {
				log.Warn().Err(err).Msg("could not record encounter history")
			}
			if outPath != "" {
				if err := writeExport(cfg, enc, encrypt, outPath); err != nil {
					return err
				}
			}
			if qrPath != "" {
				if err := writeQR(enc, false, qrPath); err != nil {
					return err
				}
			}
			observability.Default.EncountersCompleted.Inc()
			return printEncounter(cmd, enc)
		},
	}

	cmd.Flags().StringVar(&audioPath, "audio", "", "WAV file to transcribe")
	cmd.Flags().StringVar(&text, "text", "", "Transcript text (skips transcription)")
	cmd.Flags().StringVar(&imagePath, "image", "", "Medical image to analyze")
	cmd.Flags().StringVar(&modality, "modality", "xray", "Image modality (xray, skin, wound)")
	cmd.Flags().StringVar(&mrn, "mrn", "", "Patient MRN for EHR history lookup")
	cmd.Flags().StringVar(&patient, "patient", "", "Patient name (omit to keep redacted)")
	cmd.Flags().StringVar(&physician, "physician", "", "Attending physician")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form capture notes")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the export to this path")
	cmd.Flags().BoolVar(&encrypt, "encrypt", true, "Encrypt the export")
	cmd.Flags().StringVar(&qrPath, "qr", "", "Write a QR code PNG to this path")

	return cmd
}

// processEncounter fills the inference-derived fields of enc in place.
func processEncounter(ctx context.Context, cfg *config.Config, engine *clinical.Engine, enc *encounter.Encounter, mrn, imagePath, modality string) error {
	log := logging.WithEncounter(enc.ID)

	if mrn != "" && cfg.DatabaseURL != "" {
		repo, pool, err := ehr.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("ehr mirror unreachable, continuing without history")
		} else {
			defer pool.Close()
			historyText, err := repo.PatientHistory(ctx, mrn)
			if err != nil {
				log.Warn().Err(err).Msg("no ehr history for patient")
			} else if enc.EHRSummary, err = engine.SummarizeEHR(ctx, historyText); err != nil {
				return fmt.Errorf("summarizing ehr history: %w", err)
			}
		}
	}

	structured, err := engine.ExtractStructured(ctx, enc.TranscriptRedacted)
	if err != nil {
		return fmt.Errorf("extracting structured data: %w", err)
	}
	enc.Structured = structured

	diff, err := engine.DifferentialDiagnosis(ctx, enc.TranscriptRedacted, enc.EHRSummary)
	if err != nil {
		return fmt.Errorf("generating differential: %w", err)
	}
	enc.Differential = &diff

	var imageFindings string
	if imagePath != "" {
		if err := analyzeImage(ctx, cfg, enc, imagePath, modality); err != nil {
			log.Warn().Err(err).Msg("image analysis failed, continuing without it")
		} else if enc.Imaging != nil {
			imageFindings = enc.Imaging.Description
		}
	}

	enc.Synthesis, err = engine.Synthesize(ctx, enc.TranscriptRedacted, enc.EHRSummary, imageFindings)
	if err != nil {
		return fmt.Errorf("synthesizing recommendation: %w", err)
	}
	return nil
}

func analyzeImage(ctx context.Context, cfg *config.Config, enc *encounter.Encounter, imagePath, modality string) error {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	analyzer := imaging.NewGemini(imaging.GeminiConfig{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	})
	if !analyzer.Available() {
		return fmt.Errorf("no image analysis backend configured")
	}

	desc, err := analyzer.Describe(ctx, data, modality)
	if err != nil {
		return err
	}
	enc.Imaging = &encounter.Imaging{Modality: modality, Description: desc}

	scores, err := analyzer.Classify(ctx, data, imaging.LabelsFor(modality))
	if err != nil {
		lg := logging.WithEncounter(enc.ID)
		lg.Warn().Err(err).Msg("image classification failed")
		return nil
	}
	enc.SiglipScores = scores
	return nil
}

// deferEncounter parks raw inputs in the offline store for later sync.
func deferEncounter(cmd *cobra.Command, store *offline.Store, enc *encounter.Encounter, audio []byte, imagePath string, cfg *config.Config, notes string) error {
	rec := offline.Record{
		CreatedAt:  enc.CreatedAt,
		Transcript: enc.TranscriptRedacted,
		Language:   cfg.Language,
		Notes:      notes,
	}

	if len(audio) > 0 {
		path, err := store.SaveAudio(audio, enc.ID)
		if err != nil {
			return err
		}
		rec.AudioPath = path
		observability.Default.RecordOfflineSave("audio")
	}
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}
		path, err := store.SaveImage(data, enc.ID, filepath.Ext(imagePath))
		if err != nil {
			return err
		}
		rec.ImagePath = path
		observability.Default.RecordOfflineSave("image")
	}
	if _, err := store.SaveMetadata(rec, enc.ID); err != nil {
		return err
	}
	observability.Default.RecordOfflineSave("metadata")

	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(map[string]string{
			"encounter_id": enc.ID,
			"status":       "deferred",
		})
	}
	fmt.Printf("⚠ Encounter %s saved offline; run \"medecho sync\" when connectivity returns\n", enc.ID)
	return nil
}

func recordHistory(ctx context.Context, cfg *config.Config, enc *encounter.Encounter) error {
	hist, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer hist.Close()
	return hist.Add(ctx, enc)
}

func printEncounter(cmd *cobra.Command, enc *encounter.Encounter) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		e := json.NewEncoder(os.Stdout)
		e.SetIndent("", "  ")
		return e.Encode(enc)
	}

	fmt.Printf("Encounter %s\n", enc.ID)
	if len(enc.PIILabels) > 0 {
		fmt.Printf("  Redacted: %s\n", strings.Join(enc.PIILabels, ", "))
	}
	if enc.Differential != nil {
		fmt.Printf("  Primary diagnosis: %s (%s)\n",
			enc.Differential.Primary.Condition, enc.Differential.Primary.Confidence)
		for _, alt := range enc.Differential.Alternatives {
			fmt.Printf("    - %s (%s)\n", alt.Condition, alt.Confidence)
		}
		for _, flag := range enc.Differential.RedFlags {
			fmt.Printf("  ⚠ Red flag: %s\n", flag)
		}
	}
	if len(enc.Structured.SuggestedMedications) > 0 {
		fmt.Printf("  Medications: %s\n", strings.Join(enc.Structured.SuggestedMedications, ", "))
	}
	if enc.Structured.FollowUpDate != "" {
		fmt.Printf("  Follow-up: %s\n", enc.Structured.FollowUpDate)
	}
	if enc.Imaging != nil {
		fmt.Printf("  Imaging (%s): %s\n", enc.Imaging.Modality, truncateLine(enc.Imaging.Description, 120))
	}
	if enc.Synthesis != "" {
		fmt.Printf("\n%s\n", enc.Synthesis)
	}
	return nil
}

func truncateLine(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func newTranscribeCmd() *cobra.Command {
	var audioPath string

	cmd := &cobra.Command{
		Use:   "transcribe",
		Short: "Transcribe a WAV file without running the full pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()

			audio, err := os.ReadFile(audioPath)
			if err != nil {
				return fmt.Errorf("reading audio: %w", err)
			}

			res := newTranscribeService(cfg).Transcribe(cmd.Context(), audio, cfg.Language)
			observability.Default.RecordTranscription(res.Source)
			if res.Source == transcribe.SourceNone {
				online := connectivity.NewProber().Online(cmd.Context())
				return fmt.Errorf("no transcription backend succeeded (online=%v)", online)
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(res)
			}
			fmt.Printf("[%s, confidence %.2f]\n%s\n", res.Source, res.Confidence, res.Text)
			return nil
		},
	}

	cmd.Flags().StringVar(&audioPath, "audio", "", "WAV file to transcribe")
	cmd.MarkFlagRequired("audio")
	return cmd
}
