// Package qr renders encounter summaries as QR codes for patient
// portability. A QR code holds at most a few kilobytes, so the full
// encounter never goes in; a compact projection does, and even a full-data
// request falls back to the projection when it would not fit.
package qr

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"medecho/internal/encounter"
	"medecho/internal/logging"
)

// MaxPayloadBytes is the QR capacity ceiling: version 40 at error
// correction level L holds 2953 binary bytes.
const MaxPayloadBytes = 2953

const imageSize = 512

// Summary is the compact projection encoded when the full encounter is too
// large. Diagnosis and medication lists are capped at three entries each.
type Summary struct {
	ID          string   `json:"id"`
	Date        string   `json:"date"`
	Patient     string   `json:"patient"`
	Diagnoses   []string `json:"diagnoses"`
	Medications []string `json:"medications"`
	FollowUp    string   `json:"follow_up"`
	Physician   string   `json:"physician"`
}

// Summarize builds the compact projection of an encounter.
func Summarize(enc *encounter.Encounter) Summary {
	patient := enc.Patient
	if patient == "" {
		patient = "[REDACTED]"
	}
	date := enc.CreatedAt.UTC().Format("2006-01-02")
	if enc.CreatedAt.IsZero() {
		date = time.Now().UTC().Format("2006-01-02")
	}
	return Summary{
		ID:          enc.ID,
		Date:        date,
		Patient:     patient,
		Diagnoses:   capList(enc.Structured.Diagnoses, 3),
		Medications: capList(enc.Structured.SuggestedMedications, 3),
		FollowUp:    enc.Structured.FollowUpDate,
		Physician:   enc.Physician,
	}
}

func capList(items []string, n int) []string {
	if items == nil {
		return []string{}
	}
	if len(items) > n {
		items = items[:n]
	}
	return items
}

// Generator renders QR codes at a configured error correction level.
type Generator struct {
	level qrcode.RecoveryLevel
}

// NewGenerator returns a Generator. level is one of "L", "M", "Q", "H";
// unknown values mean medium.
func NewGenerator(level string) *Generator {
	return &Generator{level: recoveryLevel(level)}
}

func recoveryLevel(s string) qrcode.RecoveryLevel {
	switch s {
	case "L":
		return qrcode.Low
	case "Q":
		return qrcode.High
	case "H":
		return qrcode.Highest
	default:
		return qrcode.Medium
	}
}

// Available reports whether QR generation works. The encoder is compiled
// in, so this is always true; the flag exists because callers branch on it.
func (g *Generator) Available() bool { return true }

// Generate renders a QR PNG for the encounter. With compact true only the
// summary projection is encoded. With compact false the full encounter JSON
// is attempted first and silently replaced by the projection when it does
// not fit: either past the MaxPayloadBytes ceiling up front, or refused by
// the encoder because higher correction levels hold less than level L does.
func (g *Generator) Generate(enc *encounter.Encounter, compact bool) ([]byte, error) {
	if !compact {
		full, err := json.Marshal(enc)
		if err != nil {
			return nil, fmt.Errorf("qr: encoding encounter: %w", err)
		}
		if len(full) <= MaxPayloadBytes {
			png, err := qrcode.Encode(string(full), g.level, imageSize)
			if err == nil {
				return png, nil
			}
			lg := logging.WithComponent("qr")
			lg.Warn().
				Int("bytes", len(full)).
				Msg("full encounter exceeds qr capacity at this correction level, encoding compact summary")
		} else {
			lg := logging.WithComponent("qr")
			lg.Warn().
				Int("bytes", len(full)).
				Msg("full encounter exceeds qr capacity, encoding compact summary")
		}
	}

	summary, err := json.Marshal(Summarize(enc))
	if err != nil {
		return nil, fmt.Errorf("qr: encoding summary: %w", err)
	}
	png, err := qrcode.Encode(string(summary), g.level, imageSize)
	if err != nil {
		return nil, fmt.Errorf("qr: encoding: %w", err)
	}
	return png, nil
}

// GenerateFile renders a QR PNG to path.
func (g *Generator) GenerateFile(enc *encounter.Encounter, compact bool, path string) error {
	png, err := g.Generate(enc, compact)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("qr: writing %s: %w", path, err)
	}
	lg := logging.WithComponent("qr")
	lg.Info().Str("path", path).Msg("qr code saved")
	return nil
}
