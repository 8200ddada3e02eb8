package qr

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"medecho/internal/encounter"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestSummarize(t *testing.T) {
	e := encounter.New()
	e.Physician = "attending"
	e.Structured.Diagnoses = []string{"a", "b", "c", "d", "e"}
	e.Structured.SuggestedMedications = []string{"amoxicillin 500mg"}
	e.Structured.FollowUpDate = "2026-09-15"

	s := Summarize(e)
	if s.ID != e.ID {
		t.Errorf("id = %q, want %q", s.ID, e.ID)
	}
	if s.Patient != "[REDACTED]" {
		t.Errorf("patient = %q, want [REDACTED] default", s.Patient)
	}
	if len(s.Diagnoses) != 3 {
		t.Errorf("diagnoses = %v, want capped at 3", s.Diagnoses)
	}
	if len(s.Medications) != 1 || s.FollowUp != "2026-09-15" {
		t.Errorf("summary = %+v", s)
	}
}

func TestSummarize_EmptyListsNotNull(t *testing.T) {
	s := Summarize(encounter.New())
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "null") {
		t.Errorf("summary JSON contains null collections: %s", data)
	}
}

func TestGenerate_CompactIsPNG(t *testing.T) {
	g := NewGenerator("M")
	if !g.Available() {
		t.Fatal("Available() = false")
	}

	png, err := g.Generate(encounter.New(), true)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Error("output is not a PNG")
	}
}

func TestGenerate_FullFallsBackWhenOversize(t *testing.T) {
	e := encounter.New()
	e.SetRawTranscript(strings.Repeat("the patient reports intermittent chest discomfort. ", 200))

	g := NewGenerator("M")
	png, err := g.Generate(e, false)
	if err != nil {
		t.Fatalf("Generate() error = %v, oversize must fall back to summary", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Error("output is not a PNG")
	}
}

func TestGenerate_FullFitsWhenSmall(t *testing.T) {
	g := NewGenerator("L")
	if _, err := g.Generate(encounter.New(), false); err != nil {
		t.Errorf("Generate() error = %v for a small full encounter", err)
	}
}

func TestGenerate_FullFallsBackAtHighCorrection(t *testing.T) {
	e := encounter.New()
	e.SetRawTranscript(strings.Repeat("a", 1000))

	// Under the level-L ceiling, but over what Q and H can hold at
	// version 40 (1663 and 1273 bytes).
	full, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	if len(full) > MaxPayloadBytes {
		t.Fatalf("test encounter = %d bytes, must stay under %d", len(full), MaxPayloadBytes)
	}

	for _, level := range []string{"Q", "H"} {
		png, err := NewGenerator(level).Generate(e, false)
		if err != nil {
			t.Fatalf("Generate() at level %s error = %v, want compact fallback", level, err)
		}
		if !bytes.HasPrefix(png, pngMagic) {
			t.Errorf("level %s output is not a PNG", level)
		}
	}
}
