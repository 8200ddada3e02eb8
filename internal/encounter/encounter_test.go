package encounter

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	e := New()

	if e.ID == "" {
		t.Error("New() assigned empty id")
	}
	if len(e.ID) != 8 {
		t.Errorf("id length = %d, want 8", len(e.ID))
	}
	if e.CreatedAt.IsZero() {
		t.Error("New() left CreatedAt zero")
	}
	if e.Structured.Symptoms == nil || e.Structured.VitalSigns == nil {
		t.Error("New() structured collections should be allocated, not nil")
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestSetRawTranscript_DerivesRedacted(t *testing.T) {
	e := New()
	e.SetRawTranscript("Dr. John Smith called 555-123-4567")

	if !strings.Contains(e.TranscriptRedacted, "[NAME]") {
		t.Errorf("TranscriptRedacted = %q, want [NAME] placeholder", e.TranscriptRedacted)
	}
	if len(e.PIILabels) != 2 {
		t.Errorf("PIILabels = %v, want NAME and PHONE", e.PIILabels)
	}

	// Updating the raw transcript must recompute the derived fields.
	e.SetRawTranscript("no identifiers at all")
	if e.TranscriptRedacted != "no identifiers at all" {
		t.Errorf("TranscriptRedacted = %q, want unchanged text", e.TranscriptRedacted)
	}
	if len(e.PIILabels) != 0 {
		t.Errorf("PIILabels = %v, want empty after clean transcript", e.PIILabels)
	}
}

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		in   string
		want Confidence
	}{
		{"high", ConfidenceHigh},
		{"HIGH", ConfidenceHigh},
		{" medium ", ConfidenceMedium},
		{"low", ConfidenceLow},
		{"very sure", ConfidenceLow},
		{"", ConfidenceLow},
	}
	for _, tt := range tests {
		if got := ParseConfidence(tt.in); got != tt.want {
			t.Errorf("ParseConfidence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStructured_Normalize(t *testing.T) {
	var s Structured
	if err := json.Unmarshal([]byte(`{"follow_up_date":"2026-09-15"}`), &s); err != nil {
		t.Fatal(err)
	}
	s.Normalize()

	if s.Symptoms == nil || s.Diagnoses == nil || s.VitalSigns == nil {
		t.Error("Normalize() left nil collections")
	}
	if s.FollowUpDate != "2026-09-15" {
		t.Errorf("FollowUpDate = %q, want 2026-09-15", s.FollowUpDate)
	}
}

func TestEncounter_JSONRoundTrip(t *testing.T) {
	e := New()
	e.Patient = "[REDACTED]"
	e.SetRawTranscript("cough for three days, SSN 123-45-6789")
	e.Structured.Diagnoses = append(e.Structured.Diagnoses, "acute bronchitis")

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var back Encounter
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back.ID != e.ID {
		t.Errorf("id = %q, want %q", back.ID, e.ID)
	}
	if back.TranscriptRedacted != e.TranscriptRedacted {
		t.Errorf("redacted transcript not preserved")
	}
	if len(back.Structured.Diagnoses) != 1 || back.Structured.Diagnoses[0] != "acute bronchitis" {
		t.Errorf("diagnoses = %v, want [acute bronchitis]", back.Structured.Diagnoses)
	}
}
