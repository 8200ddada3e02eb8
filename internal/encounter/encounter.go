// Package encounter holds the clinical encounter data model. One Encounter is
// the unit of work for a session: it collects the transcript, redaction
// labels, structured extraction, differential diagnosis, and imaging results
// that downstream packaging operates on.
package encounter

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"medecho/internal/imaging"
	"medecho/internal/redact"
)

// Confidence is the closed three-tier confidence rating used throughout.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence normalizes free-form model output to a valid tier,
// defaulting to low for anything unrecognized.
func ParseConfidence(s string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Diagnosis is the leading candidate condition with its supporting reasoning.
type Diagnosis struct {
	Condition  string     `json:"condition"`
	Confidence Confidence `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
}

// Alternative is a differential candidate with evidence for and against.
type Alternative struct {
	Condition   string     `json:"condition"`
	Confidence  Confidence `json:"confidence"`
	KeyFeatures []string   `json:"key_features"`
	RulingOut   string     `json:"ruling_out"`
}

// Differential is a ranked differential-diagnosis document.
type Differential struct {
	Primary      Diagnosis     `json:"primary_diagnosis"`
	Alternatives []Alternative `json:"differential_diagnoses"`
	RedFlags     []string      `json:"red_flags"`
	UrgentWorkup []string      `json:"urgent_workup"`
}

// Structured holds the clinical fields extracted from a transcript. List
// fields default to empty, never absent.
type Structured struct {
	Symptoms             []string          `json:"symptoms"`
	RadiologyFindings    []string          `json:"radiology_findings"`
	SuggestedMedications []string          `json:"suggested_medications"`
	FollowUpDate         string            `json:"follow_up_date"`
	VitalSigns           map[string]string `json:"vital_signs"`
	Allergies            []string          `json:"allergies"`
	ProceduresOrdered    []string          `json:"procedures_ordered"`
	Diagnoses            []string          `json:"diagnoses"`
	PhysicianNotes       string            `json:"physician_notes"`
}

// NewStructured returns a Structured value with every collection allocated.
func NewStructured() Structured {
	return Structured{
		Symptoms:             []string{},
		RadiologyFindings:    []string{},
		SuggestedMedications: []string{},
		VitalSigns:           map[string]string{},
		Allergies:            []string{},
		ProceduresOrdered:    []string{},
		Diagnoses:            []string{},
	}
}

// Normalize allocates any collection the JSON decoder left nil so callers
// can rely on list fields being present.
func (s *Structured) Normalize() {
	if s.Symptoms == nil {
		s.Symptoms = []string{}
	}
	if s.RadiologyFindings == nil {
		s.RadiologyFindings = []string{}
	}
	if s.SuggestedMedications == nil {
		s.SuggestedMedications = []string{}
	}
	if s.VitalSigns == nil {
		s.VitalSigns = map[string]string{}
	}
	if s.Allergies == nil {
		s.Allergies = []string{}
	}
	if s.ProceduresOrdered == nil {
		s.ProceduresOrdered = []string{}
	}
	if s.Diagnoses == nil {
		s.Diagnoses = []string{}
	}
}

// Imaging is the result of analyzing one medical image, tagged by modality.
// Either Description or Comparison is set depending on the operation run.
type Imaging struct {
	Modality    string `json:"modality"`
	Description string `json:"description,omitempty"`
	Comparison  string `json:"comparison,omitempty"`
}

// Encounter is one captured clinical encounter.
type Encounter struct {
	ID                 string               `json:"encounter_id"`
	CreatedAt          time.Time            `json:"created_at"`
	Patient            string               `json:"patient_name,omitempty"`
	Physician          string               `json:"physician,omitempty"`
	TranscriptRaw      string               `json:"transcript_raw"`
	TranscriptRedacted string               `json:"transcript_redacted"`
	PIILabels          []string             `json:"pii_labels"`
	Structured         Structured           `json:"structured"`
	Differential       *Differential        `json:"differential_diagnosis,omitempty"`
	EHRSummary         string               `json:"ehr_summary,omitempty"`
	Imaging            *Imaging             `json:"imaging,omitempty"`
	SiglipScores       []imaging.LabelScore `json:"siglip_scores,omitempty"`
	Synthesis          string               `json:"synthesis,omitempty"`
}

// New creates a fresh encounter with an assigned id and creation time.
// Starting a new encounter means constructing a new value and discarding the
// old one, never clearing fields in place.
func New() *Encounter {
	return &Encounter{
		ID:         NewID(),
		CreatedAt:  time.Now().UTC(),
		PIILabels:  []string{},
		Structured: NewStructured(),
	}
}

// NewID returns a short opaque encounter identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// SetRawTranscript records the raw transcript and recomputes the redacted
// form and label set. This is the only path by which TranscriptRedacted is
// written: it is always derived from TranscriptRaw through the redactor.
func (e *Encounter) SetRawTranscript(text string) {
	e.TranscriptRaw = text
	e.TranscriptRedacted, e.PIILabels = redact.Redact(text)
}
