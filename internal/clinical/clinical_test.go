package clinical

import (
	"context"
	"errors"
	"strings"
	"testing"

	"medecho/internal/encounter"
)

func TestExtractJSON_Direct(t *testing.T) {
	var got map[string]any
	if err := ExtractJSON(`{"symptoms": ["cough"]}`, &got); err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if _, ok := got["symptoms"]; !ok {
		t.Errorf("got = %v, want symptoms key", got)
	}
}

func TestExtractJSON_JSONFence(t *testing.T) {
	text := "Here is the result:\n```json\n{\"diagnoses\": [\"asthma\"]}\n```\nLet me know."
	var got map[string]any
	if err := ExtractJSON(text, &got); err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if _, ok := got["diagnoses"]; !ok {
		t.Errorf("got = %v, want diagnoses key", got)
	}
}

func TestExtractJSON_BareFence(t *testing.T) {
	text := "```\n{\"red_flags\": []}\n```"
	var got map[string]any
	if err := ExtractJSON(text, &got); err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
}

func TestExtractJSON_BraceSpan(t *testing.T) {
	text := `The assessment follows. {"primary_diagnosis": {"condition": "GERD"}} Hope that helps.`
	var got map[string]any
	if err := ExtractJSON(text, &got); err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if _, ok := got["primary_diagnosis"]; !ok {
		t.Errorf("got = %v, want primary_diagnosis key", got)
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	var got map[string]any
	err := ExtractJSON("I am unable to provide a diagnosis.", &got)
	if !errors.Is(err, ErrNoJSON) {
		t.Errorf("error = %v, want ErrNoJSON", err)
	}
}

func TestExtractJSON_SkipsNonObjectCandidates(t *testing.T) {
	// The fenced block is a JSON array, not an object; the brace span stage
	// must win without the array contaminating the result.
	text := "```json\n[\"cough\"]\n```\nAlso: {\"symptoms\": [\"fever\"]}"
	var got struct {
		Symptoms []string `json:"symptoms"`
	}
	if err := ExtractJSON(text, &got); err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if len(got.Symptoms) != 1 || got.Symptoms[0] != "fever" {
		t.Errorf("symptoms = %v, want [fever]", got.Symptoms)
	}
}

// scriptedGen returns a fixed response and records prompts.
type scriptedGen struct {
	response string
	source   string
	err      error
	prompts  []string
}

func (g *scriptedGen) Generate(ctx context.Context, prompt string, maxTokens int) (string, string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", "", g.err
	}
	src := g.source
	if src == "" {
		src = "test"
	}
	return g.response, src, nil
}

func TestEngine_DifferentialDiagnosis(t *testing.T) {
	gen := &scriptedGen{response: `{
		"primary_diagnosis": {"condition": "Community-acquired pneumonia", "confidence": "high", "reasoning": "fever, productive cough, focal crackles"},
		"differential_diagnoses": [{"condition": "Acute bronchitis", "confidence": "medium", "key_features": ["cough"], "ruling_out": "no focal findings"}],
		"red_flags": ["hypoxia"],
		"urgent_workup": ["chest x-ray"]
	}`}
	e := NewEngine(gen)

	diff, err := e.DifferentialDiagnosis(context.Background(), "fever and cough for five days", "")
	if err != nil {
		t.Fatalf("DifferentialDiagnosis() error = %v", err)
	}
	if diff.Primary.Condition != "Community-acquired pneumonia" {
		t.Errorf("primary = %q", diff.Primary.Condition)
	}
	if diff.Primary.Confidence != encounter.ConfidenceHigh {
		t.Errorf("confidence = %q, want high", diff.Primary.Confidence)
	}
	if len(diff.Alternatives) != 1 || len(diff.RedFlags) != 1 {
		t.Errorf("differential = %+v", diff)
	}
	if strings.Contains(gen.prompts[0], "PATIENT HISTORY CONTEXT") {
		t.Error("prompt includes EHR section without a summary")
	}
}

func TestEngine_DifferentialDiagnosis_IncludesEHRContext(t *testing.T) {
	gen := &scriptedGen{response: `{"primary_diagnosis": {"condition": "x"}}`}
	e := NewEngine(gen)

	_, err := e.DifferentialDiagnosis(context.Background(), "transcript", "prior MI in 2020")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gen.prompts[0], "PATIENT HISTORY CONTEXT:\nprior MI in 2020") {
		t.Errorf("prompt missing EHR context section:\n%s", gen.prompts[0])
	}
}

func TestEngine_DifferentialDiagnosis_UnparseableFallback(t *testing.T) {
	gen := &scriptedGen{response: "I think the patient probably has a viral infection."}
	e := NewEngine(gen)

	diff, err := e.DifferentialDiagnosis(context.Background(), "transcript", "")
	if err != nil {
		t.Fatalf("DifferentialDiagnosis() error = %v, fallback should not error", err)
	}
	if diff.Primary.Condition != "Unable to parse" {
		t.Errorf("condition = %q, want Unable to parse", diff.Primary.Condition)
	}
	if diff.Primary.Confidence != encounter.ConfidenceLow {
		t.Errorf("confidence = %q, want low", diff.Primary.Confidence)
	}
	if diff.Primary.Reasoning != gen.response {
		t.Errorf("reasoning = %q, want raw output preserved", diff.Primary.Reasoning)
	}
	if diff.Alternatives == nil || diff.RedFlags == nil || diff.UrgentWorkup == nil {
		t.Error("fallback collections must be empty, not nil")
	}
}

func TestEngine_DifferentialDiagnosis_FallbackReasoningCapped(t *testing.T) {
	gen := &scriptedGen{response: strings.Repeat("x", 2000)}
	e := NewEngine(gen)

	diff, err := e.DifferentialDiagnosis(context.Background(), "t", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(diff.Primary.Reasoning) != 500 {
		t.Errorf("reasoning length = %d, want capped at 500", len(diff.Primary.Reasoning))
	}
}

func TestEngine_DifferentialDiagnosis_GeneratorError(t *testing.T) {
	gen := &scriptedGen{err: errors.New("all backends failed")}
	e := NewEngine(gen)

	if _, err := e.DifferentialDiagnosis(context.Background(), "t", ""); err == nil {
		t.Error("DifferentialDiagnosis() error = nil, want generator failure to propagate")
	}
}

func TestEngine_ExtractStructured(t *testing.T) {
	gen := &scriptedGen{response: `{
		"symptoms": ["shortness of breath"],
		"vital_signs": {"BP": "140/90", "HR": "96"},
		"diagnoses": ["hypertension"],
		"follow_up_date": "2026-09-15",
		"physician_notes": "recheck BP in two weeks"
	}`}
	e := NewEngine(gen)

	s, err := e.ExtractStructured(context.Background(), "transcript")
	if err != nil {
		t.Fatalf("ExtractStructured() error = %v", err)
	}
	if len(s.Symptoms) != 1 || s.VitalSigns["BP"] != "140/90" {
		t.Errorf("structured = %+v", s)
	}
	if s.Allergies == nil || s.ProceduresOrdered == nil {
		t.Error("Normalize() should allocate omitted collections")
	}
}

func TestEngine_ExtractStructured_UnparseableFallback(t *testing.T) {
	transcript := strings.Repeat("patient reports mild headache. ", 20)
	gen := &scriptedGen{response: "not json at all"}
	e := NewEngine(gen)

	s, err := e.ExtractStructured(context.Background(), transcript)
	if err != nil {
		t.Fatalf("ExtractStructured() error = %v, fallback should not error", err)
	}
	if len(s.Symptoms) != 0 || len(s.Diagnoses) != 0 {
		t.Errorf("fallback structured = %+v, want empty collections", s)
	}
	if len(s.PhysicianNotes) != 300 {
		t.Errorf("notes length = %d, want transcript head capped at 300", len(s.PhysicianNotes))
	}
	if !strings.HasPrefix(transcript, s.PhysicianNotes) {
		t.Error("notes should be a prefix of the transcript")
	}
}

func TestEngine_Synthesize_OmitsEmptyImaging(t *testing.T) {
	gen := &scriptedGen{response: "recommendations"}
	e := NewEngine(gen)

	if _, err := e.Synthesize(context.Background(), "t", "history", ""); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(gen.prompts[0], "RADIOLOGY FINDINGS") {
		t.Error("prompt includes imaging section with no findings")
	}

	if _, err := e.Synthesize(context.Background(), "t", "history", "left lower lobe opacity"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gen.prompts[1], "RADIOLOGY FINDINGS:\nleft lower lobe opacity") {
		t.Errorf("prompt missing imaging section:\n%s", gen.prompts[1])
	}
}

func TestEngine_SummarizeEHR(t *testing.T) {
	gen := &scriptedGen{response: "Type 2 diabetic on metformin, penicillin allergy."}
	e := NewEngine(gen)

	got, err := e.SummarizeEHR(context.Background(), "long ehr blob")
	if err != nil {
		t.Fatalf("SummarizeEHR() error = %v", err)
	}
	if got != gen.response {
		t.Errorf("summary = %q", got)
	}
	if !strings.Contains(gen.prompts[0], "PATIENT HISTORY:\nlong ehr blob") {
		t.Errorf("prompt = %q", gen.prompts[0])
	}
}
