// Package clinical turns redacted encounter transcripts into structured
// clinical output: differential diagnoses, structured extraction, EHR
// summaries, and a combined synthesis. All reasoning goes through an LLM
// chain; every operation degrades to a safe default instead of failing when
// the model's output cannot be parsed.
package clinical

import (
	"context"

	"medecho/internal/encounter"
	"medecho/internal/logging"
)

// Character caps on raw model output carried into fallback structures.
const (
	maxFallbackReasoning = 500
	maxFallbackNotes     = 300
)

// Generator is the text-generation dependency, satisfied by *llm.Chain. The
// second return names the backend that produced the text.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (text, source string, err error)
}

// Engine orchestrates the clinical NLP tasks over one Generator.
type Engine struct {
	gen Generator
}

// NewEngine creates an Engine backed by gen.
func NewEngine(gen Generator) *Engine {
	return &Engine{gen: gen}
}

// DifferentialDiagnosis generates a structured differential from a redacted
// transcript. ehrSummary is optional patient history context. When the model
// output cannot be parsed the returned Differential carries an "Unable to
// parse" primary diagnosis at low confidence with the raw output as
// reasoning, so downstream rendering never crashes on a malformed response.
func (e *Engine) DifferentialDiagnosis(ctx context.Context, transcript, ehrSummary string) (encounter.Differential, error) {
	raw, source, err := e.gen.Generate(ctx, diffDxPrompt(transcript, ehrSummary), 1024)
	if err != nil {
		return encounter.Differential{}, err
	}

	var diff encounter.Differential
	if err := ExtractJSON(raw, &diff); err != nil {
		lg := logging.WithComponent("clinical")
		lg.Warn().
			Str("source", source).
			Msg("differential output was not valid JSON, using fallback")
		return encounter.Differential{
			Primary: encounter.Diagnosis{
				Condition:  "Unable to parse",
				Confidence: encounter.ConfidenceLow,
				Reasoning:  truncate(raw, maxFallbackReasoning),
			},
			Alternatives: []encounter.Alternative{},
			RedFlags:     []string{},
			UrgentWorkup: []string{},
		}, nil
	}
	return diff, nil
}

// ExtractStructured converts a transcript into the structured encounter
// form. On unparseable output it returns an empty structure whose physician
// notes hold the transcript head, so the encounter still has something to
// show.
func (e *Engine) ExtractStructured(ctx context.Context, transcript string) (encounter.Structured, error) {
	raw, source, err := e.gen.Generate(ctx, extractionPrompt(transcript), 1024)
	if err != nil {
		return encounter.Structured{}, err
	}

	var s encounter.Structured
	if err := ExtractJSON(raw, &s); err != nil {
		lg := logging.WithComponent("clinical")
		lg.Warn().
			Str("source", source).
			Msg("extraction output was not valid JSON, using fallback")
		fallback := encounter.NewStructured()
		fallback.PhysicianNotes = truncate(transcript, maxFallbackNotes)
		return fallback, nil
	}
	s.Normalize()
	return s, nil
}

// SummarizeEHR produces a short clinical summary from a raw patient history
// blob. The output is free text, so there is no parse fallback.
func (e *Engine) SummarizeEHR(ctx context.Context, ehrText string) (string, error) {
	text, _, err := e.gen.Generate(ctx, ehrSummaryPrompt(ehrText), 300)
	return text, err
}

// Synthesize combines transcript, EHR summary, and imaging findings into a
// holistic recommendation. imageFindings may be empty.
func (e *Engine) Synthesize(ctx context.Context, transcript, ehrSummary, imageFindings string) (string, error) {
	text, _, err := e.gen.Generate(ctx, synthesisPrompt(transcript, ehrSummary, imageFindings), 600)
	return text, err
}

// truncate caps s at n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
