package clinical

import (
	"fmt"
	"strings"
)

// Prompt templates sent to the LLM chain. The JSON shapes here must stay in
// sync with the types in internal/encounter; the extraction cascade assumes
// the model at least attempts these structures.

const diffDxTemplate = `You are a senior clinician. Based on the following transcribed clinical encounter, generate a structured differential diagnosis.

ENCOUNTER TRANSCRIPT:
%s
%s
Provide your response as a JSON object with the following structure:
{
  "primary_diagnosis": {
    "condition": "...",
    "confidence": "high|medium|low",
    "reasoning": "..."
  },
  "differential_diagnoses": [
    {
      "condition": "...",
      "confidence": "high|medium|low",
      "key_features": ["...", "..."],
      "ruling_out": "..."
    }
  ],
  "red_flags": ["...", "..."],
  "urgent_workup": ["...", "..."]
}

Return ONLY valid JSON.`

const extractionTemplate = `You are a clinical documentation specialist. Extract structured clinical information from this encounter transcript.

ENCOUNTER TRANSCRIPT:
%s

Extract and return a JSON object with EXACTLY this structure:
{
  "symptoms": [],
  "radiology_findings": [],
  "suggested_medications": [],
  "follow_up_date": "",
  "vital_signs": {},
  "allergies": [],
  "procedures_ordered": [],
  "diagnoses": [],
  "physician_notes": ""
}

Rules:
- symptoms: list of symptom strings as mentioned
- radiology_findings: any imaging findings mentioned
- suggested_medications: drug names with dose/frequency if mentioned
- follow_up_date: ISO date string or "" if not mentioned
- vital_signs: dict of {metric: value} (e.g. {"BP": "120/80", "HR": "72"})
- allergies: drug/substance allergies mentioned
- procedures_ordered: any procedures or tests ordered
- diagnoses: working diagnoses mentioned
- physician_notes: free-text summary of key clinical notes

Return ONLY valid JSON.`

const ehrSummaryTemplate = `Summarize the following patient history for clinical context. Be concise and highlight:
1. Relevant past diagnoses
2. Current medications
3. Known allergies
4. Relevant surgical history
5. Key risk factors

PATIENT HISTORY:
%s

Return a brief clinical summary (3-5 sentences).`

// diffDxPrompt formats the differential diagnosis prompt. The EHR section is
// omitted entirely when no summary is available.
func diffDxPrompt(transcript, ehrSummary string) string {
	ehrSection := "\n"
	if ehrSummary != "" {
		ehrSection = fmt.Sprintf("\nPATIENT HISTORY CONTEXT:\n%s\n", ehrSummary)
	}
	return fmt.Sprintf(diffDxTemplate, strings.TrimSpace(transcript), ehrSection)
}

func extractionPrompt(transcript string) string {
	return fmt.Sprintf(extractionTemplate, strings.TrimSpace(transcript))
}

func ehrSummaryPrompt(ehrText string) string {
	return fmt.Sprintf(ehrSummaryTemplate, strings.TrimSpace(ehrText))
}

// synthesisPrompt combines transcript, history, and imaging findings into a
// single recommendation request. The radiology section is omitted when there
// are no findings.
func synthesisPrompt(transcript, ehrSummary, imageFindings string) string {
	imagingSection := ""
	if imageFindings != "" {
		imagingSection = fmt.Sprintf("\nRADIOLOGY FINDINGS:\n%s", imageFindings)
	}
	return fmt.Sprintf(
		"You are a senior clinician. Given the following information, "+
			"provide concise, evidence-based clinical recommendations.\n\n"+
			"ENCOUNTER TRANSCRIPT:\n%s\n\n"+
			"PATIENT HISTORY:\n%s%s\n\n"+
			"Provide: (1) Top differential diagnoses, (2) Immediate management steps, "+
			"(3) Investigations to order, (4) Patient counseling points.",
		transcript, ehrSummary, imagingSection)
}
