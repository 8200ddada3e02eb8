// Package redact removes personally identifiable information from clinical
// text before it leaves the redaction boundary. Redaction is a pure function
// over text: no I/O, no state, same input always yields the same output.
package redact

import "regexp"

// Labels applied by the redaction rules.
const (
	LabelName  = "NAME"
	LabelPhone = "PHONE"
	LabelSSN   = "SSN"
	LabelDOB   = "DOB"
	LabelEmail = "EMAIL"
	LabelMRN   = "MRN"
	LabelZIP   = "ZIP"
)

type rule struct {
	re          *regexp.Regexp
	placeholder string
	label       string
}

// Rule order is load-bearing. Each rule rewrites the text before the next
// rule runs, so earlier rules claim overlapping spans first: the digits of a
// phone number must be consumed by the PHONE rule before the ZIP rule ever
// sees them. Placeholders are bracketed uppercase tokens that no rule can
// match, which makes redaction idempotent. Do not reorder.
var rules = []rule{
	// Full names with optional honorific: "John Smith", "Dr. Jane Doe".
	{regexp.MustCompile(`\b(?:Dr\.?\s+|Mr\.?\s+|Ms\.?\s+|Mrs\.?\s+)?[A-Z][a-z]+-?[A-Z]?[a-z]*\s+[A-Z][a-z]+-?[A-Z]?[a-z]*\b`), "[NAME]", LabelName},
	// US phone numbers: (555) 123-4567, 555-123-4567, 5551234567.
	{regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`), "[PHONE]", LabelPhone},
	// US Social Security Numbers.
	{regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`), "[SSN]", LabelSSN},
	// Dates of birth when explicitly stated: "born on 01/15/1980".
	{regexp.MustCompile(`(?i)\bborn\s+(?:on\s+)?\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}\b`), "born on [DOB]", LabelDOB},
	// Email addresses.
	{regexp.MustCompile(`(?i)\b[\w.+-]+@[\w-]+\.[a-z]{2,}\b`), "[EMAIL]", LabelEmail},
	// Medical record numbers: "MRN 123456", "medical record number 78910".
	{regexp.MustCompile(`(?i)\b(?:MRN|medical\s+record(?:\s+number)?)\s*:?\s*\d{4,10}\b`), "[MRN]", LabelMRN},
	// Standalone 5- or 9-digit ZIP codes.
	{regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`), "[ZIP]", LabelZIP},
}

// Redact replaces every PII span in text with a fixed placeholder token and
// returns the redacted text together with the set of labels applied. A label
// appears at most once no matter how many spans its rule matched. Redacting
// already-redacted text changes nothing.
func Redact(text string) (string, []string) {
	redacted := text
	labels := []string{}
	for _, r := range rules {
		if !r.re.MatchString(redacted) {
			continue
		}
		labels = append(labels, r.label)
		redacted = r.re.ReplaceAllString(redacted, r.placeholder)
	}
	return redacted, labels
}
