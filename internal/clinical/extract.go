package clinical

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON means no stage of the extraction cascade produced valid JSON.
var ErrNoJSON = errors.New("no JSON object found in model output")

var (
	jsonFenceRe = regexp.MustCompile("```json\\s*([\\s\\S]+?)\\s*```")
	anyFenceRe  = regexp.MustCompile("```\\s*([\\s\\S]+?)\\s*```")
)

// ExtractJSON pulls the first decodable JSON object out of raw model output.
// Models wrap JSON in prose and markdown fences unpredictably, so four
// strategies run in order:
//
//  1. the whole text is JSON
//  2. a ```json fenced block
//  3. any fenced block
//  4. the widest brace-delimited span (first { to last })
//
// The decoded object lands in v. A stage whose candidate fails to decode
// does not abort the cascade; the next stage gets its turn.
func ExtractJSON(text string, v any) error {
	candidates := []string{text}

	if m := jsonFenceRe.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := anyFenceRe.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			candidates = append(candidates, text[start:end+1])
		}
	}

	for _, c := range candidates {
		c = strings.TrimSpace(c)
		// Validate before decoding into v so a failed stage cannot leave
		// partial fields behind.
		if !strings.HasPrefix(c, "{") || !json.Valid([]byte(c)) {
			continue
		}
		if err := json.Unmarshal([]byte(c), v); err == nil {
			return nil
		}
	}
	return ErrNoJSON
}
