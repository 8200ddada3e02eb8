package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultVisionBaseURL = "https://generativelanguage.googleapis.com"
	defaultVisionModel   = "gemini-2.0-flash"
	defaultVisionTimeout = 60 * time.Second
)

// GeminiConfig configures a GeminiAnalyzer. Only APIKey is required.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// GeminiAnalyzer sends images through the Gemini multimodal API. It serves
// both the Analyzer and Classifier roles: free-text findings directly, and
// zero-shot classification by asking the model to score a label set as JSON.
type GeminiAnalyzer struct {
	hc     *http.Client
	url    string
	apiKey string
}

// NewGemini creates an analyzer for the generateContent endpoint.
func NewGemini(cfg GeminiConfig) *GeminiAnalyzer {
	if cfg.Model == "" {
		cfg.Model = defaultVisionModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultVisionBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultVisionTimeout
	}
	endpoint := strings.TrimRight(cfg.BaseURL, "/") +
		"/v1beta/models/" + url.PathEscape(cfg.Model) + ":generateContent"
	return &GeminiAnalyzer{
		hc:     &http.Client{Timeout: cfg.Timeout},
		url:    endpoint,
		apiKey: cfg.APIKey,
	}
}

// Available reports whether an API key is configured.
func (g *GeminiAnalyzer) Available() bool { return g.apiKey != "" }

// Wire shapes for one image + text request.
type gvInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}
type gvPart struct {
	Text       string        `json:"text,omitempty"`
	InlineData *gvInlineData `json:"inline_data,omitempty"`
}
type gvContent struct {
	Role  string   `json:"role,omitempty"`
	Parts []gvPart `json:"parts"`
}
type gvRequest struct {
	Contents []gvContent `json:"contents"`
}
type gvResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Describe generates a structured radiological report for the image.
func (g *GeminiAnalyzer) Describe(ctx context.Context, image []byte, modality string) (string, error) {
	prompt := fmt.Sprintf(
		"This is a %s. Please provide a detailed, structured radiological report "+
			"including: (1) Image quality assessment, (2) Key findings, "+
			"(3) Pertinent negatives, (4) Impression, (5) Recommendations.",
		modality)
	return g.analyze(ctx, image, prompt)
}

// Compare analyzes the current image against a prior report.
func (g *GeminiAnalyzer) Compare(ctx context.Context, image []byte, priorReport, modality string) (string, error) {
	prompt := fmt.Sprintf(
		"This is a current %s. The prior report states:\n\n%s\n\n"+
			"Please compare the current image with the prior report. "+
			"Describe: (1) Interval changes, (2) Stable findings, "+
			"(3) New findings, (4) Resolved findings, (5) Overall impression.",
		modality, priorReport)
	return g.analyze(ctx, image, prompt)
}

// Classify asks the model to score every label and parses the JSON scores.
// The raw scores are treated as logits and pushed through a softmax so the
// result has the same shape as an embedding-based classifier's.
func (g *GeminiAnalyzer) Classify(ctx context.Context, image []byte, labels []string) ([]LabelScore, error) {
	if len(labels) == 0 {
		return nil, errors.New("gemini vision: no labels given")
	}
	prompt := fmt.Sprintf(
		"Score how well this medical image matches each of the following labels "+
			"on a scale from 0 to 10. Respond with ONLY a JSON object mapping each "+
			"label to its numeric score, no other text.\nLabels: %s",
		strings.Join(labels, ", "))

	raw, err := g.analyze(ctx, image, prompt)
	if err != nil {
		return nil, err
	}

	scores, err := parseLabelScores(raw, labels)
	if err != nil {
		return nil, fmt.Errorf("gemini vision: %w", err)
	}
	return scores, nil
}

// parseLabelScores decodes a {label: score} object out of raw model output
// and converts it into softmax-normalized LabelScores. Labels the model
// omitted score zero.
func parseLabelScores(raw string, labels []string) ([]LabelScore, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object in classification output")
	}

	var byLabel map[string]float64
	if err := json.Unmarshal([]byte(raw[start:end+1]), &byLabel); err != nil {
		return nil, fmt.Errorf("decoding label scores: %w", err)
	}

	logits := make([]float64, len(labels))
	for i, label := range labels {
		logits[i] = byLabel[label]
	}
	return Softmax(labels, logits), nil
}

func (g *GeminiAnalyzer) analyze(ctx context.Context, image []byte, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", errors.New("gemini vision: no api key configured")
	}

	req := gvRequest{Contents: []gvContent{{
		Role: "user",
		Parts: []gvPart{
			{Text: prompt},
			{InlineData: &gvInlineData{
				MIMEType: sniffMIME(image),
				Data:     base64.StdEncoding.EncodeToString(image),
			}},
		},
	}}}
	body, err := json.Marshal(&req)
	if err != nil {
		return "", fmt.Errorf("gemini vision: encoding request: %w", err)
	}

	u, err := url.Parse(g.url)
	if err != nil {
		return "", fmt.Errorf("gemini vision: invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", g.apiKey)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini vision: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.hc.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("gemini vision: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("gemini vision: upstream %d: %s", resp.StatusCode, strings.TrimSpace(string(slurp)))
	}

	var gr gvResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("gemini vision: decoding response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini vision: empty response")
	}
	return strings.TrimSpace(gr.Candidates[0].Content.Parts[0].Text), nil
}

// sniffMIME guesses the image MIME type from magic bytes, defaulting to PNG.
func sniffMIME(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("GIF8")):
		return "image/gif"
	default:
		return "image/png"
	}
}

// SetURL overrides the endpoint. Test hook.
func (g *GeminiAnalyzer) SetURL(u string) { g.url = u }
