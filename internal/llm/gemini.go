package llm

import (
	"bytes"
	"context"
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
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-2.0-flash"
	defaultGeminiTimeout = 60 * time.Second
)

// GeminiConfig configures a GeminiClient. Only APIKey is required.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// GeminiClient calls the Google Generative Language API over plain HTTP.
type GeminiClient struct {
	hc     *http.Client
	url    string
	apiKey string
}

// NewGemini returns a client for the generateContent endpoint.
func NewGemini(cfg GeminiConfig) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGeminiTimeout
	}
	endpoint := strings.TrimRight(cfg.BaseURL, "/") +
		"/v1beta/models/" + url.PathEscape(cfg.Model) + ":generateContent"
	return &GeminiClient{
		hc:     &http.Client{Timeout: cfg.Timeout},
		url:    endpoint,
		apiKey: cfg.APIKey,
	}
}

// Available reports whether an API key is configured.
func (c *GeminiClient) Available() bool { return c.apiKey != "" }

// Request/response wire shapes, minimal fields only.
type gmPart struct {
	Text string `json:"text"`
}
type gmContent struct {
	Role  string   `json:"role,omitempty"`
	Parts []gmPart `json:"parts"`
}
type gmGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}
type gmRequest struct {
	Contents         []gmContent         `json:"contents"`
	GenerationConfig *gmGenerationConfig `json:"generationConfig,omitempty"`
}
type gmResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends prompt as a single user turn and returns the first
// candidate's text.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("gemini: no api key configured")
	}

	reqBody := gmRequest{
		Contents: []gmContent{{Role: "user", Parts: []gmPart{{Text: prompt}}}},
	}
	if maxTokens > 0 {
		reqBody.GenerationConfig = &gmGenerationConfig{MaxOutputTokens: maxTokens}
	}
	body, err := json.Marshal(&reqBody)
	if err != nil {
		return "", fmt.Errorf("gemini: encoding request: %w", err)
	}

	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("gemini: invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("gemini: upstream %d: %s", resp.StatusCode, strings.TrimSpace(string(slurp)))
	}

	var gr gmResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("gemini: decoding response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini: empty response")
	}
	text := strings.TrimSpace(gr.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

// SetHTTPClient overrides the HTTP client. Test hook.
func (c *GeminiClient) SetHTTPClient(hc *http.Client) { c.hc = hc }

// SetURL overrides the endpoint. Test hook.
func (c *GeminiClient) SetURL(u string) { c.url = u }
