package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubClient struct {
	text      string
	err       error
	available bool
	calls     int
}

func (s *stubClient) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func (s *stubClient) Available() bool { return s.available }

func TestChain_FirstSuccessWins(t *testing.T) {
	remote := &stubClient{text: "remote answer", available: true}
	local := &stubClient{text: "local answer", available: true}

	chain := NewChain(
		NamedClient{Name: "gemini", Client: remote},
		NamedClient{Name: "local", Client: local},
	)

	text, source, err := chain.Generate(context.Background(), "prompt", 0)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "remote answer" || source != "gemini" {
		t.Errorf("got (%q, %q), want remote answer from gemini", text, source)
	}
	if local.calls != 0 {
		t.Errorf("local client called %d times, want 0", local.calls)
	}
}

func TestChain_FallsBackOnError(t *testing.T) {
	remote := &stubClient{err: errors.New("network down"), available: true}
	local := &stubClient{text: "local answer", available: true}

	chain := NewChain(
		NamedClient{Name: "gemini", Client: remote},
		NamedClient{Name: "local", Client: local},
	)

	text, source, err := chain.Generate(context.Background(), "prompt", 0)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "local answer" || source != "local" {
		t.Errorf("got (%q, %q), want local fallback", text, source)
	}
}

func TestChain_AllFail(t *testing.T) {
	remote := &stubClient{err: errors.New("network down")}
	local := &stubClient{err: errors.New("no model")}

	chain := NewChain(
		NamedClient{Name: "gemini", Client: remote},
		NamedClient{Name: "local", Client: local},
	)

	_, _, err := chain.Generate(context.Background(), "prompt", 0)
	if err == nil {
		t.Fatal("Generate() error = nil, want joined failure")
	}
}

func TestGemini_Generate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody gmRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"acute bronchitis"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGemini(GeminiConfig{APIKey: "test-key", Model: "gemini-2.0-flash", BaseURL: srv.URL})

	text, err := c.Generate(context.Background(), "differential for cough", 256)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "acute bronchitis" {
		t.Errorf("text = %q, want acute bronchitis", text)
	}
	if gotPath != "/v1beta/models/gemini-2.0-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("key = %q, want test-key", gotKey)
	}
	if len(gotBody.Contents) != 1 || gotBody.Contents[0].Parts[0].Text != "differential for cough" {
		t.Errorf("request contents = %+v", gotBody.Contents)
	}
	if gotBody.GenerationConfig == nil || gotBody.GenerationConfig.MaxOutputTokens != 256 {
		t.Errorf("generationConfig = %+v, want maxOutputTokens 256", gotBody.GenerationConfig)
	}
}

func TestGemini_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewGemini(GeminiConfig{APIKey: "k", BaseURL: srv.URL})
	if _, err := c.Generate(context.Background(), "p", 0); err == nil {
		t.Error("Generate() error = nil, want upstream error")
	}
}

func TestGemini_NoKeyUnavailable(t *testing.T) {
	c := NewGemini(GeminiConfig{})
	if c.Available() {
		t.Error("Available() = true without api key")
	}
	if _, err := c.Generate(context.Background(), "p", 0); err == nil {
		t.Error("Generate() error = nil, want missing key error")
	}
}

func TestLocal_UnavailableWithoutModel(t *testing.T) {
	c := NewLocal(LocalConfig{})
	if c.Available() {
		t.Error("Available() = true without a model path")
	}
	if _, err := c.Generate(context.Background(), "p", 0); err == nil {
		t.Error("Generate() error = nil, want unavailable error")
	}
}

func TestLocal_UnavailableWithoutBinary(t *testing.T) {
	c := NewLocal(LocalConfig{ModelPath: "/models/med.gguf", Binary: "definitely-not-a-binary-xyz"})
	if c.Available() {
		t.Error("Available() = true for a binary that does not exist")
	}
}
