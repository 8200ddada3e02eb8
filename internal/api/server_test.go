package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"medecho/internal/offline"
)

type fixedConn bool

func (c fixedConn) Online() bool { return bool(c) }

func newTestServer(t *testing.T) (*Server, *offline.Store) {
	t.Helper()
	store, err := offline.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New(store, fixedConn(true)), store
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || !body.Online {
		t.Errorf("body = %+v", body)
	}
}

func TestHealth_NilConnectivityReportsOffline(t *testing.T) {
	store, err := offline.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := New(store, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Online {
		t.Error("Online = true with no connectivity source")
	}
}

func TestStoreStats(t *testing.T) {
	s, store := newTestServer(t)
	if _, err := store.SaveMetadata(offline.Record{}, "abc123"); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/store/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stats offline.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Pending != 1 {
		t.Errorf("pending = %d, want 1", stats.Pending)
	}
}

func TestStorePending(t *testing.T) {
	s, store := newTestServer(t)
	if _, err := store.SaveMetadata(offline.Record{Transcript: "cough"}, "abc123"); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/store/pending", nil))

	var pending []offline.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].EncounterID != "abc123" {
		t.Errorf("pending = %+v", pending)
	}
}

func TestRedact(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/redact",
		strings.NewReader(`{"text": "Call John Smith at 555-123-4567"}`))
	req.Header.Set(echoHeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var body redactResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body.Redacted, "[NAME]") || !strings.Contains(body.Redacted, "[PHONE]") {
		t.Errorf("redacted = %q", body.Redacted)
	}
	if len(body.Labels) != 2 {
		t.Errorf("labels = %v, want NAME and PHONE", body.Labels)
	}
}

const echoHeaderContentType = "Content-Type"

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing standard collectors")
	}
}
