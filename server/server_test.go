package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/chatscope/chat"
	"github.com/onnwee/chatscope/logstore"
	"github.com/onnwee/chatscope/rollup"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	pipeline := chat.NewPipeline(
		&logstore.JSONLLog{Path: dir + "/messages.jsonl"},
		&rollup.FileStore{Dir: dir},
	)
	return New(pipeline, "file")
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).NewMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Correlation-ID") == "" {
		t.Error("expected a correlation id header")
	}
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).NewMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Backend string     `json:"backend"`
		Uptime  string     `json:"uptime"`
		Ingest  chat.Stats `json:"ingest"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if body.Backend != "file" {
		t.Errorf("backend = %q, want file", body.Backend)
	}
	if body.Uptime == "" {
		t.Error("expected uptime to be set")
	}
}

func TestCorrelationIDReused(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).NewMux())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Correlation-ID"); got != "corr-123" {
		t.Errorf("correlation id = %q, want corr-123", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).NewMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
}
