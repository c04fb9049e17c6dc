package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vietddude/resilio/fetch"
	"github.com/vietddude/resilio/thinking"
)

type stubSource struct {
	fetch    fetch.Stats
	thinking thinking.Stats
}

func (s stubSource) FetchStats() fetch.Stats       { return s.fetch }
func (s stubSource) ThinkingStats() thinking.Stats { return s.thinking }
func (s stubSource) BreakerStates() map[string]string {
	return map[string]string{"api.example.com": "open"}
}
func (s stubSource) BlacklistSize() int { return 1 }

func TestStatsEndpoint(t *testing.T) {
	src := stubSource{
		fetch:    fetch.Stats{Total: 10, Success: 7, Failures: 3, SuccessRate: 0.7},
		thinking: thinking.Stats{Runs: 2, Succeeded: 1, Failed: 1},
	}
	srv := NewServer(src, 0)
	ts := httptest.NewServer(srv.server.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Uptime        string            `json:"uptime"`
		Fetch         fetch.Stats       `json:"fetch"`
		Thinking      thinking.Stats    `json:"thinking"`
		Breakers      map[string]string `json:"breakers"`
		BlacklistSize int               `json:"blacklist_size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Fetch.Total != 10 || body.Fetch.SuccessRate != 0.7 {
		t.Errorf("fetch stats = %+v", body.Fetch)
	}
	if body.Thinking.Runs != 2 {
		t.Errorf("thinking stats = %+v", body.Thinking)
	}
	if body.Uptime == "" {
		t.Error("uptime missing")
	}
	if body.Breakers["api.example.com"] != "open" || body.BlacklistSize != 1 {
		t.Errorf("breakers = %v, blacklist_size = %d", body.Breakers, body.BlacklistSize)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer(stubSource{}, 0)
	ts := httptest.NewServer(srv.server.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}
