package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"notai_engine/internal/config"
	"notai_engine/internal/logbus"
	"notai_engine/internal/model"
	"notai_engine/internal/store/sqlite"
)

type stubState struct{ st model.EngineState }

func (s stubState) State() model.EngineState { return s.st }

type stubHistory struct {
	runs  []model.RunReport
	err   error
	limit int
}

func (h *stubHistory) ListRuns(_ context.Context, limit int) ([]model.RunReport, error) {
	h.limit = limit
	return h.runs, h.err
}

func (h *stubHistory) ListAccountStats(context.Context) ([]sqlite.AccountStats, error) {
	return nil, h.err
}

func newTestServer(t *testing.T, hist History) *httptest.Server {
	t.Helper()
	s := New(Options{
		Cfg:     config.ServerConfig{Cors: config.CorsConfig{AllowOrigins: []string{"http://ui.local"}}},
		Bus:     logbus.New(10, nil),
		State:   stubState{st: model.EngineState{Running: true, BatchID: "b1"}},
		History: hist,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp
}

func TestStateEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	var body struct {
		Data model.EngineState `json:"data"`
	}
	resp := getJSON(t, srv.URL+"/api/v1/state", &body)
	if resp.StatusCode != http.StatusOK || !body.Data.Running || body.Data.BatchID != "b1" {
		t.Fatalf("status=%d body=%+v", resp.StatusCode, body)
	}
}

func TestRunsEndpoint(t *testing.T) {
	hist := &stubHistory{runs: []model.RunReport{{TokenHint: "abc"}}}
	srv := newTestServer(t, hist)

	var body struct {
		Data []model.RunReport `json:"data"`
	}
	resp := getJSON(t, srv.URL+"/api/v1/runs?limit=5", &body)
	if resp.StatusCode != http.StatusOK || len(body.Data) != 1 || hist.limit != 5 {
		t.Fatalf("status=%d body=%+v limit=%d", resp.StatusCode, body, hist.limit)
	}

	if resp := getJSON(t, srv.URL+"/api/v1/runs?limit=0", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", resp.StatusCode)
	}

	hist.err = errors.New("boom")
	if resp := getJSON(t, srv.URL+"/api/v1/runs", nil); resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("error status = %d", resp.StatusCode)
	}
}

func TestRunsWithoutHistory(t *testing.T) {
	srv := newTestServer(t, nil)
	if resp := getJSON(t, srv.URL+"/api/v1/runs", nil); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestCorsPreflight(t *testing.T) {
	srv := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/state", nil)
	req.Header.Set("Origin", "http://ui.local")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://ui.local" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	var body map[string]any
	if resp := getJSON(t, srv.URL+"/health", &body); resp.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("health: %d %v", resp.StatusCode, body)
	}
}
