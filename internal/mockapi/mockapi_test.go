package mockapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func do(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, srv.URL+path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestUnknownTokenIsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(New().Handler())
	defer srv.Close()

	if code, _ := do(t, srv, http.MethodGet, "/scoreboard/me", "nobody", nil); code != http.StatusUnauthorized {
		t.Fatalf("unknown token status = %d", code)
	}
}

func TestAutoRegister(t *testing.T) {
	api := New()
	api.AutoRegister = true
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	code, body := do(t, srv, http.MethodGet, "/scoreboard/me", "abcdef123456", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	user, _ := body["user"].(map[string]any)
	if user["nickname"] == "" || api.Player("abcdef123456") == nil {
		t.Fatalf("player not registered: %v", body)
	}
	if api.CountCalls(http.MethodGet, "/scoreboard") != 1 {
		t.Fatalf("calls = %+v", api.Calls())
	}
}

func TestSubmitCapsAtLimitAndInjectsFailures(t *testing.T) {
	api := New()
	api.AddPlayer("tok", &Player{Nickname: "p", Limit: 20, FailTaps: 1})
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	if code, _ := do(t, srv, http.MethodPost, "/game-clicker/submit", "tok", map[string]int{"clickedCount": 15}); code != http.StatusInternalServerError {
		t.Fatalf("injected failure status = %d", code)
	}
	for i := 0; i < 2; i++ {
		do(t, srv, http.MethodPost, "/game-clicker/submit", "tok", map[string]int{"clickedCount": 15})
	}
	code, body := do(t, srv, http.MethodPost, "/game-clicker/submit", "tok", map[string]int{"clickedCount": 0})
	if code != http.StatusCreated || body["currentClickedCount"] != float64(20) {
		t.Fatalf("status = %d body = %v", code, body)
	}
}

func TestPurchaseRequiresBalance(t *testing.T) {
	api := New()
	api.AddPlayer("tok", &Player{Nickname: "p", Balance: 1000, Level: 1, LevelCost: 600})
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	if code, _ := do(t, srv, http.MethodPost, "/boost/level/purchase", "tok", nil); code != http.StatusCreated {
		t.Fatalf("first purchase status = %d", code)
	}
	if code, _ := do(t, srv, http.MethodPost, "/boost/level/purchase", "tok", nil); code != http.StatusPaymentRequired {
		t.Fatalf("second purchase status = %d", code)
	}
	if p := api.Player("tok"); p.Level != 2 || p.Balance != 400 {
		t.Fatalf("player = %+v", p)
	}
}
