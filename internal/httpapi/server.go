package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"notai_engine/internal/config"
	"notai_engine/internal/logbus"
	"notai_engine/internal/model"
	"notai_engine/internal/store/sqlite"
	"notai_engine/internal/ws"
)

// StateSource 提供当前批次的实时状态；engine.Engine 实现了它。
type StateSource interface {
	State() model.EngineState
}

// History 是运行历史的只读视图；sqlite.Store 实现了它。
type History interface {
	ListRuns(ctx context.Context, limit int) ([]model.RunReport, error)
	ListAccountStats(ctx context.Context) ([]sqlite.AccountStats, error)
}

type Options struct {
	Cfg     config.ServerConfig
	Bus     *logbus.Bus
	State   StateSource
	History History
}

// Server 是只读的监控服务：不提供任何会触发远端调用的接口。
type Server struct {
	cfg     config.ServerConfig
	bus     *logbus.Bus
	state   StateSource
	history History
	ws      *ws.Handler
}

func New(opts Options) *Server {
	return &Server{
		cfg:     opts.Cfg,
		bus:     opts.Bus,
		state:   opts.State,
		history: opts.History,
		ws:      ws.NewHandler(opts.Bus, opts.Cfg.Cors.AllowOrigins),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/ws", s.ws)

	api := http.NewServeMux()
	api.HandleFunc("/api/v1/state", s.handleState)
	api.HandleFunc("/api/v1/runs", s.handleRuns)
	api.HandleFunc("/api/v1/accounts", s.handleAccounts)

	mux.Handle("/api/", corsMiddleware(s.cfg.Cors, api))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.state == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "engine unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": s.state.State()})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "history disabled"})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "limit must be within 1..500"})
			return
		}
		limit = n
	}
	runs, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []model.RunReport{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": runs})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "history disabled"})
		return
	}
	stats, err := s.history.ListAccountStats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if stats == nil {
		stats = []sqlite.AccountStats{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": stats})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
