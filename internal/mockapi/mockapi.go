// Package mockapi 是 notai 游戏服务的内存模拟，用于本地演练（cmd/mock）和测试。
package mockapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
)

type Mission struct {
	ID          string
	Label       string
	Percent     string
	Completable bool
	Claimed     bool
}

type Upgrade struct {
	ID        string
	BoostType string
	Level     int
	Cost      int
}

type Boost struct {
	ID        string
	Type      string
	Available int
}

// Player 是一个 token 对应的游戏账号状态。FailXxx 字段用于注入连续失败（返回 500）。
type Player struct {
	Nickname     string
	Balance      int
	Level        int
	LevelCost    int
	DailyClaimed bool
	Missions     []*Mission
	Upgrades     []*Upgrade
	Boosts       []*Boost
	Active       []string
	Clicks       int
	Limit        int
	Frozen       bool

	FailStatus int
	FailTaps   int
}

// Call 记录一次收到的请求。
type Call struct {
	Token  string
	Method string
	Path   string
	Clicks int
}

type Server struct {
	mu      sync.Mutex
	players map[string]*Player
	calls   []Call

	// AutoRegister 为 true 时未知 token 会自动创建一个演示账号。
	AutoRegister bool
}

func New() *Server {
	return &Server{players: make(map[string]*Player)}
}

func (s *Server) AddPlayer(token string, p *Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[token] = p
}

// Player 返回 token 对应账号（测试中在请求结束后检查状态）。
func (s *Server) Player(token string) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[token]
}

func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CountCalls 统计 method+path 前缀匹配的请求数。
func (s *Server) CountCalls(method, pathPrefix string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && strings.HasPrefix(c.Path, pathPrefix) {
			n++
		}
	}
	return n
}

// DemoPlayer 是 AutoRegister 使用的默认账号。
func DemoPlayer(nickname string) *Player {
	return &Player{
		Nickname:  nickname,
		Balance:   5000,
		Level:     1,
		LevelCost: 1000,
		Missions: []*Mission{
			{ID: "m-follow", Label: "Follow on X", Percent: "0", Completable: true},
			{ID: "m-join", Label: "Join Telegram", Percent: "100"},
		},
		Upgrades: []*Upgrade{
			{ID: "u-damage", BoostType: "CLICKER_DAMAGE", Level: 1, Cost: 500},
			{ID: "u-energy", BoostType: "CLICKER_ENERGY", Level: 1, Cost: 500},
		},
		Boosts: []*Boost{
			{ID: "b-refill", Type: "REFILL_ENERGY", Available: 1},
			{ID: "b-x2", Type: "DOUBLE_DAMAGE", Available: 1},
		},
		Limit: 300,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	mux.HandleFunc("GET /scoreboard/me", s.withPlayer(func(w http.ResponseWriter, _ *http.Request, p *Player) {
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"nickname": p.Nickname}})
	}))

	mux.HandleFunc("GET /daily-rewards/today-info", s.withPlayer(func(w http.ResponseWriter, _ *http.Request, p *Player) {
		writeJSON(w, http.StatusOK, map[string]any{"todayClaimed": p.DailyClaimed})
	}))
	mux.HandleFunc("POST /daily-rewards/claim", s.withPlayer(func(w http.ResponseWriter, _ *http.Request, p *Player) {
		if p.DailyClaimed {
			writeJSON(w, http.StatusConflict, map[string]any{"message": "already claimed"})
			return
		}
		p.DailyClaimed = true
		p.Balance += 100
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
	}))

	mux.HandleFunc("GET /missions", s.withPlayer(func(w http.ResponseWriter, r *http.Request, p *Player) {
		if r.URL.Query().Get("filter[campaignId]") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "campaignId required"})
			return
		}
		data := make([]map[string]any, 0, len(p.Missions))
		for _, m := range p.Missions {
			data = append(data, map[string]any{"id": m.ID, "label": m.Label, "completedPercent": m.Percent})
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": data})
	}))
	mux.HandleFunc("POST /mission-activity/{id}", s.withPlayer(func(w http.ResponseWriter, r *http.Request, p *Player) {
		m := p.mission(r.PathValue("id"))
		if m == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "mission not found"})
			return
		}
		if !m.Completable {
			writeJSON(w, http.StatusOK, map[string]any{"success": false})
			return
		}
		m.Percent = "100"
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}))
	mux.HandleFunc("POST /mission-reward/{id}", s.withPlayer(func(w http.ResponseWriter, r *http.Request, p *Player) {
		m := p.mission(r.PathValue("id"))
		if m == nil || m.Percent != "100" || m.Claimed {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "reward not claimable"})
			return
		}
		m.Claimed = true
		p.Balance += 200
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
	}))

	mux.HandleFunc("GET /levels", s.withPlayer(func(w http.ResponseWriter, _ *http.Request, p *Player) {
		levels := make([]map[string]any, 0, p.Level)
		for i := 1; i <= p.Level; i++ {
			levels = append(levels, map[string]any{"level": i})
		}
		writeJSON(w, http.StatusOK, levels)
	}))
	mux.HandleFunc("POST /boost/level/purchase", s.withPlayer(func(w http.ResponseWriter, _ *http.Request, p *Player) {
		if p.Balance < p.LevelCost {
			writeJSON(w, http.StatusPaymentRequired, map[string]any{"message": "insufficient balance"})
			return
		}
		p.Balance -= p.LevelCost
		p.Level++
		writeJSON(w, http.StatusCreated, map[string]any{"level": p.Level})
	}))
	mux.HandleFunc("GET /boost/card", s.withPlayer(func(w http.ResponseWriter, _ *http.Request, p *Player) {
		data := make([]map[string]any, 0, len(p.Upgrades))
		for _, u := range p.Upgrades {
			data = append(data, map[string]any{"id": u.ID, "boostType": u.BoostType, "level": u.Level})
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": data})
	}))
	mux.HandleFunc("POST /boost/purchase/{id}", s.withPlayer(func(w http.ResponseWriter, r *http.Request, p *Player) {
		var u *Upgrade
		for _, cand := range p.Upgrades {
			if cand.ID == r.PathValue("id") {
				u = cand
			}
		}
		if u == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "upgrade not found"})
			return
		}
		if p.Balance < u.Cost {
			writeJSON(w, http.StatusPaymentRequired, map[string]any{"message": "insufficient balance"})
			return
		}
		p.Balance -= u.Cost
		u.Level++
		writeJSON(w, http.StatusCreated, map[string]any{"level": u.Level})
	}))

	mux.HandleFunc("POST /game-clicker/submit", s.withPlayer(s.handleSubmit))
	mux.HandleFunc("POST /game-clicker/freeze", s.withPlayer(func(w http.ResponseWriter, _ *http.Request, p *Player) {
		p.Frozen = true
		writeJSON(w, http.StatusCreated, map[string]any{"frozen": true})
	}))

	mux.HandleFunc("GET /boost-modification/active", s.withPlayer(func(w http.ResponseWriter, _ *http.Request, p *Player) {
		out := make([]map[string]any, 0, len(p.Active))
		for _, t := range p.Active {
			out = append(out, map[string]any{"boostModification": map[string]any{"type": t}})
		}
		writeJSON(w, http.StatusOK, out)
	}))
	mux.HandleFunc("GET /boost-modification", s.withPlayer(func(w http.ResponseWriter, _ *http.Request, p *Player) {
		data := make([]map[string]any, 0, len(p.Boosts))
		for _, b := range p.Boosts {
			data = append(data, map[string]any{"id": b.ID, "type": b.Type, "available": b.Available})
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": data})
	}))
	mux.HandleFunc("POST /boost-modification/buy", s.withPlayer(s.handleBuyBoost))

	return mux
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, p *Player) {
	var body struct {
		ClickedCount int `json:"clickedCount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad body"})
		return
	}
	s.calls[len(s.calls)-1].Clicks = body.ClickedCount

	if body.ClickedCount == 0 && p.FailStatus > 0 {
		p.FailStatus--
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "status unavailable"})
		return
	}
	if body.ClickedCount > 0 && p.FailTaps > 0 {
		p.FailTaps--
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "tap rejected"})
		return
	}
	if p.Frozen {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "game frozen"})
		return
	}
	p.Clicks += body.ClickedCount
	if p.Clicks > p.Limit {
		p.Clicks = p.Limit
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"currentClickedCount": p.Clicks,
		"totalClicksLimit":    p.Limit,
	})
}

func (s *Server) handleBuyBoost(w http.ResponseWriter, r *http.Request, p *Player) {
	var body struct {
		BoostModificationID string `json:"boostModificationId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad body"})
		return
	}
	var b *Boost
	for _, cand := range p.Boosts {
		if cand.ID == body.BoostModificationID {
			b = cand
		}
	}
	if b == nil || b.Available <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "boost not available"})
		return
	}
	b.Available--
	if b.Type == "REFILL_ENERGY" {
		p.Clicks = 0
	} else {
		p.Active = append(p.Active, b.Type)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": "act-" + b.ID})
}

func (s *Server) withPlayer(next func(http.ResponseWriter, *http.Request, *Player)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		s.mu.Lock()
		defer s.mu.Unlock()
		s.calls = append(s.calls, Call{Token: token, Method: r.Method, Path: r.URL.Path})

		p := s.players[token]
		if p == nil && s.AutoRegister && token != "" {
			p = DemoPlayer("player_" + shortToken(token))
			s.players[token] = p
		}
		if p == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "invalid token"})
			return
		}
		next(w, r, p)
	}
}

func (p *Player) mission(id string) *Mission {
	for _, m := range p.Missions {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func shortToken(t string) string {
	if len(t) > 6 {
		return t[:6]
	}
	return t
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
