package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"notai_engine/internal/logbus"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

// Handler 把日志总线推送给 websocket 客户端：先回放缓冲区，再实时转发。
// 可以用 ?type=log 或 ?type=account_state 只订阅一种消息。
type Handler struct {
	bus          *logbus.Bus
	allowOrigins []string
	upgrader     websocket.Upgrader
}

func NewHandler(bus *logbus.Bus, allowOrigins []string) *Handler {
	h := &Handler{
		bus:          bus,
		allowOrigins: allowOrigins,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: h.checkOrigin,
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var types []string
	if want := strings.TrimSpace(r.URL.Query().Get("type")); want != "" {
		types = append(types, want)
	}

	// 先订阅再取快照，避免两者之间的消息丢失；可能出现少量重复。
	ch, cancel := h.bus.Subscribe(256, types...)
	defer cancel()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	for _, msg := range h.bus.Snapshot(types...) {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.allowOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
