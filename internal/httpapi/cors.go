package httpapi

import (
	"net/http"
	"strings"

	"notai_engine/internal/config"
)

// corsMiddleware 只放行只读请求；监控接口没有写操作。
func corsMiddleware(cfg config.CorsConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		if allowed := matchOrigin(cfg.AllowOrigins, r.Header.Get("Origin")); allowed != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			if cfg.AllowCredentials && allowed != "*" {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			h.Set("Access-Control-Max-Age", "600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func matchOrigin(allow []string, origin string) string {
	if origin == "" {
		return ""
	}
	for _, o := range allow {
		if o == "*" {
			return "*"
		}
		if strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}
