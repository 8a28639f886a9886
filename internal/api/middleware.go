package api

import (
	"net/http"

	"github.com/commercekit/llm-gateway/internal/config"
)

// ServiceKeyAuth validates the shared X-Service-Key header. The gateway is
// operator-facing; callers are trusted internal services, not end users.
func ServiceKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if config.Cfg.ServiceKey == "" {
			http.Error(w, `{"error":"not_configured","message":"Service key not configured"}`, http.StatusServiceUnavailable)
			return
		}

		key := r.Header.Get("X-Service-Key")
		if key == "" {
			http.Error(w, `{"error":"unauthorized","message":"Missing service key"}`, http.StatusUnauthorized)
			return
		}
		if key != config.Cfg.ServiceKey {
			http.Error(w, `{"error":"forbidden","message":"Invalid service key"}`, http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
