package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/commercekit/llm-gateway/internal/config"
)

type rateLimitWindow struct {
	mu       sync.Mutex
	requests []time.Time
}

func (w *rateLimitWindow) count(window time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := time.Now().Add(-window)
	i := 0
	for i < len(w.requests) && w.requests[i].Before(cutoff) {
		i++
	}
	w.requests = w.requests[i:]
	return len(w.requests)
}

func (w *rateLimitWindow) add() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.requests = append(w.requests, time.Now())
}

// keyed by calling service name
var rateLimitWindows sync.Map

func getWindow(key string) *rateLimitWindow {
	val, _ := rateLimitWindows.LoadOrStore(key, &rateLimitWindow{})
	return val.(*rateLimitWindow)
}

// RateLimitMiddleware enforces a per-service sliding-window request cap on
// generate traffic. Disabled when the configured limit is 0.
func RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := config.Cfg.RequestsPerMinute
		if limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		service := peekServiceName(r)
		if service == "" {
			next.ServeHTTP(w, r)
			return
		}

		window := getWindow(service)
		if window.count(time.Minute) >= limit {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limit_exceeded","message":"Rate limit exceeded"}`))
			return
		}
		window.add()

		next.ServeHTTP(w, r)
	})
}

// peekServiceName reads the service field from the JSON body without
// consuming it for the downstream handler.
func peekServiceName(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	var buf struct {
		Service string `json:"service"`
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	_ = json.Unmarshal(body, &buf)
	return buf.Service
}
