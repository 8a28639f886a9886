package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/commercekit/llm-gateway/internal/cache"
	"github.com/commercekit/llm-gateway/internal/database"
	"github.com/commercekit/llm-gateway/internal/gateway"
	"github.com/commercekit/llm-gateway/internal/providers"
)

const (
	defaultMaxTokens   = 1024
	defaultTemperature = 0.7
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// Server carries the handler dependencies that are built at startup.
type Server struct {
	GW    *gateway.Gateway
	Cache *cache.Cache
}

type generateRequest struct {
	UserID      string   `json:"user_id"`
	Service     string   `json:"service"`
	TaskType    string   `json:"task_type"`
	Prompt      string   `json:"prompt"`
	System      string   `json:"system"`
	MaxTokens   *int     `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	JSONMode    bool     `json:"json_mode"`
}

// Generate handles POST /api/v1/generate.
func (s *Server) Generate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(body.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if body.UserID == "" || body.Service == "" {
		writeError(w, http.StatusBadRequest, "user_id and service are required")
		return
	}

	maxTokens := defaultMaxTokens
	if body.MaxTokens != nil && *body.MaxTokens > 0 {
		maxTokens = *body.MaxTokens
	}
	temperature := defaultTemperature
	if body.Temperature != nil {
		temperature = *body.Temperature
	}

	resp, err := s.GW.Generate(r.Context(), gateway.Request{
		UserID:      body.UserID,
		ServiceName: body.Service,
		TaskType:    body.TaskType,
		Prompt:      body.Prompt,
		System:      body.System,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		JSONMode:    body.JSONMode,
	})
	if err != nil {
		writeProviderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeProviderError maps gateway failures onto HTTP statuses: the upstream
// status when the provider supplied one, 502 otherwise.
func writeProviderError(w http.ResponseWriter, err error) {
	var pe *providers.Error
	if errors.As(err, &pe) {
		code := http.StatusBadGateway
		if pe.StatusCode >= 400 && pe.StatusCode < 600 {
			code = pe.StatusCode
		}
		writeJSON(w, code, map[string]any{
			"error":     pe.Message,
			"provider":  pe.Provider,
			"retryable": pe.Retryable,
		})
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// HealthCheck reports gateway liveness plus database and cache reachability.
// A cache outage degrades the status but keeps the gateway serving.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	dbOK, cacheOK := true, true

	var n int64
	if err := database.DB.Model(&database.ProviderConfig{}).Count(&n).Error; err != nil {
		dbOK = false
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	if s.Cache != nil && s.Cache.Ping(r.Context()) != nil {
		cacheOK = false
		if status == "healthy" {
			status = "degraded"
		}
	}

	writeJSON(w, code, map[string]any{
		"status":   status,
		"database": dbOK,
		"cache":    cacheOK,
	})
}
