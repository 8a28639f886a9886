package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/commercekit/llm-gateway/internal/cache"
	"github.com/commercekit/llm-gateway/internal/config"
	"github.com/commercekit/llm-gateway/internal/database"
	"github.com/commercekit/llm-gateway/internal/gateway"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

const testServiceKey = "svc-secret"

func setupAPI(t *testing.T) (*chi.Mux, func()) {
	t.Helper()

	cleanupDB := database.SetupTestDB(t)
	config.Cfg.ServiceKey = testServiceKey
	config.Cfg.RequestsPerMinute = 0
	config.Cfg.DefaultProvider = "claude"
	config.Cfg.DefaultModel = "claude-sonnet-4-20250514"

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	c := cache.New(client, time.Hour)
	srv := &Server{GW: gateway.New(c), Cache: c}

	r := chi.NewRouter()
	r.Get("/health", srv.HealthCheck)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ServiceKeyAuth)
		r.With(RateLimitMiddleware).Post("/generate", srv.Generate)
		r.Route("/providers", func(r chi.Router) {
			r.Get("/", ListProviders)
			r.Post("/", CreateProvider)
			r.Get("/{id}", GetProvider)
			r.Patch("/{id}", UpdateProvider)
			r.Delete("/{id}", DeleteProvider)
			r.Post("/{id}/test", TestProvider)
		})
		r.Route("/overrides", func(r chi.Router) {
			r.Get("/", ListOverrides)
			r.Post("/", CreateOverride)
			r.Delete("/{id}", DeleteOverride)
		})
		r.Route("/usage", func(r chi.Router) {
			r.Get("/summary", UsageSummary)
			r.Get("/by-provider", UsageByProvider)
			r.Get("/by-service", UsageByService)
			r.Get("/by-customer", UsageByCustomer)
		})
	})

	return r, func() {
		client.Close()
		cleanupDB()
	}
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Key", testServiceKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestServiceKeyAuth(t *testing.T) {
	r, cleanup := setupAPI(t)
	defer cleanup()

	// missing key
	req := httptest.NewRequest("GET", "/api/v1/providers", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing key: status = %d, want 401", w.Code)
	}

	// wrong key
	req = httptest.NewRequest("GET", "/api/v1/providers", nil)
	req.Header.Set("X-Service-Key", "nope")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("wrong key: status = %d, want 403", w.Code)
	}

	// unconfigured key rejects everything
	config.Cfg.ServiceKey = ""
	req = httptest.NewRequest("GET", "/api/v1/providers", nil)
	req.Header.Set("X-Service-Key", "anything")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("unconfigured: status = %d, want 503", w.Code)
	}
	config.Cfg.ServiceKey = testServiceKey

	// health needs no key
	req = httptest.NewRequest("GET", "/health", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health: status = %d, want 200", w.Code)
	}
}

func TestProviderCRUD(t *testing.T) {
	r, cleanup := setupAPI(t)
	defer cleanup()

	// create
	w := doJSON(t, r, "POST", "/api/v1/providers", `{"name":"claude","display_name":"Claude","api_key":"sk-ant","priority":10}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d: %s", w.Code, w.Body.String())
	}
	raw := w.Body.Bytes()
	var created database.ProviderConfig
	json.Unmarshal(raw, &created)
	if created.ID == 0 || created.Name != "claude" {
		t.Errorf("created = %+v", created)
	}
	// secrets never come back
	if bytes.Contains(raw, []byte("sk-ant")) {
		t.Error("api_key leaked in response")
	}

	// duplicate name conflicts
	w = doJSON(t, r, "POST", "/api/v1/providers", `{"name":"claude","api_key":"sk-2"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate: status = %d, want 409", w.Code)
	}

	// unknown adapter name fails fast
	w = doJSON(t, r, "POST", "/api/v1/providers", `{"name":"cohere","api_key":"k"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown name: status = %d, want 400", w.Code)
	}

	// list is ordered by ascending priority
	doJSON(t, r, "POST", "/api/v1/providers", `{"name":"openai","api_key":"sk-oai","priority":5}`)
	w = doJSON(t, r, "GET", "/api/v1/providers", "")
	var list []database.ProviderConfig
	json.NewDecoder(w.Body).Decode(&list)
	if len(list) != 2 || list[0].Name != "openai" || list[1].Name != "claude" {
		t.Errorf("list order = %v", list)
	}

	// patch
	w = doJSON(t, r, "PATCH", fmt.Sprintf("/api/v1/providers/%d", created.ID), `{"is_enabled":false}`)
	if w.Code != http.StatusOK {
		t.Errorf("patch: status = %d", w.Code)
	}
	var fetched database.ProviderConfig
	database.DB.First(&fetched, created.ID)
	if fetched.IsEnabled {
		t.Error("provider should be disabled after patch")
	}

	// get missing
	w = doJSON(t, r, "GET", "/api/v1/providers/9999", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get missing: status = %d, want 404", w.Code)
	}

	// delete then delete again
	w = doJSON(t, r, "DELETE", fmt.Sprintf("/api/v1/providers/%d", created.ID), "")
	if w.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", w.Code)
	}
	w = doJSON(t, r, "DELETE", fmt.Sprintf("/api/v1/providers/%d", created.ID), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("delete missing: status = %d, want 404", w.Code)
	}
}

func TestOverrideCRUD(t *testing.T) {
	r, cleanup := setupAPI(t)
	defer cleanup()

	// per-service override
	w := doJSON(t, r, "POST", "/api/v1/overrides", `{"user_id":"u1","service_name":"postpilot","provider_name":"openai","model_name":"gpt-4o-mini"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d: %s", w.Code, w.Body.String())
	}
	var created database.CustomerOverride
	json.NewDecoder(w.Body).Decode(&created)

	// duplicate pair conflicts
	w = doJSON(t, r, "POST", "/api/v1/overrides", `{"user_id":"u1","service_name":"postpilot","provider_name":"claude","model_name":"claude-haiku-4"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate: status = %d, want 409", w.Code)
	}

	// account-wide override coexists with the per-service one
	w = doJSON(t, r, "POST", "/api/v1/overrides", `{"user_id":"u1","provider_name":"claude","model_name":"claude-sonnet-4-20250514"}`)
	if w.Code != http.StatusCreated {
		t.Errorf("account-wide: status = %d: %s", w.Code, w.Body.String())
	}

	// but only one account-wide per user
	w = doJSON(t, r, "POST", "/api/v1/overrides", `{"user_id":"u1","provider_name":"openai","model_name":"gpt-4o"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate account-wide: status = %d, want 409", w.Code)
	}

	// unknown provider rejected
	w = doJSON(t, r, "POST", "/api/v1/overrides", `{"user_id":"u2","provider_name":"groq","model_name":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown provider: status = %d, want 400", w.Code)
	}

	// filter by user
	doJSON(t, r, "POST", "/api/v1/overrides", `{"user_id":"u2","provider_name":"claude","model_name":"m"}`)
	w = doJSON(t, r, "GET", "/api/v1/overrides?user_id=u1", "")
	var list []database.CustomerOverride
	json.NewDecoder(w.Body).Decode(&list)
	if len(list) != 2 {
		t.Errorf("u1 overrides = %d, want 2", len(list))
	}

	// delete
	w = doJSON(t, r, "DELETE", fmt.Sprintf("/api/v1/overrides/%d", created.ID), "")
	if w.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", w.Code)
	}
	w = doJSON(t, r, "DELETE", fmt.Sprintf("/api/v1/overrides/%d", created.ID), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("delete missing: status = %d, want 404", w.Code)
	}
}

func seedUsage(t *testing.T) {
	t.Helper()
	rows := []database.UsageLog{
		{UserID: "u1", ServiceName: "shopchat", ProviderName: "claude", InputTokens: 1000, OutputTokens: 500, CostUSD: 0.010},
		{UserID: "u1", ServiceName: "shopchat", ProviderName: "claude", Cached: true},
		{UserID: "u2", ServiceName: "rankpilot", ProviderName: "openai", InputTokens: 2000, OutputTokens: 800, CostUSD: 0.025},
	}
	errMsg := "gemini: not configured or disabled"
	rows = append(rows, database.UsageLog{UserID: "u3", ServiceName: "spydrop", ProviderName: "gemini", Error: &errMsg})
	for i := range rows {
		if err := database.DB.Create(&rows[i]).Error; err != nil {
			t.Fatal(err)
		}
	}
}

func TestUsageSummary(t *testing.T) {
	r, cleanup := setupAPI(t)
	defer cleanup()
	seedUsage(t)

	w := doJSON(t, r, "GET", "/api/v1/usage/summary?days=7", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var total usageTotals
	json.NewDecoder(w.Body).Decode(&total)
	if total.Requests != 4 {
		t.Errorf("requests = %d, want 4", total.Requests)
	}
	if total.InputTokens != 3000 || total.OutputTokens != 1300 {
		t.Errorf("tokens = %d/%d", total.InputTokens, total.OutputTokens)
	}
	if total.CacheHits != 1 || total.Errors != 1 {
		t.Errorf("cache_hits/errors = %d/%d, want 1/1", total.CacheHits, total.Errors)
	}
}

func TestUsageByProvider(t *testing.T) {
	r, cleanup := setupAPI(t)
	defer cleanup()
	seedUsage(t)

	w := doJSON(t, r, "GET", "/api/v1/usage/by-provider", "")
	var results []usageTotals
	json.NewDecoder(w.Body).Decode(&results)
	if len(results) != 3 {
		t.Fatalf("groups = %d, want 3", len(results))
	}
	// sorted descending by cost
	if results[0].Group != "openai" || results[1].Group != "claude" {
		t.Errorf("order = %s, %s", results[0].Group, results[1].Group)
	}
}

func TestUsageByCustomer(t *testing.T) {
	r, cleanup := setupAPI(t)
	defer cleanup()
	seedUsage(t)

	w := doJSON(t, r, "GET", "/api/v1/usage/by-customer", "")
	var results []usageTotals
	json.NewDecoder(w.Body).Decode(&results)
	if len(results) != 3 {
		t.Fatalf("groups = %d, want 3", len(results))
	}
	if results[0].Group != "u2" {
		t.Errorf("top spender = %s, want u2", results[0].Group)
	}
}

func TestGenerateValidation(t *testing.T) {
	r, cleanup := setupAPI(t)
	defer cleanup()

	tests := []struct {
		name string
		body string
	}{
		{"empty prompt", `{"user_id":"u1","service":"shopchat","prompt":"  "}`},
		{"missing user", `{"service":"shopchat","prompt":"p"}`},
		{"missing service", `{"user_id":"u1","prompt":"p"}`},
		{"bad json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, "POST", "/api/v1/generate", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestGenerateErrorStatusPropagation(t *testing.T) {
	r, cleanup := setupAPI(t)
	defer cleanup()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer upstream.Close()

	doJSON(t, r, "POST", "/api/v1/providers", fmt.Sprintf(`{"name":"custom","api_key":"k","base_url":"%s"}`, upstream.URL))
	config.Cfg.DefaultProvider = "custom"

	w := doJSON(t, r, "POST", "/api/v1/generate", `{"user_id":"u1","service":"shopchat","prompt":"hello"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 propagated from upstream", w.Code)
	}

	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if body["retryable"] != true {
		t.Errorf("retryable = %v, want true", body["retryable"])
	}
}

func TestGenerateConfigErrorIs4xx(t *testing.T) {
	r, cleanup := setupAPI(t)
	defer cleanup()

	// no provider configured at all
	w := doJSON(t, r, "POST", "/api/v1/generate", `{"user_id":"u1","service":"shopchat","prompt":"hello"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unconfigured provider", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	r, cleanup := setupAPI(t)
	defer cleanup()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}],"usage":{"prompt_tokens":1,"completion_tokens":1}}`))
	}))
	defer upstream.Close()

	doJSON(t, r, "POST", "/api/v1/providers", fmt.Sprintf(`{"name":"custom","api_key":"k","base_url":"%s"}`, upstream.URL))
	config.Cfg.DefaultProvider = "custom"
	config.Cfg.RequestsPerMinute = 2
	defer func() { config.Cfg.RequestsPerMinute = 0 }()
	rateLimitWindows = sync.Map{}

	body := `{"user_id":"u1","service":"flowsend-rl","prompt":"hello","temperature":0.1}`
	for i := 0; i < 2; i++ {
		w := doJSON(t, r, "POST", "/api/v1/generate", body)
		if w.Code != http.StatusOK {
			t.Fatalf("call %d: status = %d: %s", i, w.Code, w.Body.String())
		}
	}

	w := doJSON(t, r, "POST", "/api/v1/generate", body)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 after limit", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %s, want 60", w.Header().Get("Retry-After"))
	}
}

func TestTestProviderEndpoint(t *testing.T) {
	r, cleanup := setupAPI(t)
	defer cleanup()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"pong"}}],"usage":{"prompt_tokens":1,"completion_tokens":1}}`))
	}))
	defer upstream.Close()

	w := doJSON(t, r, "POST", "/api/v1/providers", fmt.Sprintf(`{"name":"custom","api_key":"k","base_url":"%s"}`, upstream.URL))
	var created database.ProviderConfig
	json.NewDecoder(w.Body).Decode(&created)

	w = doJSON(t, r, "POST", fmt.Sprintf("/api/v1/providers/%d/test", created.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var result map[string]any
	json.NewDecoder(w.Body).Decode(&result)
	if result["ok"] != true {
		t.Errorf("ok = %v, want true", result["ok"])
	}

	w = doJSON(t, r, "POST", "/api/v1/providers/9999/test", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing provider: status = %d, want 404", w.Code)
	}
}
