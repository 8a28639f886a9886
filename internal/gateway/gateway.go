// Package gateway orchestrates routing, caching, provider calls, and cost
// accounting for each inbound generation request.
package gateway

import (
	"context"
	"time"

	"github.com/commercekit/llm-gateway/internal/cache"
	"github.com/commercekit/llm-gateway/internal/cost"
	"github.com/commercekit/llm-gateway/internal/metrics"
	"github.com/commercekit/llm-gateway/internal/providers"
	"github.com/commercekit/llm-gateway/internal/router"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Request is one inbound generation request from a calling service.
type Request struct {
	UserID      string
	ServiceName string
	TaskType    string
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// Response is what callers get back, including accounting fields.
type Response struct {
	Content      string  `json:"content"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	Cached       bool    `json:"cached"`
	LatencyMs    int64   `json:"latency_ms"`
}

// Gateway is the facade over router, cache, adapters, and the cost engine.
type Gateway struct {
	cache  *cache.Cache
	flight singleflight.Group
}

func New(c *cache.Cache) *Gateway {
	return &Gateway{cache: c}
}

// Generate runs one request end to end. Every call, successful or not,
// appends exactly one usage ledger entry.
func (g *Gateway) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	route, err := router.Resolve(req.UserID, req.ServiceName)
	if err != nil {
		g.account(req, "", "", nil, false, start, err)
		return nil, err
	}

	params := cache.Params{
		Provider:    route.ProviderName,
		Model:       route.Model,
		Prompt:      req.Prompt,
		System:      req.System,
		Temperature: req.Temperature,
		JSONMode:    req.JSONMode,
	}

	if result, ok := g.cache.Get(ctx, params); ok {
		g.account(req, route.ProviderName, route.Model, result, true, start, nil)
		return g.respond(result, true, 0, start), nil
	}

	// Coalesce identical concurrent requests onto a single upstream call,
	// keyed the same way as the cache.
	v, err, shared := g.flight.Do(cache.Key(params), func() (any, error) {
		result, err := route.Adapter.Generate(ctx, providers.Request{
			Prompt:      req.Prompt,
			System:      req.System,
			Model:       route.Model,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
			JSONMode:    req.JSONMode,
		})
		if err != nil {
			return nil, err
		}
		g.cache.Set(ctx, params, result)
		return result, nil
	})
	if err != nil {
		g.account(req, route.ProviderName, route.Model, nil, false, start, err)
		return nil, err
	}

	result := v.(*providers.Result)
	if shared {
		// Another in-flight caller paid for the upstream call.
		g.account(req, route.ProviderName, route.Model, result, true, start, nil)
		return g.respond(result, true, 0, start), nil
	}

	costUSD := cost.Calculate(route.ProviderName, route.Model, result.InputTokens, result.OutputTokens)
	g.account(req, route.ProviderName, route.Model, result, false, start, nil)
	return g.respond(result, false, costUSD, start), nil
}

func (g *Gateway) respond(result *providers.Result, cached bool, costUSD float64, start time.Time) *Response {
	return &Response{
		Content:      result.Content,
		Provider:     result.Provider,
		Model:        result.Model,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		CostUSD:      costUSD,
		Cached:       cached,
		LatencyMs:    time.Since(start).Milliseconds(),
	}
}

// account writes the ledger entry and bumps metrics for one finished request.
// Cache hits carry the cached result's token counts but zero cost.
func (g *Gateway) account(req Request, provider, model string, result *providers.Result, cached bool, start time.Time, genErr error) {
	entry := cost.Entry{
		UserID:       req.UserID,
		ServiceName:  req.ServiceName,
		TaskType:     req.TaskType,
		ProviderName: provider,
		ModelName:    model,
		LatencyMs:    time.Since(start).Milliseconds(),
		Cached:       cached,
		Err:          genErr,
		Prompt:       req.Prompt,
	}

	outcome := "error"
	switch {
	case genErr != nil:
		// tokens and cost stay zero
	case cached:
		entry.InputTokens = result.InputTokens
		entry.OutputTokens = result.OutputTokens
		outcome = "cache_hit"
	default:
		entry.InputTokens = result.InputTokens
		entry.OutputTokens = result.OutputTokens
		entry.CostUSD = cost.Calculate(provider, model, result.InputTokens, result.OutputTokens)
		outcome = "success"

		metrics.TokensTotal.WithLabelValues(provider, "input").Add(float64(result.InputTokens))
		metrics.TokensTotal.WithLabelValues(provider, "output").Add(float64(result.OutputTokens))
		metrics.CostUSDTotal.WithLabelValues(provider).Add(entry.CostUSD)
	}

	metrics.RequestsTotal.WithLabelValues(labelOr(provider, "unresolved"), req.ServiceName, outcome).Inc()
	cost.LogUsage(entry)

	if genErr != nil {
		zap.L().Warn("generation failed",
			zap.String("user_id", req.UserID),
			zap.String("service", req.ServiceName),
			zap.String("provider", provider),
			zap.Error(genErr))
	}
}

func labelOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
