// Package cache memoizes generation results in Redis. Identical prompts from
// different users or services deliberately share entries: the key covers only
// the parameters that change the completion itself.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/commercekit/llm-gateway/internal/providers"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "llm_cache:"

// Params identify one cacheable completion. user_id, service_name, task_type,
// max_tokens and timeout are excluded on purpose.
type Params struct {
	Provider    string
	Model       string
	Prompt      string
	System      string
	Temperature float64
	JSONMode    bool
}

// entry is the serialized form stored in Redis. RawResponse is transient and
// never cached.
type entry struct {
	Content      string `json:"content"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
}

// Cache wraps an injected Redis client. A nil client or a non-positive TTL
// disables caching: Get always misses and Set is a no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Enabled() bool {
	return c.client != nil && c.ttl > 0
}

// Ping reports store reachability. Always nil when caching is disabled.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Key returns the namespaced digest for p: sha256 over the canonical
// (key-sorted) JSON encoding of the parameters.
func Key(p Params) string {
	canonical, _ := json.Marshal(map[string]any{
		"provider":    p.Provider,
		"model":       p.Model,
		"prompt":      p.Prompt,
		"system":      p.System,
		"temperature": p.Temperature,
		"json_mode":   p.JSONMode,
	})
	sum := sha256.Sum256(canonical)
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get looks up a cached result. A Redis outage degrades to a miss; the cache
// must never fail a request.
func (c *Cache) Get(ctx context.Context, p Params) (*providers.Result, bool) {
	if !c.Enabled() {
		return nil, false
	}

	raw, err := c.client.Get(ctx, Key(p)).Bytes()
	if err != nil {
		if err != redis.Nil {
			zap.L().Warn("cache get failed", zap.Error(err))
		}
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		zap.L().Warn("cache entry corrupt, treating as miss", zap.Error(err))
		return nil, false
	}

	return &providers.Result{
		Content:      e.Content,
		InputTokens:  e.InputTokens,
		OutputTokens: e.OutputTokens,
		Model:        e.Model,
		Provider:     e.Provider,
	}, true
}

// Set stores a result under the configured TTL (absolute expiry).
func (c *Cache) Set(ctx context.Context, p Params, result *providers.Result) {
	if !c.Enabled() {
		return
	}

	raw, err := json.Marshal(entry{
		Content:      result.Content,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		Model:        result.Model,
		Provider:     result.Provider,
	})
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, Key(p), raw, c.ttl).Err(); err != nil {
		zap.L().Warn("cache set failed", zap.Error(err))
	}
}
