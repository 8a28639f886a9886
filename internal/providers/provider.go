package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// requestTimeout bounds every outbound provider call.
const requestTimeout = 120 * time.Second

// Request is a generic generation request, already resolved to a concrete model.
type Request struct {
	Prompt      string
	System      string
	Model       string
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// Result is the normalized output of a provider call.
type Result struct {
	Content      string
	InputTokens  int64
	OutputTokens int64
	Model        string
	Provider     string
	RawResponse  []byte // vendor payload, debugging only; never cached
}

// Error is a classified provider failure.
type Error struct {
	Provider   string
	Message    string
	StatusCode int
	Retryable  bool
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// retryableStatus reports whether an upstream HTTP status is worth retrying.
// Rate limits and upstream overload are transient; everything else 4xx is not.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable:
		return true
	}
	return false
}

// transportError wraps a failed round trip. Timeouts and refused connections
// are always retryable.
func transportError(provider string, err error) *Error {
	return &Error{
		Provider:  provider,
		Message:   fmt.Sprintf("request failed: %v", err),
		Retryable: true,
	}
}

// Config carries per-provider settings from the control plane into an adapter.
type Config struct {
	APIKey  string
	BaseURL string            // empty = adapter default
	Extra   map[string]string // opaque vendor-specific settings
}

// Adapter is implemented by every upstream vendor integration. Adapters do
// not retry; retry policy belongs to the caller.
type Adapter interface {
	Name() string
	DefaultModel() string
	// Generate performs one completion call. Failures are *Error.
	Generate(ctx context.Context, req Request) (*Result, error)
	// TestConnection issues a minimal generation and reports reachability.
	TestConnection(ctx context.Context) bool
}

// registry maps a ProviderConfig.name to its adapter constructor. The set of
// known providers is fixed at compile time; unknown names fail at
// configuration load.
var registry = map[string]func(Config) Adapter{
	"claude":  func(c Config) Adapter { return NewClaude(c) },
	"openai":  func(c Config) Adapter { return NewOpenAI(c) },
	"gemini":  func(c Config) Adapter { return NewGemini(c) },
	"llama":   func(c Config) Adapter { return NewLlama(c) },
	"mistral": func(c Config) Adapter { return NewMistral(c) },
	"custom":  func(c Config) Adapter { return NewCustom(c) },
}

// New instantiates the adapter registered under name.
func New(name string, cfg Config) (Adapter, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, &Error{
			Provider:   name,
			Message:    "unknown provider",
			StatusCode: http.StatusBadRequest,
		}
	}
	return ctor(cfg), nil
}

// Known reports whether name is a registered provider.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// Names returns the registered provider names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}
