package providers

import "context"

const customDefaultModel = "default"

// Custom targets a self-hosted OpenAI-compatible endpoint (vLLM, Ollama,
// llama.cpp and friends). The base URL must come from the provider config;
// there is no sensible default.
type Custom struct{ openaiCompat }

func NewCustom(cfg Config) *Custom {
	return &Custom{newCompat("custom", "", customDefaultModel, cfg)}
}

func (c *Custom) Generate(ctx context.Context, req Request) (*Result, error) {
	if c.baseURL == "" {
		return nil, &Error{Provider: "custom", Message: "base_url is required for the custom provider"}
	}
	return c.openaiCompat.Generate(ctx, req)
}

func (c *Custom) TestConnection(ctx context.Context) bool {
	_, err := c.Generate(ctx, Request{Prompt: "ping", MaxTokens: 1, Temperature: 0})
	return err == nil
}
