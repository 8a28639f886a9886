package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	claudeBaseURL      = "https://api.anthropic.com"
	claudeDefaultModel = "claude-sonnet-4-20250514"
	claudeAPIVersion   = "2023-06-01"
)

// jsonOnlyInstruction is appended to the system prompt when the caller asks
// for JSON mode. The Messages API has no native JSON-mode flag.
const jsonOnlyInstruction = "You must respond with valid JSON only, no other text."

// Claude calls the Anthropic Messages API.
type Claude struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClaude(cfg Config) *Claude {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = claudeBaseURL
	}
	return &Claude{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  newHTTPClient(),
	}
}

func (c *Claude) Name() string         { return "claude" }
func (c *Claude) DefaultModel() string { return claudeDefaultModel }

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Temperature float64         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

func (c *Claude) Generate(ctx context.Context, req Request) (*Result, error) {
	model := req.Model
	if model == "" {
		model = claudeDefaultModel
	}

	system := req.System
	if req.JSONMode {
		if system != "" {
			system += "\n\n"
		}
		system += jsonOnlyInstruction
	}

	body, err := json.Marshal(claudeRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		System:      system,
		Temperature: req.Temperature,
		Messages:    []claudeMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return nil, &Error{Provider: "claude", Message: fmt.Sprintf("marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Provider: "claude", Message: fmt.Sprintf("build request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", claudeAPIVersion)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, transportError("claude", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, transportError("claude", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &Error{
			Provider:   "claude",
			Message:    fmt.Sprintf("api error: %s", truncateBody(raw)),
			StatusCode: httpResp.StatusCode,
			Retryable:  retryableStatus(httpResp.StatusCode),
		}
	}

	var resp claudeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &Error{Provider: "claude", Message: fmt.Sprintf("decode response: %v", err)}
	}

	// Responses can interleave text and tool_use blocks; concatenate the text.
	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &Result{
		Content:      content,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Model:        model,
		Provider:     "claude",
		RawResponse:  raw,
	}, nil
}

func (c *Claude) TestConnection(ctx context.Context) bool {
	_, err := c.Generate(ctx, Request{Prompt: "ping", MaxTokens: 1, Temperature: 0})
	return err == nil
}

// truncateBody keeps provider error messages readable in logs and responses.
func truncateBody(b []byte) string {
	const limit = 500
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
