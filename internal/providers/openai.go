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
	openaiBaseURL      = "https://api.openai.com"
	openaiDefaultModel = "gpt-4o-mini"
)

// openaiCompat implements the OpenAI Chat Completions wire format. OpenAI
// itself plus every OpenAI-compatible vendor (Llama, Mistral, self-hosted
// endpoints) share this client and differ only in name, base URL, and
// default model.
type openaiCompat struct {
	name         string
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

// OpenAI calls the Chat Completions API. A configurable base URL lets the
// same adapter serve Azure and other OpenAI-compatible deployments.
type OpenAI struct{ openaiCompat }

func NewOpenAI(cfg Config) *OpenAI {
	return &OpenAI{newCompat("openai", openaiBaseURL, openaiDefaultModel, cfg)}
}

func newCompat(name, defaultBaseURL, defaultModel string, cfg Config) openaiCompat {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if m := cfg.Extra["default_model"]; m != "" {
		defaultModel = m
	}
	return openaiCompat{
		name:         name,
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		defaultModel: defaultModel,
		client:       newHTTPClient(),
	}
}

func (o *openaiCompat) Name() string         { return o.name }
func (o *openaiCompat) DefaultModel() string { return o.defaultModel }

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponseFormat struct {
	Type string `json:"type"`
}

type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

func (o *openaiCompat) Generate(ctx context.Context, req Request) (*Result, error) {
	model := req.Model
	if model == "" {
		model = o.defaultModel
	}

	// The system prompt becomes a system-role message ahead of the user turn.
	var messages []openaiMessage
	if req.System != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openaiMessage{Role: "user", Content: req.Prompt})

	oreq := openaiRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONMode {
		oreq.ResponseFormat = &openaiResponseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(oreq)
	if err != nil {
		return nil, &Error{Provider: o.name, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Provider: o.name, Message: fmt.Sprintf("build request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	httpResp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, transportError(o.name, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, transportError(o.name, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &Error{
			Provider:   o.name,
			Message:    fmt.Sprintf("api error: %s", truncateBody(raw)),
			StatusCode: httpResp.StatusCode,
			Retryable:  retryableStatus(httpResp.StatusCode),
		}
	}

	var resp openaiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &Error{Provider: o.name, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Provider: o.name, Message: "response contained no choices"}
	}

	return &Result{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        model,
		Provider:     o.name,
		RawResponse:  raw,
	}, nil
}

func (o *openaiCompat) TestConnection(ctx context.Context) bool {
	_, err := o.Generate(ctx, Request{Prompt: "ping", MaxTokens: 1, Temperature: 0})
	return err == nil
}
