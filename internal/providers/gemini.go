package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com"
	geminiDefaultModel = "gemini-2.0-flash"
)

// Gemini calls the Google generateContent API. Unusually, the API key goes
// in the query string rather than a header.
type Gemini struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGemini(cfg Config) *Gemini {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return &Gemini{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  newHTTPClient(),
	}
}

func (g *Gemini) Name() string         { return "gemini" }
func (g *Gemini) DefaultModel() string { return geminiDefaultModel }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (g *Gemini) Generate(ctx context.Context, req Request) (*Result, error) {
	model := req.Model
	if model == "" {
		model = geminiDefaultModel
	}

	greq := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if req.System != "" {
		greq.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	if req.JSONMode {
		greq.GenerationConfig.ResponseMimeType = "application/json"
	}

	body, err := json.Marshal(greq)
	if err != nil {
		return nil, &Error{Provider: "gemini", Message: fmt.Sprintf("marshal request: %v", err)}
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.baseURL, model, url.QueryEscape(g.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Provider: "gemini", Message: fmt.Sprintf("build request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, transportError("gemini", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, transportError("gemini", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &Error{
			Provider:   "gemini",
			Message:    fmt.Sprintf("api error: %s", truncateBody(raw)),
			StatusCode: httpResp.StatusCode,
			Retryable:  retryableStatus(httpResp.StatusCode),
		}
	}

	var resp geminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &Error{Provider: "gemini", Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(resp.Candidates) == 0 {
		return nil, &Error{Provider: "gemini", Message: "response contained no candidates"}
	}

	var content string
	for _, part := range resp.Candidates[0].Content.Parts {
		content += part.Text
	}

	return &Result{
		Content:      content,
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		Model:        model,
		Provider:     "gemini",
		RawResponse:  raw,
	}, nil
}

func (g *Gemini) TestConnection(ctx context.Context) bool {
	_, err := g.Generate(ctx, Request{Prompt: "ping", MaxTokens: 1, Temperature: 0})
	return err == nil
}
