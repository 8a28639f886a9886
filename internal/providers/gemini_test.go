package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGeminiGenerate(t *testing.T) {
	var gotReq geminiRequest
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "bon"}, {"text": "jour"}]}}],
			"usageMetadata": {"promptTokenCount": 5, "candidatesTokenCount": 3}
		}`))
	}))
	defer server.Close()

	adapter := NewGemini(Config{APIKey: "AIza-test", BaseURL: server.URL})
	result, err := adapter.Generate(context.Background(), Request{
		Prompt:      "greet in french",
		System:      "one word",
		Model:       "gemini-2.0-flash",
		MaxTokens:   16,
		Temperature: 0.1,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// API key rides the query string, not a header.
	if gotKey != "AIza-test" {
		t.Errorf("query key = %s, want AIza-test", gotKey)
	}
	if gotPath != "/v1beta/models/gemini-2.0-flash:generateContent" {
		t.Errorf("path = %s", gotPath)
	}
	if gotReq.SystemInstruction == nil || gotReq.SystemInstruction.Parts[0].Text != "one word" {
		t.Errorf("systemInstruction = %+v", gotReq.SystemInstruction)
	}
	if gotReq.GenerationConfig.MaxOutputTokens != 16 {
		t.Errorf("maxOutputTokens = %d, want 16", gotReq.GenerationConfig.MaxOutputTokens)
	}
	if result.Content != "bonjour" {
		t.Errorf("Content = %q, want bonjour", result.Content)
	}
	if result.InputTokens != 5 || result.OutputTokens != 3 {
		t.Errorf("tokens = %d/%d, want 5/3", result.InputTokens, result.OutputTokens)
	}
}

func TestGeminiJSONMode(t *testing.T) {
	var gotReq geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{}"}]}}],"usageMetadata":{"promptTokenCount":1,"candidatesTokenCount":1}}`))
	}))
	defer server.Close()

	adapter := NewGemini(Config{APIKey: "k", BaseURL: server.URL})
	if _, err := adapter.Generate(context.Background(), Request{Prompt: "p", JSONMode: true}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if gotReq.GenerationConfig.ResponseMimeType != "application/json" {
		t.Errorf("responseMimeType = %q, want application/json", gotReq.GenerationConfig.ResponseMimeType)
	}
}

func TestGeminiErrorClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer server.Close()

	adapter := NewGemini(Config{APIKey: "k", BaseURL: server.URL})
	_, err := adapter.Generate(context.Background(), Request{Prompt: "p"})
	pe, ok := err.(*Error)
	if !ok {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if pe.Provider != "gemini" || !pe.Retryable || pe.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("unexpected error: %+v", pe)
	}
}
