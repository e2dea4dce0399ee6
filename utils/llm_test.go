package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPLLMClient_Complete(t *testing.T) {
	var gotAuth string
	var gotReq llmRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "test-model",
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "Szia!"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"total_tokens": 12},
		})
	}))
	defer srv.Close()

	t.Setenv("LLM_API_KEY", "secret-key")
	t.Setenv("LLM_BASE_URL", srv.URL)

	c := NewLLMClient()
	out, err := c.Complete(context.Background(),
		[]LLMMessage{{Role: "user", Content: "szia"}}, "te vagy az asszisztens")
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer secret-key" {
		t.Fatalf("wrong auth header: %q", gotAuth)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Fatalf("system prompt must lead the message list, got %+v", gotReq.Messages)
	}
	if out.Content != "Szia!" || out.Model != "test-model" || out.TotalTokens != 12 || out.FinishReason != "stop" {
		t.Fatalf("unexpected completion %+v", out)
	}
}

func TestHTTPLLMClient_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	t.Setenv("LLM_API_KEY", "secret-key")
	t.Setenv("LLM_BASE_URL", srv.URL)

	c := NewLLMClient()
	if _, err := c.Complete(context.Background(), nil, ""); err == nil {
		t.Fatal("non-200 upstream must surface as an error")
	}
}

func TestHTTPLLMClient_Configured(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	c := NewLLMClient()
	if c.Configured() {
		t.Fatal("no key means not configured")
	}
	t.Setenv("LLM_API_KEY", "k")
	if !c.Configured() {
		t.Fatal("key present means configured")
	}
}
