package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"homesync-go/internal/config"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "test-model",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "SELECT COUNT(*) FROM items;"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20}
}`

func TestLangchainClientChat(t *testing.T) {
	var (
		path       string
		authHeader string
		raw        []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		authHeader = r.Header.Get("Authorization")
		raw, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	client, err := NewClient(config.LLMConfig{
		Provider: "langchaingo",
		APIKey:   "key-2",
		BaseURL:  srv.URL + "/v1",
		Model:    "test-model",
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	gen := NewGenerationParams(config.LLMGenerationConfig{Temperature: 0.2, MaxTokens: 128})
	out, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "count items"}}, gen)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if out != "SELECT COUNT(*) FROM items;" {
		t.Fatalf("Chat() = %q", out)
	}
	if path != "/v1/chat/completions" {
		t.Fatalf("path = %q", path)
	}
	if authHeader != "Bearer key-2" {
		t.Fatalf("Authorization = %q", authHeader)
	}

	var req map[string]interface{}
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatalf("decode request: %v (%s)", err, raw)
	}
	if req["model"] != "test-model" {
		t.Fatalf("model = %v", req["model"])
	}
	if req["temperature"] != 0.2 {
		t.Fatalf("temperature = %v", req["temperature"])
	}
	if !strings.Contains(string(raw), "count items") {
		t.Fatalf("prompt missing from request: %s", raw)
	}
}

func TestLangchainClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(config.LLMConfig{Provider: "langchaingo", APIKey: "k", BaseURL: srv.URL, Model: "m"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil); err == nil {
		t.Fatal("expected error from a failing endpoint")
	}
}
