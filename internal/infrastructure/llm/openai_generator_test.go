package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"contractforge/internal/domain/entity"
)

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *OpenAIGenerator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g := NewOpenAIGenerator(Config{
		APIKey:      "test-key",
		BaseURL:     server.URL + "/",
		Model:       "gpt-test",
		Temperature: 0.7,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if g == nil {
		t.Fatal("expected generator")
	}
	return g
}

func writeCompletion(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := chatCompletionResponse{
		ID:    "cmpl-1",
		Model: "gpt-test",
		Choices: []choice{
			{Message: message{Role: "assistant", Content: content}, FinishReason: "stop"},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestNewOpenAIGeneratorWithoutKey(t *testing.T) {
	if g := NewOpenAIGenerator(Config{}, slog.Default()); g != nil {
		t.Fatal("expected nil generator without API key")
	}
}

func TestNewOpenAIGeneratorDefaults(t *testing.T) {
	g := NewOpenAIGenerator(Config{APIKey: "sk-test", BaseURL: "https://example.test/v1/"}, slog.Default())
	if g == nil {
		t.Fatal("expected a generator when a key is set")
	}
	if g.Model() != "gpt-4" {
		t.Errorf("expected default model gpt-4, got %s", g.Model())
	}
	if g.baseURL != "https://example.test/v1" {
		t.Errorf("trailing slash not trimmed: %s", g.baseURL)
	}
}

func TestGenerateContract(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", got)
		}

		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-test" {
			t.Errorf("expected model gpt-test, got %s", req.Model)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "system" || req.Messages[0].Content != entity.SolidityPrompt.Text {
			t.Errorf("unexpected system message: %+v", req.Messages[0])
		}
		if req.Messages[1].Content != "an ERC20 token" {
			t.Errorf("unexpected user message: %q", req.Messages[1].Content)
		}

		writeCompletion(t, w, "```solidity\npragma solidity ^0.8.20;\ncontract Token {}\n```")
	})

	code, err := g.GenerateContract(context.Background(), "an ERC20 token")
	if err != nil {
		t.Fatalf("GenerateContract: %v", err)
	}
	want := "pragma solidity ^0.8.20;\ncontract Token {}"
	if code != want {
		t.Errorf("expected %q, got %q", want, code)
	}
}

func TestExplainContract(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !strings.Contains(req.Messages[1].Content, "contract Token {}") {
			t.Errorf("explain request does not carry the source: %q", req.Messages[1].Content)
		}
		writeCompletion(t, w, "  It holds tokens.  ")
	})

	explanation, err := g.ExplainContract(context.Background(), "contract Token {}")
	if err != nil {
		t.Fatalf("ExplainContract: %v", err)
	}
	if explanation != "It holds tokens." {
		t.Errorf("unexpected explanation %q", explanation)
	}
}

func TestGenerateContractAPIError(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	})

	_, err := g.GenerateContract(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "Rate limit reached") {
		t.Errorf("error does not carry provider details: %v", err)
	}
}

func TestGenerateContractNoChoices(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	})

	if _, err := g.GenerateContract(context.Background(), "anything"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain", "  contract A {}\n", "contract A {}"},
		{"fenced", "Here you go:\n```solidity\ncontract A {}\n```\nEnjoy", "contract A {}"},
		{"unterminated", "```\ncontract A {}", "contract A {}"},
		{"indented fence", "  ```sol\n  contract A {}\n  ```", "contract A {}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractCode(tt.content); got != tt.want {
				t.Errorf("extractCode() = %q, want %q", got, tt.want)
			}
		})
	}
}
