package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"contractforge/internal/domain/entity"
	"contractforge/internal/domain/repository"
	"contractforge/internal/infrastructure/metrics"
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

type OpenAIGenerator struct {
	apiKey      string
	baseURL     string
	model       string
	client      *http.Client
	maxTokens   int
	temperature float32
	logger      *slog.Logger
}

var _ repository.LLMGenerator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator returns nil when no API key is configured; callers
// treat a nil generator as "generation unavailable".
func NewOpenAIGenerator(cfg Config, logger *slog.Logger) *OpenAIGenerator {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &OpenAIGenerator{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		client:      &http.Client{Timeout: cfg.Timeout},
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

func (g *OpenAIGenerator) Model() string {
	return g.model
}

func (g *OpenAIGenerator) GenerateContract(ctx context.Context, prompt string) (string, error) {
	metrics.IncLLMRequest(g.model, "generate")

	content, err := g.complete(ctx, entity.SolidityPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("generate contract: %w", err)
	}
	return extractCode(content), nil
}

func (g *OpenAIGenerator) ExplainContract(ctx context.Context, source string) (string, error) {
	metrics.IncLLMRequest(g.model, "explain")

	content, err := g.complete(ctx, entity.ExplainPrompt, entity.ExplainRequest(source))
	if err != nil {
		return "", fmt.Errorf("explain contract: %w", err)
	}
	return strings.TrimSpace(content), nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, system entity.Prompt, user string) (string, error) {
	request := chatCompletionRequest{
		Model: g.model,
		Messages: []message{
			{Role: "system", Content: system.Text},
			{Role: "user", Content: user},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}

	response, err := g.makeRequest(ctx, request)
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		metrics.IncError("llm", "no_choices")
		return "", fmt.Errorf("invalid response format: no choices")
	}
	content := response.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		metrics.IncError("llm", "empty_content")
		return "", fmt.Errorf("invalid response format: no content")
	}

	g.logger.Debug("llm completion",
		"prompt_id", system.ID,
		"model", response.Model,
		"total_tokens", response.Usage.TotalTokens,
	)
	return content, nil
}

func (g *OpenAIGenerator) makeRequest(ctx context.Context, request chatCompletionRequest) (*chatCompletionResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		metrics.IncError("llm", "marshal_request")
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		metrics.IncError("llm", "create_request")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		metrics.IncError("llm", "http_do")
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			g.logger.Warn("close body failed", "err", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.IncError("llm", "read_body")
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.IncError("llm", fmt.Sprintf("api_error_%d", resp.StatusCode))
		var errResp errorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("openai api error: %d - %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("openai api error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response chatCompletionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		metrics.IncError("llm", "decode_response")
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}

// extractCode returns the body of the first fenced code block, or the whole
// content when the model followed the no-fences instruction.
func extractCode(content string) string {
	lines := strings.Split(content, "\n")
	var (
		code    []string
		inBlock bool
	)
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inBlock {
				return strings.TrimSpace(strings.Join(code, "\n"))
			}
			inBlock = true
			continue
		}
		if inBlock {
			code = append(code, line)
		}
	}
	if inBlock && len(code) > 0 {
		return strings.TrimSpace(strings.Join(code, "\n"))
	}
	return strings.TrimSpace(content)
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float32   `json:"temperature"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
