package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "unidss/internal/errors"
	"unidss/ports"

	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 60 * time.Second
	providerName   = "openai"
	// maxErrorBody bounds how much of a failed response ends up in errors
	maxErrorBody = 512
)

// Config holds the completion endpoint settings
type Config struct {
	APIKey      string        // Bearer credential
	BaseURL     string        // Optional override (default: https://api.openai.com/v1)
	Temperature float64       // Omitted from the request when zero
	Timeout     time.Duration // Client-level timeout for the whole call
	HTTPClient  *http.Client  // Optional; tests inject httptest clients
}

// OpenAIClient implements ports.LLMClient against an OpenAI-compatible
// /chat/completions endpoint
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	temperature float64
	hc          *http.Client
}

var _ ports.LLMClient = (*OpenAIClient)(nil)

// NewClient creates an LLM client based on config
func NewClient(config Config) (*OpenAIClient, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, apperrors.ConfigInvalid("missing OpenAI API key")
	}

	baseURL := strings.TrimSpace(config.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	hc := config.HTTPClient
	if hc == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &OpenAIClient{
		apiKey:      config.APIKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		temperature: config.Temperature,
		hc:          hc,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatCompletion sends one user-role message and returns
// choices[0].message.content verbatim
func (c *OpenAIClient) ChatCompletion(ctx context.Context, model string, prompt string, maxTokens int) (string, error) {
	resp, err := c.ChatCompletionWithUsage(ctx, model, prompt, maxTokens)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// ChatCompletionWithUsage is ChatCompletion plus the usage block, when the
// provider sends one
func (c *OpenAIClient) ChatCompletionWithUsage(ctx context.Context, model string, prompt string, maxTokens int) (*ports.LLMResponse, error) {
	if strings.TrimSpace(model) == "" {
		return nil, apperrors.InvalidInput("missing model")
	}

	raw, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, apperrors.ExternalServiceError(providerName, err)
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ExternalServiceError(providerName, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.ExternalServiceError(providerName,
			fmt.Errorf("http %d: %s", resp.StatusCode, truncate(string(respRaw), maxErrorBody)))
	}

	return decodeCompletion(respRaw, model)
}

func decodeCompletion(body []byte, model string) (*ports.LLMResponse, error) {
	if !gjson.ValidBytes(body) {
		return nil, apperrors.ExternalServiceError(providerName, fmt.Errorf("malformed response body"))
	}
	parsed := gjson.ParseBytes(body)

	choices := parsed.Get("choices")
	if !choices.IsArray() || len(choices.Array()) == 0 {
		return nil, apperrors.ExternalServiceError(providerName, fmt.Errorf("response missing choices"))
	}
	content := parsed.Get("choices.0.message.content")
	if content.Type != gjson.String {
		return nil, apperrors.ExternalServiceError(providerName, fmt.Errorf("response missing message content"))
	}

	out := &ports.LLMResponse{Content: content.String()}
	if usage := parsed.Get("usage"); usage.IsObject() {
		respModel := parsed.Get("model").String()
		if respModel == "" {
			respModel = model
		}
		out.Usage = &ports.UsageData{
			PromptTokens:     int(usage.Get("prompt_tokens").Int()),
			CompletionTokens: int(usage.Get("completion_tokens").Int()),
			TotalTokens:      int(usage.Get("total_tokens").Int()),
			Model:            respModel,
			Provider:         providerName,
		}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// MockLLMClient is a canned LLM client for wiring tests and local runs
type MockLLMClient struct {
	Response string // Returned verbatim when Error is nil
	Error    error  // Set this to simulate errors
}

var _ ports.LLMClient = (*MockLLMClient)(nil)

func (m *MockLLMClient) ChatCompletion(ctx context.Context, model string, prompt string, maxTokens int) (string, error) {
	if m.Error != nil {
		return "", m.Error
	}
	return m.Response, nil
}

func (m *MockLLMClient) ChatCompletionWithUsage(ctx context.Context, model string, prompt string, maxTokens int) (*ports.LLMResponse, error) {
	content, err := m.ChatCompletion(ctx, model, prompt, maxTokens)
	if err != nil {
		return nil, err
	}
	return &ports.LLMResponse{Content: content}, nil
}
