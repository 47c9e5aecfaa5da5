package ports

import "context"

// UsageData represents raw usage data reported by the completion API
type UsageData struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
	Provider         string `json:"provider"`
}

// LLMResponse is a completion plus any usage data the provider returned
type LLMResponse struct {
	Content string
	Usage   *UsageData
}

// LLMClient sends a single user prompt to a chat-completion endpoint
type LLMClient interface {
	ChatCompletion(ctx context.Context, model string, prompt string, maxTokens int) (string, error)

	ChatCompletionWithUsage(ctx context.Context, model string, prompt string, maxTokens int) (*LLMResponse, error)
}
