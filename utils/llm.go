package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

// LLMMessage is one turn of the conversation sent to the completions API.
type LLMMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llmRequest struct {
	Model       string       `json:"model"`
	Messages    []LLMMessage `json:"messages"`
	Temperature float64      `json:"temperature,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
}

type llmResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Completion is the result of one chat-completion call.
type Completion struct {
	Content      string
	Model        string
	FinishReason string
	TotalTokens  int
}

// LLMClient generates chat replies. The implementation may be unavailable;
// callers must treat every error as a degraded-service signal.
type LLMClient interface {
	Complete(ctx context.Context, messages []LLMMessage, systemPrompt string) (*Completion, error)
	Configured() bool
}

// HTTPLLMClient calls an OpenAI-compatible chat-completions endpoint.
type HTTPLLMClient struct {
	client *http.Client
}

func NewLLMClient() *HTTPLLMClient {
	timeout := 30 * time.Second
	if s := os.Getenv("LLM_TIMEOUT_SECONDS"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			timeout = time.Duration(v) * time.Second
		}
	}
	return &HTTPLLMClient{client: &http.Client{Timeout: timeout}}
}

// Configured reports whether the provider can be called at all. This is the
// live capability check behind the availability oracle: a cached-available
// status still needs a key to be usable.
func (c *HTTPLLMClient) Configured() bool {
	return os.Getenv("LLM_API_KEY") != ""
}

// Complete calls the completions API with the given history and returns the
// first choice. The system prompt, when present, is always the first message.
func (c *HTTPLLMClient) Complete(ctx context.Context, messages []LLMMessage, systemPrompt string) (*Completion, error) {
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY not set")
	}

	allMessages := []LLMMessage{}
	if systemPrompt != "" {
		allMessages = append(allMessages, LLMMessage{Role: "system", Content: systemPrompt})
	}
	allMessages = append(allMessages, messages...)

	model := os.Getenv("LLM_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	baseURL := os.Getenv("LLM_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	reqBody := llmRequest{
		Model:       model,
		Messages:    allMessages,
		Temperature: 0.7,
		MaxTokens:   1000,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("llm API error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var llmResp llmResponse
	if err := json.NewDecoder(resp.Body).Decode(&llmResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(llmResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return &Completion{
		Content:      llmResp.Choices[0].Message.Content,
		Model:        llmResp.Model,
		FinishReason: llmResp.Choices[0].FinishReason,
		TotalTokens:  llmResp.Usage.TotalTokens,
	}, nil
}
