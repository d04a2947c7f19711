package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterClient talks to an OpenRouter-compatible chat completions API.
type OpenRouterClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	pricing     Pricing
	httpClient  *http.Client
}

// message represents a message in a conversation
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest represents a request to the chat completions API
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// chatResponse represents a response from the chat completions API
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// NewOpenRouterClient creates a new OpenRouter client. baseURL may be empty
// to use the public endpoint.
func NewOpenRouterClient(apiKey, baseURL, model string, temperature float64, maxTokens int, pricing Pricing, timeout time.Duration) *OpenRouterClient {
	if baseURL == "" {
		baseURL = defaultOpenRouterURL
	}
	return &OpenRouterClient{
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		pricing:     pricing,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (c *OpenRouterClient) Generate(ctx context.Context, req Request) (Generation, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	var messages []message
	if req.System != "" {
		messages = append(messages, message{Role: "system", Content: req.System})
	}
	messages = append(messages, message{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return Generation{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return Generation{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	t0 := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Generation{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Generation{}, fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Generation{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Generation{}, fmt.Errorf("no choices in response")
	}

	usedModel := parsed.Model
	if usedModel == "" {
		usedModel = model
	}

	return Generation{
		Text:         parsed.Choices[0].Message.Content,
		Model:        usedModel,
		PromptTokens: parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
		Cost:         c.pricing.Cost(parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens),
		Latency:      time.Since(t0),
	}, nil
}
