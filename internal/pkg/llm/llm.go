package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/xauti/content_go_server/config"
)

var (
	ErrNotConfigured = errors.New("openai api key not configured")
	ErrEmptyResponse = errors.New("openai returned no content")
)

// Client issues chat completions with a per-call API key so each tenant is
// billed on its own account.
type Client struct {
	model       string
	maxTokens   int
	temperature float32
	baseURL     string

	mu      sync.Mutex
	clients map[string]*openai.Client
}

func NewClient(cfg config.OpenAIConfig) *Client {
	return &Client{
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		baseURL:     cfg.BaseURL,
		clients:     make(map[string]*openai.Client),
	}
}

// Complete sends one system + user prompt and returns the trimmed answer.
func (c *Client) Complete(ctx context.Context, apiKey, system, prompt string) (string, error) {
	if apiKey == "" {
		return "", ErrNotConfigured
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := c.client(apiKey).CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func (c *Client) client(apiKey string) *openai.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.clients[apiKey]; ok {
		return cl
	}
	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	cl := openai.NewClientWithConfig(cfg)
	c.clients[apiKey] = cl
	return cl
}
