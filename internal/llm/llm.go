// ABOUTME: Thin OpenAI chat client that asks for JSON and decodes it into a Go type.
// ABOUTME: A nil *Client means no API key is configured and callers use their static fallback.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/2389/sitewalk/internal/config"
)

var ErrDisabled = errors.New("OpenAI is not configured")

type Client struct {
	api   *openai.Client
	model string
}

// New returns nil when cfg has no API key.
func New(cfg config.OpenAIConfig) *Client {
	if cfg.APIKey == "" {
		return nil
	}
	return &Client{api: openai.NewClient(cfg.APIKey), model: cfg.Model}
}

// NewWithConfig is New for a custom endpoint, e.g. a proxy or a test server.
func NewWithConfig(cc openai.ClientConfig, model string) *Client {
	return &Client{api: openai.NewClientWithConfig(cc), model: model}
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// JSON sends prompt under the system role text and decodes the reply as T.
func JSON[T any](ctx context.Context, c *Client, system, prompt string) (T, error) {
	var result T
	if c == nil {
		return result, ErrDisabled
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system + " Always respond with valid JSON only, no markdown or explanation.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return result, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return result, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return result, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	return result, nil
}
