package chat

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/logger"
)

// OpenAIChat talks to an OpenAI-compatible endpoint.
type OpenAIChat struct {
	modelName string
	client    *openai.Client
}

// NewOpenAIChat builds an OpenAI-backed chat client. A custom BaseURL routes
// to any compatible gateway.
func NewOpenAIChat(config *Config) (*OpenAIChat, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai provider requires an api key")
	}
	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	return &OpenAIChat{
		modelName: config.ModelName,
		client:    openai.NewClientWithConfig(cfg),
	}, nil
}

// Chat sends a non-streaming completion request.
func (c *OpenAIChat) Chat(ctx context.Context, messages []Message, opts *Options) (*Response, error) {
	req := openai.ChatCompletionRequest{
		Model: c.modelName,
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	if opts != nil {
		req.Temperature = float32(opts.Temperature)
		req.MaxTokens = opts.MaxTokens
	}

	logger.Debugf(ctx, "sending chat request to model %s", c.modelName)

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai chat request: empty choices")
	}
	return &Response{Content: resp.Choices[0].Message.Content}, nil
}

// GetModelName returns the configured model name.
func (c *OpenAIChat) GetModelName() string {
	return c.modelName
}
