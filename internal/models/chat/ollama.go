package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	ollamaapi "github.com/ollama/ollama/api"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/logger"
)

// OllamaChat talks to a local Ollama server.
type OllamaChat struct {
	modelName string
	client    *ollamaapi.Client
}

// NewOllamaChat builds an Ollama-backed chat client against config.BaseURL.
func NewOllamaChat(config *Config) (*OllamaChat, error) {
	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	return &OllamaChat{
		modelName: config.ModelName,
		client:    ollamaapi.NewClient(base, http.DefaultClient),
	}, nil
}

func (c *OllamaChat) convertMessages(messages []Message) []ollamaapi.Message {
	out := make([]ollamaapi.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, ollamaapi.Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}

// Chat sends a non-streaming completion request.
func (c *OllamaChat) Chat(ctx context.Context, messages []Message, opts *Options) (*Response, error) {
	stream := false
	req := &ollamaapi.ChatRequest{
		Model:    c.modelName,
		Messages: c.convertMessages(messages),
		Stream:   &stream,
		Options:  make(map[string]interface{}),
	}
	if opts != nil {
		if opts.Temperature > 0 {
			req.Options["temperature"] = opts.Temperature
		}
		if opts.MaxTokens > 0 {
			req.Options["num_predict"] = opts.MaxTokens
		}
	}

	logger.Debugf(ctx, "sending chat request to model %s", c.modelName)

	var content string
	err := c.client.Chat(ctx, req, func(resp ollamaapi.ChatResponse) error {
		content = resp.Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat request: %w", err)
	}
	return &Response{Content: content}, nil
}

// GetModelName returns the configured model name.
func (c *OllamaChat) GetModelName() string {
	return c.modelName
}
