package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrService marks failures talking to the generation service.
var ErrService = errors.New("generation service failure")

// ServiceError wraps a transport or non-success response from the generation service.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() []error {
	return []error{ErrService, e.Err}
}

// Request is a single role-tagged completion request.
type Request struct {
	System      string
	User        string
	JSON        bool // ask the service to constrain output to a JSON object
	Temperature float32
}

// Completer is the boundary to a text-completion service.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
}

// Option configures a Client.
type Option func(*openai.ClientConfig)

// WithTimeout bounds every request to the service. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *openai.ClientConfig) {
		c.HTTPClient = &http.Client{Timeout: d}
	}
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string, maxTokens int, opts ...Option) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	for _, o := range opts {
		o(&config)
	}
	return &Client{
		api:       openai.NewClientWithConfig(config),
		model:     modelName,
		maxTokens: maxTokens,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Ping checks that the endpoint answers and knows the configured model.
func (c *Client) Ping(ctx context.Context) error {
	models, err := c.api.ListModels(ctx)
	if err != nil {
		return &ServiceError{Op: "list models", Err: err}
	}
	for _, m := range models.Models {
		if m.ID == c.model {
			return nil
		}
	}
	slog.Warn("configured model not listed by endpoint", "model", c.model, "available", len(models.Models))
	return nil
}

// Complete sends a system directive and user prompt and returns the raw reply text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   c.maxTokens,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", &ServiceError{Op: "LLM API call", Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &ServiceError{Op: "LLM API call", Err: errors.New("LLM returned no choices")}
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "model", c.model, "chars", len(raw), "finish_reason", resp.Choices[0].FinishReason)
	return raw, nil
}
