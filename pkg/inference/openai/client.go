// Package openai implements inference.Provider for OpenAI and
// OpenAI-compatible chat endpoints.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/bunko/bunko/pkg/inference"
)

const defaultModel = "gpt-4o-mini"

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey  string
	BaseURL string // empty for api.openai.com
	Model   string
}

// Client implements the inference.Provider interface using go-openai
type Client struct {
	client *goopenai.Client
	model  string
	hasKey bool
}

// NewClient creates a new OpenAI client
func NewClient(config ClientConfig) *Client {
	cfg := goopenai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	return &Client{
		client: goopenai.NewClientWithConfig(cfg),
		model:  config.Model,
		hasKey: config.APIKey != "",
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return "openai"
}

// IsAvailable checks that the endpoint answers a model listing
func (c *Client) IsAvailable(ctx context.Context) bool {
	if !c.hasKey {
		return false
	}
	_, err := c.client.ListModels(ctx)
	return err == nil
}

func (c *Client) buildRequest(req inference.ChatRequest, stream bool) goopenai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	out := goopenai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   stream,
		Stop:     req.Stop,
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		out.Temperature = float32(req.Temperature)
	}
	if req.TopP > 0 {
		out.TopP = float32(req.TopP)
	}
	return out
}

// Chat generates a chat completion
func (c *Client) Chat(ctx context.Context, req inference.ChatRequest) (*inference.ChatResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", inference.ErrInferenceFailed, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", inference.ErrInferenceFailed)
	}

	choice := resp.Choices[0]
	return &inference.ChatResponse{
		Model: resp.Model,
		Message: inference.Message{
			Role:    inference.RoleAssistant,
			Content: choice.Message.Content,
		},
		StopReason: string(choice.FinishReason),
		Usage: inference.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		CreatedAt: time.Unix(resp.Created, 0),
	}, nil
}

// ChatStream generates a streaming chat completion
func (c *Client) ChatStream(ctx context.Context, req inference.ChatRequest) (inference.ChatStream, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", inference.ErrInferenceFailed, err)
	}
	return &chatStream{stream: stream}, nil
}

type chatStream struct {
	stream *goopenai.ChatCompletionStream
}

func (s *chatStream) Next() (inference.ChatChunk, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return inference.ChatChunk{}, io.EOF
		}
		if err != nil {
			return inference.ChatChunk{}, fmt.Errorf("%w: %w", inference.ErrInferenceFailed, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		return inference.ChatChunk{
			Content:    choice.Delta.Content,
			Done:       choice.FinishReason != "",
			StopReason: string(choice.FinishReason),
		}, nil
	}
}

func (s *chatStream) Close() error {
	s.stream.Close()
	return nil
}
