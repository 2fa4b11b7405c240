// Package gemini implements inference.Provider on the Google Gen AI SDK.
package gemini

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/bunko/bunko/pkg/inference"
)

const defaultModel = "gemini-2.0-flash"

// ClientConfig holds configuration for the Gemini client
type ClientConfig struct {
	APIKey string
	Model  string
}

// Client implements the inference.Provider interface for Gemini
type Client struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini client
func NewClient(ctx context.Context, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key is required", inference.ErrProviderNotAvailable)
	}
	if config.Model == "" {
		config.Model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{client: client, model: config.Model}, nil
}

// Name returns the provider name
func (c *Client) Name() string {
	return "gemini"
}

// IsAvailable reports whether a client was configured. Gemini has no cheap
// health endpoint, so failures surface on the first request instead.
func (c *Client) IsAvailable(ctx context.Context) bool {
	return c.client != nil
}

func (c *Client) modelFor(req inference.ChatRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.model
}

// Chat generates a chat completion
func (c *Client) Chat(ctx context.Context, req inference.ChatRequest) (*inference.ChatResponse, error) {
	contents, config := buildContents(req)
	resp, err := c.client.Models.GenerateContent(ctx, c.modelFor(req), contents, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", inference.ErrInferenceFailed, err)
	}

	chunk := toChunk(resp)
	out := &inference.ChatResponse{
		Model:      c.modelFor(req),
		Message:    inference.Message{Role: inference.RoleAssistant, Content: chunk.Content},
		StopReason: chunk.StopReason,
		CreatedAt:  time.Now(),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = inference.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// ChatStream generates a streaming chat completion
func (c *Client) ChatStream(ctx context.Context, req inference.ChatRequest) (inference.ChatStream, error) {
	contents, config := buildContents(req)
	seq := c.client.Models.GenerateContentStream(ctx, c.modelFor(req), contents, config)
	next, stop := iter.Pull2(seq)
	return &chatStream{next: next, stop: stop}, nil
}

// buildContents maps chat messages onto Gemini's user/model turns
func buildContents(req inference.ChatRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == inference.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		config.Temperature = &t
	}
	if req.TopP > 0 {
		p := float32(req.TopP)
		config.TopP = &p
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Stop) > 0 {
		config.StopSequences = req.Stop
	}
	return contents, config
}

func toChunk(resp *genai.GenerateContentResponse) inference.ChatChunk {
	var chunk inference.ChatChunk
	if resp == nil || len(resp.Candidates) == 0 {
		return chunk
	}

	cand := resp.Candidates[0]
	if cand.Content != nil {
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
		chunk.Content = sb.String()
	}
	if cand.FinishReason != "" {
		chunk.Done = true
		chunk.StopReason = string(cand.FinishReason)
	}
	return chunk
}

type chatStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
}

func (s *chatStream) Next() (inference.ChatChunk, error) {
	resp, err, ok := s.next()
	if !ok {
		return inference.ChatChunk{}, io.EOF
	}
	if err != nil {
		return inference.ChatChunk{}, fmt.Errorf("%w: %w", inference.ErrInferenceFailed, err)
	}
	return toChunk(resp), nil
}

func (s *chatStream) Close() error {
	s.stop()
	return nil
}
