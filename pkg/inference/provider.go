// Package inference abstracts the chat models that answer reader questions.
package inference

import (
	"context"
	"errors"
	"time"
)

var (
	ErrProviderNotAvailable = errors.New("inference provider not available")
	ErrProviderNotFound     = errors.New("inference provider not found")
	ErrInferenceFailed      = errors.New("inference failed")
)

// Roles used in chat messages
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider is a chat model backend
type Provider interface {
	// Name returns the provider name (e.g. "ollama", "openai", "gemini")
	Name() string

	// IsAvailable checks if the provider can serve requests
	IsAvailable(ctx context.Context) bool

	// Chat generates a complete answer
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ChatStream generates an answer incrementally
	ChatStream(ctx context.Context, req ChatRequest) (ChatStream, error)
}

// ChatRequest represents a chat completion request. System is sent ahead of
// Messages in whatever form the backend expects.
type ChatRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	Model      string    `json:"model"`
	Message    Message   `json:"message"`
	StopReason string    `json:"stop_reason,omitempty"`
	Usage      Usage     `json:"usage"`
	CreatedAt  time.Time `json:"created_at"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatStream represents a streaming chat completion
type ChatStream interface {
	// Next returns the next chunk, or io.EOF when done
	Next() (ChatChunk, error)
	// Close releases the stream
	Close() error
}

// ChatChunk represents a single chunk in a streaming response
type ChatChunk struct {
	Content    string `json:"content"`
	Done       bool   `json:"done"`
	StopReason string `json:"stop_reason,omitempty"`
}
