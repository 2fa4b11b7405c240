// Package ollama implements inference.Provider against a local Ollama server.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bunko/bunko/pkg/inference"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultTimeout = 5 * time.Minute
	defaultModel   = "qwen2.5:7b"
)

// Client implements the inference.Provider interface for Ollama
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// ClientConfig holds configuration for the Ollama client
type ClientConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewClient creates a new Ollama client
func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
	}

	return &Client{
		baseURL: config.BaseURL,
		model:   config.Model,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return "ollama"
}

// IsAvailable checks if Ollama is accessible
func (c *Client) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatBody struct {
	Model    string                 `json:"model"`
	Messages []chatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

func (c *Client) buildBody(req inference.ChatRequest, stream bool) chatBody {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: inference.RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	options := map[string]interface{}{}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.TopP > 0 {
		options["top_p"] = req.TopP
	}
	if len(req.Stop) > 0 {
		options["stop"] = req.Stop
	}
	if len(options) == 0 {
		options = nil
	}

	return chatBody{Model: model, Messages: messages, Stream: stream, Options: options}
}

func (c *Client) post(ctx context.Context, body chatBody) (*http.Response, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: chat request failed: %w", inference.ErrProviderNotAvailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: unexpected status %d: %s", inference.ErrInferenceFailed, resp.StatusCode, string(msg))
	}
	return resp, nil
}

// Chat generates a chat completion
func (c *Client) Chat(ctx context.Context, req inference.ChatRequest) (*inference.ChatResponse, error) {
	resp, err := c.post(ctx, c.buildBody(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Model   string `json:"model"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		DoneReason      string    `json:"done_reason"`
		PromptEvalCount int       `json:"prompt_eval_count"`
		EvalCount       int       `json:"eval_count"`
		CreatedAt       time.Time `json:"created_at"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &inference.ChatResponse{
		Model: result.Model,
		Message: inference.Message{
			Role:    result.Message.Role,
			Content: result.Message.Content,
		},
		StopReason: result.DoneReason,
		Usage: inference.Usage{
			PromptTokens:     result.PromptEvalCount,
			CompletionTokens: result.EvalCount,
			TotalTokens:      result.PromptEvalCount + result.EvalCount,
		},
		CreatedAt: result.CreatedAt,
	}, nil
}

// ChatStream generates a streaming chat completion. Ollama streams one JSON
// object per line.
func (c *Client) ChatStream(ctx context.Context, req inference.ChatRequest) (inference.ChatStream, error) {
	resp, err := c.post(ctx, c.buildBody(req, true))
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &chatStream{
		scanner: scanner,
		body:    resp.Body,
	}, nil
}

type chatStream struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
	done    bool
}

func (s *chatStream) Next() (inference.ChatChunk, error) {
	if s.done {
		return inference.ChatChunk{}, io.EOF
	}

	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var result struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Done       bool   `json:"done"`
			DoneReason string `json:"done_reason"`
			Error      string `json:"error"`
		}

		if err := json.Unmarshal(line, &result); err != nil {
			return inference.ChatChunk{}, fmt.Errorf("failed to decode stream chunk: %w", err)
		}
		if result.Error != "" {
			return inference.ChatChunk{}, fmt.Errorf("%w: %s", inference.ErrInferenceFailed, result.Error)
		}

		s.done = result.Done
		return inference.ChatChunk{
			Content:    result.Message.Content,
			Done:       result.Done,
			StopReason: result.DoneReason,
		}, nil
	}

	if err := s.scanner.Err(); err != nil {
		return inference.ChatChunk{}, err
	}
	return inference.ChatChunk{}, io.EOF
}

func (s *chatStream) Close() error {
	return s.body.Close()
}
