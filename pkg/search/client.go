package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bunko/bunko/pkg/logging"
	"github.com/bunko/bunko/pkg/resilience"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

var (
	// ErrUpstream marks failures of the search service itself
	ErrUpstream = errors.New("search service failure")
	ErrNotFound = errors.New("not found")
)

// StatusError is a non-2xx response from the service
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
}

// Unwrap lets callers match ErrUpstream, and ErrNotFound for 404s
func (e *StatusError) Unwrap() []error {
	if e.Status == http.StatusNotFound {
		return []error{ErrUpstream, ErrNotFound}
	}
	return []error{ErrUpstream}
}

// Temporary reports whether retrying may help
func (e *StatusError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// Searcher runs searches. Client and CachedSearcher implement it.
type Searcher interface {
	Search(ctx context.Context, req Request) (*Response, error)
}

// DocumentFetcher loads the full text of a work
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, workID string) (*WorkText, error)
}

// ClientConfig holds configuration for the search client
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Retry   resilience.RetryConfig
	Breaker resilience.CircuitBreakerConfig
	Logger  logging.Logger
	// HTTPClient overrides the transport, mostly for tests
	HTTPClient *http.Client
}

// Client is the HTTP client for the search service
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryer    *resilience.Retryer
	breaker    *resilience.CircuitBreaker
	logger     logging.Logger
}

// NewClient creates a search client
func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.Logger == nil {
		config.Logger = logging.NewNop()
	}
	if config.Breaker.Name == "" {
		config.Breaker.Name = "search"
	}
	if config.Retry.ShouldRetry == nil {
		config.Retry.ShouldRetry = retryable
	}
	if config.Breaker.IsFailure == nil {
		config.Breaker.IsFailure = retryable
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		httpClient: httpClient,
		retryer:    resilience.NewRetryer(config.Retry),
		breaker:    resilience.NewCircuitBreaker(config.Breaker),
		logger:     config.Logger.With(logging.String("component", "search")),
	}
}

// Search runs a hybrid archive + web search. Per-source failures come back
// in Response.Errors; only a failed request returns an error.
func (c *Client) Search(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var resp Response
	if err := c.do(ctx, "search", http.MethodPost, "/api/search", body, &resp); err != nil {
		return nil, err
	}

	c.logger.WithContext(ctx).Debug("search completed",
		logging.Int("aozora_results", len(resp.AozoraResults)),
		logging.Int("web_results", len(resp.WebResults)),
		logging.Int("timing_ms", resp.TimingMS),
		logging.Int("errors", len(resp.Errors)),
	)
	return &resp, nil
}

// FetchDocument loads the full text of a work
func (c *Client) FetchDocument(ctx context.Context, workID string) (*WorkText, error) {
	if strings.TrimSpace(workID) == "" {
		return nil, fmt.Errorf("%w: empty work id", ErrInvalidRequest)
	}

	var text WorkText
	path := "/api/works/" + url.PathEscape(workID) + "/text"
	if err := c.do(ctx, "fetch document", http.MethodGet, path, nil, &text); err != nil {
		return nil, err
	}
	if text.WorkID == "" {
		text.WorkID = workID
	}
	return &text, nil
}

// ListWorks returns one page of the catalogue, optionally filtered by title
// or author.
func (c *Client) ListWorks(ctx context.Context, limit, offset int, query string) (*WorkList, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	if query != "" {
		params.Set("q", query)
	}

	var list WorkList
	if err := c.do(ctx, "list works", http.MethodGet, "/api/works?"+params.Encode(), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// IsAvailable checks that the service answers its health endpoint
func (c *Client) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
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

// BreakerState exposes the circuit state for status output
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, out interface{}) error {
	log := c.logger.WithContext(ctx)

	call := func(ctx context.Context) error {
		err := c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.roundTrip(ctx, op, method, path, body, out)
		})
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			return resilience.Permanent(err)
		}
		return err
	}

	err := c.retryer.Do(ctx, call, func(attempt int, err error, delay time.Duration) {
		log.Warn("retrying request",
			logging.String("op", op),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Err(err),
		)
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) || errors.Is(err, ErrUpstream) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return resilience.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resilience.Permanent(fmt.Errorf("%s: failed to decode response: %w: %w", op, ErrUpstream, err))
	}
	return nil
}

// retryable is false for client errors that will fail again
func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return !errors.Is(err, ErrInvalidRequest)
}
