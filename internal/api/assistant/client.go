// Package assistant is the HTTP client of the assistant service: streamed
// turns, background evaluation, and the persistence calls.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = 60 * time.Second
	userAgent      = "synapseos-assistant/1.0"

	pathStream       = "/api/chat/stream"
	pathJudge        = "/api/judge"
	pathJudgeResults = "/api/session/judge-results"
	pathRating       = "/api/session/rating"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTokenSource sets where the bearer token is read from on every request.
func WithTokenSource(fn func() string) ClientOption {
	return func(c *Client) {
		c.token = fn
	}
}

// WithTimeout bounds the non-streaming calls. Streamed turns are bounded only by
// their context.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client talks to the assistant service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      func() string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient creates a client. The default transport is traced with otelhttp.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StreamTurn starts a turn and returns the raw event stream. The caller must
// close it.
func (c *Client) StreamTurn(ctx context.Context, req *TurnRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathStream, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, ParseErrorResponse(resp.StatusCode, respBody)
	}

	return resp.Body, nil
}

// Evaluate runs the quality evaluation of a turn. Only the known providers are
// kept; an entry that does not decode is skipped.
func (c *Client) Evaluate(ctx context.Context, req *domain.EvaluationRequest) (domain.JudgeResults, error) {
	var raw map[string]json.RawMessage
	if err := c.postJSON(ctx, pathJudge, req, &raw); err != nil {
		return nil, err
	}

	results := make(domain.JudgeResults)
	for name, body := range raw {
		if !slices.Contains(domain.JudgeProviders, name) {
			continue
		}
		var score domain.JudgeScore
		if err := json.Unmarshal(body, &score); err != nil || string(body) == "null" {
			c.logger.Debug("skipping judge provider entry",
				slog.String("provider", name),
				slog.Int("bytes", len(body)))
			continue
		}
		results[name] = &score
	}
	return results, nil
}

// SaveJudgeResults persists the evaluation results of a turn.
func (c *Client) SaveJudgeResults(ctx context.Context, rec *domain.JudgeResultsRecord) error {
	return c.postJSON(ctx, pathJudgeResults, rec, nil)
}

// SaveRating persists a user rating.
func (c *Client) SaveRating(ctx context.Context, rec *domain.RatingRecord) error {
	return c.postJSON(ctx, pathRating, rec, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ParseErrorResponse(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
}
