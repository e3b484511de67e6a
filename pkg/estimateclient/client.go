// Package estimateclient calls the estimation API from Go programs and polls
// an estimate until it settles.
package estimateclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/platewise/api/internal/model"
	"github.com/platewise/api/pkg/response"
)

const (
	DefaultPollAttempts = 30
	DefaultPollInterval = 2 * time.Second
)

// ErrStillProcessing is returned by Poll when the estimate has not settled
// within the polling budget. The job keeps running; it is not a failure.
var ErrStillProcessing = errors.New("estimate still processing")

// APIError is a non-2xx answer carrying the server's error envelope
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("estimate api error (status %d, %s): %s", e.Status, e.Code, e.Message)
}

// Client talks to the estimation API on behalf of one user
type Client struct {
	httpClient   *http.Client
	baseURL      string
	token        string
	pollAttempts int
	pollInterval time.Duration
	logger       *zap.Logger
}

// Option configures a Client
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.logger = l } }

// WithPolling overrides the polling budget
func WithPolling(attempts int, interval time.Duration) Option {
	return func(c *Client) {
		c.pollAttempts = attempts
		c.pollInterval = interval
	}
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		pollAttempts: DefaultPollAttempts,
		pollInterval: DefaultPollInterval,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit queues an estimation for already uploaded photos
func (c *Client) Submit(ctx context.Context, photoIDs []string) (*model.SubmitEstimateResponse, error) {
	var result model.SubmitEstimateResponse
	body := model.SubmitEstimateRequest{PhotoIDs: photoIDs}
	if err := c.do(ctx, http.MethodPost, "/api/estimates", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Get fetches the current state of an estimate
func (c *Client) Get(ctx context.Context, estimateID string) (*model.EstimateView, error) {
	var result model.EstimateView
	if err := c.do(ctx, http.MethodGet, "/api/estimates/"+url.PathEscape(estimateID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Poll calls Get until the estimate is done or failed. When the budget runs
// out it returns the last view together with ErrStillProcessing.
func (c *Client) Poll(ctx context.Context, estimateID string) (*model.EstimateView, error) {
	var last *model.EstimateView
	for attempt := 1; attempt <= c.pollAttempts; attempt++ {
		view, err := c.Get(ctx, estimateID)
		if err != nil {
			return nil, err
		}
		last = view

		c.logger.Debug("polled estimate",
			zap.String("estimate_id", estimateID),
			zap.Int("attempt", attempt),
			zap.String("status", string(view.Status)))

		if view.Status.IsTerminal() {
			return view, nil
		}
		if attempt == c.pollAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return last, ErrStillProcessing
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var envelope response.ErrorResponse
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
