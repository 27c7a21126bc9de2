// Package dispatch performs the downstream unit of work against the
// execution service once payment has settled.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Sentinel errors for execution service failures.
var (
	ErrDispatchTimeout = errors.New("execution service timeout")
	ErrDispatchFailed  = errors.New("execution service error")
)

// StatusError carries the downstream HTTP status and body of a failed call.
// It wraps ErrDispatchFailed so callers can match with errors.Is.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("execution service error: status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrDispatchFailed }

// Client is the interface toward the execution service. The caller decides
// whether a failed call terminates the job; the client performs no retries.
type Client interface {
	Call(ctx context.Context, endpoint, method string, body any) (json.RawMessage, error)
	Healthy(ctx context.Context) error
}

// HTTPClient implements Client over the execution service's JSON API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new execution service client. Every call is bounded
// by the given timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Call invokes method on endpoint with an optional JSON body and returns the
// raw JSON response. Timeouts surface as ErrDispatchTimeout; non-2xx
// responses as a StatusError wrapping ErrDispatchFailed.
func (c *HTTPClient) Call(ctx context.Context, endpoint, method string, body any) (json.RawMessage, error) {
	if method == "" {
		method = http.MethodPost
	}
	if method != http.MethodPost && method != http.MethodGet {
		return nil, fmt.Errorf("unsupported method %q", method)
	}

	var reqBody io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = buf
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	if len(respBody) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(respBody), nil
}

// Healthy probes the execution service's health endpoint.
func (c *HTTPClient) Healthy(ctx context.Context) error {
	_, err := c.Call(ctx, "/health", http.MethodGet, nil)
	return err
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrDispatchTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrDispatchTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
