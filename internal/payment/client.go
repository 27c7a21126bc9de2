// Package payment wraps the external payment network: creating payment
// requests, polling their status, and reporting results so escrowed funds can
// be released.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jedilabs/paygate/pkg/models"
)

// Sentinel errors for payment network failures.
var (
	ErrPaymentUnreachable   = errors.New("payment network unreachable")
	ErrPaymentTimeout       = errors.New("payment network timeout")
	ErrPaymentRequestFailed = errors.New("payment network request failed")
)

// Client is the interface for talking to the payment network. Callers decide
// retry policy; the client never retries internally.
type Client interface {
	CreateInstrument(ctx context.Context, req CreateInstrumentRequest) (*models.PaymentInstrument, error)
	CheckStatus(ctx context.Context, paymentID string) (string, error)
	CompleteInstrument(ctx context.Context, paymentID string, result json.RawMessage) error
}

// CreateInstrumentRequest holds everything the payment network needs to open
// a payment request for one job.
type CreateInstrumentRequest struct {
	JobID       uuid.UUID
	RequesterID string
	Amounts     []models.Amount
	InputHash   string
}

// HTTPClient implements Client against the payment service's HTTP API.
type HTTPClient struct {
	baseURL         string
	apiKey          string
	network         string
	agentIdentifier string
	sellerVKey      string
	client          *http.Client
}

// NewHTTPClient creates a new payment network HTTP client.
func NewHTTPClient(baseURL, apiKey, network, agentIdentifier, sellerVKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:         baseURL,
		apiKey:          apiKey,
		network:         network,
		agentIdentifier: agentIdentifier,
		sellerVKey:      sellerVKey,
		client:          &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) CreateInstrument(ctx context.Context, req CreateInstrumentRequest) (*models.PaymentInstrument, error) {
	body := createPaymentRequest{
		AgentIdentifier:         c.agentIdentifier,
		Network:                 c.network,
		IdentifierFromPurchaser: req.RequesterID,
		InputHash:               req.InputHash,
		RequestedFunds:          req.Amounts,
	}

	var resp createPaymentResponse
	if err := c.do(ctx, http.MethodPost, "/payment", body, &resp); err != nil {
		return nil, err
	}
	if resp.Data.BlockchainIdentifier == "" {
		return nil, fmt.Errorf("%w: response missing blockchain identifier", ErrPaymentRequestFailed)
	}

	return &models.PaymentInstrument{
		PaymentID:                 resp.Data.BlockchainIdentifier,
		JobID:                     req.JobID,
		Amounts:                   req.Amounts,
		InputHash:                 req.InputHash,
		SubmitResultTime:          time.UnixMilli(resp.Data.SubmitResultTime).UTC(),
		UnlockTime:                time.UnixMilli(resp.Data.UnlockTime).UTC(),
		ExternalDisputeUnlockTime: time.UnixMilli(resp.Data.ExternalDisputeUnlockTime).UTC(),
		AgentIdentifier:           c.agentIdentifier,
		SellerVKey:                c.sellerVKey,
	}, nil
}

func (c *HTTPClient) CheckStatus(ctx context.Context, paymentID string) (string, error) {
	var resp statusResponse
	path := "/payment/" + url.PathEscape(paymentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.Data.Status, nil
}

func (c *HTTPClient) CompleteInstrument(ctx context.Context, paymentID string, result json.RawMessage) error {
	body := completePaymentRequest{
		Network: c.network,
		Result:  result,
	}
	path := "/payment/" + url.PathEscape(paymentID) + "/complete"
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// do sends one request and decodes the JSON response into out (when non-nil).
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	u := c.baseURL + path
	var httpReq *http.Request
	var err error
	if reqBody != nil {
		httpReq, err = http.NewRequestWithContext(ctx, method, u, reqBody)
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, method, u, nil)
	}
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("token", c.apiKey)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrPaymentRequestFailed, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding payment response: %w", err)
		}
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrPaymentTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrPaymentTimeout, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrPaymentUnreachable, err)
}

// --- payment service wire types ---

type createPaymentRequest struct {
	AgentIdentifier         string          `json:"agentIdentifier"`
	Network                 string          `json:"network"`
	IdentifierFromPurchaser string          `json:"identifierFromPurchaser"`
	InputHash               string          `json:"inputHash"`
	RequestedFunds          []models.Amount `json:"requestedFunds"`
}

type createPaymentResponse struct {
	Data struct {
		BlockchainIdentifier      string `json:"blockchainIdentifier"`
		SubmitResultTime          int64  `json:"submitResultTime"`
		UnlockTime                int64  `json:"unlockTime"`
		ExternalDisputeUnlockTime int64  `json:"externalDisputeUnlockTime"`
	} `json:"data"`
}

type statusResponse struct {
	Data struct {
		Status string `json:"status"`
	} `json:"data"`
}

type completePaymentRequest struct {
	Network string          `json:"network"`
	Result  json.RawMessage `json:"result"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
