package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jedilabs/paygate/pkg/models"
)

func newTestClient(baseURL string, timeout time.Duration) *HTTPClient {
	return NewHTTPClient(baseURL, "test-key", "Preprod", "agent-1", "vkey-1", timeout)
}

func TestCreateInstrument_ValidResponse(t *testing.T) {
	jobID := uuid.New()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payment" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.Header.Get("token") != "test-key" {
			t.Errorf("missing api key header")
		}

		var req createPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.AgentIdentifier != "agent-1" {
			t.Errorf("unexpected agent identifier: %s", req.AgentIdentifier)
		}
		if req.Network != "Preprod" {
			t.Errorf("unexpected network: %s", req.Network)
		}
		if len(req.RequestedFunds) != 1 || req.RequestedFunds[0].Amount != "5000000" {
			t.Errorf("unexpected requested funds: %+v", req.RequestedFunds)
		}

		resp := createPaymentResponse{}
		resp.Data.BlockchainIdentifier = "block-123"
		resp.Data.SubmitResultTime = 1708128000000
		resp.Data.UnlockTime = 1708131600000
		resp.Data.ExternalDisputeUnlockTime = 1708135200000
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL, 5*time.Second)
	inst, err := c.CreateInstrument(context.Background(), CreateInstrumentRequest{
		JobID:       jobID,
		RequesterID: "purchaser-1",
		Amounts:     []models.Amount{{Amount: "5000000", Unit: "lovelace"}},
		InputHash:   "abc123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inst.PaymentID != "block-123" {
		t.Errorf("unexpected payment id: %s", inst.PaymentID)
	}
	if inst.JobID != jobID {
		t.Errorf("instrument not bound to job")
	}
	if inst.AgentIdentifier != "agent-1" || inst.SellerVKey != "vkey-1" {
		t.Errorf("payee identity not carried: %+v", inst)
	}
	wantSubmit := time.UnixMilli(1708128000000).UTC()
	if !inst.SubmitResultTime.Equal(wantSubmit) {
		t.Errorf("unexpected submit result time: %v", inst.SubmitResultTime)
	}
}

func TestCreateInstrument_MissingIdentifier(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{}}`))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL, 5*time.Second)
	_, err := c.CreateInstrument(context.Background(), CreateInstrumentRequest{JobID: uuid.New()})
	if !errors.Is(err, ErrPaymentRequestFailed) {
		t.Fatalf("expected ErrPaymentRequestFailed, got %v", err)
	}
}

func TestCreateInstrument_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL, 5*time.Second)
	_, err := c.CreateInstrument(context.Background(), CreateInstrumentRequest{JobID: uuid.New()})
	if !errors.Is(err, ErrPaymentRequestFailed) {
		t.Fatalf("expected ErrPaymentRequestFailed, got %v", err)
	}
}

func TestCreateInstrument_Unreachable(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1", 2*time.Second)
	_, err := c.CreateInstrument(context.Background(), CreateInstrumentRequest{JobID: uuid.New()})
	if !errors.Is(err, ErrPaymentUnreachable) {
		t.Fatalf("expected ErrPaymentUnreachable, got %v", err)
	}
}

func TestCheckStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payment/block-123" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"status":"FundsLocked"}}`))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL, 5*time.Second)
	status, err := c.CheckStatus(context.Background(), "block-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != "FundsLocked" {
		t.Errorf("unexpected status: %s", status)
	}
}

func TestCheckStatus_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := newTestClient(ts.URL, 5*time.Second)
	_, err := c.CheckStatus(ctx, "block-123")
	if !errors.Is(err, ErrPaymentTimeout) {
		t.Fatalf("expected ErrPaymentTimeout, got %v", err)
	}
}

func TestCompleteInstrument(t *testing.T) {
	var gotBody completePaymentRequest

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payment/block-123/complete" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL, 5*time.Second)
	err := c.CompleteInstrument(context.Background(), "block-123", json.RawMessage(`{"projectId":"p1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(gotBody.Result) != `{"projectId":"p1"}` {
		t.Errorf("result not forwarded: %s", gotBody.Result)
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("create_project", json.RawMessage(`{"repoUrl":"x"}`))
	b := Fingerprint("create_project", json.RawMessage(`{"repoUrl":"x"}`))
	if a != b {
		t.Errorf("fingerprint not deterministic")
	}
	if len(a) != 64 {
		t.Errorf("expected sha256 hex digest, got %q", a)
	}

	c := Fingerprint("interact", json.RawMessage(`{"repoUrl":"x"}`))
	if a == c {
		t.Errorf("different actions must not collide")
	}
}
