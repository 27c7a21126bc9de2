package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jedilabs/paygate/internal/engine"
	"github.com/jedilabs/paygate/internal/payment"
	"github.com/jedilabs/paygate/pkg/models"
)

// --- mock GatedJobCreator ---

type mockCreator struct {
	fn func(params engine.CreateGatedJobParams) (*engine.GatedJobReceipt, error)
}

func (m *mockCreator) CreateGatedJob(_ context.Context, params engine.CreateGatedJobParams) (*engine.GatedJobReceipt, error) {
	return m.fn(params)
}

func successCreator() *mockCreator {
	return &mockCreator{fn: func(params engine.CreateGatedJobParams) (*engine.GatedJobReceipt, error) {
		return &engine.GatedJobReceipt{
			JobID:       uuid.New(),
			PaymentID:   "blockchain-id-1",
			RequesterID: params.RequesterID,
			Amounts:     []models.Amount{{Amount: "5000000", Unit: "lovelace"}},
			InputHash:   "abc123",
		}, nil
	}}
}

// --- helpers ---

func postJSON(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	b, _ := json.Marshal(body)
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func parseAccepted(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env.Data
}

func parseErr(t *testing.T, rec *httptest.ResponseRecorder) (int, string) {
	t.Helper()
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, env.Error.Code
}

// --- create_project ---

func TestCreateProjectHandler_Success(t *testing.T) {
	var got engine.CreateGatedJobParams
	creator := &mockCreator{fn: func(params engine.CreateGatedJobParams) (*engine.GatedJobReceipt, error) {
		got = params
		return successCreator().fn(params)
	}}
	h := NewCreateProjectHandler(creator)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, postJSON(t, "/create_project", map[string]any{
		"identifier_from_purchaser": "purchaser-1",
		"repoUrl":                   "https://github.com/acme/widgets.git",
		"walletAddress":             "addr1xyz",
	}))

	data := parseAccepted(t, rec)
	if data["blockchainIdentifier"] != "blockchain-id-1" {
		t.Errorf("unexpected payment id: %v", data["blockchainIdentifier"])
	}

	if got.Action != models.ActionCreateProject {
		t.Errorf("unexpected action: %s", got.Action)
	}
	if got.Payload.Endpoint != "/api/projects/create" {
		t.Errorf("unexpected endpoint: %s", got.Payload.Endpoint)
	}
	if !strings.HasPrefix(got.ResourceKey, "widgets-") {
		t.Errorf("resource key not derived from repo name: %s", got.ResourceKey)
	}

	// The derived project ID travels in the dispatch data too
	var payload map[string]any
	if err := json.Unmarshal(got.Payload.Data, &payload); err != nil {
		t.Fatalf("decode payload data: %v", err)
	}
	if payload["projectId"] != got.ResourceKey {
		t.Errorf("projectId %v does not match resource key %s", payload["projectId"], got.ResourceKey)
	}
	if payload["side"] != "light" {
		t.Errorf("side should default to light, got %v", payload["side"])
	}
}

func TestCreateProjectHandler_DistinctProjectIDs(t *testing.T) {
	keys := map[string]bool{}
	creator := &mockCreator{fn: func(params engine.CreateGatedJobParams) (*engine.GatedJobReceipt, error) {
		keys[params.ResourceKey] = true
		return successCreator().fn(params)
	}}
	h := NewCreateProjectHandler(creator)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, postJSON(t, "/create_project", map[string]any{
			"identifier_from_purchaser": "purchaser-1",
			"repoUrl":                   "https://github.com/acme/widgets",
			"walletAddress":             "addr1xyz",
		}))
		parseAccepted(t, rec)
	}

	if len(keys) != 3 {
		t.Errorf("expected 3 distinct project IDs, got %d", len(keys))
	}
}

func TestCreateProjectHandler_MissingFields(t *testing.T) {
	h := NewCreateProjectHandler(successCreator())

	cases := []map[string]any{
		{"repoUrl": "https://github.com/acme/widgets", "walletAddress": "addr1"},
		{"identifier_from_purchaser": "p1", "walletAddress": "addr1"},
		{"identifier_from_purchaser": "p1", "repoUrl": "https://github.com/acme/widgets"},
	}
	for i, body := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, postJSON(t, "/create_project", body))
		if code, errCode := parseErr(t, rec); code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
			t.Errorf("case %d: expected 400 INVALID_REQUEST, got %d %s", i, code, errCode)
		}
	}
}

func TestCreateProjectHandler_InvalidSide(t *testing.T) {
	h := NewCreateProjectHandler(successCreator())
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, postJSON(t, "/create_project", map[string]any{
		"identifier_from_purchaser": "p1",
		"repoUrl":                   "https://github.com/acme/widgets",
		"walletAddress":             "addr1",
		"side":                      "grey",
	}))

	if code, errCode := parseErr(t, rec); code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Errorf("expected 400 INVALID_REQUEST, got %d %s", code, errCode)
	}
}

func TestCreateProjectHandler_UnusableRepoURL(t *testing.T) {
	h := NewCreateProjectHandler(successCreator())
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, postJSON(t, "/create_project", map[string]any{
		"identifier_from_purchaser": "p1",
		"repoUrl":                   "https://github.com",
		"walletAddress":             "addr1",
	}))

	if code, _ := parseErr(t, rec); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bare host repo URL, got %d", code)
	}
}

func TestCreateProjectHandler_PaymentNetworkDown(t *testing.T) {
	creator := &mockCreator{fn: func(engine.CreateGatedJobParams) (*engine.GatedJobReceipt, error) {
		return nil, fmt.Errorf("creating payment instrument: %w", payment.ErrPaymentUnreachable)
	}}
	h := NewCreateProjectHandler(creator)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, postJSON(t, "/create_project", map[string]any{
		"identifier_from_purchaser": "p1",
		"repoUrl":                   "https://github.com/acme/widgets",
		"walletAddress":             "addr1",
	}))

	if code, errCode := parseErr(t, rec); code != http.StatusBadGateway || errCode != "PAYMENT_NETWORK_ERROR" {
		t.Errorf("expected 502 PAYMENT_NETWORK_ERROR, got %d %s", code, errCode)
	}
}

// --- interact ---

func TestInteractHandler_Success(t *testing.T) {
	var got engine.CreateGatedJobParams
	creator := &mockCreator{fn: func(params engine.CreateGatedJobParams) (*engine.GatedJobReceipt, error) {
		got = params
		return successCreator().fn(params)
	}}
	h := NewInteractHandler(creator)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, postJSON(t, "/interact", map[string]any{
		"identifier_from_purchaser": "purchaser-1",
		"projectId":                 "widgets-42",
		"prompt":                    "summarize the roadmap",
	}))

	parseAccepted(t, rec)
	if got.Action != models.ActionInteract {
		t.Errorf("unexpected action: %s", got.Action)
	}
	if got.Payload.Endpoint != "/api/projects/widgets-42/interact" {
		t.Errorf("unexpected endpoint: %s", got.Payload.Endpoint)
	}
}

func TestInteractHandler_MissingPrompt(t *testing.T) {
	h := NewInteractHandler(successCreator())
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, postJSON(t, "/interact", map[string]any{
		"identifier_from_purchaser": "purchaser-1",
		"projectId":                 "widgets-42",
	}))

	if code, errCode := parseErr(t, rec); code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Errorf("expected 400 INVALID_REQUEST, got %d %s", code, errCode)
	}
}

// --- analyze ---

func TestAnalyzeHandler_Success(t *testing.T) {
	var got engine.CreateGatedJobParams
	creator := &mockCreator{fn: func(params engine.CreateGatedJobParams) (*engine.GatedJobReceipt, error) {
		got = params
		return successCreator().fn(params)
	}}
	h := NewAnalyzeHandler(creator)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, postJSON(t, "/analyze", map[string]any{
		"identifier_from_purchaser": "purchaser-1",
		"repoUrl":                   "https://github.com/acme/widgets",
		"projectKey":                "widgets",
	}))

	parseAccepted(t, rec)
	if got.Action != models.ActionAnalyze {
		t.Errorf("unexpected action: %s", got.Action)
	}

	var payload map[string]any
	if err := json.Unmarshal(got.Payload.Data, &payload); err != nil {
		t.Fatalf("decode payload data: %v", err)
	}
	if payload["userId"] != "anonymous" {
		t.Errorf("userId should default to anonymous, got %v", payload["userId"])
	}
}

func TestAnalyzeHandler_InvalidJSON(t *testing.T) {
	h := NewAnalyzeHandler(successCreator())
	rec := httptest.NewRecorder()

	r := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader([]byte("{not json")))
	h.ServeHTTP(rec, r)

	if code, errCode := parseErr(t, rec); code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Errorf("expected 400 INVALID_REQUEST, got %d %s", code, errCode)
	}
}
