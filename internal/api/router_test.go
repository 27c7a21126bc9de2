package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jedilabs/paygate/internal/api"
	mw "github.com/jedilabs/paygate/internal/api/middleware"
	"github.com/jedilabs/paygate/internal/cache"
	"github.com/jedilabs/paygate/internal/store"
	"github.com/jedilabs/paygate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stub store that returns empty results (all auth fails) ---

type stubStore struct{}

func (s *stubStore) Ping(_ context.Context) error { return nil }
func (s *stubStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *stubStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *stubStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (s *stubStore) CreateJob(_ context.Context, _ *models.Job) error          { return nil }
func (s *stubStore) GetJob(_ context.Context, _ uuid.UUID) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) MarkJobRunning(_ context.Context, _ uuid.UUID) (bool, error) {
	return false, nil
}
func (s *stubStore) CompleteJob(_ context.Context, _ uuid.UUID, _ json.RawMessage) error {
	return nil
}
func (s *stubStore) FailJob(_ context.Context, _ uuid.UUID, _ string) error { return nil }
func (s *stubStore) UpdateJobPaymentStatus(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}
func (s *stubStore) ListJobsByStatus(_ context.Context, _ string) ([]*models.Job, error) {
	return nil, nil
}
func (s *stubStore) SetEntitlement(_ context.Context, _ string) error { return nil }
func (s *stubStore) HasEntitlement(_ context.Context, _ string) (bool, error) {
	return false, nil
}

// --- stub cache ---

type stubCache struct{}

func (c *stubCache) Ping(_ context.Context) error { return nil }
func (c *stubCache) SetEntitlement(_ context.Context, _ string, _ time.Duration) error {
	return nil
}
func (c *stubCache) HasEntitlement(_ context.Context, _ string) (bool, error) {
	return false, nil
}
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- router tests ---

func newTestRouter() http.Handler {
	return api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(&stubStore{}),
		RateLimit: mw.NewRateLimit(&stubCache{}, 60),
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
	})
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_DiscoveryEndpoints_Public(t *testing.T) {
	router := newTestRouter()

	for _, path := range []string{"/availability", "/input_schema"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		// Not wired in this test, but reachable without auth
		assert.Equal(t, http.StatusNotImplemented, w.Code, path)
	}
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter()

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/create_project"},
		{"POST", "/interact"},
		{"POST", "/analyze"},
		{"POST", "/setup_info"},
		{"POST", "/setup_socials"},
		{"POST", "/setup_karma"},
		{"POST", "/setup_ip"},
		{"GET", "/status"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "INVALID_TOKEN", errObj["code"])
		})
	}
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// Verify stub types satisfy the real interfaces
var _ store.Store = (*stubStore)(nil)
var _ cache.Cache = (*stubCache)(nil)
