package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCall_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projects/create" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if body["repoUrl"] != "https://github.com/acme/widgets" {
			t.Errorf("body not forwarded: %v", body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"projectId":"p1"}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 5*time.Second)
	result, err := c.Call(context.Background(), "/api/projects/create", http.MethodPost,
		map[string]string{"repoUrl": "https://github.com/acme/widgets"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != `{"projectId":"p1"}` {
		t.Errorf("unexpected result: %s", result)
	}
}

func TestCall_DefaultsToPost(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST default, got %s", r.Method)
		}
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 5*time.Second)
	if _, err := c.Call(context.Background(), "/x", "", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCall_UnsupportedMethod(t *testing.T) {
	c := NewHTTPClient("http://localhost:3000", 5*time.Second)
	_, err := c.Call(context.Background(), "/x", http.MethodDelete, nil)
	if err == nil {
		t.Fatal("expected error for unsupported method")
	}
}

func TestCall_NonSuccessStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"bad project"}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 5*time.Second)
	_, err := c.Call(context.Background(), "/x", http.MethodPost, nil)
	if !errors.Is(err, ErrDispatchFailed) {
		t.Fatalf("expected ErrDispatchFailed, got %v", err)
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %T", err)
	}
	if statusErr.Code != http.StatusUnprocessableEntity {
		t.Errorf("unexpected code: %d", statusErr.Code)
	}
	if statusErr.Body != `{"error":"bad project"}` {
		t.Errorf("unexpected body: %s", statusErr.Body)
	}
}

func TestCall_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 20*time.Millisecond)
	_, err := c.Call(context.Background(), "/x", http.MethodPost, nil)
	if !errors.Is(err, ErrDispatchTimeout) {
		t.Fatalf("expected ErrDispatchTimeout, got %v", err)
	}
}

func TestCall_EmptyResponseBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 5*time.Second)
	result, err := c.Call(context.Background(), "/x", http.MethodGet, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != "null" {
		t.Errorf("expected null raw message, got %s", result)
	}
}
