package testhelpers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// UAARequest is a token request captured by MockUAAServer.
type UAARequest struct {
	AuthHeader string
	Body       string
	Form       url.Values
}

// MockUAAServer is a configurable UAA token endpoint. It answers
// POST /oauth/token and, when KeySet is set, GET /token_keys.
type MockUAAServer struct {
	Server *httptest.Server

	// StatusCode to return (200 if not set)
	StatusCode int
	// ExpiresIn is reported as the lifetime of issued tokens. Any JSON
	// value is sent as given.
	ExpiresIn any
	// TokenFunc builds the access token for a request. Defaults to a token
	// carrying the requested scopes.
	TokenFunc func(form url.Values) string
	// KeySet is served as the JWKS document
	KeySet []byte

	requestCount       atomic.Int32
	keySetRequestCount atomic.Int32

	mu       sync.Mutex
	requests []UAARequest
}

// SetupMockUAAServer creates a mock UAA. The server is closed when the test
// completes.
func SetupMockUAAServer(t *testing.T) *MockUAAServer {
	t.Helper()

	mock := &MockUAAServer{
		StatusCode: http.StatusOK,
		ExpiresIn:  3600,
	}
	mock.TokenFunc = func(form url.Values) string {
		var scopes []string
		if s := form.Get("scope"); s != "" {
			scopes = strings.Fields(s)
		}
		return ScopedToken(t, scopes...)
	}

	router := http.NewServeMux()

	router.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		mock.requestCount.Add(1)

		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))

		mock.mu.Lock()
		mock.requests = append(mock.requests, UAARequest{
			AuthHeader: r.Header.Get("Authorization"),
			Body:       string(body),
			Form:       form,
		})
		mock.mu.Unlock()

		if mock.StatusCode != http.StatusOK {
			http.Error(w, `{"error":"unauthorized","error_description":"Bad credentials"}`, mock.StatusCode)
			return
		}

		WriteJSON(w, map[string]any{
			"access_token": mock.TokenFunc(form),
			"token_type":   "bearer",
			"expires_in":   mock.ExpiresIn,
		})
	})

	router.HandleFunc("GET /token_keys", func(w http.ResponseWriter, r *http.Request) {
		mock.keySetRequestCount.Add(1)

		if mock.KeySet == nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(mock.KeySet)
	})

	mock.Server = httptest.NewServer(router)
	t.Cleanup(mock.Server.Close)

	return mock
}

// URL is the UAA base URL, as found in a service binding.
func (m *MockUAAServer) URL() string {
	return m.Server.URL
}

// RequestCount is the number of token requests received.
func (m *MockUAAServer) RequestCount() int {
	return int(m.requestCount.Load())
}

// KeySetRequestCount is the number of key set requests received.
func (m *MockUAAServer) KeySetRequestCount() int {
	return int(m.keySetRequestCount.Load())
}

// LastRequest returns the most recent token request.
func (m *MockUAAServer) LastRequest() UAARequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.requests) == 0 {
		return UAARequest{}
	}
	return m.requests[len(m.requests)-1]
}

// WriteJSON is a helper function that writes a JSON response.
// It sets the Content-Type header and marshals the payload to JSON.
func WriteJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(payload)
	if err != nil {
		// In test context, this should never happen with valid test data
		http.Error(w, fmt.Sprintf("failed to marshal JSON: %v", err), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
}
