package testhelpers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// APIRequest is a service call captured by MockAPIServer.
type APIRequest struct {
	Method string
	// Path is the decoded request path
	Path   string
	Query  map[string][]string
	Header http.Header
	Body   []byte
}

// MockAPIServer records every request and answers with a fixed status and
// body.
type MockAPIServer struct {
	Server *httptest.Server

	// StatusCode to return (200 if not set)
	StatusCode int
	// ResponseBody is written for every request
	ResponseBody string
	// ETag is returned in the ETag header when set
	ETag string

	mu       sync.Mutex
	requests []APIRequest
}

// SetupMockAPIServer creates a mock service host. The server is closed when
// the test completes.
func SetupMockAPIServer(t *testing.T) *MockAPIServer {
	t.Helper()

	mock := &MockAPIServer{
		StatusCode:   http.StatusOK,
		ResponseBody: `{"value":[]}`,
	}

	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.requests = append(mock.requests, APIRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		mock.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if mock.ETag != "" {
			w.Header().Set("ETag", mock.ETag)
		}
		w.WriteHeader(mock.StatusCode)
		_, _ = io.WriteString(w, mock.ResponseBody)
	}))
	t.Cleanup(mock.Server.Close)

	return mock
}

// Endpoints maps each service name to a base URL on this server, prefixed
// with the name so a request path shows which service it was sent to.
func (m *MockAPIServer) Endpoints(names ...string) map[string]string {
	endpoints := make(map[string]string, len(names))
	for _, name := range names {
		endpoints[name] = m.Server.URL + "/" + name
	}
	return endpoints
}

// Requests returns the captured requests in arrival order.
func (m *MockAPIServer) Requests() []APIRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]APIRequest(nil), m.requests...)
}

// LastRequest returns the most recent request.
func (m *MockAPIServer) LastRequest() APIRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.requests) == 0 {
		return APIRequest{}
	}
	return m.requests[len(m.requests)-1]
}
