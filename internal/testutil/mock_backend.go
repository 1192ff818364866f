// Package testutil provides testing utilities for the kopkar client.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// APIPrefix is the path under which the mock serves endpoints, mirroring
// the real deployment's "/<app>/api/v1/".
const APIPrefix = "/kopkar/api/v1/"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request as seen by the mock.
type RecordedRequest struct {
	Method   string
	Endpoint string
	Header   http.Header
	Body     []byte
	At       time.Time
}

// MockBackend is a configurable mock of the cooperative API.
type MockBackend struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockBackend starts a mock backend server.
func NewMockBackend() *MockBackend {
	mock := &MockBackend{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := strings.TrimPrefix(r.URL.Path, APIPrefix)
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Method:   r.Method,
			Endpoint: endpoint,
			Header:   r.Header.Clone(),
			Body:     body,
			At:       time.Now(),
		})
		handler, exists := mock.handlers[endpoint]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server root URL.
func (m *MockBackend) URL() string {
	return m.server.URL
}

// BaseURL returns the API base URL to configure clients with.
func (m *MockBackend) BaseURL() string {
	return m.server.URL + APIPrefix
}

// Close shuts down the mock server.
func (m *MockBackend) Close() {
	m.server.Close()
}

// Reset clears recorded requests and handlers.
func (m *MockBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.handlers = make(map[string]http.HandlerFunc)
}

// SetHandler sets a custom handler for an endpoint such as "trx/loan".
func (m *MockBackend) SetHandler(endpoint string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[strings.TrimPrefix(endpoint, "/")] = handler
}

// SetResponse configures a fixed response for an endpoint.
func (m *MockBackend) SetResponse(endpoint string, resp MockResponse) {
	m.SetHandler(endpoint, resp.Write)
}

// SetSequence answers successive calls with successive responses. The
// last response repeats once the sequence is used up.
func (m *MockBackend) SetSequence(endpoint string, resps ...MockResponse) {
	if len(resps) == 0 {
		panic("testutil: empty response sequence")
	}

	var mu sync.Mutex
	call := 0
	m.SetHandler(endpoint, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		i := call
		if i >= len(resps) {
			i = len(resps) - 1
		}
		call++
		mu.Unlock()

		resps[i].Write(w, r)
	})
}

// RequestCount returns the number of requests received.
func (m *MockBackend) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// CountFor returns the number of requests received for endpoint.
func (m *MockBackend) CountFor(endpoint string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, r := range m.requests {
		if r.Endpoint == endpoint {
			n++
		}
	}
	return n
}

// Requests returns a copy of all recorded requests in arrival order.
func (m *MockBackend) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// LastRequest returns the most recent request.
func (m *MockBackend) LastRequest() (RecordedRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return RecordedRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// defaultHandler answers unknown endpoints the way the backend does.
func (m *MockBackend) defaultHandler(w http.ResponseWriter, r *http.Request) {
	NewErrorResponse(http.StatusNotFound, "endpoint not found").Write(w, r)
}

// Write serves resp, honouring its delay unless the request goes away first.
func (resp MockResponse) Write(w http.ResponseWriter, r *http.Request) {
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewJSONResponse creates a response with a raw JSON body.
func NewJSONResponse(status int, body string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewSuccessResponse creates a 200 response carrying statusCode 200, a
// message and the given extra top-level fields.
func NewSuccessResponse(message string, fields map[string]any) MockResponse {
	body := map[string]any{
		"statusCode": http.StatusOK,
		"message":    message,
	}
	for k, v := range fields {
		body[k] = v
	}
	b, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("testutil: encode success body: %v", err))
	}
	return NewJSONResponse(http.StatusOK, string(b))
}

// NewErrorResponse creates a backend-style error with matching HTTP and
// body status codes.
func NewErrorResponse(status int, message string) MockResponse {
	b, _ := json.Marshal(map[string]any{
		"statusCode": status,
		"message":    message,
	})
	return NewJSONResponse(status, string(b))
}

// NewTextResponse creates a non-JSON response, as a proxy error page would be.
func NewTextResponse(status int, text string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       text,
		Headers: map[string]string{
			"Content-Type": "text/plain; charset=utf-8",
		},
	}
}

// WithDelay returns resp delayed by d.
func WithDelay(resp MockResponse, d time.Duration) MockResponse {
	resp.Delay = d
	return resp
}
