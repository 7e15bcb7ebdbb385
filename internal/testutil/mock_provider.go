// Package testutil provides testing utilities for the joke pool.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for one mock provider answer.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockProvider is a configurable mock joke provider. It serves queued responses in order
// and falls back to the default response once the queue is empty.
type MockProvider struct {
	server *httptest.Server

	mu       sync.Mutex
	queue    []MockResponse
	fallback MockResponse
	handler  http.HandlerFunc

	requestCount      int
	lastRequestHeader http.Header
}

// NewMockProvider creates a new mock provider answering 200 with a fixed joke by default.
func NewMockProvider() *MockProvider {
	mock := &MockProvider{
		fallback: NewJokeResponse("general", "Why did the chicken cross the road?", "To get to the other side."),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.lastRequestHeader = r.Header.Clone()

		handler := mock.handler
		var resp MockResponse
		if len(mock.queue) > 0 {
			resp = mock.queue[0]
			mock.queue = mock.queue[1:]
		} else {
			resp = mock.fallback
		}
		mock.mu.Unlock()

		if handler != nil {
			handler(w, r)
			return
		}
		writeResponse(w, r, resp)
	}))

	return mock
}

// URL returns the mock endpoint URL.
func (m *MockProvider) URL() string {
	return m.server.URL + "/random_joke"
}

// Close shuts down the mock server.
func (m *MockProvider) Close() {
	m.server.Close()
}

// Reset clears tracking counters and queued responses.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.lastRequestHeader = nil
	m.queue = nil
}

// Enqueue appends responses served before the fallback.
func (m *MockProvider) Enqueue(resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resps...)
}

// SetFallback sets the response served once the queue is empty.
func (m *MockProvider) SetFallback(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
}

// SetHandler overrides all responses with a custom handler.
func (m *MockProvider) SetHandler(handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// RequestCount returns the number of requests made to the server.
func (m *MockProvider) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// LastRequestHeader returns the headers of the latest request.
func (m *MockProvider) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequestHeader
}

func writeResponse(w http.ResponseWriter, r *http.Request, resp MockResponse) {
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
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewJokeResponse creates a 200 OK response in the provider's wire shape.
func NewJokeResponse(category, setup, punchline string) MockResponse {
	body, _ := json.Marshal(map[string]any{
		"id":        1,
		"type":      category,
		"setup":     setup,
		"punchline": punchline,
	})
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewNotFoundResponse creates a 404 response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": "Not found"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewInvalidBodyResponse creates a 200 response missing the punchline.
func NewInvalidBodyResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"type": "general", "setup": "Knock knock.", "punchline": null}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
