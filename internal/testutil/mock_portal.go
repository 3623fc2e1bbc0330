// Package testutil provides testing utilities for the portal client.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock portal endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Cookies    []*http.Cookie
	Delay      time.Duration
}

// MockPortal is a configurable mock scheduling portal for testing.
type MockPortal struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LoginCount        int
	LastRequestHeader http.Header
}

// NewMockPortal creates a new mock portal server.
func NewMockPortal() *MockPortal {
	mock := &MockPortal{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		if r.URL.Path == "/login/authenticate" {
			mock.LoginCount++
		}
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockPortal) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPortal) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockPortal) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LoginCount = 0
	m.LastRequestHeader = nil
}

// Logins returns the number of authentication requests received.
func (m *MockPortal) Logins() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LoginCount
}

// Requests returns the total number of requests received.
func (m *MockPortal) Requests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// SetHandler sets a custom handler for a specific path.
func (m *MockPortal) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockPortal) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		for _, cookie := range resp.Cookies {
			http.SetCookie(w, cookie)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetLoginSuccess configures the authentication endpoint to accept any
// credentials, answering with a JSON success flag and setting the session
// cookie to the given value.
func (m *MockPortal) SetLoginSuccess(cookieName, cookieValue string) {
	m.SetResponse("/login/authenticate", MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"success": true}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Cookies: []*http.Cookie{{
			Name:  cookieName,
			Value: cookieValue,
			Path:  "/",
		}},
	})
}

// SetLoginRejected configures the authentication endpoint to reject all
// credentials with a 401.
func (m *MockPortal) SetLoginRejected() {
	m.SetResponse("/login/authenticate", MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"success": false, "message": "Invalid credentials"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})
}

// RequireSession wraps a handler so it answers 401 unless the request
// carries the expected session cookie. valid is consulted per request, so
// tests can rotate the accepted credential.
func (m *MockPortal) RequireSession(path, cookieName string, valid func(value string) bool, handler func(w http.ResponseWriter, r *http.Request)) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(cookieName)
		if err != nil || !valid(cookie.Value) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Authentication required"))
			return
		}
		handler(w, r)
	})
}
