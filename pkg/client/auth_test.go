package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/frontline-tools/portal-client/internal/testutil"
)

func newTestClient(t *testing.T, portal *testutil.MockPortal) *Client {
	t.Helper()

	cfg := DefaultConfig(Credentials{
		BaseURL:  portal.URL(),
		UserType: "Employee",
		UserID:   "alice",
		Password: "secret",
		Timezone: "Eastern Standard Time",
	})
	cfg.Transport.MaxAttempts = 2
	cfg.Transport.InitialBackoff = time.Millisecond
	cfg.Transport.MaxBackoff = 5 * time.Millisecond

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{"missing base URL", Credentials{UserID: "a", Password: "p"}},
		{"missing user ID", Credentials{BaseURL: "https://p.test", Password: "p"}},
		{"missing password", Credentials{BaseURL: "https://p.test", UserID: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(DefaultConfig(tt.creds)); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestLoginRejected401(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetLoginRejected()

	c := newTestClient(t, portal)

	ok, err := c.Login(context.Background())
	if err != nil {
		t.Fatalf("Login must not error on a normal rejection: %v", err)
	}
	if ok {
		t.Error("Login = true for rejected credentials")
	}
	if c.Authenticated() {
		t.Error("Client should not be authenticated after rejection")
	}
}

func TestLoginSuccessExtractsCookie(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetLoginSuccess(defaultSessionCookie, "cookie-v1")

	c := newTestClient(t, portal)

	ok, err := c.Login(context.Background())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !ok {
		t.Fatal("Login = false, want true")
	}
	if !c.Authenticated() {
		t.Error("Client should be authenticated")
	}
	if got := c.State().Credential(); got != "cookie-v1" {
		t.Errorf("Credential = %q, want cookie-v1", got)
	}
}

func TestLoginSendsWireContract(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()

	var received map[string]string
	portal.SetHandler("/login/authenticate", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		// Inline user keeps the login call the only portal request, so
		// LastRequestHeader below is the login request's headers.
		w.Write([]byte(`{"success": true, "user": {"name": "Alice"}}`))
	})

	c := newTestClient(t, portal)
	if _, err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}

	want := map[string]string{
		"UserType": "Employee",
		"UserID":   "alice",
		"Password": "secret",
		"Timezone": "Eastern Standard Time",
	}
	for key, value := range want {
		if received[key] != value {
			t.Errorf("Login body %s = %q, want %q", key, received[key], value)
		}
	}

	headers := portal.LastRequestHeader
	for _, header := range []string{"Origin", "Referer", "User-Agent", "Sec-Fetch-Site"} {
		if headers.Get(header) == "" {
			t.Errorf("Login request missing %s header", header)
		}
	}
}

func TestLoginMissingCookieStillSucceeds(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetResponse("/login/authenticate", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"success": true}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	c := newTestClient(t, portal)

	ok, err := c.Login(context.Background())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !ok {
		t.Error("Login = false; a missing cookie must not fail the login")
	}
	if !c.Authenticated() {
		t.Error("Client should be authenticated despite missing cookie")
	}
}

func TestLoginSessionIDFromBodyFallback(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetResponse("/login/authenticate", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"success": true, "sessionId": "body-session"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	c := newTestClient(t, portal)

	if _, err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := c.State().Credential(); got != "body-session" {
		t.Errorf("Credential = %q, want body-session", got)
	}
}

func TestLoginFetchesProfileBestEffort(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetLoginSuccess(defaultSessionCookie, "cookie-v1")
	portal.SetResponse("/user/profile", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"name": "Alice", "role": "Supervisor"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	c := newTestClient(t, portal)

	if _, err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}

	var profile map[string]string
	if err := json.Unmarshal(c.State().Profile(), &profile); err != nil {
		t.Fatalf("Profile not stored: %v", err)
	}
	if profile["name"] != "Alice" {
		t.Errorf("Profile name = %q", profile["name"])
	}
}

func TestLoginProfileFailureDoesNotFailLogin(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetLoginSuccess(defaultSessionCookie, "cookie-v1")
	// No /user/profile handler: the fetch 404s.

	c := newTestClient(t, portal)

	ok, err := c.Login(context.Background())
	if err != nil || !ok {
		t.Fatalf("Login = %v, %v; profile failure must not fail login", ok, err)
	}
	if c.State().Profile() != nil {
		t.Error("Profile should be nil after failed fetch")
	}
}

func TestLoginInlineUserSkipsProfileFetch(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetResponse("/login/authenticate", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"success": true, "user": {"name": "Alice"}}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Cookies:    []*http.Cookie{{Name: defaultSessionCookie, Value: "v1", Path: "/"}},
	})

	c := newTestClient(t, portal)

	if _, err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}

	requests := portal.Requests()
	if requests != 1 {
		t.Errorf("Portal saw %d requests, want 1 (no profile fetch with inline user)", requests)
	}
	if len(c.State().Profile()) == 0 {
		t.Error("Inline user record not stored as profile")
	}
}

func TestLogoutClearsState(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetLoginSuccess(defaultSessionCookie, "cookie-v1")
	portal.SetResponse("/login/logout", testutil.MockResponse{StatusCode: http.StatusOK})

	c := newTestClient(t, portal)

	if _, err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}

	c.Logout(context.Background())

	if c.Authenticated() {
		t.Error("Client still authenticated after logout")
	}
	if c.State().Credential() != "" {
		t.Error("Credential survived logout")
	}
}
