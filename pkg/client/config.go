package client

import (
	"fmt"
	"time"

	"github.com/frontline-tools/portal-client/pkg/session"
	"github.com/frontline-tools/portal-client/pkg/transport"
)

// defaultSessionCookie is the cookie name the portal uses to carry the
// session credential. Observed from live traffic; override via
// Credentials.SessionCookieName if the portal changes it.
const defaultSessionCookie = "ESS_SessionID"

// defaultUserAgent mimics a desktop browser. The portal serves its login
// flow to browsers only and rejects obviously scripted clients.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Credentials is the immutable portal account configuration.
type Credentials struct {
	// BaseURL is the portal root, e.g. "https://portal.example.com".
	BaseURL string

	// UserType, UserID and Password are submitted verbatim to the
	// authentication endpoint.
	UserType string
	UserID   string
	Password string

	// Timezone is the portal's expected timezone string, e.g.
	// "Eastern Standard Time".
	Timezone string

	// SessionCookieName overrides the default session cookie name.
	SessionCookieName string
}

// cookieName returns the effective session cookie name.
func (c Credentials) cookieName() string {
	if c.SessionCookieName != "" {
		return c.SessionCookieName
	}
	return defaultSessionCookie
}

// Config holds the portal client configuration.
type Config struct {
	// Credentials for the portal account.
	Credentials Credentials

	// Transport configures retry and timeout behavior.
	Transport transport.Config

	// SessionTTL is how long a credential is presumed live. The portal
	// never announces expiry, so this is a local assumption.
	SessionTTL time.Duration

	// Store optionally persists credentials so restarts and sibling
	// processes reuse a live session. Nil disables persistence.
	Store session.Store

	// UserAgent overrides the default browser User-Agent.
	UserAgent string
}

// DefaultConfig returns a safe default configuration for the given account.
func DefaultConfig(creds Credentials) Config {
	return Config{
		Credentials: creds,
		Transport:   transport.DefaultConfig(),
		SessionTTL:  30 * time.Minute,
		UserAgent:   defaultUserAgent,
	}
}

// validate checks the configuration for required fields.
func (c Config) validate() error {
	if c.Credentials.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if c.Credentials.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if c.Credentials.Password == "" {
		return fmt.Errorf("password is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive (got %v)", c.SessionTTL)
	}
	return nil
}
