// Package client provides the authenticated scheduling-portal client. It
// owns the login state machine, injects the session credential into every
// call, and transparently recovers from the portal's silent session expiry.
package client

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/frontline-tools/portal-client/pkg/session"
	"github.com/frontline-tools/portal-client/pkg/transport"
)

// Prometheus metrics for session operations.
var (
	portalLoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_logins_total",
		Help: "Total login attempts by result",
	}, []string{"result"})

	portalSessionLossTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_session_loss_total",
		Help: "Total session-loss signals detected on authenticated calls",
	})

	portalReloginsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_relogins_total",
		Help: "Total transparent re-logins triggered by session loss",
	})
)

// Client is an authenticated portal client. It is safe for concurrent use;
// workers read immutable credential snapshots and re-login is funneled
// through a single-flight guard.
type Client struct {
	config  Config
	baseURL *url.URL

	// transport carries authenticated traffic. It has no cookie jar;
	// the credential is injected per request from a session snapshot.
	transport *transport.Transport

	// loginTransport carries the unauthenticated login flow. Its jar is
	// the fallback source for the session cookie when the portal sets it
	// on a redirect hop rather than the final response.
	loginTransport *transport.Transport
	loginJar       http.CookieJar

	store  session.Store
	logger zerolog.Logger

	mu    sync.Mutex // guards state
	state *session.State

	loginGroup singleflight.Group
}

// New creates a portal client from the given configuration.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	baseURL, err := url.Parse(cfg.Credentials.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	loginTransport := transport.New(cfg.Transport)
	loginTransport.SetHTTPClient(&http.Client{
		Timeout: httpTimeout(cfg.Transport.Timeout),
		Jar:     jar,
	})

	return &Client{
		config:         cfg,
		baseURL:        baseURL,
		transport:      transport.New(cfg.Transport),
		loginTransport: loginTransport,
		loginJar:       jar,
		store:          cfg.Store,
		logger:         log.With().Str("component", "portal-client").Logger(),
		state:          session.NewState(cfg.SessionTTL),
	}, nil
}

func httpTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 30 * time.Second
	}
	return timeout
}

// State returns the session state (for testing and diagnostics). Callers
// must not mutate it while requests are in flight.
func (c *Client) State() *session.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Authenticated reports whether an unexpired session is currently held.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Valid()
}

// SetTransports overrides both transports (for testing).
func (c *Client) SetTransports(authenticated, login *transport.Transport) {
	c.transport = authenticated
	c.loginTransport = login
}

// endpointURL joins the base URL with a portal path.
func (c *Client) endpointURL(path string) string {
	base := strings.TrimSuffix(c.config.Credentials.BaseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
