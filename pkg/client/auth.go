package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/frontline-tools/portal-client/pkg/session"
)

// loginPath is the portal's fixed authentication endpoint.
const loginPath = "/login/authenticate"

// profilePath returns the authenticated user's record.
const profilePath = "/user/profile"

// logoutPath ends the session on the portal side.
const logoutPath = "/login/logout"

// loginRequest is the wire shape of the authentication call.
type loginRequest struct {
	UserType string `json:"UserType"`
	UserID   string `json:"UserID"`
	Password string `json:"Password"`
	Timezone string `json:"Timezone"`
}

// Login authenticates against the portal.
//
// It returns (false, nil) for a normal credential rejection (401, classified
// failure, or an unclassifiable JSON body) and an error only for unexpected
// transport failures. On success the session state is populated from the
// response's session cookie and a best-effort profile fetch is performed;
// neither a missing cookie nor a failed profile fetch fails the login.
func (c *Client) Login(ctx context.Context) (bool, error) {
	c.mu.Lock()
	c.state.SetStatus(session.StatusLoggingIn)
	c.mu.Unlock()

	succeeded := false
	defer func() {
		if !succeeded {
			c.mu.Lock()
			c.state.Invalidate()
			c.mu.Unlock()
		}
	}()

	body, err := json.Marshal(loginRequest{
		UserType: c.config.Credentials.UserType,
		UserID:   c.config.Credentials.UserID,
		Password: c.config.Credentials.Password,
		Timezone: c.config.Credentials.Timezone,
	})
	if err != nil {
		return false, fmt.Errorf("marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(loginPath), bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setBrowserHeaders(req)

	resp, err := c.loginTransport.Do(req)
	if err != nil {
		portalLoginsTotal.WithLabelValues("transport_error").Inc()
		return false, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		portalLoginsTotal.WithLabelValues("transport_error").Inc()
		return false, fmt.Errorf("read login response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn().Str("user_id", c.config.Credentials.UserID).Msg("Login rejected (401)")
		portalLoginsTotal.WithLabelValues("rejected").Inc()
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Msg("Login failed with unexpected status")
		portalLoginsTotal.WithLabelValues("failed").Inc()
		return false, nil
	}

	outcome := classifyLogin(respBody)
	c.logger.Debug().
		Str("rule", outcome.Rule).
		Bool("success", outcome.Success).
		Msg("Login response classified")

	if !outcome.Success {
		portalLoginsTotal.WithLabelValues("rejected").Inc()
		return false, nil
	}

	credential := c.extractSessionCookie(resp)
	if credential == "" && outcome.SessionID != "" {
		credential = outcome.SessionID
	}
	if credential == "" {
		// Some portal deployments set the cookie only on the first
		// authenticated call; proceed and let the executor cope.
		c.logger.Warn().
			Str("cookie", c.config.Credentials.cookieName()).
			Msg("Login succeeded but session cookie not found")
	}

	c.mu.Lock()
	c.state.Authenticate(credential, outcome.User)
	c.mu.Unlock()
	succeeded = true
	portalLoginsTotal.WithLabelValues("success").Inc()

	c.logger.Info().
		Str("user_id", c.config.Credentials.UserID).
		Str("rule", outcome.Rule).
		Msg("Login succeeded")

	if outcome.User == nil {
		c.fetchProfile(ctx, credential)
	}
	c.persistSession(ctx)

	return true, nil
}

// extractSessionCookie reads the session cookie from the login response,
// falling back to the login transport's persistent cookie jar (the portal
// sometimes sets the cookie on an intermediate redirect hop).
func (c *Client) extractSessionCookie(resp *http.Response) string {
	name := c.config.Credentials.cookieName()

	for _, cookie := range resp.Cookies() {
		if cookie.Name == name {
			return cookie.Value
		}
	}

	for _, cookie := range c.loginJar.Cookies(c.baseURL) {
		if cookie.Name == name {
			return cookie.Value
		}
	}

	return ""
}

// fetchProfile performs the best-effort post-login profile fetch. Failure is
// logged and ignored; the session stays valid without a profile.
func (c *Client) fetchProfile(ctx context.Context, credential string) {
	resp, err := c.do(ctx, http.MethodGet, profilePath, RequestOptions{}, credential)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Profile fetch failed")
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("Profile fetch failed")
		return
	}
	if !json.Valid(resp.Body) {
		c.logger.Warn().Msg("Profile fetch returned non-JSON body")
		return
	}

	c.mu.Lock()
	c.state.SetProfile(json.RawMessage(resp.Body))
	c.mu.Unlock()
}

// persistSession saves the current credential to the configured store,
// best effort.
func (c *Client) persistSession(ctx context.Context) {
	if c.store == nil {
		return
	}

	c.mu.Lock()
	entry := session.Entry{
		Credential:      c.state.Credential(),
		AuthenticatedAt: c.state.AuthenticatedAt(),
		Profile:         c.state.Profile(),
	}
	c.mu.Unlock()
	if entry.Credential == "" {
		return
	}

	if err := c.store.Save(ctx, c.sessionStoreKey(), entry, c.config.SessionTTL); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to persist session")
	}
}

// restoreSession tries to adopt a persisted credential instead of logging
// in. Returns true if a live credential was restored.
func (c *Client) restoreSession(ctx context.Context) bool {
	if c.store == nil {
		return false
	}

	entry, err := c.store.Load(ctx, c.sessionStoreKey())
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			c.logger.Warn().Err(err).Msg("Session store load failed")
		}
		return false
	}

	c.mu.Lock()
	c.state.Restore(entry.Credential, entry.AuthenticatedAt, entry.Profile)
	valid := c.state.Valid()
	c.mu.Unlock()

	if !valid {
		return false
	}

	c.logger.Info().Msg("Restored persisted session")
	return true
}

// dropPersistedSession deletes the stored credential, best effort. Called on
// detected session loss so siblings do not adopt a dead credential.
func (c *Client) dropPersistedSession(ctx context.Context) {
	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, c.sessionStoreKey()); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to drop persisted session")
	}
}

// sessionStoreKey identifies this account's session in the store.
func (c *Client) sessionStoreKey() string {
	return c.config.Credentials.BaseURL + "|" + c.config.Credentials.UserID
}

// Logout clears local state, drops the persisted credential, and makes a
// best-effort logout call to the portal.
func (c *Client) Logout(ctx context.Context) {
	c.mu.Lock()
	credential := c.state.Credential()
	c.state.Invalidate()
	c.mu.Unlock()

	c.dropPersistedSession(ctx)

	if credential == "" {
		return
	}
	if _, err := c.do(ctx, http.MethodPost, logoutPath, RequestOptions{}, credential); err != nil {
		c.logger.Debug().Err(err).Msg("Remote logout failed")
	}
}

// setBrowserHeaders applies the browser-mimicking headers the portal's login
// flow expects.
func (c *Client) setBrowserHeaders(req *http.Request) {
	base := c.config.Credentials.BaseURL
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Origin", base)
	req.Header.Set("Referer", base+"/login")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("sec-ch-ua", `"Chromium";v="120", "Not_A Brand";v="8"`)
	req.Header.Set("sec-ch-ua-mobile", "?0")
	req.Header.Set("sec-ch-ua-platform", `"Windows"`)
	req.Header.Set("User-Agent", c.config.UserAgent)
}
