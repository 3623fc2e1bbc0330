package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// Response is a fully-read portal response. The body is buffered because
// session-loss detection needs to inspect it regardless of what the caller
// does next.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// FinalURL is the URL after redirects, used to detect login redirects.
	FinalURL *url.URL
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// RequestOptions controls how an authenticated request is built. At most one
// of JSON, Form, and Multipart may be set.
type RequestOptions struct {
	// Query parameters appended to the endpoint URL.
	Query url.Values

	// JSON body, marshalled with Content-Type application/json.
	JSON any

	// Form body, sent application/x-www-form-urlencoded.
	Form url.Values

	// Multipart form fields, sent multipart/form-data. Several portal read
	// endpoints accept date ranges only in this shape.
	Multipart map[string]string

	// Header entries merged into the request.
	Header http.Header
}

// Execute performs an authenticated request against the portal.
//
// It establishes a session if none is held, injects the session cookie from
// an immutable snapshot, and issues the request through the retrying
// transport. If the response signals session loss it re-authenticates once
// (shared across concurrent callers) and retries the request exactly once;
// a second session-loss signal or any non-2xx status after that surfaces as
// *SessionError.
func (c *Client) Execute(ctx context.Context, method, path string, opts RequestOptions) (*Response, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, &SessionError{Message: "authentication failed", Err: err}
	}

	credential := c.credentialSnapshot()
	resp, err := c.do(ctx, method, path, opts, credential)
	if err != nil {
		return nil, fmt.Errorf("portal request: %w", err)
	}

	if sessionLost(resp) {
		portalSessionLossTotal.Inc()
		c.logger.Warn().
			Str("endpoint", path).
			Int("status", resp.StatusCode).
			Msg("Session loss detected, re-authenticating")

		c.invalidateCredential(ctx, credential)
		if err := c.ensureSession(ctx); err != nil {
			return nil, &SessionError{Message: "re-authentication failed", Response: resp, Err: err}
		}
		portalReloginsTotal.Inc()

		credential = c.credentialSnapshot()
		resp, err = c.do(ctx, method, path, opts, credential)
		if err != nil {
			return nil, fmt.Errorf("portal request after re-login: %w", err)
		}
		if sessionLost(resp) {
			return nil, &SessionError{Message: "session lost again after re-login", Response: resp}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SessionError{
			Message:  fmt.Sprintf("portal returned status %d for %s", resp.StatusCode, path),
			Response: resp,
		}
	}

	return resp, nil
}

// ensureSession guarantees a valid session, restoring a persisted credential
// or logging in as needed. Concurrent callers share one in-flight login.
func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	valid := c.state.Valid()
	c.mu.Unlock()
	if valid {
		return nil
	}

	_, err, _ := c.loginGroup.Do("login", func() (any, error) {
		// Re-check under the guard: a concurrent caller may have just
		// refreshed the session.
		c.mu.Lock()
		valid := c.state.Valid()
		c.mu.Unlock()
		if valid {
			return nil, nil
		}

		if c.restoreSession(ctx) {
			return nil, nil
		}

		ok, err := c.Login(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &AuthenticationError{Reason: "login rejected by portal"}
		}
		return nil, nil
	})
	return err
}

// credentialSnapshot returns the current session credential for per-request
// injection. Workers never share mutable cookie state; each request carries
// its own copy.
func (c *Client) credentialSnapshot() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Credential()
}

// invalidateCredential clears the session only if it still holds the given
// credential, so a worker observing loss of an already-replaced credential
// does not tear down its successor.
func (c *Client) invalidateCredential(ctx context.Context, credential string) {
	c.mu.Lock()
	if c.state.Credential() == credential {
		c.state.Invalidate()
	}
	c.mu.Unlock()

	c.dropPersistedSession(ctx)
}

// do builds and issues a single authenticated request with the given
// credential and returns the fully-read response. No shared cookie store is
// touched; the request is built from scratch every time, which also means
// there is never a stale same-named cookie to clear.
func (c *Client) do(ctx context.Context, method, path string, opts RequestOptions, credential string) (*Response, error) {
	endpoint := c.endpointURL(path)
	if len(opts.Query) > 0 {
		endpoint = endpoint + "?" + opts.Query.Encode()
	}

	body, contentType, err := buildBody(opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for key, values := range opts.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("User-Agent", c.config.UserAgent)

	if credential != "" {
		req.AddCookie(&http.Cookie{
			Name:  c.config.Credentials.cookieName(),
			Value: credential,
		})
	}

	httpResp, err := c.transport.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	finalURL := req.URL
	if httpResp.Request != nil {
		finalURL = httpResp.Request.URL
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
		FinalURL:   finalURL,
	}, nil
}

// buildBody renders the request body for the selected options mode.
func buildBody(opts RequestOptions) (io.Reader, string, error) {
	set := 0
	if opts.JSON != nil {
		set++
	}
	if len(opts.Form) > 0 {
		set++
	}
	if len(opts.Multipart) > 0 {
		set++
	}
	if set > 1 {
		return nil, "", fmt.Errorf("at most one of JSON, Form, and Multipart may be set")
	}

	switch {
	case opts.JSON != nil:
		data, err := json.Marshal(opts.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("marshal JSON body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil

	case len(opts.Form) > 0:
		return strings.NewReader(opts.Form.Encode()), "application/x-www-form-urlencoded", nil

	case len(opts.Multipart) > 0:
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		for field, value := range opts.Multipart {
			if err := writer.WriteField(field, value); err != nil {
				return nil, "", fmt.Errorf("write multipart field %s: %w", field, err)
			}
		}
		if err := writer.Close(); err != nil {
			return nil, "", fmt.Errorf("close multipart writer: %w", err)
		}
		return &buf, writer.FormDataContentType(), nil

	default:
		return nil, "", nil
	}
}
