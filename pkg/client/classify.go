package client

import (
	"encoding/json"
	"net/url"
	"strings"
)

// The portal's login endpoint has no stable response schema. Success may
// arrive as an HTML page, a JSON redirect, a JSON success flag, or a bare
// non-JSON 200. Each rule below is a named predicate so it can be tested
// independently; they are evaluated in a fixed order by classifyLogin.

// htmlSuccessMarker appears in the post-login HTML shell that bootstraps
// the portal's frontend.
const htmlSuccessMarker = "window.location"

// Session-loss body markers. A 200 response containing either means the
// portal silently dropped the session and served its login flow instead.
var sessionLossMarkers = []string{
	"Authentication required",
	"login/authenticate",
}

// loginOutcome is the result of classifying a login response.
type loginOutcome struct {
	Success bool

	// Rule names the classifier that decided the outcome, for logging.
	Rule string

	// SessionID is an explicit session identifier from the body, if the
	// portal supplied one (rare; the cookie is authoritative).
	SessionID string

	// User is the inline user record, if present.
	User json.RawMessage
}

// loginResponseBody covers the JSON shapes the portal is known to return.
type loginResponseBody struct {
	Success     *bool           `json:"success"`
	RedirectURL string          `json:"redirectUrl"`
	RedirectUR2 string          `json:"redirectURL"`
	RedirectUR3 string          `json:"redirect_url"`
	SessionID   string          `json:"sessionId"`
	SessionID2  string          `json:"session_id"`
	User        json.RawMessage `json:"user"`
}

func (b loginResponseBody) redirect() string {
	switch {
	case b.RedirectURL != "":
		return b.RedirectURL
	case b.RedirectUR2 != "":
		return b.RedirectUR2
	default:
		return b.RedirectUR3
	}
}

func (b loginResponseBody) sessionID() string {
	if b.SessionID != "" {
		return b.SessionID
	}
	return b.SessionID2
}

// classifierHTMLMarker matches an HTML page containing the known post-login
// bootstrap marker.
func classifierHTMLMarker(body []byte) (loginOutcome, bool) {
	if strings.Contains(string(body), htmlSuccessMarker) {
		return loginOutcome{Success: true, Rule: "html_marker"}, true
	}
	return loginOutcome{}, false
}

// classifierRedirectURL matches a JSON body carrying a redirect-URL field.
func classifierRedirectURL(parsed *loginResponseBody) (loginOutcome, bool) {
	if parsed != nil && parsed.redirect() != "" {
		return loginOutcome{
			Success:   true,
			Rule:      "redirect_url",
			SessionID: parsed.sessionID(),
			User:      parsed.User,
		}, true
	}
	return loginOutcome{}, false
}

// classifierSuccessFlag matches a JSON body with an explicit success flag.
// An explicit false is a decided failure, not a fall-through.
func classifierSuccessFlag(parsed *loginResponseBody) (loginOutcome, bool) {
	if parsed != nil && parsed.Success != nil {
		return loginOutcome{
			Success:   *parsed.Success,
			Rule:      "success_flag",
			SessionID: parsed.sessionID(),
			User:      parsed.User,
		}, true
	}
	return loginOutcome{}, false
}

// classifierNonJSON treats any 200 response that is not JSON as success.
// The portal's oldest deployments answer a successful login with an empty
// or plain-text body.
func classifierNonJSON(parsed *loginResponseBody) (loginOutcome, bool) {
	if parsed == nil {
		return loginOutcome{Success: true, Rule: "non_json"}, true
	}
	return loginOutcome{}, false
}

// classifyLogin resolves a 2xx login response into an outcome by running the
// classifiers in order: HTML marker, redirect URL, success flag, non-JSON
// fallback. A JSON body matching none of the rules is unclassifiable and
// treated as failure.
func classifyLogin(body []byte) loginOutcome {
	if outcome, ok := classifierHTMLMarker(body); ok {
		return outcome
	}

	var parsed *loginResponseBody
	var decoded loginResponseBody
	if json.Valid(body) && json.Unmarshal(body, &decoded) == nil {
		parsed = &decoded
	}

	if outcome, ok := classifierRedirectURL(parsed); ok {
		return outcome
	}
	if outcome, ok := classifierSuccessFlag(parsed); ok {
		return outcome
	}
	if outcome, ok := classifierNonJSON(parsed); ok {
		return outcome
	}

	return loginOutcome{Success: false, Rule: "unclassified"}
}

// isLoginRedirect reports whether the response's final URL is the portal's
// login flow, which it redirects to when a session is no longer accepted.
func isLoginRedirect(finalURL *url.URL) bool {
	if finalURL == nil {
		return false
	}
	return strings.Contains(finalURL.Path, "/login")
}

// hasSessionLossMarker reports whether a response body contains one of the
// known authentication-required markers.
func hasSessionLossMarker(body []byte) bool {
	text := string(body)
	for _, marker := range sessionLossMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// sessionLost reports whether a response signals that the session credential
// is no longer accepted: an auth status, a login redirect, or a body marker.
func sessionLost(resp *Response) bool {
	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return true
	}
	if isLoginRedirect(resp.FinalURL) {
		return true
	}
	return hasSessionLossMarker(resp.Body)
}
