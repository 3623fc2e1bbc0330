package client

import (
	"net/url"
	"testing"
)

func TestClassifyLoginOrderedRules(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantSuccess bool
		wantRule    string
	}{
		{
			name:        "html marker",
			body:        `<html><script>window.location.href = "/dashboard";</script></html>`,
			wantSuccess: true,
			wantRule:    "html_marker",
		},
		{
			name:        "redirect url",
			body:        `{"redirectUrl": "/home"}`,
			wantSuccess: true,
			wantRule:    "redirect_url",
		},
		{
			name:        "redirect url snake case",
			body:        `{"redirect_url": "/home"}`,
			wantSuccess: true,
			wantRule:    "redirect_url",
		},
		{
			name:        "success flag true",
			body:        `{"success": true, "sessionId": "abc"}`,
			wantSuccess: true,
			wantRule:    "success_flag",
		},
		{
			name:        "success flag false",
			body:        `{"success": false, "message": "bad password"}`,
			wantSuccess: false,
			wantRule:    "success_flag",
		},
		{
			name:        "non-json fallback",
			body:        `Welcome back`,
			wantSuccess: true,
			wantRule:    "non_json",
		},
		{
			name:        "empty body",
			body:        ``,
			wantSuccess: true,
			wantRule:    "non_json",
		},
		{
			name:        "unclassifiable json",
			body:        `{"status": "maybe"}`,
			wantSuccess: false,
			wantRule:    "unclassified",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := classifyLogin([]byte(tt.body))
			if outcome.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", outcome.Success, tt.wantSuccess)
			}
			if outcome.Rule != tt.wantRule {
				t.Errorf("Rule = %q, want %q", outcome.Rule, tt.wantRule)
			}
		})
	}
}

func TestClassifyLoginPrecedence(t *testing.T) {
	// Redirect URL is checked before the success flag; an explicit
	// success:false with a redirect still counts as a redirect.
	outcome := classifyLogin([]byte(`{"redirectUrl": "/home", "success": false}`))
	if !outcome.Success || outcome.Rule != "redirect_url" {
		t.Errorf("outcome = %+v, want redirect_url success", outcome)
	}
}

func TestClassifyLoginCarriesIdentifiers(t *testing.T) {
	outcome := classifyLogin([]byte(`{"success": true, "sessionId": "s-1", "user": {"name": "alice"}}`))
	if outcome.SessionID != "s-1" {
		t.Errorf("SessionID = %q, want s-1", outcome.SessionID)
	}
	if len(outcome.User) == 0 {
		t.Error("User record not captured")
	}
}

func TestSessionLost(t *testing.T) {
	mustURL := func(raw string) *url.URL {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		return u
	}

	tests := []struct {
		name string
		resp Response
		want bool
	}{
		{
			name: "401 status",
			resp: Response{StatusCode: 401, FinalURL: mustURL("https://p.test/events")},
			want: true,
		},
		{
			name: "403 status",
			resp: Response{StatusCode: 403, FinalURL: mustURL("https://p.test/events")},
			want: true,
		},
		{
			name: "login redirect",
			resp: Response{StatusCode: 200, FinalURL: mustURL("https://p.test/login?next=/events")},
			want: true,
		},
		{
			name: "auth marker in 200 body",
			resp: Response{
				StatusCode: 200,
				FinalURL:   mustURL("https://p.test/events"),
				Body:       []byte(`<p>Authentication required</p>`),
			},
			want: true,
		},
		{
			name: "login endpoint marker in body",
			resp: Response{
				StatusCode: 200,
				FinalURL:   mustURL("https://p.test/events"),
				Body:       []byte(`<form action="login/authenticate">`),
			},
			want: true,
		},
		{
			name: "healthy response",
			resp: Response{
				StatusCode: 200,
				FinalURL:   mustURL("https://p.test/events"),
				Body:       []byte(`{"data": []}`),
			},
			want: false,
		},
		{
			name: "plain 404 is not session loss",
			resp: Response{StatusCode: 404, FinalURL: mustURL("https://p.test/missing")},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sessionLost(&tt.resp); got != tt.want {
				t.Errorf("sessionLost = %v, want %v", got, tt.want)
			}
		})
	}
}
