// Package session holds portal session state: the opaque session credential,
// its age against a configured TTL, and the authenticated user profile. The
// portal never announces expiry, so validity is inferred locally from age and
// confirmed (or refuted) by response shape one layer up.
package session

import (
	"encoding/json"
	"time"
)

// Status is the authentication lifecycle state.
type Status int

const (
	// StatusIdle means no session is held.
	StatusIdle Status = iota

	// StatusLoggingIn means a login is in flight; the executor must not
	// trigger another.
	StatusLoggingIn

	// StatusAuthenticated means a credential is held and presumed live.
	StatusAuthenticated
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusLoggingIn:
		return "logging_in"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "idle"
	}
}

// State is the session state for one portal client.
//
// State performs no locking of its own; the owning client serializes all
// mutation paths. Workers never touch State directly, they operate on
// immutable Credential snapshots.
type State struct {
	status          Status
	credential      string
	authenticatedAt time.Time
	ttl             time.Duration
	profile         json.RawMessage

	now func() time.Time // test hook
}

// NewState creates an empty session state with the given TTL.
func NewState(ttl time.Duration) *State {
	return &State{
		ttl: ttl,
		now: time.Now,
	}
}

// Valid reports whether an unexpired session credential is held.
// Discovering expiry clears the credential as a side effect; there is no
// background timer, invalidation is lazy.
func (s *State) Valid() bool {
	if s.status != StatusAuthenticated {
		return false
	}
	if s.now().Sub(s.authenticatedAt) >= s.ttl {
		s.Invalidate()
		return false
	}
	return true
}

// Authenticate records a fresh credential and profile.
func (s *State) Authenticate(credential string, profile json.RawMessage) {
	s.status = StatusAuthenticated
	s.credential = credential
	s.authenticatedAt = s.now()
	s.profile = profile
}

// Restore installs a previously persisted credential with its original
// authentication time, so TTL accounting carries across restarts.
func (s *State) Restore(credential string, authenticatedAt time.Time, profile json.RawMessage) {
	s.status = StatusAuthenticated
	s.credential = credential
	s.authenticatedAt = authenticatedAt
	s.profile = profile
}

// Invalidate unconditionally clears all session state.
func (s *State) Invalidate() {
	s.status = StatusIdle
	s.credential = ""
	s.authenticatedAt = time.Time{}
	s.profile = nil
}

// Status returns the current lifecycle state.
func (s *State) Status() Status {
	return s.status
}

// SetStatus transitions the lifecycle state. Used by the authenticator to
// mark a login in flight.
func (s *State) SetStatus(status Status) {
	s.status = status
}

// Credential returns the held session credential, or "" if none.
func (s *State) Credential() string {
	return s.credential
}

// AuthenticatedAt returns when the current credential was obtained.
func (s *State) AuthenticatedAt() time.Time {
	return s.authenticatedAt
}

// Profile returns the authenticated user profile as returned by the portal,
// or nil if the best-effort profile fetch failed.
func (s *State) Profile() json.RawMessage {
	return s.profile
}

// SetProfile stores the user profile without touching the credential.
func (s *State) SetProfile(profile json.RawMessage) {
	s.profile = profile
}

// SetClock overrides the time source (for testing).
func (s *State) SetClock(now func() time.Time) {
	s.now = now
}
