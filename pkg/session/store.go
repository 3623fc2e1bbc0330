package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound indicates no persisted session exists for the key.
var ErrNotFound = errors.New("session not found")

// Entry is a persisted session credential.
type Entry struct {
	// Credential is the opaque portal session cookie value.
	Credential string `json:"credential"`

	// AuthenticatedAt is when the credential was obtained.
	AuthenticatedAt time.Time `json:"authenticated_at"`

	// Profile is the portal's user record, verbatim.
	Profile json.RawMessage `json:"profile,omitempty"`
}

// Store persists session credentials across process restarts so sibling
// processes can share a live portal session instead of re-authenticating.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists the entry under key with the given TTL.
	Save(ctx context.Context, key string, entry Entry, ttl time.Duration) error

	// Load retrieves the entry for key. Returns ErrNotFound if absent.
	Load(ctx context.Context, key string) (*Entry, error)

	// Delete removes the entry for key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
