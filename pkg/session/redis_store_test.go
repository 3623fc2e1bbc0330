package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client, skipping if none is running.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t))
	ctx := context.Background()

	entry := Entry{
		Credential:      "cookie-value",
		AuthenticatedAt: time.Now().Add(-time.Minute),
		Profile:         json.RawMessage(`{"name":"alice"}`),
	}

	if err := store.Save(ctx, "portal|alice", entry, 30*time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx, "portal|alice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Credential != entry.Credential {
		t.Errorf("Credential = %q, want %q", loaded.Credential, entry.Credential)
	}
	if !loaded.AuthenticatedAt.Equal(entry.AuthenticatedAt) {
		t.Errorf("AuthenticatedAt = %v, want %v", loaded.AuthenticatedAt, entry.AuthenticatedAt)
	}
}

func TestRedisStoreLoadMissing(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t))

	_, err := store.Load(context.Background(), "portal|nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load missing = %v, want ErrNotFound", err)
	}
}

func TestRedisStoreDelete(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t))
	ctx := context.Background()

	entry := Entry{Credential: "c", AuthenticatedAt: time.Now()}
	if err := store.Save(ctx, "portal|alice", entry, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Delete(ctx, "portal|alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, "portal|alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete = %v, want ErrNotFound", err)
	}

	// Deleting an absent key is not an error.
	if err := store.Delete(ctx, "portal|alice"); err != nil {
		t.Errorf("Delete absent key: %v", err)
	}
}

func TestRedisStoreRejectsExpiredEntry(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t))

	entry := Entry{
		Credential:      "stale",
		AuthenticatedAt: time.Now().Add(-2 * time.Hour),
	}
	if err := store.Save(context.Background(), "portal|alice", entry, 30*time.Minute); err == nil {
		t.Error("Save should reject an entry older than the TTL")
	}
}

func TestRedisStoreRejectsEmptyCredential(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t))

	entry := Entry{AuthenticatedAt: time.Now()}
	if err := store.Save(context.Background(), "portal|alice", entry, time.Hour); err == nil {
		t.Error("Save should reject an empty credential")
	}
}
