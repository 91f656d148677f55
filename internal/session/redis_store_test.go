package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	hash := "a1b2c3"
	if err := store.SaveRefreshSession(ctx, hash, "usr-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}

	user, err := store.LookupRefreshSession(ctx, hash)
	if err != nil {
		t.Fatalf("LookupRefreshSession: %v", err)
	}
	if user.ID != "usr-1" {
		t.Fatalf("expected usr-1, got %q", user.ID)
	}
}

func TestLookupUnknownRefreshSession(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.LookupRefreshSession(context.Background(), "missing"); err == nil {
		t.Fatal("expected an error for an unknown token")
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	hash := "d4e5f6"
	if err := store.SaveRefreshSession(ctx, hash, "usr-2", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}
	if err := store.RevokeRefreshSession(ctx, hash); err != nil {
		t.Fatalf("RevokeRefreshSession: %v", err)
	}
	if _, err := store.LookupRefreshSession(ctx, hash); err == nil {
		t.Fatal("expected the revoked token to be gone")
	}
}

func TestRefreshSessionExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	hash := "expiring"
	if err := store.SaveRefreshSession(ctx, hash, "usr-3", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.LookupRefreshSession(ctx, hash); err == nil {
		t.Fatal("expected the token expired after the TTL")
	}
}

func TestSaveWithPastExpiryStillPersists(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// A non-positive TTL falls back to a long default instead of failing.
	if err := store.SaveRefreshSession(ctx, "stale", "usr-4", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}
	if _, err := store.LookupRefreshSession(ctx, "stale"); err != nil {
		t.Fatalf("LookupRefreshSession: %v", err)
	}
}

func TestPing(t *testing.T) {
	store, mr := newTestStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	mr.Close()
	if err := store.Ping(context.Background()); err == nil {
		t.Fatal("expected ping to fail once redis is down")
	}
}
