package auth

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRevocationStore_RevokeAndExpire(t *testing.T) {
	t.Parallel()

	store := NewMemoryRevocationStore()
	ctx := context.Background()

	hash := HashToken("some-token")

	revoked, err := store.IsRevoked(ctx, hash)
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if revoked {
		t.Fatalf("unknown hash reported revoked")
	}

	if err := store.Revoke(ctx, hash, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	revoked, err = store.IsRevoked(ctx, hash)
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if !revoked {
		t.Fatalf("expected hash to be revoked")
	}
}

func TestMemoryRevocationStore_ExpiredEntriesClear(t *testing.T) {
	t.Parallel()

	store := NewMemoryRevocationStore()
	ctx := context.Background()

	hash := HashToken("short-lived")

	// Revocation that has already lapsed must not deny the token.
	if err := store.Revoke(ctx, hash, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	revoked, err := store.IsRevoked(ctx, hash)
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if revoked {
		t.Fatalf("lapsed revocation still denying")
	}
}
