package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestNewTokenManager_RejectsShortSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenManager([]byte("short"), time.Hour); !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("expected ErrSecretTooShort, got %v", err)
	}
}

func TestTokenManager_IssueVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	tm, err := NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	token, exp, err := tm.Issue("user-1", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.Equal(now.Add(time.Hour)) {
		t.Fatalf("exp: got %v want %v", exp, now.Add(time.Hour))
	}

	sub, err := tm.Verify(token, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("subject: got %q want user-1", sub)
	}
}

func TestTokenManager_Verify_Expired(t *testing.T) {
	t.Parallel()

	tm, err := NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	token, _, err := tm.Issue("user-1", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := tm.Verify(token, now.Add(2*time.Hour)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenManager_Verify_WrongSecret(t *testing.T) {
	t.Parallel()

	issuerTM, err := NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	verifierTM, err := NewTokenManager([]byte("fedcba9876543210fedcba9876543210"), time.Hour)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	now := time.Now().UTC()

	token, _, err := issuerTM.Issue("user-1", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := verifierTM.Verify(token, now); err == nil {
		t.Fatalf("expected verify with wrong secret to fail")
	}
}

func TestTokenManager_Verify_Garbage(t *testing.T) {
	t.Parallel()

	tm, err := NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := tm.Verify(token, time.Now().UTC()); err == nil {
			t.Fatalf("expected verify(%q) to fail", token)
		}
	}
}

func TestHashToken_StableAndOpaque(t *testing.T) {
	t.Parallel()

	h1 := HashToken("token-a")
	h2 := HashToken("token-a")
	h3 := HashToken("token-b")

	if h1 != h2 {
		t.Fatalf("hash not stable: %q vs %q", h1, h2)
	}
	if h1 == h3 {
		t.Fatalf("distinct tokens hashed identically")
	}
	if !strings.HasPrefix(h1, "sha256:") {
		t.Fatalf("unexpected hash format: %q", h1)
	}
	if strings.Contains(h1, "token-a") {
		t.Fatalf("hash leaks the raw token")
	}
}
