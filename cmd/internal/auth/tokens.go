package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "pigeon"

	// DefaultAccessTTL matches the original product policy of short-lived
	// access tokens; clients reconnect with a fresh login when it lapses.
	DefaultAccessTTL = time.Hour

	minSecretBytes = 32
)

// TokenManager issues and verifies HS256 access tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager constructs a TokenManager. The secret is used as raw bytes
// and must be at least 32 bytes.
func NewTokenManager(secret []byte, ttl time.Duration) (*TokenManager, error) {
	if len(secret) < minSecretBytes {
		return nil, ErrSecretTooShort
	}
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &TokenManager{secret: secret, ttl: ttl}, nil
}

// Issue signs an access token for userID.
func (m *TokenManager) Issue(userID string, now time.Time) (token string, exp time.Time, err error) {
	if userID == "" {
		return "", time.Time{}, errors.New("auth: empty user id")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	exp = now.Add(m.ttl)

	claims := jwtlib.MapClaims{
		"iss": issuer,
		"sub": userID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses and validates a token and returns the user identity.
func (m *TokenManager) Verify(token string, now time.Time) (string, error) {
	if token == "" {
		return "", ErrAuthRequired
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	parsed, err := jwtlib.Parse(token,
		func(t *jwtlib.Token) (any, error) {
			// Only the HMAC family is acceptable; anything else is an attack
			// or a misconfigured client.
			if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
			}
			return m.secret, nil
		},
		jwtlib.WithIssuer(issuer),
		jwtlib.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %s", ErrAuthRequired, err)
	}
	if !parsed.Valid {
		return "", ErrAuthRequired
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return "", ErrAuthRequired
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrAuthRequired
	}
	return sub, nil
}

// TTL reports the configured access token lifetime.
func (m *TokenManager) TTL() time.Duration { return m.ttl }

// HashToken returns a stable fingerprint of a token for revocation storage.
// Storing raw tokens server-side is never acceptable.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:])
}
