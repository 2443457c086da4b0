// Package auth issues and verifies Pigeon access tokens and owns the HTTP
// auth surface: signup, login, logout, and the identity middleware.
package auth

import "errors"

var (
	// ErrAuthRequired is returned when no valid identity accompanies a request.
	ErrAuthRequired = errors.New("auth: authentication required")

	// ErrInvalidCredentials is returned on login with a wrong username/password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenExpired is returned when a structurally valid token is past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrTokenRevoked is returned when a token was invalidated by logout.
	ErrTokenRevoked = errors.New("auth: token revoked")

	// ErrSecretTooShort rejects HMAC secrets below the 32-byte floor.
	ErrSecretTooShort = errors.New("auth: jwt secret too short (min 32 bytes)")
)
