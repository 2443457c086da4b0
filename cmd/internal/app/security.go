package app

import (
	"errors"
	"time"

	"pigeon/cmd/internal/auth"
)

// ValidateSecurityConfig enforces the token secret policy at startup.
//
// Fail-fast is intentional: booting with a missing or weak signing secret
// would silently issue forgeable sessions.
func ValidateSecurityConfig(cfg Config) error {
	if cfg.TokenSecret == "" {
		return errors.New("security policy: PIGEON_TOKEN_SECRET is missing")
	}

	// Enforcement is end-to-end by validating through the same constructor
	// the runtime uses for signing.
	if _, err := auth.NewTokenManager([]byte(cfg.TokenSecret), cfg.TokenTTL); err != nil {
		if errors.Is(err, auth.ErrSecretTooShort) {
			return errors.New("security policy: PIGEON_TOKEN_SECRET is too short (min 32 bytes)")
		}
		return err
	}

	if cfg.TokenTTL <= 0 || cfg.TokenTTL > 30*24*time.Hour {
		return errors.New("security policy: PIGEON_TOKEN_TTL out of range")
	}

	return nil
}
