package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidHash marks malformed or unsupported encoded password hashes.
var ErrInvalidHash = errors.New("auth: invalid password hash")

// MinPasswordLength is the signup policy floor.
const MinPasswordLength = 8

const (
	argonVersion     = 19 // argon2.Version (0x13)
	argonMemoryKiB   = 64 * 1024
	argonIterations  = 3
	argonParallelism = 1
	argonSaltLength  = 16
	argonKeyLength   = 32
)

// HashPassword hashes a password using Argon2id.
// Format: $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("auth: password shorter than %d characters", MinPasswordLength)
	}

	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argonIterations, argonMemoryKiB, argonParallelism, argonKeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argonVersion, argonMemoryKiB, argonIterations, argonParallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key),
	), nil
}

// VerifyPassword checks whether password matches the encoded hash.
// Returns (true, nil) for a match, (false, nil) for mismatch,
// and (false, ErrInvalidHash) for malformed/unsupported hashes.
func VerifyPassword(encodedHash, password string) (bool, error) {
	mem, iter, par, salt, expected, err := decodePasswordHash(encodedHash)
	if err != nil {
		return false, err
	}

	// Bound attacker-controlled params so a hostile hash string cannot
	// trigger pathological resource usage during verify.
	if mem > argonMemoryKiB*2 || iter > argonIterations*2 || par > argonParallelism*2 {
		return false, ErrInvalidHash
	}
	if len(salt) < 8 || len(salt) > 64 || len(expected) < 16 || len(expected) > 128 {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey([]byte(password), salt, iter, mem, uint8(par), uint32(len(expected)))

	if subtle.ConstantTimeCompare(key, expected) == 1 {
		return true, nil
	}
	return false, nil
}

func decodePasswordHash(encoded string) (mem, iter uint32, par uint32, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" || parts[2] != "v=19" {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, sErr := b64.DecodeString(parts[4])
	key, kErr := b64.DecodeString(parts[5])
	if sErr != nil || kErr != nil {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	return mem, iter, par, salt, key, nil
}
