package chat

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewMessageID returns a ULID used as message id.
// ULIDs sort lexicographically by creation time, which keeps conversation
// queries ordered without a separate sequence column.
func NewMessageID(now time.Time) (string, error) {
	return newULID(now)
}

// NewUserID returns a ULID used as user id.
func NewUserID(now time.Time) (string, error) {
	return newULID(now)
}

func newULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
