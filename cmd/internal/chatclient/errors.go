package chatclient

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Subscribe when the live transport is
	// not established. Callers retry after connecting.
	ErrNotConnected = errors.New("chatclient: live transport not connected")

	// ErrNoSelection is returned by SendMessage when no conversation is open.
	ErrNoSelection = errors.New("chatclient: no conversation selected")
)

// APIError carries the server's structured error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server: %s (%s, http %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("server: http %d", e.Status)
}
