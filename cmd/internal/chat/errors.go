package chat

import "errors"

var (
	// ErrNotFound is returned when the requested user or counterpart does not exist.
	ErrNotFound = errors.New("chat: not found")

	// ErrUsernameTaken is returned when creating a user with a duplicate username.
	ErrUsernameTaken = errors.New("chat: username already taken")

	// ErrEmptyMessage is returned when a send request carries neither text nor image.
	ErrEmptyMessage = errors.New("chat: message has no content")

	// ErrUploadFailed wraps blob store failures; nothing is persisted when it occurs.
	ErrUploadFailed = errors.New("chat: image upload failed")
)
