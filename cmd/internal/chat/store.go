package chat

import (
	"context"
	"time"
)

// MessageStore persists and queries direct messages.
//
// Requirements:
//   - Append assigns the message ID and creation timestamp.
//   - Conversation returns both directions between two users, ordered by
//     creation (ULID message IDs make ID order and time order agree).
type MessageStore interface {
	Append(ctx context.Context, in AppendInput) (Message, error)
	Conversation(ctx context.Context, userA, userB string) ([]Message, error)
	Close() error
}

// AppendInput describes a message append request.
type AppendInput struct {
	SenderID   string
	ReceiverID string
	Text       string
	ImageURL   string
	Now        time.Time
}

// UserStore persists accounts and serves the roster.
type UserStore interface {
	Create(ctx context.Context, in CreateUserInput) (User, error)
	ByID(ctx context.Context, id string) (User, error)
	ByUsername(ctx context.Context, username string) (User, error)
	// ListOthers returns every user except excludeID, ordered by username.
	ListOthers(ctx context.Context, excludeID string) ([]User, error)
	Close() error
}

// CreateUserInput describes an account registration request.
type CreateUserInput struct {
	Username     string
	DisplayName  string
	PasswordHash string
	Now          time.Time
}
