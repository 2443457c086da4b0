// Package chat contains Pigeon's direct-message domain: persisted users and
// messages, the stores that own them, image blob handling, and the HTTP API.
package chat

import (
	"time"

	v1 "pigeon/shared/contracts/chat/v1"
)

// Message is a persisted direct message. Immutable once created.
type Message struct {
	ID         string    `json:"id" bson:"_id"`
	SenderID   string    `json:"senderId" bson:"sender_id"`
	ReceiverID string    `json:"receiverId" bson:"receiver_id"`
	Text       string    `json:"text,omitempty" bson:"text,omitempty"`
	ImageURL   string    `json:"image,omitempty" bson:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
}

// Wire converts a Message to its wire representation.
func (m Message) Wire() v1.Message {
	return v1.Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Image:      m.ImageURL,
		CreatedAt:  m.CreatedAt,
	}
}

// User is a registered account. PasswordHash never leaves the store layer;
// Wire() is the only serialization path handlers may use.
type User struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	DisplayName  string    `bson:"display_name,omitempty"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}

// Wire converts a User to its credential-free wire representation.
func (u User) Wire() v1.User {
	return v1.User{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}
