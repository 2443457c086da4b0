package v1

import "time"

// ---- Payloads ----

// Message is the wire representation of a direct message.
// REST responses and new-message events share this shape.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// User is the wire representation of a roster entry.
// It never carries credential material.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// OnlineUsersPayload carries the complete online-user identity set.
// Deltas are deliberately not used: roster UIs need the full live set.
type OnlineUsersPayload struct {
	Users []string `json:"users"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
