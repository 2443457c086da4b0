package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

const memMaxMessagesPerPair = 10_000

// InMemoryStore is a dev/test fallback when no database is configured.
// It implements both MessageStore and UserStore.
type InMemoryStore struct {
	mu sync.Mutex

	usersByID   map[string]User
	usersByName map[string]string // username -> id

	// pair key -> messages ordered by creation
	pairs map[string][]Message
}

// NewInMemoryStore constructs an in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		usersByID:   make(map[string]User),
		usersByName: make(map[string]string),
		pairs:       make(map[string][]Message),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// pairKey is direction-independent so both sides of a conversation share one slice.
func pairKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + "\x00" + userB
}

// Append persists a message and assigns its ID and timestamp.
func (s *InMemoryStore) Append(ctx context.Context, in AppendInput) (Message, error) {
	if in.SenderID == "" || in.ReceiverID == "" {
		return Message{}, errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := NewMessageID(now)
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:         id,
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Text:       in.Text,
		ImageURL:   in.ImageURL,
		CreatedAt:  now,
	}

	key := pairKey(in.SenderID, in.ReceiverID)

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.pairs[key], msg)

	// Bound memory to avoid unbounded growth in dev.
	if len(msgs) > memMaxMessagesPerPair {
		msgs = msgs[len(msgs)-memMaxMessagesPerPair:]
	}
	s.pairs[key] = msgs

	return msg, nil
}

// Conversation returns the full history between two users, oldest first.
func (s *InMemoryStore) Conversation(ctx context.Context, userA, userB string) ([]Message, error) {
	if userA == "" || userB == "" {
		return nil, errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	msgs := s.pairs[pairKey(userA, userB)]
	out := append([]Message(nil), msgs...)
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Create registers a user, enforcing username uniqueness.
func (s *InMemoryStore) Create(ctx context.Context, in CreateUserInput) (User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.PasswordHash == "" {
		return User{}, errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := NewUserID(now)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByName[username]; ok {
		return User{}, ErrUsernameTaken
	}

	u := User{
		ID:           id,
		Username:     username,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
	}
	s.usersByID[id] = u
	s.usersByName[username] = id
	return u, nil
}

// ByID looks up a user by id.
func (s *InMemoryStore) ByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	u, ok := s.usersByID[id]
	s.mu.Unlock()

	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// ByUsername looks up a user by username.
func (s *InMemoryStore) ByUsername(ctx context.Context, username string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	id, ok := s.usersByName[strings.TrimSpace(username)]
	var u User
	if ok {
		u = s.usersByID[id]
	}
	s.mu.Unlock()

	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// ListOthers returns every user except excludeID, ordered by username.
func (s *InMemoryStore) ListOthers(ctx context.Context, excludeID string) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	out := make([]User, 0, len(s.usersByID))
	for id, u := range s.usersByID {
		if id == excludeID {
			continue
		}
		out = append(out, u)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
