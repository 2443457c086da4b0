package chatclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	v1 "pigeon/shared/contracts/chat/v1"
)

// Session is the client-side state for one authenticated user: the roster,
// the open conversation, the unread ledger, and the live online set.
//
// All state is guarded by one mutex. Every operation is independently
// invocable; none assumes ordering relative to the others. Stale responses
// (a roster load finishing after the user moved on) are applied as-is.
type Session struct {
	log  *slog.Logger
	api  API
	feed Feed

	// selfID is the authenticated identity; the reconciliation rules need
	// it to tell incoming messages from echoes.
	selfID string

	mu            sync.Mutex
	roster        []v1.User
	messages      []v1.Message
	selected      *v1.User
	unread        map[string]int
	online        map[string]bool
	loadingRoster bool
	loadingMsgs   bool

	// At most one live listener. Subscribing while one is attached returns
	// the existing token.
	listenerToken string
}

// NewSession builds a session for the authenticated user selfID.
// feed may be nil until the live transport connects; Subscribe then returns
// ErrNotConnected.
func NewSession(log *slog.Logger, api API, feed Feed, selfID string) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		log:    log,
		api:    api,
		feed:   feed,
		selfID: selfID,
		unread: make(map[string]int),
		online: make(map[string]bool),
	}
}

// AttachFeed installs the live transport after connecting. It does not
// subscribe; callers invoke Subscribe explicitly.
func (s *Session) AttachFeed(feed Feed) {
	s.mu.Lock()
	s.feed = feed
	s.listenerToken = ""
	s.mu.Unlock()
}

// LoadRoster fetches every other user. Failure leaves the prior roster intact.
func (s *Session) LoadRoster(ctx context.Context) error {
	s.mu.Lock()
	s.loadingRoster = true
	s.mu.Unlock()

	users, err := s.api.Roster(ctx)

	s.mu.Lock()
	s.loadingRoster = false
	if err == nil {
		s.roster = users
	}
	s.mu.Unlock()

	return err
}

// SelectConversation opens a conversation. The counterpart's unread count
// resets immediately, before any history load completes.
func (s *Session) SelectConversation(user v1.User) {
	s.mu.Lock()
	u := user
	s.selected = &u
	s.unread[user.ID] = 0
	s.mu.Unlock()
}

// ClearSelection closes the open conversation.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
}

// LoadConversation fetches the full history with userID, replacing messages.
// Opening a conversation implies reading it, so the unread count resets.
func (s *Session) LoadConversation(ctx context.Context, userID string) error {
	s.mu.Lock()
	s.loadingMsgs = true
	s.mu.Unlock()

	msgs, err := s.api.Conversation(ctx, userID)

	s.mu.Lock()
	s.loadingMsgs = false
	if err == nil {
		s.messages = msgs
		s.unread[userID] = 0
	}
	s.mu.Unlock()

	return err
}

// SendMessage posts to the selected user. On success the server's stored
// message is appended; on failure nothing changes (no optimistic insert,
// no retry).
func (s *Session) SendMessage(ctx context.Context, in SendInput) (v1.Message, error) {
	s.mu.Lock()
	sel := s.selected
	s.mu.Unlock()

	if sel == nil {
		return v1.Message{}, ErrNoSelection
	}

	msg, err := s.api.Send(ctx, sel.ID, in)
	if err != nil {
		return v1.Message{}, err
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	return msg, nil
}

// Subscribe attaches the live listener. Idempotent: a second call while one
// is attached returns the existing token. Without a connected transport it
// returns ErrNotConnected and the caller retries after connecting.
func (s *Session) Subscribe() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listenerToken != "" {
		return s.listenerToken, nil
	}
	if s.feed == nil {
		return "", ErrNotConnected
	}

	token, err := s.feed.Subscribe(s.handleEnvelope)
	if err != nil {
		return "", err
	}
	s.listenerToken = token
	return token, nil
}

// Unsubscribe detaches the live listener. Safe when none is attached.
func (s *Session) Unsubscribe() {
	s.mu.Lock()
	token := s.listenerToken
	s.listenerToken = ""
	feed := s.feed
	s.mu.Unlock()

	if token != "" && feed != nil {
		feed.Unsubscribe(token)
	}
}

// handleEnvelope is the single live listener.
func (s *Session) handleEnvelope(env v1.Envelope) {
	switch env.Type {
	case v1.TypeNewMessage:
		var msg v1.Message
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			s.log.Debug("session.event.bad_message", "err", err)
			return
		}
		s.reconcile(msg)

	case v1.TypeOnlineUsers:
		var p v1.OnlineUsersPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.log.Debug("session.event.bad_online_users", "err", err)
			return
		}
		s.mu.Lock()
		s.online = make(map[string]bool, len(p.Users))
		for _, id := range p.Users {
			s.online[id] = true
		}
		s.mu.Unlock()
	}
}

// reconcile applies one live message event to the unread ledger.
// Rules, in order:
//  1. counterpart matches the open conversation: append; a message from
//     someone else also resets their unread count (the conversation is on
//     screen, so it is read).
//  2. otherwise a message from someone else increments their unread count
//     by exactly one.
//  3. otherwise (own echo with no matching conversation open): nothing.
func (s *Session) reconcile(msg v1.Message) {
	counterpart := msg.SenderID
	if msg.SenderID == s.selfID {
		counterpart = msg.ReceiverID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected != nil && counterpart == s.selected.ID {
		s.messages = append(s.messages, msg)
		if msg.SenderID != s.selfID {
			s.unread[msg.SenderID] = 0
		}
		return
	}

	if msg.SenderID != s.selfID {
		s.unread[msg.SenderID]++
	}
}

// ---- snapshots ----

// Roster returns a copy of the loaded roster.
func (s *Session) Roster() []v1.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]v1.User, len(s.roster))
	copy(out, s.roster)
	return out
}

// Messages returns a copy of the open conversation.
func (s *Session) Messages() []v1.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]v1.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SelectedUser returns the open conversation's counterpart, if any.
func (s *Session) SelectedUser() (v1.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return v1.User{}, false
	}
	return *s.selected, true
}

// Unread returns the unread count for one counterpart.
func (s *Session) Unread(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[userID]
}

// IsOnline reports whether userID appeared in the latest online-users event.
func (s *Session) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[userID]
}

// OnlineUsers returns the identities from the latest online-users event.
func (s *Session) OnlineUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.online))
	for id := range s.online {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Loading reports the roster and conversation loading flags.
func (s *Session) Loading() (roster, messages bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingRoster, s.loadingMsgs
}
