package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "pigeon/shared/contracts/chat/v1"
)

type fakeAPI struct {
	roster    []v1.User
	rosterErr error

	conversation    []v1.Message
	conversationErr error

	sent    []SendInput
	sendOut v1.Message
	sendErr error
}

func (f *fakeAPI) Roster(context.Context) ([]v1.User, error) {
	return f.roster, f.rosterErr
}

func (f *fakeAPI) Conversation(context.Context, string) ([]v1.Message, error) {
	return f.conversation, f.conversationErr
}

func (f *fakeAPI) Send(_ context.Context, _ string, in SendInput) (v1.Message, error) {
	if f.sendErr != nil {
		return v1.Message{}, f.sendErr
	}
	f.sent = append(f.sent, in)
	return f.sendOut, nil
}

// fakeFeed records attached listeners and lets tests inject events.
type fakeFeed struct {
	listeners map[string]func(v1.Envelope)
	next      int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{listeners: make(map[string]func(v1.Envelope))}
}

func (f *fakeFeed) Subscribe(fn func(v1.Envelope)) (string, error) {
	f.next++
	token := string(rune('a' + f.next))
	f.listeners[token] = fn
	return token, nil
}

func (f *fakeFeed) Unsubscribe(token string) {
	delete(f.listeners, token)
}

func (f *fakeFeed) emit(t *testing.T, typ string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	env := v1.Envelope{V: v1.Version, Type: typ, ID: "evt", TS: time.Now(), Payload: raw}
	for _, fn := range f.listeners {
		fn(env)
	}
}

func liveMessage(sender, receiver, text string) v1.Message {
	return v1.Message{
		ID:         "m-" + sender + "-" + text,
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       text,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestSession_LoadRosterKeepsOldOnFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{roster: []v1.User{{ID: "bob"}}}
	s := NewSession(nil, api, nil, "alice")

	require.NoError(t, s.LoadRoster(context.Background()))
	require.Len(t, s.Roster(), 1)

	api.rosterErr = errors.New("boom")
	require.Error(t, s.LoadRoster(context.Background()))
	assert.Len(t, s.Roster(), 1, "failed reload must keep the previous roster")

	roster, _ := s.Loading()
	assert.False(t, roster, "loading flag must clear after failure")
}

func TestSession_SelectResetsUnreadBeforeHistoryLoads(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	s := NewSession(nil, &fakeAPI{}, feed, "alice")
	_, err := s.Subscribe()
	require.NoError(t, err)

	feed.emit(t, v1.TypeNewMessage, liveMessage("bob", "alice", "hi"))
	feed.emit(t, v1.TypeNewMessage, liveMessage("bob", "alice", "there"))
	require.Equal(t, 2, s.Unread("bob"))

	// No history load has happened; selecting alone must reset the count.
	s.SelectConversation(v1.User{ID: "bob", Username: "bob"})
	assert.Equal(t, 0, s.Unread("bob"))
}

func TestSession_MessageForOpenConversationAppends(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	s := NewSession(nil, &fakeAPI{}, feed, "alice")
	_, err := s.Subscribe()
	require.NoError(t, err)

	s.SelectConversation(v1.User{ID: "bob"})
	feed.emit(t, v1.TypeNewMessage, liveMessage("bob", "alice", "hi"))

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, 0, s.Unread("bob"))
}

func TestSession_MessageForOtherConversationIncrementsUnread(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	s := NewSession(nil, &fakeAPI{}, feed, "alice")
	_, err := s.Subscribe()
	require.NoError(t, err)

	s.SelectConversation(v1.User{ID: "carol"})
	feed.emit(t, v1.TypeNewMessage, liveMessage("bob", "alice", "hi"))

	assert.Empty(t, s.Messages(), "messages for another conversation must not appear")
	assert.Equal(t, 1, s.Unread("bob"))
	assert.Equal(t, 0, s.Unread("carol"))
}

func TestSession_OwnEchoForOpenConversationAppendsWithoutUnread(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	s := NewSession(nil, &fakeAPI{}, feed, "alice")
	_, err := s.Subscribe()
	require.NoError(t, err)

	s.SelectConversation(v1.User{ID: "bob"})
	feed.emit(t, v1.TypeNewMessage, liveMessage("alice", "bob", "sent elsewhere"))

	require.Len(t, s.Messages(), 1)
	assert.Equal(t, 0, s.Unread("bob"))
	assert.Equal(t, 0, s.Unread("alice"))
}

func TestSession_OwnEchoWithoutMatchingSelectionIsNoOp(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	s := NewSession(nil, &fakeAPI{}, feed, "alice")
	_, err := s.Subscribe()
	require.NoError(t, err)

	feed.emit(t, v1.TypeNewMessage, liveMessage("alice", "bob", "x"))

	assert.Empty(t, s.Messages())
	assert.Equal(t, 0, s.Unread("bob"))
}

func TestSession_SubscribeIsIdempotent(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	s := NewSession(nil, &fakeAPI{}, feed, "alice")

	first, err := s.Subscribe()
	require.NoError(t, err)
	second, err := s.Subscribe()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, feed.listeners, 1, "double subscribe must attach one listener")

	// One event, exactly one increment.
	feed.emit(t, v1.TypeNewMessage, liveMessage("bob", "alice", "hi"))
	assert.Equal(t, 1, s.Unread("bob"))
}

func TestSession_SubscribeWithoutTransport(t *testing.T) {
	t.Parallel()

	s := NewSession(nil, &fakeAPI{}, nil, "alice")
	_, err := s.Subscribe()
	require.ErrorIs(t, err, ErrNotConnected)

	// Connecting later makes a retry succeed.
	s.AttachFeed(newFakeFeed())
	_, err = s.Subscribe()
	require.NoError(t, err)
}

func TestSession_UnsubscribeThenResubscribe(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	s := NewSession(nil, &fakeAPI{}, feed, "alice")

	_, err := s.Subscribe()
	require.NoError(t, err)

	s.Unsubscribe()
	assert.Empty(t, feed.listeners)
	s.Unsubscribe() // safe when none attached

	_, err = s.Subscribe()
	require.NoError(t, err)
	assert.Len(t, feed.listeners, 1)
}

func TestSession_SendAppendsServerMessage(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{sendOut: liveMessage("alice", "bob", "hello")}
	s := NewSession(nil, api, nil, "alice")
	s.SelectConversation(v1.User{ID: "bob"})

	msg, err := s.SendMessage(context.Background(), SendInput{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)
}

func TestSession_SendFailureLeavesMessagesUnchanged(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{sendErr: &APIError{Status: 500, Code: "store_failure"}}
	s := NewSession(nil, api, nil, "alice")
	s.SelectConversation(v1.User{ID: "bob"})

	_, err := s.SendMessage(context.Background(), SendInput{Text: "hello"})
	require.Error(t, err)
	assert.Empty(t, s.Messages())
}

func TestSession_SendWithoutSelection(t *testing.T) {
	t.Parallel()

	s := NewSession(nil, &fakeAPI{}, nil, "alice")
	_, err := s.SendMessage(context.Background(), SendInput{Text: "hello"})
	require.ErrorIs(t, err, ErrNoSelection)
}

func TestSession_OnlineUsersEventReplacesSet(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	s := NewSession(nil, &fakeAPI{}, feed, "alice")
	_, err := s.Subscribe()
	require.NoError(t, err)

	feed.emit(t, v1.TypeOnlineUsers, v1.OnlineUsersPayload{Users: []string{"alice", "bob"}})
	assert.True(t, s.IsOnline("bob"))

	feed.emit(t, v1.TypeOnlineUsers, v1.OnlineUsersPayload{Users: []string{"alice"}})
	assert.False(t, s.IsOnline("bob"), "set is replaced, not merged")
}

func TestSession_LoadConversationResetsUnread(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	api := &fakeAPI{conversation: []v1.Message{liveMessage("bob", "alice", "old")}}
	s := NewSession(nil, api, feed, "alice")
	_, err := s.Subscribe()
	require.NoError(t, err)

	feed.emit(t, v1.TypeNewMessage, liveMessage("bob", "alice", "hi"))
	require.Equal(t, 1, s.Unread("bob"))

	require.NoError(t, s.LoadConversation(context.Background(), "bob"))
	assert.Equal(t, 0, s.Unread("bob"))
	require.Len(t, s.Messages(), 1)
	assert.Equal(t, "old", s.Messages()[0].Text)
}
