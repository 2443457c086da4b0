package chat

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryStore_Conversation_MergesBothDirections(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sends := []struct {
		sender, receiver, text string
	}{
		{"alice", "bob", "hi bob"},
		{"bob", "alice", "hi alice"},
		{"alice", "bob", "how are you"},
	}

	for i, s := range sends {
		if _, err := store.Append(ctx, AppendInput{
			SenderID:   s.sender,
			ReceiverID: s.receiver,
			Text:       s.text,
			Now:        base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		msgs, err := store.Conversation(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("conversation(%s, %s): %v", pair[0], pair[1], err)
		}
		if len(msgs) != len(sends) {
			t.Fatalf("conversation(%s, %s): expected %d messages got %d", pair[0], pair[1], len(sends), len(msgs))
		}
		for i, m := range msgs {
			if m.Text != sends[i].text {
				t.Fatalf("order: msg %d text=%q want=%q", i, m.Text, sends[i].text)
			}
		}
	}
}

func TestInMemoryStore_Conversation_PairIsolation(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	for _, pair := range [][2]string{{"alice", "bob"}, {"alice", "carol"}, {"carol", "bob"}} {
		if _, err := store.Append(ctx, AppendInput{
			SenderID:   pair[0],
			ReceiverID: pair[1],
			Text:       "x",
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	msgs, err := store.Conversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message between the pair, got %d", len(msgs))
	}
	if msgs[0].SenderID != "alice" || msgs[0].ReceiverID != "bob" {
		t.Fatalf("third-party message leaked into conversation: %+v", msgs[0])
	}
}

func TestInMemoryStore_Append_AssignsIDAndTimestamp(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()

	msg, err := store.Append(context.Background(), AppendInput{
		SenderID:   "alice",
		ReceiverID: "bob",
		Text:       "hello",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if msg.ID == "" {
		t.Fatalf("expected non-empty id")
	}
	if msg.CreatedAt.IsZero() {
		t.Fatalf("expected non-zero timestamp")
	}
}

func TestInMemoryStore_Append_RejectsMissingParticipants(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()

	if _, err := store.Append(context.Background(), AppendInput{ReceiverID: "bob"}); err == nil {
		t.Fatalf("expected error for missing sender")
	}
	if _, err := store.Append(context.Background(), AppendInput{SenderID: "alice"}); err == nil {
		t.Fatalf("expected error for missing receiver")
	}
}

func TestInMemoryStore_Users_UniqueUsername(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	if _, err := store.Create(ctx, CreateUserInput{
		Username:     "alice",
		PasswordHash: "h",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.Create(ctx, CreateUserInput{
		Username:     "alice",
		PasswordHash: "h",
	}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestInMemoryStore_Users_LookupAndListOthers(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	alice, err := store.Create(ctx, CreateUserInput{Username: "alice", DisplayName: "Alice", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := store.Create(ctx, CreateUserInput{Username: "bob", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	got, err := store.ByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("by username: %v", err)
	}
	if got.ID != alice.ID {
		t.Fatalf("by username: got id %q want %q", got.ID, alice.ID)
	}

	got, err = store.ByID(ctx, bob.ID)
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	if got.Username != "bob" {
		t.Fatalf("by id: got username %q want bob", got.Username)
	}

	if _, err := store.ByID(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.ByUsername(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	others, err := store.ListOthers(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list others: %v", err)
	}
	if len(others) != 1 || others[0].ID != bob.ID {
		t.Fatalf("list others: expected only bob, got %+v", others)
	}
}
