package chat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are enabled when PIGEON_TEST_DATABASE_URL is set.
// This keeps local "go test ./..." fast & deterministic without requiring Postgres.

func TestPostgresStore_Append_Conversation_BothDirections(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })

	mustApplySchema(t, pool, schema)

	store := mustNewStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	alice := "user-a-" + testRandomHex(6)
	bob := "user-b-" + testRandomHex(6)

	base := time.Now().UTC().Truncate(time.Millisecond)

	texts := []struct {
		sender, receiver, text string
	}{
		{alice, bob, "hi bob"},
		{bob, alice, "hi alice"},
		{alice, bob, "how are you"},
	}

	for i, tc := range texts {
		stored, err := store.Append(ctx, AppendInput{
			SenderID:   tc.sender,
			ReceiverID: tc.receiver,
			Text:       tc.text,
			Now:        base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if strings.TrimSpace(stored.ID) == "" {
			t.Fatalf("append %d: expected non-empty id", i)
		}
	}

	// Both orderings of the pair must see the same merged history, oldest first.
	for _, pair := range [][2]string{{alice, bob}, {bob, alice}} {
		msgs, err := store.Conversation(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("conversation(%s, %s): %v", pair[0], pair[1], err)
		}
		if len(msgs) != len(texts) {
			t.Fatalf("conversation(%s, %s): expected %d messages got %d", pair[0], pair[1], len(texts), len(msgs))
		}
		for i, m := range msgs {
			if m.Text != texts[i].text {
				t.Fatalf("conversation order: msg %d text=%q want=%q", i, m.Text, texts[i].text)
			}
			if m.SenderID != texts[i].sender || m.ReceiverID != texts[i].receiver {
				t.Fatalf("conversation: msg %d sender/receiver mismatch", i)
			}
		}
	}
}

func TestPostgresStore_Conversation_ExcludesThirdParties(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })

	mustApplySchema(t, pool, schema)

	store := mustNewStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	alice := "user-a-" + testRandomHex(6)
	bob := "user-b-" + testRandomHex(6)
	carol := "user-c-" + testRandomHex(6)

	for _, pair := range [][2]string{{alice, bob}, {alice, carol}, {carol, bob}} {
		if _, err := store.Append(ctx, AppendInput{
			SenderID:   pair[0],
			ReceiverID: pair[1],
			Text:       "x",
			Now:        time.Now().UTC(),
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	msgs, err := store.Conversation(ctx, alice, bob)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message between the pair, got %d", len(msgs))
	}
	if msgs[0].SenderID != alice || msgs[0].ReceiverID != bob {
		t.Fatalf("unexpected message leaked into conversation: %+v", msgs[0])
	}
}

func TestPostgresStore_Users_Create_Lookup_ListOthers(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })

	mustApplySchema(t, pool, schema)

	store := mustNewStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	alice, err := store.Create(ctx, CreateUserInput{
		Username:     "alice",
		DisplayName:  "Alice",
		PasswordHash: "$argon2id$fake",
	})
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}

	bob, err := store.Create(ctx, CreateUserInput{
		Username:     "bob",
		DisplayName:  "Bob",
		PasswordHash: "$argon2id$fake",
	})
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	// Duplicate username maps to ErrUsernameTaken, not a raw pg error.
	if _, err := store.Create(ctx, CreateUserInput{
		Username:     "alice",
		PasswordHash: "$argon2id$fake",
	}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate username: expected ErrUsernameTaken, got %v", err)
	}

	got, err := store.ByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("by username: %v", err)
	}
	if got.ID != alice.ID || got.DisplayName != "Alice" {
		t.Fatalf("by username: got %+v want id=%s", got, alice.ID)
	}

	got, err = store.ByID(ctx, bob.ID)
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	if got.Username != "bob" {
		t.Fatalf("by id: got username %q want bob", got.Username)
	}

	if _, err := store.ByID(ctx, "no-such-user"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user: expected ErrNotFound, got %v", err)
	}

	others, err := store.ListOthers(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list others: %v", err)
	}
	if len(others) != 1 || others[0].ID != bob.ID {
		t.Fatalf("list others: expected only bob, got %+v", others)
	}
}

// ---- test helpers ----

func mustNewStore(t *testing.T, pool *pgxpool.Pool, schema string) *PostgresStore {
	t.Helper()

	st, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new postgres store: %v", err)
	}
	return st
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("PIGEON_TEST_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: PIGEON_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse PIGEON_TEST_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	return pool
}

func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	schema := "pigeon_it_" + strings.ToLower(testRandomHex(8))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return schema
}

func mustDropSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
}

func mustApplySchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	users := pgIdent(schema, "users")
	messages := pgIdent(schema, "messages")

	// Minimal schema required by PostgresStore.
	// Must remain semantically aligned with infra/db/schema.sql.
	schemaSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id            TEXT PRIMARY KEY,
  username      TEXT NOT NULL UNIQUE,
  display_name  TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS %s (
  id          TEXT PRIMARY KEY,
  sender_id   TEXT NOT NULL,
  receiver_id TEXT NOT NULL,
  text        TEXT NOT NULL DEFAULT '',
  image_url   TEXT NOT NULL DEFAULT '',
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_pair_fwd
  ON %s (sender_id, receiver_id, id ASC);

CREATE INDEX IF NOT EXISTS idx_messages_pair_rev
  ON %s (receiver_id, sender_id, id ASC);
`, users, messages, messages, messages)

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

func testRandomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
