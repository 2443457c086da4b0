package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"pigeon/cmd/internal/chat"

	v1 "pigeon/shared/contracts/chat/v1"
)

func testMessage(id string) chat.Message {
	return chat.Message{
		ID:         id,
		SenderID:   "alice",
		ReceiverID: "bob",
		Text:       "hello",
		CreatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRouter_DeliverPushesToOnlineReceiver(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil, nil)
	bob := NewClient("bob", "conn-b", 8)
	reg.Register(bob)
	drainOnlineUsers(t, bob)

	rt := NewRouter(nil, reg, nil)
	rt.Deliver("bob", testMessage("m1"))

	select {
	case env := <-bob.Send:
		if env.Type != v1.TypeNewMessage {
			t.Fatalf("type: got %q want %q", env.Type, v1.TypeNewMessage)
		}
		var m v1.Message
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if m.ID != "m1" || m.SenderID != "alice" || m.ReceiverID != "bob" || m.Text != "hello" {
			t.Fatalf("payload mismatch: %+v", m)
		}
	default:
		t.Fatalf("no frame queued for receiver")
	}
}

func TestRouter_DeliverOfflineReceiverIsSilent(t *testing.T) {
	t.Parallel()

	rt := NewRouter(nil, NewRegistry(nil, nil), nil)

	// Must not panic, block, or error surface anywhere.
	rt.Deliver("nobody", testMessage("m1"))
}

func TestRouter_DeliverDropsUnderBackpressure(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil, nil)
	bob := NewClient("bob", "conn-b", 1)
	reg.Register(bob)

	rt := NewRouter(nil, reg, nil)

	// The registration broadcast already occupies the single queue slot;
	// both pushes race against a full queue and neither may block.
	done := make(chan struct{})
	go func() {
		rt.Deliver("bob", testMessage("m1"))
		rt.Deliver("bob", testMessage("m2"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Deliver blocked on a saturated send queue")
	}
}
