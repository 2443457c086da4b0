// Package realtime contains Pigeon's presence and delivery core: the
// connection registry, the online-set broadcaster, the delivery router, and
// the websocket gateway.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"pigeon/cmd/internal/metrics"

	v1 "pigeon/shared/contracts/chat/v1"
)

// Registry maps authenticated user identities to their live connection.
// It is the single source of truth for "is user X online".
//
// Concurrency guarantees:
//   - Register/Unregister/Lookup are safe for concurrent use.
//   - The online snapshot and its broadcast happen inside the same critical
//     section as the mutation, so no connection ever observes a torn set.
//   - Broadcast never blocks (enqueue drops under backpressure).
//
// Entries are not persisted: after a restart every user is offline until
// they reconnect.
type Registry struct {
	log *slog.Logger
	met *metrics.Metrics

	mu      sync.Mutex
	byUser  map[string]*Client // user identity -> live connection
	clients map[string]*Client // conn identifier -> client, for fanout
}

// NewRegistry constructs an empty Registry. met may be nil.
func NewRegistry(log *slog.Logger, met *metrics.Metrics) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:     log,
		met:     met,
		byUser:  make(map[string]*Client),
		clients: make(map[string]*Client),
	}
}

// Register binds a user identity to a connection, overwriting any prior
// binding for that identity (last connection wins). A displaced connection
// is closed so its eventual disconnect cannot evict the new entry.
// The updated online set is broadcast to every connection before returning.
func (r *Registry) Register(client *Client) {
	if r == nil || client == nil || client.UserID == "" || client.ConnID == "" {
		return
	}

	r.mu.Lock()

	var displaced *Client
	if prev, ok := r.byUser[client.UserID]; ok && prev.ConnID != client.ConnID {
		displaced = prev
		delete(r.clients, prev.ConnID)
	}

	r.byUser[client.UserID] = client
	r.clients[client.ConnID] = client

	r.broadcastOnlineLocked()
	r.mu.Unlock()

	// Closing outside the lock: Close only signals goroutines.
	if displaced != nil {
		displaced.Close()
		r.log.Info("registry.displace", "user_id", client.UserID, "old_conn_id", displaced.ConnID)
	}

	r.log.Info("registry.register", "user_id", client.UserID, "conn_id", client.ConnID)
}

// Lookup returns the live connection for a user identity, if any.
func (r *Registry) Lookup(userID string) (*Client, bool) {
	if r == nil || userID == "" {
		return nil, false
	}

	r.mu.Lock()
	c, ok := r.byUser[userID]
	r.mu.Unlock()
	return c, ok
}

// Unregister removes the entry whose connection identifier matches.
// Removal is compare-and-delete: when the identity was rebound to a newer
// connection in the interim, the stale disconnect finds no matching value
// and must not evict the newer mapping.
func (r *Registry) Unregister(connID string) {
	if r == nil || connID == "" {
		return
	}

	r.mu.Lock()

	client, ok := r.clients[connID]
	if !ok {
		r.mu.Unlock()
		return
	}

	delete(r.clients, connID)
	if cur, ok := r.byUser[client.UserID]; ok && cur.ConnID == connID {
		delete(r.byUser, client.UserID)
	}

	r.broadcastOnlineLocked()
	r.mu.Unlock()

	client.Close()
	r.log.Info("registry.unregister", "user_id", client.UserID, "conn_id", connID)
}

// Online returns a sorted snapshot of the online user identities.
func (r *Registry) Online() []string {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	out := onlineSetLocked(r.byUser)
	r.mu.Unlock()
	return out
}

// broadcastOnlineLocked fans the full online set out to every connection.
// Caller must hold r.mu; enqueue is non-blocking so holding the lock here is
// safe and is what makes the snapshot+broadcast step atomic.
func (r *Registry) broadcastOnlineLocked() {
	users := onlineSetLocked(r.byUser)

	payload, err := json.Marshal(v1.OnlineUsersPayload{Users: users})
	if err != nil {
		r.log.Error("registry.broadcast.marshal.fail", "err", err)
		return
	}
	env := newEnvelope(v1.TypeOnlineUsers, payload, time.Now().UTC())

	for _, c := range r.clients {
		if !c.enqueue(env) {
			// Drop rather than block the registry.
			r.log.Debug("registry.broadcast.drop", "user_id", c.UserID, "conn_id", c.ConnID)
		}
	}

	r.met.PresenceBroadcast()
	r.met.SetOnlineUsers(len(users))
}

func onlineSetLocked(byUser map[string]*Client) []string {
	out := make([]string, 0, len(byUser))
	for id := range byUser {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// newEnvelope wraps a payload in the canonical wire envelope.
func newEnvelope(typ string, payload json.RawMessage, ts time.Time) v1.Envelope {
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      NewRandomHex(10),
		TS:      ts,
		Payload: payload,
	}
}
