package realtime

import (
	"encoding/json"
	"log/slog"
	"time"

	"pigeon/cmd/internal/chat"
	"pigeon/cmd/internal/metrics"

	v1 "pigeon/shared/contracts/chat/v1"
)

// Router pushes durably stored messages to the receiver's live connection.
// It satisfies chat.Deliverer.
//
// Push is strictly best-effort: an offline receiver or a saturated send
// queue drops the push silently and the receiver recovers the message from
// history on next load. The sender's own connection never receives a push.
type Router struct {
	log      *slog.Logger
	registry *Registry
	met      *metrics.Metrics
}

func NewRouter(log *slog.Logger, registry *Registry, met *metrics.Metrics) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{log: log, registry: registry, met: met}
}

// Deliver pushes msg to receiverID's connection, if one exists.
// Callers must have persisted msg before delivering.
func (rt *Router) Deliver(receiverID string, msg chat.Message) {
	if rt == nil || rt.registry == nil {
		return
	}

	client, ok := rt.registry.Lookup(receiverID)
	if !ok {
		rt.met.MessageDropped("offline")
		return
	}

	payload, err := json.Marshal(msg.Wire())
	if err != nil {
		rt.log.Error("router.marshal.fail", "message_id", msg.ID, "err", err)
		rt.met.MessageDropped("marshal")
		return
	}

	env := newEnvelope(v1.TypeNewMessage, payload, time.Now().UTC())
	if !client.enqueue(env) {
		rt.met.MessageDropped("backpressure")
		rt.log.Warn("router.push.drop", "receiver_id", receiverID, "conn_id", client.ConnID)
		return
	}

	rt.met.MessageDelivered()
	rt.log.Debug("router.push", "receiver_id", receiverID, "message_id", msg.ID)
}
