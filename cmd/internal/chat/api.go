package chat

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	v1 "pigeon/shared/contracts/chat/v1"
)

const (
	maxMessageChars = 4000

	// Body limit is generous because images travel as base64 data URLs.
	maxSendBodyBytes = 12 << 20
)

// Deliverer pushes a persisted message to the receiver's live connection.
// Implementations must never fail the caller: the message is already durable.
type Deliverer interface {
	Deliver(receiverID string, msg Message)
}

// NopDeliverer drops every delivery. Used when the realtime layer is absent.
type NopDeliverer struct{}

// Deliver is a no-op.
func (NopDeliverer) Deliver(string, Message) {}

// IdentityResolver extracts the authenticated user identity from a request.
// The auth middleware owns how identities are established; this layer only
// trusts the result.
type IdentityResolver func(*http.Request) (string, bool)

// Handler wires the message API endpoints to the stores and the delivery router.
type Handler struct {
	log      *slog.Logger
	messages MessageStore
	users    UserStore
	blobs    BlobStore
	deliver  Deliverer
	identity IdentityResolver
}

// NewHandler constructs the chat API handler. Blobs may be nil (image sends
// are then rejected); deliver may be nil (no live push).
func NewHandler(log *slog.Logger, messages MessageStore, users UserStore, blobs BlobStore, deliver Deliverer, identity IdentityResolver) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if deliver == nil {
		deliver = NopDeliverer{}
	}
	if identity == nil {
		identity = func(*http.Request) (string, bool) { return "", false }
	}
	return &Handler{
		log:      log,
		messages: messages,
		users:    users,
		blobs:    blobs,
		deliver:  deliver,
		identity: identity,
	}
}

// Register mounts the message API routes. Every route requires an
// authenticated identity (enforced by the auth middleware wrapped outside).
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/messages/users", h.handleRoster)
	mux.HandleFunc("GET /api/messages/{id}", h.handleConversation)
	mux.HandleFunc("POST /api/messages/send/{id}", h.handleSend)
}

// handleRoster returns every other user for the sidebar.
func (h *Handler) handleRoster(w http.ResponseWriter, r *http.Request) {
	me, ok := h.identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "auth_required", "authentication required")
		return
	}

	users, err := h.users.ListOthers(r.Context(), me)
	if err != nil {
		h.log.Error("chat.roster.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "store_failure", "could not list users")
		return
	}

	out := make([]v1.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Wire())
	}
	writeJSON(w, http.StatusOK, out)
}

// handleConversation returns the full history with the path user, both directions.
func (h *Handler) handleConversation(w http.ResponseWriter, r *http.Request) {
	me, ok := h.identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "auth_required", "authentication required")
		return
	}

	other := strings.TrimSpace(r.PathValue("id"))
	if other == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing user id")
		return
	}

	if _, err := h.users.ByID(r.Context(), other); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no such user")
			return
		}
		h.log.Error("chat.conversation.user_lookup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "store_failure", "could not load conversation")
		return
	}

	msgs, err := h.messages.Conversation(r.Context(), me, other)
	if err != nil {
		h.log.Error("chat.conversation.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "store_failure", "could not load conversation")
		return
	}

	out := make([]v1.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Wire())
	}
	writeJSON(w, http.StatusOK, out)
}

type sendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// handleSend persists a message and, only after the durable write succeeds,
// pushes it to the receiver's live connection. Push problems never surface
// here: the message is already stored and retrievable.
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	me, ok := h.identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "auth_required", "authentication required")
		return
	}

	receiver := strings.TrimSpace(r.PathValue("id"))
	if receiver == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing receiver id")
		return
	}

	var req sendRequest
	if err := decodeJSON(w, r, maxSendBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" && strings.TrimSpace(req.Image) == "" {
		writeError(w, http.StatusBadRequest, "empty_message", ErrEmptyMessage.Error())
		return
	}
	if len([]rune(text)) > maxMessageChars {
		writeError(w, http.StatusBadRequest, "too_long", "message text too long")
		return
	}

	if _, err := h.users.ByID(r.Context(), receiver); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no such user")
			return
		}
		h.log.Error("chat.send.user_lookup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "store_failure", "could not send message")
		return
	}

	// Image upload happens before persistence; a rejected upload aborts the
	// send with nothing stored.
	var imageURL string
	if img := strings.TrimSpace(req.Image); img != "" {
		if h.blobs == nil {
			writeError(w, http.StatusBadGateway, "upload_failed", "image uploads not configured")
			return
		}
		data, contentType, err := DecodeImageDataURL(img)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_image", "invalid image data")
			return
		}
		imageURL, err = h.blobs.Upload(r.Context(), data, contentType)
		if err != nil {
			h.log.Error("chat.send.upload.fail", "err", err)
			writeError(w, http.StatusBadGateway, "upload_failed", ErrUploadFailed.Error())
			return
		}
	}

	msg, err := h.messages.Append(r.Context(), AppendInput{
		SenderID:   me,
		ReceiverID: receiver,
		Text:       text,
		ImageURL:   imageURL,
		Now:        time.Now().UTC(),
	})
	if err != nil {
		h.log.Error("chat.send.append.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "store_failure", "could not persist message")
		return
	}

	h.deliver.Deliver(receiver, msg)

	writeJSON(w, http.StatusOK, msg.Wire())
}
