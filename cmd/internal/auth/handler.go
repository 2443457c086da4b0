package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pigeon/cmd/internal/chat"

	v1 "pigeon/shared/contracts/chat/v1"
)

const maxAuthBodyBytes = 16 << 10

// Handler wires the HTTP auth endpoints to the user store, token manager,
// and revocation store.
type Handler struct {
	log     *slog.Logger
	users   chat.UserStore
	tokens  *TokenManager
	revoked RevocationStore

	// secureCookies controls the Secure flag on the session cookie.
	// Dev over plain http needs it off; production must have it on.
	secureCookies bool
}

// NewHandler constructs the auth handler.
func NewHandler(log *slog.Logger, users chat.UserStore, tokens *TokenManager, revoked RevocationStore, secureCookies bool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if revoked == nil {
		revoked = NewMemoryRevocationStore()
	}
	return &Handler{
		log:           log,
		users:         users,
		tokens:        tokens,
		revoked:       revoked,
		secureCookies: secureCookies,
	}
}

// Register mounts the auth routes.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/signup", h.handleSignup)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", h.handleLogout)
}

// Authenticate verifies a token end-to-end: signature, expiry, revocation.
func (h *Handler) Authenticate(ctx context.Context, token string, now time.Time) (string, error) {
	userID, err := h.tokens.Verify(token, now)
	if err != nil {
		return "", err
	}
	revoked, err := h.revoked.IsRevoked(ctx, HashToken(token))
	if err != nil {
		// Refusing to authenticate is the safe failure mode when the
		// revocation store is unreachable.
		return "", err
	}
	if revoked {
		return "", ErrTokenRevoked
	}
	return userID, nil
}

type signupRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type authResponse struct {
	Token string  `json:"token"`
	User  v1.User `json:"user"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, maxAuthBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing username")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "weak_password", err.Error())
		return
	}

	now := time.Now().UTC()
	user, err := h.users.Create(r.Context(), chat.CreateUserInput{
		Username:     username,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: hash,
		Now:          now,
	})
	if err != nil {
		if errors.Is(err, chat.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "username_taken", "username already taken")
			return
		}
		h.log.Error("auth.signup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "store_failure", "could not create account")
		return
	}

	h.issueAndRespond(w, user, now)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, maxAuthBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}

	now := time.Now().UTC()

	user, err := h.users.ByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", ErrInvalidCredentials.Error())
			return
		}
		h.log.Error("auth.login.lookup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "store_failure", "could not log in")
		return
	}

	match, err := VerifyPassword(user.PasswordHash, req.Password)
	if err != nil || !match {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", ErrInvalidCredentials.Error())
		return
	}

	h.issueAndRespond(w, user, now)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := TokenFromRequest(r)
	if token != "" {
		// Best effort: denylist until natural expiry. A malformed token has
		// nothing to revoke.
		if _, err := h.tokens.Verify(token, time.Now().UTC()); err == nil {
			until := time.Now().UTC().Add(h.tokens.TTL())
			if err := h.revoked.Revoke(r.Context(), HashToken(token), until); err != nil {
				h.log.Error("auth.logout.revoke.fail", "err", err)
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *Handler) issueAndRespond(w http.ResponseWriter, user chat.User, now time.Time) {
	token, exp, err := h.tokens.Issue(user.ID, now)
	if err != nil {
		h.log.Error("auth.token.issue.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "token_failure", "could not issue token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user.Wire()})
}
