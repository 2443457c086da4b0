// Package main provides a CI-friendly smoke test for the Pigeon server.
//
// It validates:
//   - signup + token issuance over the REST API
//   - WebSocket handshake + subprotocol selection with token auth
//   - online-users broadcast on connect and disconnect
//   - REST send -> persisted response
//   - live new-message push to the receiver (and no echo to the sender)
//   - history fetch containing the sent message
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "pigeon/shared/contracts/chat/v1"

	"github.com/coder/websocket"
)

const (
	subprotocol  = "pigeon.chat.v1"
	maxReadBytes = 1 << 20 // 1MiB
)

type account struct {
	id    string
	token string
	name  string
}

type smokeClient struct {
	name string
	conn *websocket.Conn

	inbox chan v1.Envelope
	errCh chan error
}

func main() {
	var (
		baseURL = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		text    = flag.String("text", "hello pigeon 👋", "Message text to send")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	root := context.Background()

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	alice := mustSignup(root, *baseURL, "smoke-a-"+suffix, *timeout)
	bob := mustSignup(root, *baseURL, "smoke-b-"+suffix, *timeout)

	if *verbose {
		fmt.Printf("accounts: A=%s B=%s\n", alice.id, bob.id)
	}

	a := mustConnect(root, "A", *baseURL, *origin, alice.token, *timeout)
	defer closeWS(a.conn)

	b := mustConnect(root, "B", *baseURL, *origin, bob.token, *timeout)
	defer closeWS(b.conn)

	// Both connections must converge on an online set containing both users.
	mustSeeOnline(root, a, []string{alice.id, bob.id}, *timeout)
	mustSeeOnline(root, b, []string{alice.id, bob.id}, *timeout)

	sent := mustSendREST(root, *baseURL, alice.token, bob.id, *text, *timeout)

	mustAssertNewMessage(root, b, sent.ID, alice.id, *text, *timeout)
	mustAssertNoType(root, a, v1.TypeNewMessage, 1200*time.Millisecond)

	mustHistoryContains(root, *baseURL, bob.token, alice.id, sent.ID, *text, *timeout)

	// A disconnect must push a shrunken online set to the survivor.
	closeWS(a.conn)
	mustSeeOnlineWithout(root, b, alice.id, *timeout)

	fmt.Printf("OK: A=%s B=%s message_id=%s\n", alice.id, bob.id, sent.ID)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustSignup(parent context.Context, baseURL, username string, stepTimeout time.Duration) account {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	body := mustJSON(map[string]string{
		"username": username,
		"password": "smoke-" + username,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/auth/signup", bytes.NewReader(body))
	if err != nil {
		fatalf("signup request %s: %v", username, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("signup %s: %v", username, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if resp.StatusCode != http.StatusOK {
		fatalf("signup %s: status=%d body=%s", username, resp.StatusCode, raw)
	}

	var out struct {
		Token string  `json:"token"`
		User  v1.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		fatalf("signup %s: decode: %v", username, err)
	}
	if strings.TrimSpace(out.Token) == "" || strings.TrimSpace(out.User.ID) == "" {
		fatalf("signup %s: missing token or user id", username)
	}
	return account{id: out.User.ID, token: out.Token, name: username}
}

func mustConnect(parent context.Context, name, baseURL, origin, token string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/ws?token=" + url.QueryEscape(token)

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}

	assertSubprotocol(resp, subprotocol)

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:  name,
		conn:  conn,
		inbox: make(chan v1.Envelope, 512),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()
	return c
}

func assertSubprotocol(resp *http.Response, want string) {
	if resp == nil {
		return
	}
	got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
	if got == "" {
		return
	}
	if got != want {
		fatalf("subprotocol mismatch: got=%q want=%q", got, want)
	}
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}

			if mt != websocket.MessageText && mt != websocket.MessageBinary {
				select {
				case c.errCh <- fmt.Errorf("unsupported message type: %v", mt):
				default:
				}
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad json: %w", err):
				default:
				}
				return
			}
			if err := env.Validate(); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad envelope: %w", err):
				default:
				}
				return
			}

			select {
			case c.inbox <- env:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

func mustSeeOnline(parent context.Context, c *smokeClient, wantIDs []string, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		env := c.mustReadType(ctx, v1.TypeOnlineUsers)

		var p v1.OnlineUsersPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			fatalf("unmarshal online-users payload (%s): %v", c.name, err)
		}

		online := make(map[string]struct{}, len(p.Users))
		for _, id := range p.Users {
			online[id] = struct{}{}
		}

		all := true
		for _, id := range wantIDs {
			if _, ok := online[id]; !ok {
				all = false
				break
			}
		}
		if all {
			return
		}
		// Earlier snapshot from before everyone connected; keep reading.
	}
}

func mustSeeOnlineWithout(parent context.Context, c *smokeClient, goneID string, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		env := c.mustReadType(ctx, v1.TypeOnlineUsers)

		var p v1.OnlineUsersPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			fatalf("unmarshal online-users payload (%s): %v", c.name, err)
		}

		present := false
		for _, id := range p.Users {
			if id == goneID {
				present = true
				break
			}
		}
		if !present {
			return
		}
	}
}

func mustSendREST(parent context.Context, baseURL, token, receiverID, text string, stepTimeout time.Duration) v1.Message {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	body := mustJSON(map[string]string{"text": text})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		baseURL+"/api/messages/send/"+url.PathEscape(receiverID), bytes.NewReader(body))
	if err != nil {
		fatalf("send request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("send: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if resp.StatusCode != http.StatusOK {
		fatalf("send: status=%d body=%s", resp.StatusCode, raw)
	}

	var msg v1.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		fatalf("send: decode: %v", err)
	}
	if strings.TrimSpace(msg.ID) == "" {
		fatalf("send: missing message id")
	}
	return msg
}

func mustAssertNewMessage(parent context.Context, c *smokeClient, msgID, senderID, text string, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		env := c.mustReadAny(ctx)
		if env.Type != v1.TypeNewMessage {
			// Presence churn is fine while waiting for the push.
			if env.Type == v1.TypeOnlineUsers {
				continue
			}
			fatalf("unexpected envelope type (%s): got=%q want=%q", c.name, env.Type, v1.TypeNewMessage)
		}

		var p v1.Message
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			fatalf("unmarshal new-message payload (%s): %v", c.name, err)
		}
		if p.ID != msgID {
			fatalf("new-message id mismatch (%s): got=%q want=%q", c.name, p.ID, msgID)
		}
		if p.SenderID != senderID {
			fatalf("new-message sender mismatch (%s): got=%q want=%q", c.name, p.SenderID, senderID)
		}
		if p.Text != text {
			fatalf("new-message text mismatch (%s): got=%q want=%q", c.name, p.Text, text)
		}
		if p.CreatedAt.IsZero() {
			fatalf("new-message createdAt missing/zero (%s)", c.name)
		}
		return
	}
}

func mustHistoryContains(parent context.Context, baseURL, token, otherID, msgID, text string, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		baseURL+"/api/messages/"+url.PathEscape(otherID), nil)
	if err != nil {
		fatalf("history request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("history: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if resp.StatusCode != http.StatusOK {
		fatalf("history: status=%d body=%s", resp.StatusCode, raw)
	}

	var msgs []v1.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		fatalf("history: decode: %v", err)
	}
	for _, m := range msgs {
		if m.ID == msgID && m.Text == text {
			return
		}
	}
	fatalf("history missing message id=%q", msgID)
}

func mustAssertNoType(parent context.Context, c *smokeClient, forbiddenType string, wait time.Duration) {
	ctx, cancel := context.WithTimeout(parent, wait)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-c.errCh:
			if err == nil {
				fatalf("connection closed unexpectedly (%s)", c.name)
			}
			fatalf("connection closed unexpectedly (%s): %v", c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed unexpectedly (%s)", c.name)
			}
			if env.Type == v1.TypeError {
				var ep v1.ErrorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
			}
			if env.Type == forbiddenType {
				fatalf("unexpected %s received (%s)", forbiddenType, c.name)
			}
		}
	}
}

func (c *smokeClient) mustReadType(ctx context.Context, wantType string) v1.Envelope {
	for {
		env := c.mustReadAny(ctx)
		if env.Type == wantType {
			return env
		}
		if env.Type == v1.TypeError {
			var ep v1.ErrorPayload
			_ = json.Unmarshal(env.Payload, &ep)
			fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
		}
		// Ignore other traffic while waiting.
	}
}

func (c *smokeClient) mustReadAny(ctx context.Context) v1.Envelope {
	select {
	case <-ctx.Done():
		fatalf("timeout waiting for envelope (%s): %v", c.name, ctx.Err())
	case err := <-c.errCh:
		if err == nil {
			fatalf("connection closed (%s)", c.name)
		}
		fatalf("connection error (%s): %v", c.name, err)
	case env, ok := <-c.inbox:
		if !ok {
			fatalf("connection closed (%s)", c.name)
		}
		return env
	}
	return v1.Envelope{}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
