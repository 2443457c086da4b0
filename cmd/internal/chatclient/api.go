// Package chatclient is the client-side session layer: an HTTP client for
// the message API, a websocket feed for live events, and a Session that
// keeps roster, conversation, and unread state consistent with both.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	v1 "pigeon/shared/contracts/chat/v1"
)

// API is the request surface the Session depends on.
type API interface {
	Roster(ctx context.Context) ([]v1.User, error)
	Conversation(ctx context.Context, userID string) ([]v1.Message, error)
	Send(ctx context.Context, receiverID string, in SendInput) (v1.Message, error)
}

// SendInput is an outgoing message. Image is an inline data URL.
type SendInput struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// Credentials is the server's auth response.
type Credentials struct {
	Token string  `json:"token"`
	User  v1.User `json:"user"`
}

// Client talks to the Pigeon HTTP API. The zero Token means unauthenticated;
// Signup and Login fill it in.
type Client struct {
	BaseURL string
	Token   string

	// HTTPClient defaults to a client with a request timeout.
	HTTPClient *http.Client
}

// NewClient builds an API client for a server base URL like
// "http://127.0.0.1:8080".
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Signup creates an account and returns its credentials.
func (c *Client) Signup(ctx context.Context, username, displayName, password string) (Credentials, error) {
	var out Credentials
	err := c.do(ctx, http.MethodPost, "/api/auth/signup", map[string]string{
		"username":    username,
		"displayName": displayName,
		"password":    password,
	}, &out)
	if err == nil {
		c.Token = out.Token
	}
	return out, err
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (Credentials, error) {
	var out Credentials
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err == nil {
		c.Token = out.Token
	}
	return out, err
}

// Logout revokes the current token server-side.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	if err == nil {
		c.Token = ""
	}
	return err
}

// Roster lists every other user.
func (c *Client) Roster(ctx context.Context) ([]v1.User, error) {
	var out []v1.User
	err := c.do(ctx, http.MethodGet, "/api/messages/users", nil, &out)
	return out, err
}

// Conversation fetches the full two-way history with userID.
func (c *Client) Conversation(ctx context.Context, userID string) ([]v1.Message, error) {
	var out []v1.Message
	err := c.do(ctx, http.MethodGet, "/api/messages/"+userID, nil, &out)
	return out, err
}

// Send posts a message and returns the stored version.
func (c *Client) Send(ctx context.Context, receiverID string, in SendInput) (v1.Message, error) {
	var out v1.Message
	err := c.do(ctx, http.MethodPost, "/api/messages/send/"+receiverID, in, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<10)).Decode(&body); err == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	return apiErr
}
