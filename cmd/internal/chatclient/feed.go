package chatclient

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"sync"

	v1 "pigeon/shared/contracts/chat/v1"

	"github.com/coder/websocket"
)

const feedSubprotocol = "pigeon.chat.v1"

// Feed is a live event source. Subscribe attaches a listener and returns an
// opaque token; attaching on a dead transport returns ErrNotConnected.
type Feed interface {
	Subscribe(fn func(v1.Envelope)) (string, error)
	Unsubscribe(token string)
}

// Conn is the websocket Feed implementation. One read loop fans envelopes
// out to every attached listener in attach order.
type Conn struct {
	ws *websocket.Conn

	mu        sync.Mutex
	listeners map[string]func(v1.Envelope)
	nextID    int
	closed    bool

	done chan struct{}
}

// Dial connects the live feed. baseURL is the server's HTTP base URL; the
// scheme is rewritten to ws/wss.
func Dial(ctx context.Context, baseURL, token string) (*Conn, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	ws, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		Subprotocols: []string{feedSubprotocol},
	})
	if err != nil {
		return nil, err
	}

	c := &Conn{
		ws:        ws,
		listeners: make(map[string]func(v1.Envelope)),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) readLoop() {
	defer close(c.done)
	defer c.markClosed()

	for {
		_, data, err := c.ws.Read(context.Background())
		if err != nil {
			return
		}

		var env v1.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if err := env.Validate(); err != nil {
			continue
		}

		c.mu.Lock()
		fns := make([]func(v1.Envelope), 0, len(c.listeners))
		for _, fn := range c.listeners {
			fns = append(fns, fn)
		}
		c.mu.Unlock()

		for _, fn := range fns {
			fn(env)
		}
	}
}

// Subscribe attaches a listener.
func (c *Conn) Subscribe(fn func(v1.Envelope)) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrNotConnected
	}

	c.nextID++
	token := "lsn-" + strconv.Itoa(c.nextID)
	c.listeners[token] = fn
	return token, nil
}

// Unsubscribe detaches a listener. Unknown tokens are ignored.
func (c *Conn) Unsubscribe(token string) {
	c.mu.Lock()
	delete(c.listeners, token)
	c.mu.Unlock()
}

// Done is closed when the read loop exits.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close shuts the transport down.
func (c *Conn) Close() error {
	c.markClosed()
	return c.ws.Close(websocket.StatusNormalClosure, "bye")
}

func (c *Conn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
