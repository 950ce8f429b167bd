// Package signaling maintains the persistent event channel to the relay
// server. One authenticated WebSocket carries both call-control signals and
// live message delivery; subscribers register per event type and never see
// each other's traffic.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/zoqapp/zoq-go/internal/util"
)

// State is the channel's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnected
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

// Handler receives the raw data payload of one inbound event.
type Handler func(data json.RawMessage)

// Channel is one long-lived event connection to the relay.
//
// Events emitted before the relay acknowledges authentication are unreliable;
// callers that need authoritative delivery wait on WaitAuthenticated first.
type Channel struct {
	conn    *websocket.Conn
	writeMu sync.Mutex // gorilla conns allow one concurrent writer

	mu       sync.RWMutex
	handlers map[string][]Handler
	identity string

	state  atomic.Int32
	authCh chan struct{}

	done     chan struct{}
	doneOnce sync.Once
}

// Connect dials the relay, sends the authenticate event, and starts the read
// loop. The returned Channel is Connected but not yet usable as authoritative;
// call WaitAuthenticated to block until the relay acknowledges the token.
func Connect(ctx context.Context, url, token string) (*Channel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}

	c := &Channel{
		conn:     conn,
		handlers: make(map[string][]Handler),
		authCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.state.Store(int32(StateConnected))

	// The ack handler is installed before the read loop starts, so the
	// relay's response cannot slip past it.
	c.On(EventAuthenticated, c.handleAuthenticated)
	c.On(EventError, func(data json.RawMessage) {
		var p ErrorPayload
		_ = json.Unmarshal(data, &p)
		util.LogWarning("relay error: %s", p.Message)
	})

	go c.readLoop()

	if err := c.Emit(EventAuthenticate, AuthenticatePayload{Token: token}); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to send authenticate: %w", err)
	}
	return c, nil
}

func (c *Channel) handleAuthenticated(data json.RawMessage) {
	var p AuthenticatedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		util.LogWarning("bad authenticated payload: %v", err)
		return
	}

	c.mu.Lock()
	c.identity = p.UserID
	c.mu.Unlock()

	if c.state.CompareAndSwap(int32(StateConnected), int32(StateAuthenticated)) {
		close(c.authCh)
		util.LogInfo("channel authenticated as %s", p.UserID)
	}
}

// WaitAuthenticated blocks until the relay acknowledges the token, the
// channel drops, or ctx expires.
func (c *Channel) WaitAuthenticated(ctx context.Context) error {
	select {
	case <-c.authCh:
		return nil
	case <-c.done:
		return fmt.Errorf("channel closed before authentication")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Identity returns the authenticated user id, or "" before authentication.
func (c *Channel) Identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// Emit writes one event frame. Fire-and-forget: no delivery guarantee beyond
// the transport's own.
func (c *Channel) Emit(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(frame{Event: event, Data: payload}); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// On appends a handler for the given event type. Handlers for one event run
// in registration order; handlers for different events never interfere.
func (c *Channel) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// Off removes all handlers for the given event type. Other event types keep
// their subscriptions.
func (c *Channel) Off(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, event)
}

// Done returns a channel closed when the transport is lost or Close is called.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close tears down the transport. Safe to call multiple times.
func (c *Channel) Close() error {
	var err error
	c.doneOnce.Do(func() {
		c.state.Store(int32(StateDisconnected))
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// readLoop decodes inbound frames and dispatches them until the transport
// drops. Handler panics are not recovered: a handler owns its own robustness.
func (c *Channel) readLoop() {
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			select {
			case <-c.done:
			default:
				util.LogWarning("channel read failed: %v", err)
			}
			c.Close()
			return
		}

		c.mu.RLock()
		hs := make([]Handler, len(c.handlers[f.Event]))
		copy(hs, c.handlers[f.Event])
		c.mu.RUnlock()

		if len(hs) == 0 {
			util.LogDebug("no subscriber for event %q", f.Event)
			continue
		}
		for _, h := range hs {
			h(f.Data)
		}
	}
}
