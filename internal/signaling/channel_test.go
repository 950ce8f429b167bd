package signaling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// relayStub is a minimal in-process relay: it acks authenticate and then
// echoes every frame back under its own event name.
type relayStub struct {
	srv *httptest.Server

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newRelayStub(t *testing.T) *relayStub {
	t.Helper()
	r := &relayStub{}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		r.mu.Lock()
		r.conns = append(r.conns, conn)
		r.mu.Unlock()

		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			switch f.Event {
			case EventAuthenticate:
				var p AuthenticatePayload
				_ = json.Unmarshal(f.Data, &p)
				if p.Token == "" {
					r.send(conn, EventError, ErrorPayload{Message: "invalid token"})
					continue
				}
				r.send(conn, EventAuthenticated, AuthenticatedPayload{UserID: "user-" + p.Token})
			default:
				_ = conn.WriteJSON(f)
			}
		}
	}))
	t.Cleanup(func() {
		r.mu.Lock()
		for _, c := range r.conns {
			c.Close()
		}
		r.mu.Unlock()
		r.srv.Close()
	})
	return r
}

func (r *relayStub) send(conn *websocket.Conn, event string, data any) {
	payload, _ := json.Marshal(data)
	_ = conn.WriteJSON(frame{Event: event, Data: payload})
}

func (r *relayStub) url() string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http")
}

func TestConnectAuthenticates(t *testing.T) {
	relay := newRelayStub(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := Connect(ctx, relay.url(), "tok")
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.WaitAuthenticated(ctx))
	assert.Equal(t, StateAuthenticated, ch.State())
	assert.Equal(t, "user-tok", ch.Identity())
}

func TestWaitAuthenticatedHonorsContext(t *testing.T) {
	relay := newRelayStub(t)

	ch, err := Connect(context.Background(), relay.url(), "")
	require.NoError(t, err)
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// The relay rejects an empty token, so the ack never comes.
	err = ch.WaitAuthenticated(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateConnected, ch.State())
}

func TestSubscribersSeeOnlyTheirEvents(t *testing.T) {
	relay := newRelayStub(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := Connect(ctx, relay.url(), "tok")
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.WaitAuthenticated(ctx))

	msgs := make(chan string, 4)
	calls := make(chan string, 4)
	ch.On(EventNewMessage, func(data json.RawMessage) {
		var p SendMessagePayload
		_ = json.Unmarshal(data, &p)
		msgs <- p.Content
	})
	ch.On(EventCallEnded, func(json.RawMessage) { calls <- "ended" })

	// The stub echoes unknown events back verbatim.
	require.NoError(t, ch.Emit(EventNewMessage, SendMessagePayload{ToUserID: "x", Content: "hello"}))
	require.NoError(t, ch.Emit(EventCallEnded, EndCallPayload{ToUserID: "x"}))

	select {
	case got := <-msgs:
		assert.Equal(t, "hello", got)
	case <-time.After(2 * time.Second):
		t.Fatal("message handler never fired")
	}
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("call handler never fired")
	}
	select {
	case got := <-msgs:
		t.Fatalf("message handler saw foreign event: %q", got)
	default:
	}
}

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	relay := newRelayStub(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := Connect(ctx, relay.url(), "tok")
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.WaitAuthenticated(ctx))

	order := make(chan int, 2)
	done := make(chan struct{})
	ch.On(EventCallEnded, func(json.RawMessage) { order <- 1 })
	ch.On(EventCallEnded, func(json.RawMessage) { order <- 2; close(done) })

	require.NoError(t, ch.Emit(EventCallEnded, EndCallPayload{ToUserID: "x"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handlers never fired")
	}
	assert.Equal(t, 1, <-order)
	assert.Equal(t, 2, <-order)
}

func TestOffRemovesOnlyThatEvent(t *testing.T) {
	relay := newRelayStub(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := Connect(ctx, relay.url(), "tok")
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.WaitAuthenticated(ctx))

	kept := make(chan struct{}, 1)
	ch.On(EventNewMessage, func(json.RawMessage) { t.Error("removed handler fired") })
	ch.On(EventCallEnded, func(json.RawMessage) { kept <- struct{}{} })
	ch.Off(EventNewMessage)

	require.NoError(t, ch.Emit(EventNewMessage, SendMessagePayload{Content: "x"}))
	require.NoError(t, ch.Emit(EventCallEnded, EndCallPayload{ToUserID: "x"}))

	select {
	case <-kept:
	case <-time.After(2 * time.Second):
		t.Fatal("surviving handler never fired")
	}
}

func TestDoneClosesOnServerDisconnect(t *testing.T) {
	relay := newRelayStub(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := Connect(ctx, relay.url(), "tok")
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.WaitAuthenticated(ctx))

	relay.mu.Lock()
	for _, c := range relay.conns {
		c.Close()
	}
	relay.mu.Unlock()

	select {
	case <-ch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done never closed after transport loss")
	}
	assert.Equal(t, StateDisconnected, ch.State())
}

func TestCloseIsIdempotent(t *testing.T) {
	relay := newRelayStub(t)

	ch, err := Connect(context.Background(), relay.url(), "tok")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		ch.Close()
		ch.Close()
	})
	select {
	case <-ch.Done():
	default:
		t.Fatal("Done not closed")
	}
}
