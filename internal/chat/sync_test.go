package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoqapp/zoq-go/internal/api"
)

const selfID = "self"

// fakeStore serves canned data. A per-peer gate lets a test hold a thread
// load in flight to provoke the stale-load race.
type fakeStore struct {
	mu      sync.Mutex
	convs   []api.Conversation
	threads map[string][]api.Message
	gates   map[string]chan struct{}
	sent    []api.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		threads: make(map[string][]api.Message),
		gates:   make(map[string]chan struct{}),
	}
}

func (f *fakeStore) Conversations(ctx context.Context) ([]api.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]api.Conversation, len(f.convs))
	copy(out, f.convs)
	return out, nil
}

func (f *fakeStore) Thread(ctx context.Context, peerID string) ([]api.Message, error) {
	f.mu.Lock()
	gate := f.gates[peerID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.threads[peerID], nil
}

func (f *fakeStore) SendMessage(ctx context.Context, toUserID, content string) (*api.Message, error) {
	msg := api.Message{
		ID:         "srv-" + content,
		FromUserID: selfID,
		ToUserID:   toUserID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	return &msg, nil
}

// fakeEmitter mimics the socket path; authenticated toggles which send path
// the syncer takes.
type fakeEmitter struct {
	mu            sync.Mutex
	authenticated bool
	sent          []string
}

func (f *fakeEmitter) Authenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticated
}

func (f *fakeEmitter) SendMessage(toUserID, content string) error {
	f.mu.Lock()
	f.sent = append(f.sent, content)
	f.mu.Unlock()
	return nil
}

func at(sec int) time.Time {
	return time.Date(2025, 6, 1, 12, 0, sec, 0, time.UTC)
}

func TestLoadConversationsSortsMostRecentFirst(t *testing.T) {
	store := newFakeStore()
	store.convs = []api.Conversation{
		{UserID: "old", LastMessageTime: at(1)},
		{UserID: "new", LastMessageTime: at(30)},
		{UserID: "mid", LastMessageTime: at(10)},
	}
	s := NewSyncer(store, nil, selfID)

	require.NoError(t, s.LoadConversations(context.Background()))

	convs := s.Conversations()
	require.Len(t, convs, 3)
	assert.Equal(t, "new", convs[0].UserID)
	assert.Equal(t, "mid", convs[1].UserID)
	assert.Equal(t, "old", convs[2].UserID)
}

func TestOpenThreadDiscardsStaleLoad(t *testing.T) {
	store := newFakeStore()
	store.threads["alice"] = []api.Message{
		{ID: "a1", FromUserID: "alice", ToUserID: selfID, Content: "from alice", CreatedAt: at(1)},
	}
	store.threads["bob"] = []api.Message{
		{ID: "b1", FromUserID: "bob", ToUserID: selfID, Content: "from bob", CreatedAt: at(2)},
	}

	gate := make(chan struct{})
	store.gates["alice"] = gate

	s := NewSyncer(store, nil, selfID)

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.OpenThread(context.Background(), "alice") }()

	// Switch threads while alice's load is stuck behind the gate.
	assert.Eventually(t, func() bool { return s.ActivePeer() == "alice" }, time.Second, time.Millisecond)
	require.NoError(t, s.OpenThread(context.Background(), "bob"))

	close(gate)
	require.NoError(t, <-firstDone)

	assert.Equal(t, "bob", s.ActivePeer())
	msgs := s.Messages()
	require.Len(t, msgs, 1, "stale load must not leak into the new thread")
	assert.Equal(t, "b1", msgs[0].ID)
}

func TestSendOverSocketAppendsProvisional(t *testing.T) {
	store := newFakeStore()
	em := &fakeEmitter{authenticated: true}
	s := NewSyncer(store, em, selfID)

	require.NoError(t, s.OpenThread(context.Background(), "alice"))
	require.NoError(t, s.Send(context.Background(), "alice", "hey"))

	assert.Equal(t, []string{"hey"}, em.sent)
	assert.Empty(t, store.sent, "socket path skips the REST write")

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Pending)
	assert.Equal(t, "hey", msgs[0].Content)
	assert.Equal(t, selfID, msgs[0].FromUserID)

	convs := s.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, "hey", convs[0].LastMessage)
	assert.Zero(t, convs[0].UnreadCount, "own sends are never unread")
}

func TestSendFallsBackToRESTWhenOffline(t *testing.T) {
	store := newFakeStore()
	em := &fakeEmitter{authenticated: false}
	s := NewSyncer(store, em, selfID)

	require.NoError(t, s.OpenThread(context.Background(), "alice"))
	require.NoError(t, s.Send(context.Background(), "alice", "hi"))

	assert.Empty(t, em.sent)
	require.Len(t, store.sent, 1)
	assert.Equal(t, "hi", store.sent[0].Content)

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Pending)
}

func TestSendRejectsBlankContent(t *testing.T) {
	s := NewSyncer(newFakeStore(), nil, selfID)
	assert.ErrorIs(t, s.Send(context.Background(), "alice", "   "), api.ErrValidation)
	assert.Empty(t, s.Messages())
}

func TestEchoConfirmsProvisional(t *testing.T) {
	store := newFakeStore()
	em := &fakeEmitter{authenticated: true}
	s := NewSyncer(store, em, selfID)

	require.NoError(t, s.OpenThread(context.Background(), "alice"))
	require.NoError(t, s.Send(context.Background(), "alice", "ping"))

	s.HandleNewMessage(api.Message{
		ID: "srv-1", FromUserID: selfID, ToUserID: "alice",
		Content: "ping", CreatedAt: at(5),
	})

	msgs := s.Messages()
	require.Len(t, msgs, 1, "echo replaces the provisional, no duplicate")
	assert.Equal(t, "srv-1", msgs[0].ID)
	assert.False(t, msgs[0].Pending)
}

func TestInsertKeepsChronologicalOrder(t *testing.T) {
	s := NewSyncer(newFakeStore(), nil, selfID)
	require.NoError(t, s.OpenThread(context.Background(), "alice"))

	// B arrives first despite being created later.
	s.HandleNewMessage(api.Message{ID: "B", FromUserID: "alice", ToUserID: selfID, Content: "b", CreatedAt: at(20)})
	s.HandleNewMessage(api.Message{ID: "A", FromUserID: "alice", ToUserID: selfID, Content: "a", CreatedAt: at(10)})

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "A", msgs[0].ID)
	assert.Equal(t, "B", msgs[1].ID)
}

func TestEqualTimestampsKeepArrivalOrder(t *testing.T) {
	s := NewSyncer(newFakeStore(), nil, selfID)
	require.NoError(t, s.OpenThread(context.Background(), "alice"))

	s.HandleNewMessage(api.Message{ID: "first", FromUserID: "alice", ToUserID: selfID, Content: "1", CreatedAt: at(10)})
	s.HandleNewMessage(api.Message{ID: "second", FromUserID: "alice", ToUserID: selfID, Content: "2", CreatedAt: at(10)})

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].ID)
	assert.Equal(t, "second", msgs[1].ID)
}

func TestInboundForOtherThreadBumpsUnread(t *testing.T) {
	s := NewSyncer(newFakeStore(), nil, selfID)
	require.NoError(t, s.OpenThread(context.Background(), "alice"))

	s.HandleNewMessage(api.Message{ID: "x", FromUserID: "bob", ToUserID: selfID, Content: "yo", CreatedAt: at(3)})

	assert.Empty(t, s.Messages(), "other thread's log untouched")

	convs := s.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, "bob", convs[0].UserID)
	assert.Equal(t, 1, convs[0].UnreadCount)
}

func TestInboundForOpenThreadNotUnread(t *testing.T) {
	s := NewSyncer(newFakeStore(), nil, selfID)
	require.NoError(t, s.OpenThread(context.Background(), "alice"))

	s.HandleNewMessage(api.Message{ID: "x", FromUserID: "alice", ToUserID: selfID, Content: "yo", CreatedAt: at(3)})

	require.Len(t, s.Messages(), 1)
	convs := s.Conversations()
	require.Len(t, convs, 1)
	assert.Zero(t, convs[0].UnreadCount)
}

func TestCloseThreadClearsLog(t *testing.T) {
	store := newFakeStore()
	store.threads["alice"] = []api.Message{
		{ID: "a1", FromUserID: "alice", ToUserID: selfID, Content: "hi", CreatedAt: at(1)},
	}
	s := NewSyncer(store, nil, selfID)

	require.NoError(t, s.OpenThread(context.Background(), "alice"))
	require.Len(t, s.Messages(), 1)

	s.CloseThread()
	assert.Empty(t, s.Messages())
	assert.Empty(t, s.ActivePeer())
}
