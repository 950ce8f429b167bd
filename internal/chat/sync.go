// Package chat keeps the conversation list and the active thread consistent
// under three event sources: REST loads, optimistic local sends, and inbound
// socket-delivered messages.
package chat

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zoqapp/zoq-go/internal/api"
	"github.com/zoqapp/zoq-go/internal/util"
)

// Store is the REST subset the syncer depends on; *api.Client satisfies it.
type Store interface {
	Conversations(ctx context.Context) ([]api.Conversation, error)
	Thread(ctx context.Context, peerID string) ([]api.Message, error)
	SendMessage(ctx context.Context, toUserID, content string) (*api.Message, error)
}

// Emitter is the signaling-channel subset the syncer depends on. A nil or
// unauthenticated emitter routes sends through the Store instead.
type Emitter interface {
	Authenticated() bool
	SendMessage(toUserID, content string) error
}

// Message is one thread entry. Pending marks an optimistic local send that
// the server has not confirmed yet.
type Message struct {
	api.Message
	Pending bool
}

// Syncer owns the in-memory conversation list and the active thread's log.
// The active thread exclusively owns its log: switching threads discards it.
type Syncer struct {
	store   Store
	emitter Emitter
	selfID  string

	mu            sync.Mutex
	conversations []api.Conversation
	thread        []Message
	activePeer    string
	epoch         uint64 // bumped on every thread switch; stale loads are discarded

	onChange func()
}

// NewSyncer creates a Syncer for the authenticated user selfID.
func NewSyncer(store Store, emitter Emitter, selfID string) *Syncer {
	return &Syncer{store: store, emitter: emitter, selfID: selfID}
}

// OnChange registers a non-blocking observer fired after every state change.
func (s *Syncer) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Syncer) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Conversations returns a snapshot of the list, most recent first.
func (s *Syncer) Conversations() []api.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Messages returns a snapshot of the active thread's log, oldest first.
func (s *Syncer) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.thread))
	copy(out, s.thread)
	return out
}

// ActivePeer returns the counterpart of the open thread, or "".
func (s *Syncer) ActivePeer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePeer
}

// LoadConversations replaces the list wholesale from the data source and
// reorders it by last message time descending.
func (s *Syncer) LoadConversations(ctx context.Context) error {
	convs, err := s.store.Conversations(ctx)
	if err != nil {
		return err
	}
	sortConversations(convs)

	s.mu.Lock()
	s.conversations = convs
	s.mu.Unlock()
	s.notify()
	return nil
}

// OpenThread switches the active thread to peerID, discarding the prior log
// before loading the new one. A load still in flight for a previously opened
// thread is discarded when it resolves, never appended.
func (s *Syncer) OpenThread(ctx context.Context, peerID string) error {
	s.mu.Lock()
	s.epoch++
	e := s.epoch
	s.activePeer = peerID
	s.thread = nil
	s.mu.Unlock()
	s.notify()

	msgs, err := s.store.Thread(ctx, peerID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.epoch != e {
		// The user switched threads while this load was in flight.
		s.mu.Unlock()
		return nil
	}
	s.thread = make([]Message, 0, len(msgs))
	for _, m := range msgs {
		s.thread = append(s.thread, Message{Message: m})
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// CloseThread discards the active thread's log.
func (s *Syncer) CloseThread() {
	s.mu.Lock()
	s.epoch++
	s.activePeer = ""
	s.thread = nil
	s.mu.Unlock()
	s.notify()
}

// Send delivers content to peerID: over the signaling channel when it is
// authenticated, otherwise through a direct REST write. Either way a
// provisional message is appended immediately so the sender sees it without
// waiting for the round trip.
func (s *Syncer) Send(ctx context.Context, peerID, content string) error {
	if strings.TrimSpace(content) == "" {
		return api.ErrValidation
	}

	if s.emitter != nil && s.emitter.Authenticated() {
		if err := s.emitter.SendMessage(peerID, content); err != nil {
			return err
		}
	} else {
		if _, err := s.store.SendMessage(ctx, peerID, content); err != nil {
			return err
		}
	}
	util.Stats.AddMessageSent()

	provisional := Message{
		Message: api.Message{
			ID:         uuid.NewString(),
			FromUserID: s.selfID,
			ToUserID:   peerID,
			Content:    content,
			CreatedAt:  time.Now().UTC(),
		},
		Pending: true,
	}

	s.mu.Lock()
	if s.activePeer == peerID {
		s.thread = append(s.thread, provisional)
	}
	s.touchConversation(peerID, content, provisional.CreatedAt, false)
	s.mu.Unlock()
	s.notify()
	return nil
}

// HandleNewMessage folds one authoritative server event into the state: the
// open thread absorbs it (reconciling a matching provisional instead of
// duplicating it) and the conversation list is recomputed unconditionally.
func (s *Syncer) HandleNewMessage(msg api.Message) {
	util.Stats.AddMessageRecv()

	s.mu.Lock()
	peer := msg.FromUserID
	if msg.FromUserID == s.selfID {
		peer = msg.ToUserID
	}

	if s.activePeer == peer {
		if msg.FromUserID == s.selfID && s.confirmProvisional(msg) {
			// Server echo of our own optimistic send; replaced in place.
		} else {
			s.insertMessage(Message{Message: msg})
		}
	}

	unread := msg.FromUserID != s.selfID && s.activePeer != peer
	s.touchConversation(peer, msg.Content, msg.CreatedAt, unread)
	s.mu.Unlock()
	s.notify()
}

// confirmProvisional replaces the oldest pending message matching the echo.
// Returns false when nothing matched and the event must be appended.
// Caller holds s.mu.
func (s *Syncer) confirmProvisional(msg api.Message) bool {
	for i := range s.thread {
		m := &s.thread[i]
		if m.Pending && m.ToUserID == msg.ToUserID && m.Content == msg.Content {
			m.Message = msg
			m.Pending = false
			return true
		}
	}
	return false
}

// insertMessage keeps the log ordered by created_at ascending, arrival order
// for ties. Caller holds s.mu.
func (s *Syncer) insertMessage(m Message) {
	i := len(s.thread)
	for i > 0 && s.thread[i-1].CreatedAt.After(m.CreatedAt) {
		i--
	}
	s.thread = append(s.thread, Message{})
	copy(s.thread[i+1:], s.thread[i:])
	s.thread[i] = m
}

// touchConversation updates (or creates) the counterpart's list entry and
// reorders the list. Caller holds s.mu.
func (s *Syncer) touchConversation(peerID, content string, at time.Time, unread bool) {
	found := false
	for i := range s.conversations {
		c := &s.conversations[i]
		if c.UserID != peerID {
			continue
		}
		if at.After(c.LastMessageTime) {
			c.LastMessage = content
			c.LastMessageTime = at
		}
		if unread {
			c.UnreadCount++
		}
		found = true
		break
	}
	if !found {
		conv := api.Conversation{
			UserID:          peerID,
			LastMessage:     content,
			LastMessageTime: at,
		}
		if unread {
			conv.UnreadCount = 1
		}
		s.conversations = append(s.conversations, conv)
	}
	sortConversations(s.conversations)
}

// sortConversations orders by last message time descending, most recent first.
func sortConversations(convs []api.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastMessageTime.After(convs[j].LastMessageTime)
	})
}
