package call

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/zoqapp/zoq-go/internal/media"
	"github.com/zoqapp/zoq-go/internal/util"
)

// Manager owns the client's call sessions and routes inbound signals to the
// active one. The invariant: at most one non-terminal session exists at a
// time — a new call requires the prior one to have ended.
type Manager struct {
	sig     Signaler
	source  media.Source
	timeout time.Duration

	mu      sync.Mutex
	active  *Session
	newLink func(*media.Stream) (link, error)

	onIncoming func(*IncomingCall)
	onStatus   func(*Session, Status, string)
}

// IncomingCall is a ringing session awaiting the user's decision.
type IncomingCall struct {
	FromUserID string
	Username   string

	m       *Manager
	session *Session
}

// Session returns the ringing session so observers can be attached before
// accepting.
func (ic *IncomingCall) Session() *Session { return ic.session }

// Accept answers the call, acquiring local media (with video when requested)
// and completing negotiation.
func (ic *IncomingCall) Accept(video bool) (*Session, error) {
	ic.session.mu.Lock()
	ic.session.video = video
	ic.session.mu.Unlock()

	util.Stats.AddCallAnswer()
	if err := ic.session.accept(); err != nil {
		return nil, err
	}
	return ic.session, nil
}

// Reject declines the call and tells the caller so.
func (ic *IncomingCall) Reject() {
	if err := ic.m.sig.EndCall(ic.FromUserID); err != nil {
		util.LogDebug("reject send failed: %v", err)
	}
	ic.session.end(false, StatusEnded, "call rejected")
}

// NewManager creates a Manager. timeout bounds negotiation; zero disables
// the watchdog.
func NewManager(sig Signaler, source media.Source, timeout time.Duration) *Manager {
	return &Manager{
		sig:     sig,
		source:  source,
		timeout: timeout,
		newLink: newPeerLink,
	}
}

// OnIncoming registers the handler fired for each incoming call. The handler
// must not block; it typically surfaces the ring to the user.
func (m *Manager) OnIncoming(fn func(*IncomingCall)) {
	m.mu.Lock()
	m.onIncoming = fn
	m.mu.Unlock()
}

// OnStatus registers a default status observer installed into every new
// session before it starts negotiating.
func (m *Manager) OnStatus(fn func(*Session, Status, string)) {
	m.mu.Lock()
	m.onStatus = fn
	m.mu.Unlock()
}

// Active returns the current session, which may already be terminal.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// newSession constructs a session bound to this manager's collaborators.
// Caller holds m.mu.
func (m *Manager) newSession(peerID string, role Role, video bool) *Session {
	s := &Session{
		peerID:  peerID,
		role:    role,
		video:   video,
		sig:     m.sig,
		source:  m.source,
		newLink: m.newLink,
		timeout: m.timeout,
		status:  StatusConnecting,
	}
	if fn := m.onStatus; fn != nil {
		s.onStatus = func(st Status, msg string) { fn(s, st, msg) }
	}
	return s
}

// StartCall places an outbound call. It returns once the offer has been sent
// (status Calling) or with the failure that stopped it.
func (m *Manager) StartCall(peerID string, video bool) (*Session, error) {
	m.mu.Lock()
	if m.active != nil {
		if st, _ := m.active.Status(); !st.Terminal() {
			m.mu.Unlock()
			return nil, ErrBusy
		}
	}
	s := m.newSession(peerID, RoleInitiator, video)
	m.active = s
	m.mu.Unlock()

	util.Stats.AddCallPlaced()
	if err := s.start(); err != nil {
		return nil, err
	}
	return s, nil
}

// HandleIncomingCall routes an inbound offer. A signal addressed while
// another counterpart's session is live is ignored, never fatal.
func (m *Manager) HandleIncomingCall(fromUserID, username string, signal json.RawMessage) {
	m.mu.Lock()
	if m.active != nil {
		if st, _ := m.active.Status(); !st.Terminal() {
			peer := m.active.PeerID()
			m.mu.Unlock()
			if peer != fromUserID {
				util.LogWarning("ignoring call signal from %s during call with %s", fromUserID, peer)
				return
			}
			// Glare: the counterpart offered while our own offer is in
			// flight. Keep the existing session; the caller retries.
			util.LogWarning("ignoring concurrent offer from %s", fromUserID)
			return
		}
	}

	s := m.newSession(fromUserID, RoleResponder, false)
	s.mu.Lock()
	s.status = StatusRinging
	s.statusMsg = "incoming call"
	s.offer = signal
	s.mu.Unlock()

	m.active = s
	fn := m.onIncoming
	m.mu.Unlock()

	if fn != nil {
		fn(&IncomingCall{FromUserID: fromUserID, Username: username, m: m, session: s})
	} else {
		util.LogWarning("no incoming-call handler, rejecting call from %s", fromUserID)
		s.end(false, StatusEnded, "unanswered")
	}
}

// HandleCallAccepted routes the counterpart's answer into the active session.
func (m *Manager) HandleCallAccepted(signal json.RawMessage) {
	if s := m.Active(); s != nil {
		s.handleAnswer(signal)
		return
	}
	util.LogWarning("answer received with no active call")
}

// HandleCandidate routes a trickled remote candidate into the active session.
func (m *Manager) HandleCandidate(candidate json.RawMessage) {
	if s := m.Active(); s != nil {
		s.handleCandidate(candidate)
		return
	}
	util.LogDebug("candidate received with no active call")
}

// HandleCallEnded tears the active session down after a remote hangup.
func (m *Manager) HandleCallEnded() {
	if s := m.Active(); s != nil {
		s.handleRemoteEnd()
	}
}

// Close hangs up whatever is live. Used on client shutdown.
func (m *Manager) Close() {
	if s := m.Active(); s != nil {
		s.Hangup()
	}
}
