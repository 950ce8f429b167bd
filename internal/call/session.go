// Package call owns the WebRTC call session lifecycle: negotiation over the
// signaling channel, media attachment, mute/video toggles, and teardown.
// One Session is one peer link; a new call always creates a new Session.
package call

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/zoqapp/zoq-go/internal/media"
	"github.com/zoqapp/zoq-go/internal/util"
)

// Signaler relays call-control events to the counterpart. The signaling
// channel satisfies it through a thin adapter so this package stays
// independent of the wire format.
type Signaler interface {
	CallUser(toUserID string, signal json.RawMessage, typ string) error
	AcceptCall(toUserID string, signal json.RawMessage) error
	SendCandidate(toUserID string, candidate json.RawMessage) error
	EndCall(toUserID string) error
}

// Session is one call with one counterpart.
//
// All methods are safe for concurrent use; pion callbacks, signaling events,
// and user intents may arrive on different goroutines.
type Session struct {
	peerID string
	role   Role
	video  bool

	sig     Signaler
	source  media.Source
	newLink func(*media.Stream) (link, error)
	timeout time.Duration

	mu        sync.Mutex
	status    Status
	statusMsg string
	stream    *media.Stream
	lk        link
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	offer     json.RawMessage // responder: held until accept
	watchdog  *time.Timer
	signaled  bool // an offer or answer has been sent to the peer

	releaseOnce sync.Once

	onStatus func(Status, string)
	onTrack  func(*webrtc.TrackRemote, *webrtc.RTPReceiver)
}

// PeerID returns the counterpart's user id.
func (s *Session) PeerID() string { return s.peerID }

// Role returns the fixed negotiation role.
func (s *Session) Role() Role { return s.role }

// Status returns the current status and its human-readable message.
func (s *Session) Status() (Status, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.statusMsg
}

// OnStatus registers the status observer. Must be set before the session
// starts negotiating; the observer must not block.
func (s *Session) OnStatus(fn func(Status, string)) {
	s.mu.Lock()
	s.onStatus = fn
	s.mu.Unlock()
}

// OnRemoteTrack registers the remote media observer.
func (s *Session) OnRemoteTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	s.mu.Lock()
	s.onTrack = fn
	s.mu.Unlock()
}

// transition moves to st unless the session already terminated, then notifies
// the observer outside the lock.
func (s *Session) transition(st Status, msg string) {
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.status = st
	s.statusMsg = msg
	cb := s.onStatus
	s.mu.Unlock()

	if cb != nil {
		cb(st, msg)
	}
}

// start runs the initiator flow: acquire media, open the peer link, send the
// offer. Called once by the manager.
func (s *Session) start() error {
	s.transition(StatusConnecting, "acquiring local media")

	stream, err := s.source.Capture(s.video)
	if err != nil {
		s.fail(err, "microphone or camera unavailable")
		return err
	}
	if err := s.adoptStream(stream); err != nil {
		return err
	}

	lk, err := s.openLink(stream)
	if err != nil {
		s.fail(err, "failed to create peer link")
		return fmt.Errorf("%w: %v", ErrNegotiation, err)
	}

	offer, err := lk.CreateOffer()
	if err != nil {
		s.fail(err, "failed to create offer")
		return fmt.Errorf("%w: %v", ErrNegotiation, err)
	}
	if err := lk.SetLocalDescription(offer); err != nil {
		s.fail(err, "failed to apply local description")
		return fmt.Errorf("%w: %v", ErrNegotiation, err)
	}

	signal, err := json.Marshal(offer)
	if err != nil {
		s.fail(err, "failed to encode offer")
		return err
	}
	if err := s.sig.CallUser(s.peerID, signal, "offer"); err != nil {
		s.fail(err, "failed to send offer")
		return err
	}

	s.mu.Lock()
	s.signaled = true
	s.mu.Unlock()

	s.transition(StatusCalling, "calling")
	s.armWatchdog()
	return nil
}

// accept runs the responder flow: acquire media, open the peer link, apply
// the held offer, send the answer.
func (s *Session) accept() error {
	s.mu.Lock()
	if s.status != StatusRinging {
		s.mu.Unlock()
		return ErrEnded
	}
	rawOffer := s.offer
	s.mu.Unlock()

	s.transition(StatusConnecting, "answering")

	stream, err := s.source.Capture(s.video)
	if err != nil {
		s.fail(err, "microphone or camera unavailable")
		return err
	}
	if err := s.adoptStream(stream); err != nil {
		return err
	}

	lk, err := s.openLink(stream)
	if err != nil {
		s.fail(err, "failed to create peer link")
		return fmt.Errorf("%w: %v", ErrNegotiation, err)
	}

	var desc webrtc.SessionDescription
	if err := json.Unmarshal(rawOffer, &desc); err != nil {
		s.fail(err, "malformed offer")
		return fmt.Errorf("%w: %v", ErrNegotiation, err)
	}
	if err := s.applyRemote(desc); err != nil {
		s.fail(err, "failed to apply offer")
		return fmt.Errorf("%w: %v", ErrNegotiation, err)
	}

	answer, err := lk.CreateAnswer()
	if err != nil {
		s.fail(err, "failed to create answer")
		return fmt.Errorf("%w: %v", ErrNegotiation, err)
	}
	if err := lk.SetLocalDescription(answer); err != nil {
		s.fail(err, "failed to apply local description")
		return fmt.Errorf("%w: %v", ErrNegotiation, err)
	}

	signal, err := json.Marshal(answer)
	if err != nil {
		s.fail(err, "failed to encode answer")
		return err
	}
	if err := s.sig.AcceptCall(s.peerID, signal); err != nil {
		s.fail(err, "failed to send answer")
		return err
	}

	s.mu.Lock()
	s.signaled = true
	s.mu.Unlock()

	s.armWatchdog()
	return nil
}

// adoptStream takes ownership of freshly captured tracks, releasing them
// instead when a hangup raced the acquisition.
func (s *Session) adoptStream(stream *media.Stream) error {
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		stream.Close()
		return ErrEnded
	}
	s.stream = stream
	s.mu.Unlock()
	return nil
}

// openLink creates the peer link, stores it, and wires its callbacks.
func (s *Session) openLink(stream *media.Stream) (link, error) {
	lk, err := s.newLink(stream)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.status.Terminal() {
		// Hangup raced the setup; don't leak the link.
		s.mu.Unlock()
		lk.Close()
		return nil, ErrEnded
	}
	s.lk = lk
	s.mu.Unlock()

	// Trickle local candidates as they are gathered. Best-effort: a failed
	// send only slows negotiation down.
	lk.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, _ := json.Marshal(c.ToJSON())
		if err := s.sig.SendCandidate(s.peerID, data); err != nil {
			util.LogDebug("candidate send failed: %v", err)
		}
	})

	lk.OnTrack(func(tr *webrtc.TrackRemote, rc *webrtc.RTPReceiver) {
		s.mu.Lock()
		if s.watchdog != nil {
			s.watchdog.Stop()
			s.watchdog = nil
		}
		cb := s.onTrack
		s.mu.Unlock()

		s.transition(StatusConnected, "connected")
		if cb != nil {
			cb(tr, rc)
		}
	})

	lk.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("peer link state: %s", state)
		switch state {
		case webrtc.PeerConnectionStateFailed:
			s.fail(ErrNegotiation, "connection failed")
		case webrtc.PeerConnectionStateClosed:
			// Our own teardown also lands here; end is a no-op then.
			s.end(false, StatusEnded, "call ended")
		}
	})

	return lk, nil
}

// applyRemote installs the remote description and flushes candidates that
// arrived before it.
func (s *Session) applyRemote(desc webrtc.SessionDescription) error {
	s.mu.Lock()
	lk := s.lk
	s.mu.Unlock()
	if lk == nil {
		return fmt.Errorf("no peer link")
	}

	if err := lk.SetRemoteDescription(desc); err != nil {
		return err
	}

	s.mu.Lock()
	s.remoteSet = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, c := range pending {
		if err := lk.AddICECandidate(c); err != nil {
			util.LogWarning("buffered candidate rejected: %v", err)
		}
	}
	return nil
}

// handleAnswer applies the counterpart's answer descriptor (initiator side).
func (s *Session) handleAnswer(signal json.RawMessage) {
	if s.role != RoleInitiator {
		util.LogWarning("ignoring answer on %s session", s.role)
		return
	}

	var desc webrtc.SessionDescription
	if err := json.Unmarshal(signal, &desc); err != nil {
		util.LogWarning("malformed answer: %v", err)
		return
	}
	if err := s.applyRemote(desc); err != nil {
		s.fail(err, "failed to apply answer")
	}
}

// handleCandidate feeds one remote network candidate into the link. A
// candidate arriving before the remote descriptor is buffered, never dropped.
func (s *Session) handleCandidate(raw json.RawMessage) {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &init); err != nil {
		util.LogWarning("malformed candidate: %v", err)
		return
	}

	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	if s.lk == nil || !s.remoteSet {
		s.pending = append(s.pending, init)
		s.mu.Unlock()
		return
	}
	lk := s.lk
	s.mu.Unlock()

	if err := lk.AddICECandidate(init); err != nil {
		util.LogWarning("candidate rejected: %v", err)
	}
}

// armWatchdog bounds how long the session may negotiate. Disabled when the
// configured timeout is zero.
func (s *Session) armWatchdog() {
	if s.timeout <= 0 {
		return
	}
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.watchdog = time.AfterFunc(s.timeout, func() {
		s.mu.Lock()
		st := s.status
		s.mu.Unlock()
		if st == StatusConnected || st.Terminal() {
			return
		}
		s.fail(ErrNegotiation, "negotiation timed out")
	})
	s.mu.Unlock()
}

// ToggleMute flips audio track enablement without renegotiation and returns
// the new muted state.
func (s *Session) ToggleMute() bool {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil || !stream.Has(webrtc.RTPCodecTypeAudio) {
		return false
	}
	enabled := stream.Enabled(webrtc.RTPCodecTypeAudio)
	stream.SetEnabled(webrtc.RTPCodecTypeAudio, !enabled)
	return enabled
}

// Muted reports whether the audio track is disabled.
func (s *Session) Muted() bool {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	return stream != nil && stream.Has(webrtc.RTPCodecTypeAudio) &&
		!stream.Enabled(webrtc.RTPCodecTypeAudio)
}

// ToggleVideo flips video track enablement and returns the new suppressed
// state. A no-op on audio-only calls.
func (s *Session) ToggleVideo() bool {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil || !stream.Has(webrtc.RTPCodecTypeVideo) {
		return false
	}
	enabled := stream.Enabled(webrtc.RTPCodecTypeVideo)
	stream.SetEnabled(webrtc.RTPCodecTypeVideo, !enabled)
	return enabled
}

// VideoSuppressed reports whether the video track is disabled.
func (s *Session) VideoSuppressed() bool {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	return stream != nil && stream.Has(webrtc.RTPCodecTypeVideo) &&
		!stream.Enabled(webrtc.RTPCodecTypeVideo)
}

// Hangup ends the call locally. Idempotent: repeated invocations never
// double-release resources. Safe in any state, including before a peer link
// exists.
func (s *Session) Hangup() {
	s.end(true, StatusEnded, "call ended")
}

// handleRemoteEnd tears the session down after the counterpart hung up.
func (s *Session) handleRemoteEnd() {
	s.end(false, StatusEnded, "call ended by peer")
}

// fail moves the session to Error and releases everything.
func (s *Session) fail(err error, msg string) {
	util.LogWarning("call with %s failed: %v", s.peerID, err)
	s.end(true, StatusError, msg)
}

// end is the single teardown path: stop capture, destroy the peer link,
// settle the terminal status, and notify the counterpart when we initiated
// signaling and the termination.
func (s *Session) end(notify bool, st Status, msg string) {
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.status = st
	s.statusMsg = msg
	notifyPeer := notify && s.signaled
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
	stream, lk := s.stream, s.lk
	cb := s.onStatus
	s.mu.Unlock()

	s.releaseOnce.Do(func() {
		if stream != nil {
			stream.Close()
		}
		if lk != nil {
			_ = lk.Close()
		}
	})

	if notifyPeer {
		if err := s.sig.EndCall(s.peerID); err != nil {
			util.LogDebug("end_call send failed: %v", err)
		}
	}
	if cb != nil {
		cb(st, msg)
	}
}
