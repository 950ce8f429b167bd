// Package media acquires and owns the local audio/video tracks for a call.
// It is the leaf dependency of the call session: capture happens before any
// peer connection exists, and the resulting Stream is released exactly once
// when the session ends.
package media

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

// ErrMediaAccess is returned when no capture device can be opened (missing
// hardware, busy device, or denied permission).
var ErrMediaAccess = errors.New("media devices unavailable")

// Track is one owned local media track. Enablement is a side channel: it
// never triggers renegotiation and is independent of the session status.
type Track interface {
	Kind() webrtc.RTPCodecType
	Enabled() bool
	SetEnabled(bool)
	Local() webrtc.TrackLocal
	Close() error
}

// Source produces Streams. The default implementation captures real devices
// via pion/mediadevices; tests inject fakes.
type Source interface {
	// Capture opens an audio track and, when withVideo is set, a video track.
	Capture(withVideo bool) (*Stream, error)
}

// Stream is the owned track set of one call. Close releases every track
// exactly once regardless of how many times it is invoked.
type Stream struct {
	tracks   []Track
	register func(*webrtc.MediaEngine) error

	closeOnce sync.Once
}

// NewStream assembles a Stream from already-opened tracks. register wires the
// codecs the tracks were encoded with into a media engine; nil means the
// default codec set.
func NewStream(register func(*webrtc.MediaEngine) error, tracks ...Track) *Stream {
	return &Stream{tracks: tracks, register: register}
}

// RegisterCodecs populates the media engine used to build the peer connection.
func (s *Stream) RegisterCodecs(me *webrtc.MediaEngine) error {
	if s.register != nil {
		return s.register(me)
	}
	return me.RegisterDefaultCodecs()
}

// Tracks returns the owned tracks.
func (s *Stream) Tracks() []Track { return s.tracks }

// Has reports whether the stream owns a track of the given kind.
func (s *Stream) Has(kind webrtc.RTPCodecType) bool {
	for _, t := range s.tracks {
		if t.Kind() == kind {
			return true
		}
	}
	return false
}

// SetEnabled flips enablement on every track of the given kind. Returns false
// when no such track exists (e.g. toggling video on an audio-only stream).
func (s *Stream) SetEnabled(kind webrtc.RTPCodecType, enabled bool) bool {
	found := false
	for _, t := range s.tracks {
		if t.Kind() == kind {
			t.SetEnabled(enabled)
			found = true
		}
	}
	return found
}

// Enabled reports whether any track of the given kind is enabled.
func (s *Stream) Enabled(kind webrtc.RTPCodecType) bool {
	for _, t := range s.tracks {
		if t.Kind() == kind && t.Enabled() {
			return true
		}
	}
	return false
}

// Close stops capture on every track. Idempotent.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		for _, t := range s.tracks {
			_ = t.Close()
		}
	})
}

// baseTrack carries the enablement flag shared by all Track implementations.
type baseTrack struct {
	enabled atomic.Bool
}

func (b *baseTrack) Enabled() bool      { return b.enabled.Load() }
func (b *baseTrack) SetEnabled(on bool) { b.enabled.Store(on) }
