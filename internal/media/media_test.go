package media

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
)

type stubTrack struct {
	baseTrack
	kind   webrtc.RTPCodecType
	closes int
}

func (t *stubTrack) Kind() webrtc.RTPCodecType { return t.kind }
func (t *stubTrack) Local() webrtc.TrackLocal  { return nil }
func (t *stubTrack) Close() error              { t.closes++; return nil }

func newStubTrack(kind webrtc.RTPCodecType) *stubTrack {
	t := &stubTrack{kind: kind}
	t.SetEnabled(true)
	return t
}

func TestStreamHas(t *testing.T) {
	audio := newStubTrack(webrtc.RTPCodecTypeAudio)
	s := NewStream(nil, audio)

	assert.True(t, s.Has(webrtc.RTPCodecTypeAudio))
	assert.False(t, s.Has(webrtc.RTPCodecTypeVideo))
}

func TestSetEnabledByKind(t *testing.T) {
	audio := newStubTrack(webrtc.RTPCodecTypeAudio)
	video := newStubTrack(webrtc.RTPCodecTypeVideo)
	s := NewStream(nil, audio, video)

	assert.True(t, s.SetEnabled(webrtc.RTPCodecTypeAudio, false))
	assert.False(t, audio.Enabled())
	assert.True(t, video.Enabled(), "other kind untouched")
	assert.False(t, s.Enabled(webrtc.RTPCodecTypeAudio))
	assert.True(t, s.Enabled(webrtc.RTPCodecTypeVideo))
}

func TestSetEnabledMissingKind(t *testing.T) {
	s := NewStream(nil, newStubTrack(webrtc.RTPCodecTypeAudio))
	assert.False(t, s.SetEnabled(webrtc.RTPCodecTypeVideo, false))
}

func TestCloseReleasesTracksOnce(t *testing.T) {
	audio := newStubTrack(webrtc.RTPCodecTypeAudio)
	video := newStubTrack(webrtc.RTPCodecTypeVideo)
	s := NewStream(nil, audio, video)

	s.Close()
	s.Close()
	s.Close()

	assert.Equal(t, 1, audio.closes)
	assert.Equal(t, 1, video.closes)
}

func TestRegisterCodecsDefaultsWhenNil(t *testing.T) {
	s := NewStream(nil, newStubTrack(webrtc.RTPCodecTypeAudio))
	assert.NoError(t, s.RegisterCodecs(&webrtc.MediaEngine{}))
}

func TestRegisterCodecsUsesCaptureClosure(t *testing.T) {
	called := false
	s := NewStream(func(*webrtc.MediaEngine) error {
		called = true
		return nil
	})
	assert.NoError(t, s.RegisterCodecs(&webrtc.MediaEngine{}))
	assert.True(t, called)
}
