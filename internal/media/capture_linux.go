//go:build linux && cgo

package media

import (
	"fmt"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"

	"github.com/zoqapp/zoq-go/internal/util"
)

// deviceTrack wraps a mediadevices capture track.
type deviceTrack struct {
	baseTrack
	t mediadevices.Track
}

func (d *deviceTrack) Kind() webrtc.RTPCodecType { return d.t.Kind() }
func (d *deviceTrack) Local() webrtc.TrackLocal  { return d.t }
func (d *deviceTrack) Close() error              { return d.t.Close() }

// DeviceSource captures the local camera and microphone via pion/mediadevices
// (V4L2 + malgo on Linux).
type DeviceSource struct{}

// Capture opens local devices, trying video+audio first and degrading to
// single-kind capture so a busy microphone does not block the camera and
// vice versa. All attempts failing is a media access error.
func (DeviceSource) Capture(withVideo bool) (*Stream, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 encoder: %w", err)
	}
	vpxParams.BitRate = 1_500_000 // 1.5 Mbps

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	type attempt struct {
		video bool
		audio bool
		label string
	}
	attempts := []attempt{{false, true, "audio-only"}}
	if withVideo {
		attempts = []attempt{
			{true, true, "video+audio"},
			{true, false, "video-only"},
			{false, true, "audio-only"},
		}
	}

	for _, a := range attempts {
		constraints := mediadevices.MediaStreamConstraints{Codec: selector}
		if a.video {
			constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
				// Raw formats only — some cameras expose an MJPEG node that
				// produces malformed frames and poisons the VP8 encoder.
				c.FrameFormat = prop.FrameFormatOneOf{
					frame.FormatYUYV,
					frame.FormatI420,
					frame.FormatI444,
					frame.FormatRGBA,
				}
				c.Width = prop.IntRanged{Max: 640}
				c.Height = prop.IntRanged{Max: 480}
			}
		}
		if a.audio {
			constraints.Audio = func(_ *mediadevices.MediaTrackConstraints) {}
		}

		ms, err := mediadevices.GetUserMedia(constraints)
		if err != nil {
			util.LogWarning("capture (%s) failed: %v", a.label, err)
			continue
		}

		tracks := make([]Track, 0, 2)
		for _, t := range ms.GetTracks() {
			t.OnEnded(func(err error) {
				if err != nil {
					util.LogWarning("local track ended: %v", err)
				}
			})
			dt := &deviceTrack{t: t}
			dt.SetEnabled(true)
			tracks = append(tracks, dt)
		}

		util.LogInfo("local media captured (%s), %d tracks", a.label, len(tracks))
		return NewStream(func(me *webrtc.MediaEngine) error {
			selector.Populate(me)
			return nil
		}, tracks...), nil
	}

	return nil, fmt.Errorf("%w: all capture attempts failed", ErrMediaAccess)
}
