//go:build !linux || !cgo

package media

import "github.com/zoqapp/zoq-go/internal/util"

// DeviceSource has no capture drivers off Linux (V4L2/malgo are Linux-only).
// Capture returns an empty stream so calls proceed receive-only: the session
// adds recvonly transceivers when the stream owns no tracks.
type DeviceSource struct{}

func (DeviceSource) Capture(withVideo bool) (*Stream, error) {
	util.LogWarning("no capture drivers on this platform, proceeding receive-only")
	return NewStream(nil), nil
}
