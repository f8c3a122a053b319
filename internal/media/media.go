// Package media acquires camera and microphone streams and turns them into
// still images and audio clips. Streams are scoped handles: whoever opens one
// must stop it, and Stop is safe on every exit path.
package media

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

type Reason string

const (
	// ReasonUnsupported means the environment has no usable device at all.
	ReasonUnsupported Reason = "unsupported"
	// ReasonPermissionDenied means a device exists but access was refused.
	ReasonPermissionDenied Reason = "permission_denied"
)

// CapabilityError reports that a device could not be acquired. It is
// user-facing and non-retryable without a settings change.
type CapabilityError struct {
	Device string
	Reason Reason
	Err    error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s unavailable (%s): %v", e.Device, e.Reason, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// Stream is an acquired device handle. Stop releases the underlying device
// and is idempotent; a leaked stream keeps hardware busy, so every open is
// paired with a Stop.
type Stream struct {
	device   string
	release  func() error
	once     sync.Once
	released atomic.Bool
}

func newStream(device string, release func() error) *Stream {
	return &Stream{device: device, release: release}
}

func (s *Stream) Device() string { return s.device }

// Stop releases the device. Only the first call runs the release; later
// calls are no-ops.
func (s *Stream) Stop() error {
	var err error
	s.once.Do(func() {
		s.released.Store(true)
		if s.release != nil {
			err = s.release()
		}
	})
	return err
}

// Released reports whether Stop has run.
func (s *Stream) Released() bool { return s.released.Load() }

// Provider abstracts the host's media devices so the pipeline does not care
// whether frames come from real hardware or a canned source.
type Provider interface {
	OpenCamera(ctx context.Context) (*Stream, error)
	CaptureFrame(ctx context.Context, stream *Stream) ([]byte, error)
	OpenMicrophone(ctx context.Context) (*Stream, error)
	StartRecording(ctx context.Context) (*RecordingSession, error)
}

// WithCamera opens the camera, runs fn, and guarantees the stream is stopped
// no matter how fn exits.
func WithCamera(ctx context.Context, p Provider, fn func(*Stream) error) error {
	stream, err := p.OpenCamera(ctx)
	if err != nil {
		return err
	}
	defer stream.Stop()
	return fn(stream)
}
