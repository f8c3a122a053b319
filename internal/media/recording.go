package media

import (
	"context"
	"fmt"
	"sync"
)

// AudioClip is a finished recording ready for upload.
type AudioClip struct {
	Filename string
	Data     []byte
}

// RecordingSession owns the microphone stream and the in-progress audio
// buffer between start and stop. Stop finalizes the clip; the stream is
// released unconditionally even when finalization fails.
type RecordingSession struct {
	stream   *Stream
	finalize func(ctx context.Context) ([]byte, error)

	mu      sync.Mutex
	stopped bool
}

func newRecordingSession(stream *Stream, finalize func(ctx context.Context) ([]byte, error)) *RecordingSession {
	return &RecordingSession{stream: stream, finalize: finalize}
}

// Stream exposes the underlying microphone handle.
func (r *RecordingSession) Stream() *Stream { return r.stream }

// Stop finalizes the recording and hands ownership of the clip to the
// caller. It can be called once.
func (r *RecordingSession) Stop(ctx context.Context) (*AudioClip, error) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil, fmt.Errorf("recording already stopped")
	}
	r.stopped = true
	r.mu.Unlock()

	defer r.stream.Stop()

	data, err := r.finalize(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize recording: %w", err)
	}

	return &AudioClip{Filename: "voice_query.wav", Data: data}, nil
}
