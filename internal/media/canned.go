package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"
)

// CannedProvider serves a fixed demo frame and silent audio instead of
// touching real hardware. This mirrors the demo capture behavior of the
// original product and keeps the rest of the pipeline exercisable on hosts
// without devices.
type CannedProvider struct{}

func NewCannedProvider() *CannedProvider {
	return &CannedProvider{}
}

var (
	placeholderOnce sync.Once
	placeholderJPEG []byte
)

// placeholderFrame renders the demo plate once: a 640x480 JPEG gradient.
func placeholderFrame() []byte {
	placeholderOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 640, 480))
		for y := 0; y < 480; y++ {
			for x := 0; x < 640; x++ {
				img.Set(x, y, color.RGBA{
					R: uint8(180 + x%60),
					G: uint8(120 + y%80),
					B: uint8(60 + (x+y)%40),
					A: 255,
				})
			}
		}
		var buf bytes.Buffer
		jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
		placeholderJPEG = buf.Bytes()
	})
	return placeholderJPEG
}

func (p *CannedProvider) OpenCamera(ctx context.Context) (*Stream, error) {
	return newStream("canned-camera", nil), nil
}

func (p *CannedProvider) CaptureFrame(ctx context.Context, stream *Stream) ([]byte, error) {
	return placeholderFrame(), nil
}

func (p *CannedProvider) OpenMicrophone(ctx context.Context) (*Stream, error) {
	return newStream("canned-microphone", nil), nil
}

// StartRecording buffers silence for as long as the session stays open,
// capped at ten seconds of samples.
func (p *CannedProvider) StartRecording(ctx context.Context) (*RecordingSession, error) {
	stream, err := p.OpenMicrophone(ctx)
	if err != nil {
		return nil, err
	}

	const sampleRate = 16000
	started := time.Now()

	finalize := func(ctx context.Context) ([]byte, error) {
		elapsed := time.Since(started)
		if elapsed > 10*time.Second {
			elapsed = 10 * time.Second
		}
		samples := int(elapsed.Seconds()*sampleRate) + sampleRate/10
		return wavBytes(make([]byte, samples*2), sampleRate, 1), nil
	}

	return newRecordingSession(stream, finalize), nil
}
