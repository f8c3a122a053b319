package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"testing"

	_ "image/jpeg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_StopIsIdempotent(t *testing.T) {
	releases := 0
	stream := newStream("test", func() error {
		releases++
		return nil
	})

	require.NoError(t, stream.Stop())
	require.NoError(t, stream.Stop())
	assert.Equal(t, 1, releases)
	assert.True(t, stream.Released())
}

func TestWithCamera_ReleasesOnSuccess(t *testing.T) {
	provider := NewCannedProvider()

	var captured *Stream
	err := WithCamera(context.Background(), provider, func(s *Stream) error {
		captured = s
		assert.False(t, s.Released())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, captured.Released())
}

func TestWithCamera_ReleasesOnError(t *testing.T) {
	provider := NewCannedProvider()

	var captured *Stream
	err := WithCamera(context.Background(), provider, func(s *Stream) error {
		captured = s
		return errors.New("capture exploded")
	})
	assert.Error(t, err)
	assert.True(t, captured.Released())
}

func TestCannedProvider_FrameIsDecodableJPEG(t *testing.T) {
	provider := NewCannedProvider()

	stream, err := provider.OpenCamera(context.Background())
	require.NoError(t, err)
	defer stream.Stop()

	frame, err := provider.CaptureFrame(context.Background(), stream)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 640, img.Bounds().Dx())
}

func TestRecordingSession_StopReleasesStream(t *testing.T) {
	provider := NewCannedProvider()

	recording, err := provider.StartRecording(context.Background())
	require.NoError(t, err)
	assert.False(t, recording.Stream().Released())

	clip, err := recording.Stop(context.Background())
	require.NoError(t, err)
	assert.True(t, recording.Stream().Released())

	require.NotNil(t, clip)
	assert.Equal(t, "voice_query.wav", clip.Filename)
	require.Greater(t, len(clip.Data), 44)
	assert.Equal(t, "RIFF", string(clip.Data[0:4]))
	assert.Equal(t, "WAVE", string(clip.Data[8:12]))
}

func TestRecordingSession_StopReleasesStreamOnFinalizeError(t *testing.T) {
	stream := newStream("mic", nil)
	session := newRecordingSession(stream, func(context.Context) ([]byte, error) {
		return nil, errors.New("finalize failed")
	})

	_, err := session.Stop(context.Background())
	assert.Error(t, err)
	assert.True(t, stream.Released())
}

func TestRecordingSession_DoubleStopRejected(t *testing.T) {
	provider := NewCannedProvider()

	recording, err := provider.StartRecording(context.Background())
	require.NoError(t, err)

	_, err = recording.Stop(context.Background())
	require.NoError(t, err)

	_, err = recording.Stop(context.Background())
	assert.Error(t, err)
}

func TestFFmpegProvider_MissingBinaryIsUnsupported(t *testing.T) {
	provider := NewFFmpegProvider("ffmpeg-that-does-not-exist", "/dev/video0", "default", nil)

	_, err := provider.OpenCamera(context.Background())
	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, ReasonUnsupported, capErr.Reason)
	assert.Equal(t, "camera", capErr.Device)
}

func TestWAVBytesHeader(t *testing.T) {
	pcm := make([]byte, 320)
	data := wavBytes(pcm, 16000, 1)

	require.Len(t, data, 44+320)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "fmt ", string(data[12:16]))
	assert.Equal(t, "data", string(data[36:40]))
}
