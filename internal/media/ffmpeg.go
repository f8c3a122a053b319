package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// FFmpegProvider reaches real devices by shelling out to ffmpeg: v4l2 for
// the camera, alsa for the microphone.
type FFmpegProvider struct {
	ffmpegPath   string
	cameraDevice string
	audioDevice  string
	logger       *zap.Logger
}

func NewFFmpegProvider(ffmpegPath, cameraDevice, audioDevice string, logger *zap.Logger) *FFmpegProvider {
	return &FFmpegProvider{
		ffmpegPath:   ffmpegPath,
		cameraDevice: cameraDevice,
		audioDevice:  audioDevice,
		logger:       logger,
	}
}

func (p *FFmpegProvider) lookupFFmpeg(device string) (string, error) {
	path, err := exec.LookPath(p.ffmpegPath)
	if err != nil {
		return "", &CapabilityError{Device: device, Reason: ReasonUnsupported, Err: err}
	}
	return path, nil
}

// OpenCamera acquires the video device. The open file descriptor is the
// stream handle; closing it releases the device.
func (p *FFmpegProvider) OpenCamera(ctx context.Context) (*Stream, error) {
	if _, err := p.lookupFFmpeg("camera"); err != nil {
		return nil, err
	}

	f, err := os.Open(p.cameraDevice)
	if err != nil {
		reason := ReasonUnsupported
		if os.IsPermission(err) {
			reason = ReasonPermissionDenied
		}
		return nil, &CapabilityError{Device: "camera", Reason: reason, Err: err}
	}

	return newStream(p.cameraDevice, f.Close), nil
}

// CaptureFrame grabs a single frame from the camera as a JPEG.
func (p *FFmpegProvider) CaptureFrame(ctx context.Context, stream *Stream) ([]byte, error) {
	ffmpeg, err := p.lookupFFmpeg("camera")
	if err != nil {
		return nil, err
	}

	out := filepath.Join(os.TempDir(), fmt.Sprintf("frame_%d.jpg", os.Getpid()))
	defer os.Remove(out)

	cmd := exec.CommandContext(ctx, ffmpeg,
		"-f", "v4l2",
		"-i", stream.Device(),
		"-frames:v", "1",
		"-y",
		out,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame grab failed: %w\nStderr: %s", err, stderr.String())
	}

	frame, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read captured frame: %w", err)
	}

	return frame, nil
}

func (p *FFmpegProvider) OpenMicrophone(ctx context.Context) (*Stream, error) {
	if _, err := p.lookupFFmpeg("microphone"); err != nil {
		return nil, err
	}
	return newStream(p.audioDevice, nil), nil
}

// StartRecording launches an ffmpeg capture from the microphone into a temp
// file. Stopping the session interrupts ffmpeg, which finalizes the WAV.
func (p *FFmpegProvider) StartRecording(ctx context.Context) (*RecordingSession, error) {
	ffmpeg, err := p.lookupFFmpeg("microphone")
	if err != nil {
		return nil, err
	}

	stream, err := p.OpenMicrophone(ctx)
	if err != nil {
		return nil, err
	}

	out := filepath.Join(os.TempDir(), fmt.Sprintf("recording_%d.wav", os.Getpid()))

	cmd := exec.Command(ffmpeg,
		"-f", "alsa",
		"-i", stream.Device(),
		"-ar", "16000",
		"-ac", "1",
		"-y",
		out,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		stream.Stop()
		return nil, &CapabilityError{Device: "microphone", Reason: ReasonPermissionDenied, Err: err}
	}

	var waitOnce sync.Once
	finalize := func(ctx context.Context) ([]byte, error) {
		defer os.Remove(out)

		// SIGINT asks ffmpeg to flush and close the container cleanly.
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			cmd.Process.Kill()
		}
		waitOnce.Do(func() { cmd.Wait() })

		data, err := os.ReadFile(out)
		if err != nil {
			return nil, fmt.Errorf("failed to read recording: %w\nStderr: %s", err, stderr.String())
		}
		return data, nil
	}

	return newRecordingSession(stream, finalize), nil
}
