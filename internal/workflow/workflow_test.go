package workflow

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nutrilink/nutrilink/internal/models"
	"github.com/nutrilink/nutrilink/internal/notify"
	"github.com/nutrilink/nutrilink/internal/storage"
)

type stubAnalyzer struct {
	result *models.AnalysisResult
	err    error

	gotUserID   string
	gotFilename string
	gotBytes    []byte
	calls       int
}

func (s *stubAnalyzer) Analyze(ctx context.Context, userID, filename string, image []byte) (*models.AnalysisResult, error) {
	s.calls++
	s.gotUserID = userID
	s.gotFilename = filename
	s.gotBytes = image
	return s.result, s.err
}

func goodResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		Nutrition: models.NutritionInfo{
			FoodName:   "Grilled Salmon",
			Calories:   412,
			ProteinG:   38.5,
			CarbsG:     2.1,
			FatsG:      27.4,
			Confidence: 0.93,
		},
		Message: "Food analyzed successfully",
	}
}

func pngSession(t *testing.T, width, height int) *models.CaptureSession {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return &models.CaptureSession{
		ID:        "session-1",
		Source:    models.SourceFile,
		Filename:  "meal.png",
		Raw:       buf.Bytes(),
		CreatedAt: time.Now(),
	}
}

func TestRun_SuccessExposesResult(t *testing.T) {
	analyzer := &stubAnalyzer{result: goodResult()}
	session := pngSession(t, 100, 80)

	var transitions []State
	wf := New(analyzer, "alice", session, zap.NewNop(),
		WithObserver(func(s State) { transitions = append(transitions, s) }))

	state, err := wf.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, state)
	assert.Equal(t, []State{StateAnalyzing, StateSuccess}, transitions)

	result, err := wf.Result()
	require.NoError(t, err)
	assert.Equal(t, goodResult().Nutrition, result.Nutrition)
	assert.Equal(t, "alice", analyzer.gotUserID)
}

func TestRun_PreparingTranscodesBeforeAnalyzing(t *testing.T) {
	analyzer := &stubAnalyzer{result: goodResult()}
	session := pngSession(t, 100, 80)
	raw := session.Raw

	wf := New(analyzer, "alice", session, zap.NewNop())
	_, err := wf.Run(context.Background())
	require.NoError(t, err)

	// The analyzer saw the transcoded JPEG rendition, not the raw PNG.
	assert.NotEmpty(t, session.Transcoded)
	assert.Equal(t, session.Transcoded, analyzer.gotBytes)
	assert.NotEqual(t, raw, analyzer.gotBytes)
	assert.Equal(t, "meal.jpg", analyzer.gotFilename)
}

func TestRun_TranscodeFailureFallsBackToOriginal(t *testing.T) {
	analyzer := &stubAnalyzer{result: goodResult()}
	session := &models.CaptureSession{
		ID:       "session-2",
		Source:   models.SourceFile,
		Filename: "meal.heic",
		Raw:      []byte("not a decodable image"),
	}

	wf := New(analyzer, "alice", session, zap.NewNop())
	state, err := wf.Run(context.Background())
	require.NoError(t, err)

	// The fallback is silent: the workflow still succeeds with the raw file.
	assert.Equal(t, StateSuccess, state)
	assert.Empty(t, session.Transcoded)
	assert.Equal(t, session.Raw, analyzer.gotBytes)
	assert.Equal(t, "meal.heic", analyzer.gotFilename)
}

func TestRun_GatewayFailureEndsInError(t *testing.T) {
	gatewayErr := errors.New("timed out")
	analyzer := &stubAnalyzer{err: gatewayErr}
	session := pngSession(t, 50, 50)

	wf := New(analyzer, "alice", session, zap.NewNop())
	state, err := wf.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateError, state)
	assert.ErrorIs(t, wf.Err(), gatewayErr)

	_, err = wf.Result()
	assert.ErrorIs(t, err, ErrNotSuccessful)
}

func TestRun_MissingSourceEndsInError(t *testing.T) {
	analyzer := &stubAnalyzer{result: goodResult()}
	session := &models.CaptureSession{ID: "session-3", Source: models.SourceFile}

	wf := New(analyzer, "alice", session, zap.NewNop())
	state, err := wf.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateError, state)
	assert.ErrorIs(t, wf.Err(), ErrMissingSource)
	assert.Zero(t, analyzer.calls)
}

func TestRun_SecondRunRejected(t *testing.T) {
	analyzer := &stubAnalyzer{result: goodResult()}
	wf := New(analyzer, "alice", pngSession(t, 50, 50), zap.NewNop())

	_, err := wf.Run(context.Background())
	require.NoError(t, err)

	_, err = wf.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
	assert.Equal(t, 1, analyzer.calls)
}

func TestRetake_OnlyFromTerminalState(t *testing.T) {
	wf := New(&stubAnalyzer{result: goodResult()}, "alice", pngSession(t, 50, 50), zap.NewNop())
	assert.ErrorIs(t, wf.Retake(), ErrNotTerminal)
}

func TestRetake_DiscardsSession(t *testing.T) {
	session := pngSession(t, 50, 50)
	wf := New(&stubAnalyzer{err: errors.New("boom")}, "alice", session, zap.NewNop())

	_, err := wf.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateError, wf.State())

	require.NoError(t, wf.Retake())
	assert.Empty(t, session.Raw)
	assert.Empty(t, session.Transcoded)
}

func TestRetake_AfterSuccessInvalidatesResult(t *testing.T) {
	wf := New(&stubAnalyzer{result: goodResult()}, "alice", pngSession(t, 50, 50), zap.NewNop())

	_, err := wf.Run(context.Background())
	require.NoError(t, err)
	_, err = wf.Continue()
	require.NoError(t, err)

	require.NoError(t, wf.Retake())
	_, err = wf.Continue()
	assert.ErrorIs(t, err, ErrNotSuccessful)
	_, err = wf.Result()
	assert.ErrorIs(t, err, ErrNotSuccessful)
}

func TestRun_PublishesTerminalNotifications(t *testing.T) {
	store := storage.NewMemoryStorage()
	bus := notify.New(store, "alice", nil, zap.NewNop())

	wf := New(&stubAnalyzer{result: goodResult()}, "alice", pngSession(t, 50, 50), zap.NewNop(),
		WithBus(bus))
	_, err := wf.Run(context.Background())
	require.NoError(t, err)

	list, err := bus.Notifications()
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, "Meal analyzed", list[0].Title)
	assert.True(t, list[0].Unread)
}
