// Package workflow sequences one capture through preparing, analyzing and a
// terminal success or error state. A workflow is one-shot: a new capture
// session needs a new workflow, so concurrent re-entry is impossible by
// construction.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nutrilink/nutrilink/internal/models"
	"github.com/nutrilink/nutrilink/internal/notify"
	"github.com/nutrilink/nutrilink/internal/transcode"
)

type State string

const (
	StatePreparing State = "preparing"
	StateAnalyzing State = "analyzing"
	StateSuccess   State = "success"
	StateError     State = "error"
)

var (
	ErrAlreadyStarted = errors.New("workflow: already started")
	ErrNotSuccessful  = errors.New("workflow: no result to continue with")
	ErrNotTerminal    = errors.New("workflow: still in progress")
	ErrMissingSource  = errors.New("workflow: capture session has no media")
)

// Analyzer is the slice of the gateway the workflow needs.
type Analyzer interface {
	Analyze(ctx context.Context, userID, filename string, image []byte) (*models.AnalysisResult, error)
}

type Option func(*Workflow)

// WithBus attaches a notification bus; terminal states publish through it.
func WithBus(bus *notify.Bus) Option {
	return func(w *Workflow) { w.bus = bus }
}

// WithObserver registers a callback invoked on every state transition.
func WithObserver(fn func(State)) Option {
	return func(w *Workflow) { w.observer = fn }
}

// Workflow owns its capture session exclusively until a terminal state.
type Workflow struct {
	analyzer Analyzer
	userID   string
	session  *models.CaptureSession
	logger   *zap.Logger
	bus      *notify.Bus
	observer func(State)

	mu      sync.Mutex
	state   State
	started bool
	result  *models.AnalysisResult
	failure error
}

func New(analyzer Analyzer, userID string, session *models.CaptureSession, logger *zap.Logger, opts ...Option) *Workflow {
	w := &Workflow{
		analyzer: analyzer,
		userID:   userID,
		session:  session,
		logger:   logger,
		state:    StatePreparing,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Workflow) transition(next State) {
	w.mu.Lock()
	w.state = next
	observer := w.observer
	w.mu.Unlock()

	w.logger.Info("Workflow state changed",
		zap.String("state", string(next)),
		zap.String("session_id", w.session.ID))
	if observer != nil {
		observer(next)
	}
}

// Run drives the machine to a terminal state and returns it. A second call
// returns ErrAlreadyStarted without touching the session.
func (w *Workflow) Run(ctx context.Context) (State, error) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return w.state, ErrAlreadyStarted
	}
	w.started = true
	w.mu.Unlock()

	w.prepare()
	w.transition(StateAnalyzing)
	w.analyze(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, nil
}

// prepare transcodes the capture for upload. Failure is absorbed: the
// original media is uploaded instead and the user never sees the difference.
func (w *Workflow) prepare() {
	transcoded, err := transcode.Transcode(w.session.Raw, transcode.DefaultMaxWidth, transcode.DefaultQuality)
	if err != nil {
		w.logger.Info("Transcode failed, uploading original media",
			zap.Error(err),
			zap.String("session_id", w.session.ID))
		return
	}
	w.session.Transcoded = transcoded
}

func (w *Workflow) analyze(ctx context.Context) {
	if len(w.session.Raw) == 0 {
		w.fail(ErrMissingSource)
		return
	}

	result, err := w.analyzer.Analyze(ctx, w.userID, w.session.UploadFilename(), w.session.UploadBytes())
	if err != nil {
		w.fail(err)
		return
	}

	w.mu.Lock()
	w.result = result
	w.mu.Unlock()
	w.transition(StateSuccess)

	if w.bus != nil {
		message := fmt.Sprintf("%s: %.0f kcal logged", result.Nutrition.FoodName, result.Nutrition.Calories)
		if err := w.bus.Publish("Meal analyzed", message); err != nil {
			w.logger.Warn("Failed to publish notification", zap.Error(err))
		}
	}
}

func (w *Workflow) fail(err error) {
	w.logger.Warn("Analysis failed",
		zap.Error(err),
		zap.String("session_id", w.session.ID))

	w.mu.Lock()
	w.failure = err
	w.mu.Unlock()
	w.transition(StateError)

	if w.bus != nil {
		if pubErr := w.bus.Publish("Analysis failed", "We couldn't identify your meal. Please retake the photo."); pubErr != nil {
			w.logger.Warn("Failed to publish notification", zap.Error(pubErr))
		}
	}
}

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Err returns the failure that drove the machine into StateError, if any.
func (w *Workflow) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failure
}

// Result exposes the analysis outcome while in StateSuccess. After Retake
// the result is gone and ErrNotSuccessful is returned again.
func (w *Workflow) Result() (*models.AnalysisResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateSuccess || w.result == nil {
		return nil, ErrNotSuccessful
	}
	return w.result, nil
}

// Continue hands the result forward to the next stage. Allowed only from
// StateSuccess.
func (w *Workflow) Continue() (*models.AnalysisResult, error) {
	return w.Result()
}

// Retake discards the capture session and returns control to capture.
// Allowed only from a terminal state; the session cannot be reused.
func (w *Workflow) Retake() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateSuccess && w.state != StateError {
		return ErrNotTerminal
	}

	w.session.Raw = nil
	w.session.Transcoded = nil
	w.result = nil
	return nil
}
