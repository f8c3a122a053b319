// Package chat maintains the ordered conversation transcript and sends text
// and voice turns through the gateway.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nutrilink/nutrilink/internal/media"
	"github.com/nutrilink/nutrilink/internal/models"
)

const (
	textApology  = "Sorry, I'm having trouble connecting right now. Please try again."
	voiceApology = "Sorry, I couldn't process your voice message."
)

var (
	// ErrNotReady is returned for sends attempted before rehydration has
	// completed, so a late history load can never clobber a fresh turn.
	ErrNotReady = errors.New("chat: session not rehydrated yet")

	ErrEmptyMessage = errors.New("chat: empty message")
)

// Backend is the slice of the gateway the session needs.
type Backend interface {
	Chat(ctx context.Context, userID, message string) (string, error)
	ChatHistory(ctx context.Context, userID string) ([]models.ChatMessage, error)
	VoiceChat(ctx context.Context, userID, filename string, audio []byte) (transcription, response string, err error)
}

// Session holds one user's transcript as a reduction over an ordered event
// log. Gateway failures never escape: they become apologetic assistant turns.
type Session struct {
	backend Backend
	userID  string
	logger  *zap.Logger

	mu      sync.Mutex
	events  []event
	entries []entry
	ready   bool
}

func NewSession(backend Backend, userID string, logger *zap.Logger) *Session {
	return &Session{
		backend: backend,
		userID:  userID,
		logger:  logger,
	}
}

func (s *Session) apply(ev event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	s.entries = reduce(s.entries, ev)
}

// Rehydrate loads the server-side transcript and opens the session for
// input. A fetch failure still opens the session (with an empty transcript)
// so the user is not dead-ended; the error is reported for logging.
func (s *Session) Rehydrate(ctx context.Context) error {
	history, err := s.backend.ChatHistory(ctx, s.userID)
	if err != nil {
		s.logger.Warn("Failed to fetch chat history",
			zap.Error(err),
			zap.String("user_id", s.userID))
		history = nil
	}

	// Loading the history and opening the session for input happen under one
	// lock hold. No send is admitted before the loaded transcript is in
	// place, so the wholesale replace can never drop an admitted turn.
	s.mu.Lock()
	if !s.ready {
		ev := event{kind: eventHistoryLoaded, history: history}
		s.events = append(s.events, ev)
		s.entries = reduce(s.entries, ev)
		s.ready = true
	}
	s.mu.Unlock()
	return err
}

// Ready reports whether the session admits input.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Transcript returns a copy of the current ordered transcript.
func (s *Session) Transcript() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ChatMessage, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.msg)
	}
	return out
}

// SendText appends the user's turn to the transcript before the network call
// begins, so it stays visible even if the call fails. The assistant's reply
// (or an apology on failure) is appended when the round-trip resolves.
func (s *Session) SendText(ctx context.Context, message string) error {
	if !s.Ready() {
		return ErrNotReady
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return ErrEmptyMessage
	}

	s.apply(event{kind: eventUserSent, content: message})

	reply, err := s.backend.Chat(ctx, s.userID, message)
	if err != nil {
		s.logger.Warn("Chat turn failed",
			zap.Error(err),
			zap.String("user_id", s.userID))
		s.apply(event{kind: eventAssistantReceived, content: textApology})
		return nil
	}

	s.apply(event{kind: eventAssistantReceived, content: reply})
	return nil
}

// SendVoice appends a placeholder turn immediately. On success the
// placeholder is replaced by the transcribed turn plus the reply. On failure
// it stays in place, so the user can still see a voice message was sent, and
// an apology is appended.
func (s *Session) SendVoice(ctx context.Context, clip *media.AudioClip) error {
	if !s.Ready() {
		return ErrNotReady
	}
	if clip == nil || len(clip.Data) == 0 {
		return ErrEmptyMessage
	}

	placeholderID := uuid.New().String()
	s.apply(event{kind: eventPlaceholderAdded, placeholderID: placeholderID})

	transcription, reply, err := s.backend.VoiceChat(ctx, s.userID, clip.Filename, clip.Data)
	if err != nil {
		s.logger.Warn("Voice turn failed",
			zap.Error(err),
			zap.String("user_id", s.userID))
		s.apply(event{kind: eventAssistantReceived, content: voiceApology})
		return nil
	}

	s.apply(event{
		kind:          eventPlaceholderResolved,
		placeholderID: placeholderID,
		transcription: transcription,
		reply:         reply,
	})
	return nil
}
