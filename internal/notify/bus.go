// Package notify is the cross-context notification bus. The persisted store
// is the single source of truth; a change in any context emits a same-context
// signal and a cross-context signal, and both paths converge on re-reading
// the store, so every context settles on identical state.
package notify

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nutrilink/nutrilink/internal/models"
	"github.com/nutrilink/nutrilink/internal/storage"
)

// MaxNotifications bounds the stored list; older entries are silently
// dropped, newest first.
const MaxNotifications = 10

type Bus struct {
	store     storage.Storage
	userID    string
	signaller Signaller
	logger    *zap.Logger

	mu      sync.Mutex
	subs    map[int]func([]models.Notification)
	nextSub int
}

// New creates the bus for one user in one execution context. signaller may
// be nil when no other contexts exist.
func New(store storage.Storage, userID string, signaller Signaller, logger *zap.Logger) *Bus {
	b := &Bus{
		store:     store,
		userID:    userID,
		signaller: signaller,
		logger:    logger,
		subs:      make(map[int]func([]models.Notification)),
	}
	if signaller != nil {
		signaller.SetHandler(func(key string) {
			if key == b.storeKey() {
				b.fanOut()
			}
		})
	}
	return b
}

func (b *Bus) storeKey() string {
	return "notifications_" + b.userID
}

// load reads the user's list, seeding the welcome notification on the very
// first read of an empty store.
func (b *Bus) load() ([]models.Notification, error) {
	list, err := b.store.GetNotifications(b.userID)
	if errors.Is(err, storage.ErrNotFound) {
		list = []models.Notification{{
			ID:           time.Now().UnixMilli(),
			Title:        "Welcome to NutriLink",
			Message:      "Start tracking your meals for AI insights!",
			CreatedLabel: "Just now",
			Unread:       true,
		}}
		if saveErr := b.store.SaveNotifications(b.userID, list); saveErr != nil {
			return nil, fmt.Errorf("failed to seed notifications: %w", saveErr)
		}
		return list, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}
	return list, nil
}

// Publish prepends a new unread notification, truncates the list to the
// newest MaxNotifications, persists it, and signals both contexts.
func (b *Bus) Publish(title, message string) error {
	b.mu.Lock()
	list, err := b.load()
	if err != nil {
		b.mu.Unlock()
		return err
	}

	id := time.Now().UnixMilli()
	if len(list) > 0 && list[0].ID >= id {
		id = list[0].ID + 1
	}

	list = append([]models.Notification{{
		ID:           id,
		Title:        title,
		Message:      message,
		CreatedLabel: "Just now",
		Unread:       true,
	}}, list...)
	if len(list) > MaxNotifications {
		list = list[:MaxNotifications]
	}

	err = b.store.SaveNotifications(b.userID, list)
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to save notifications: %w", err)
	}

	b.emit()
	return nil
}

// MarkAllRead flips every entry to read.
func (b *Bus) MarkAllRead() error {
	return b.mutate(func(list []models.Notification) []models.Notification {
		for i := range list {
			list[i].Unread = false
		}
		return list
	})
}

// Clear empties the list.
func (b *Bus) Clear() error {
	return b.mutate(func([]models.Notification) []models.Notification {
		return []models.Notification{}
	})
}

func (b *Bus) mutate(fn func([]models.Notification) []models.Notification) error {
	b.mu.Lock()
	list, err := b.load()
	if err != nil {
		b.mu.Unlock()
		return err
	}
	err = b.store.SaveNotifications(b.userID, fn(list))
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to save notifications: %w", err)
	}

	b.emit()
	return nil
}

// Notifications returns the current list, newest first.
func (b *Bus) Notifications() ([]models.Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load()
}

// UnreadCount counts entries still marked unread.
func (b *Bus) UnreadCount() (int, error) {
	list, err := b.Notifications()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range list {
		if n.Unread {
			count++
		}
	}
	return count, nil
}

// Subscribe registers an observer for this context. The returned function
// unsubscribes it.
func (b *Bus) Subscribe(fn func([]models.Notification)) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// emit runs the same-context path directly and asks the signaller to wake
// the other contexts.
func (b *Bus) emit() {
	b.fanOut()
	if b.signaller != nil {
		if err := b.signaller.Broadcast(b.storeKey()); err != nil {
			b.logger.Warn("Failed to signal other contexts", zap.Error(err))
		}
	}
}

// fanOut re-reads the store and delivers the fresh list to every subscriber.
func (b *Bus) fanOut() {
	b.mu.Lock()
	list, err := b.load()
	if err != nil {
		b.mu.Unlock()
		b.logger.Warn("Failed to reload notifications", zap.Error(err))
		return
	}
	subs := make([]func([]models.Notification), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(list)
	}
}
