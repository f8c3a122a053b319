package storage

import (
	"sync"

	"github.com/nutrilink/nutrilink/internal/models"
)

type MemoryStorage struct {
	mu            sync.RWMutex
	identity      *models.Identity
	notifications map[string][]models.Notification
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notifications: make(map[string][]models.Notification),
	}
}

func (s *MemoryStorage) GetIdentity() (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.identity == nil {
		return nil, ErrNotFound
	}
	identity := *s.identity
	return &identity, nil
}

func (s *MemoryStorage) SaveIdentity(identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *identity
	s.identity = &copied
	return nil
}

func (s *MemoryStorage) ClearIdentity() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = nil
	return nil
}

func (s *MemoryStorage) GetNotifications(userID string) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, exists := s.notifications[notificationsKey(userID)]
	if !exists {
		return nil, ErrNotFound
	}

	out := make([]models.Notification, len(list))
	copy(out, list)
	return out, nil
}

func (s *MemoryStorage) SaveNotifications(userID string, list []models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]models.Notification, len(list))
	copy(copied, list)
	s.notifications[notificationsKey(userID)] = copied
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
