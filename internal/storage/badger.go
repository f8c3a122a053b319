package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/nutrilink/nutrilink/internal/models"
)

const identityKey = "identity"

// BadgerStorage is the durable implementation of Storage. Values are stored
// as JSON under the same keys every execution context reads.
type BadgerStorage struct {
	db     *badger.DB
	logger *zap.Logger
}

func NewBadgerStorage(path string, logger *zap.Logger) (*BadgerStorage, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(path, "badger"))
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &BadgerStorage{db: db, logger: logger}, nil
}

func (s *BadgerStorage) get(key string, out any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if err == badger.ErrKeyNotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %q: %w", key, err)
	}
	return nil
}

func (s *BadgerStorage) set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %q: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *BadgerStorage) GetIdentity() (*models.Identity, error) {
	var identity models.Identity
	if err := s.get(identityKey, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (s *BadgerStorage) SaveIdentity(identity *models.Identity) error {
	return s.set(identityKey, identity)
}

func (s *BadgerStorage) ClearIdentity() error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(identityKey))
	})
	if err != nil {
		return fmt.Errorf("failed to clear identity: %w", err)
	}
	return nil
}

func (s *BadgerStorage) GetNotifications(userID string) ([]models.Notification, error) {
	var list []models.Notification
	if err := s.get(notificationsKey(userID), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *BadgerStorage) SaveNotifications(userID string, list []models.Notification) error {
	if list == nil {
		list = []models.Notification{}
	}
	return s.set(notificationsKey(userID), list)
}

func (s *BadgerStorage) Close() error {
	return s.db.Close()
}
