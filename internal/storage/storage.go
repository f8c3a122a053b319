package storage

import (
	"errors"

	"github.com/nutrilink/nutrilink/internal/models"
)

// ErrNotFound is returned when a requested key has never been written.
var ErrNotFound = errors.New("storage: not found")

// Storage is the shared persisted store: session identity plus the per-user
// notification list. It is the only mutable state shared across execution
// contexts; everything else stays owned by its originating view.
type Storage interface {
	GetIdentity() (*models.Identity, error)
	SaveIdentity(identity *models.Identity) error
	ClearIdentity() error

	GetNotifications(userID string) ([]models.Notification, error)
	SaveNotifications(userID string, list []models.Notification) error

	Close() error
}

func notificationsKey(userID string) string {
	return "notifications_" + userID
}
