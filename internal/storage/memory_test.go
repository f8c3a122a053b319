package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutrilink/nutrilink/internal/models"
)

func TestMemoryStorage_IdentityRoundTrip(t *testing.T) {
	store := NewMemoryStorage()

	_, err := store.GetIdentity()
	assert.ErrorIs(t, err, ErrNotFound)

	identity := &models.Identity{UserID: "u-1", FullName: "Alice Smith"}
	require.NoError(t, store.SaveIdentity(identity))

	got, err := store.GetIdentity()
	require.NoError(t, err)
	assert.Equal(t, identity, got)

	require.NoError(t, store.ClearIdentity())
	_, err = store.GetIdentity()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_NotificationsRoundTrip(t *testing.T) {
	store := NewMemoryStorage()

	_, err := store.GetNotifications("alice")
	assert.ErrorIs(t, err, ErrNotFound)

	list := []models.Notification{
		{ID: 2, Title: "b", Unread: true},
		{ID: 1, Title: "a"},
	}
	require.NoError(t, store.SaveNotifications("alice", list))

	got, err := store.GetNotifications("alice")
	require.NoError(t, err)
	assert.Equal(t, list, got)

	// Lists are stored per user.
	_, err = store.GetNotifications("bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	store := NewMemoryStorage()

	require.NoError(t, store.SaveNotifications("alice", []models.Notification{{ID: 1, Title: "a"}}))

	got, err := store.GetNotifications("alice")
	require.NoError(t, err)
	got[0].Title = "mutated"

	fresh, err := store.GetNotifications("alice")
	require.NoError(t, err)
	assert.Equal(t, "a", fresh[0].Title)
}

func TestMemoryStorage_SaveEmptyListIsNotMissing(t *testing.T) {
	store := NewMemoryStorage()

	require.NoError(t, store.SaveNotifications("alice", []models.Notification{}))

	got, err := store.GetNotifications("alice")
	require.NoError(t, err)
	assert.Empty(t, got)
}
