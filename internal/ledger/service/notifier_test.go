package service

import (
	"context"
	"testing"

	"github.com/medledger/medledger-backend/internal/ledger/repository"
	"github.com/medledger/medledger-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierDedupedUsesUpsert(t *testing.T) {
	store := &fakeNotificationStore{}
	n := NewNotifier(store, testLogger)

	n.LowStock(context.Background(), "branch-1", "med-1", "Paracetamol", 12, 50)
	n.LowStock(context.Background(), "branch-1", "med-1", "Paracetamol", 8, 50)

	assert.Len(t, store.upserts, 2)
	assert.Empty(t, store.inserts)

	latest := store.upserts[1]
	assert.Equal(t, repository.NotificationLowStock, latest.Type)
	require.NotNil(t, latest.ReferenceID)
	assert.Equal(t, "med-1", *latest.ReferenceID)
	assert.Contains(t, latest.Message, "8 units left")
}

func TestNotifierStatusChangesAreInserted(t *testing.T) {
	store := &fakeNotificationStore{}
	n := NewNotifier(store, testLogger)

	n.RequestApproved(context.Background(), "branch-1", "req-1", 10)
	reason := "shelf is empty"
	n.RequestRejected(context.Background(), "branch-1", "req-2", &reason)

	require.Len(t, store.inserts, 2)
	assert.Empty(t, store.upserts)

	assert.Equal(t, repository.NotificationRequestApproved, store.inserts[0].Type)
	assert.Equal(t, repository.NotificationRequestRejected, store.inserts[1].Type)
	assert.Contains(t, store.inserts[1].Message, reason)
}

func TestNotifierSwallowsStoreErrors(t *testing.T) {
	store := &fakeNotificationStore{failWith: errors.Internal("db down")}
	n := NewNotifier(store, testLogger)

	// must not panic or propagate
	n.LowStock(context.Background(), "branch-1", "med-1", "Paracetamol", 12, 50)
	n.RequestApproved(context.Background(), "branch-1", "req-1", 10)
}

func TestNilNotifierIsSafe(t *testing.T) {
	var n *Notifier

	n.LowStock(context.Background(), "branch-1", "med-1", "Paracetamol", 12, 50)
	n.RequestCreated(context.Background(), "branch-2", "med-1", 5)
	n.RequestApproved(context.Background(), "branch-1", "req-1", 10)
	n.RequestRejected(context.Background(), "branch-1", "req-2", nil)
}
