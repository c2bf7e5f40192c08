package service

import (
	"context"
	"testing"
	"time"

	"github.com/medledger/medledger-backend/internal/ledger/repository"
	"github.com/medledger/medledger-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArchiveService(batches *fakeBatchStore, archives *fakeArchiveStore) *ArchiveService {
	return NewArchiveService(&fakeTxRunner{}, batches, archives, nil, 365, testLogger)
}

func TestArchiveMovesQuantityOffShelf(t *testing.T) {
	batch := &repository.StockBatch{ID: "batch-a", MedicineID: "med-1", BranchID: "branch-1", Quantity: 10, ExpirationDate: day(30)}
	batches := newFakeBatchStore(batch)
	archives := newFakeArchiveStore()
	svc := newArchiveService(batches, archives)

	portion, err := svc.Archive(context.Background(), "batch-a", 4, "damaged packaging", "branch-1", "user-1")
	require.NoError(t, err)

	assert.Equal(t, 6, batches.quantity("batch-a"))
	assert.Equal(t, "med-1", portion.MedicineID)
	assert.Equal(t, 4, portion.Quantity)
	assert.Equal(t, "damaged packaging", portion.Reason)
	assert.Equal(t, "user-1", portion.ArchivedBy)

	stored, err := archives.GetByID(context.Background(), nil, portion.ID)
	require.NoError(t, err)
	assert.Equal(t, portion.Quantity, stored.Quantity)
}

func TestArchiveInsufficientQuantity(t *testing.T) {
	batch := &repository.StockBatch{ID: "batch-a", MedicineID: "med-1", BranchID: "branch-1", Quantity: 3, ExpirationDate: day(30)}
	batches := newFakeBatchStore(batch)
	svc := newArchiveService(batches, newFakeArchiveStore())

	_, err := svc.Archive(context.Background(), "batch-a", 5, "damaged packaging", "branch-1", "user-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
	assert.Equal(t, 3, batches.quantity("batch-a"))
}

func TestArchiveForeignBranch(t *testing.T) {
	batch := &repository.StockBatch{ID: "batch-a", MedicineID: "med-1", BranchID: "branch-1", Quantity: 10, ExpirationDate: day(30)}
	batches := newFakeBatchStore(batch)
	svc := newArchiveService(batches, newFakeArchiveStore())

	_, err := svc.Archive(context.Background(), "batch-a", 5, "damaged packaging", "branch-2", "user-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRestoreReturnsQuantityToBatch(t *testing.T) {
	batch := &repository.StockBatch{ID: "batch-a", MedicineID: "med-1", BranchID: "branch-1", Quantity: 10, ExpirationDate: day(30)}
	batches := newFakeBatchStore(batch)
	archives := newFakeArchiveStore()
	svc := newArchiveService(batches, archives)

	portion, err := svc.Archive(context.Background(), "batch-a", 4, "damaged packaging", "branch-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, 6, batches.quantity("batch-a"))

	err = svc.Restore(context.Background(), portion.ID, "branch-1", "user-2")
	require.NoError(t, err)

	assert.Equal(t, 10, batches.quantity("batch-a"))
	_, err = archives.GetByID(context.Background(), nil, portion.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRestoreSynthesizesBatchWhenOriginalGone(t *testing.T) {
	batches := newFakeBatchStore()
	archives := newFakeArchiveStore()
	svc := newArchiveService(batches, archives)

	portion := &repository.ArchivedPortion{
		BatchID:    "batch-gone",
		MedicineID: "med-1",
		BranchID:   "branch-1",
		Quantity:   7,
		Reason:     "damaged packaging",
		ArchivedBy: "user-1",
	}
	require.NoError(t, archives.Insert(context.Background(), nil, portion))

	err := svc.Restore(context.Background(), portion.ID, "branch-1", "user-2")
	require.NoError(t, err)

	require.Len(t, batches.created, 1)
	created := batches.created[0]
	assert.Equal(t, "med-1", created.MedicineID)
	assert.Equal(t, "branch-1", created.BranchID)
	assert.Equal(t, 7, created.Quantity)
	assert.True(t, created.ExpirationDate.After(time.Now().AddDate(0, 0, 364)))
}

func TestDeletePermanentlyLeavesBatchAlone(t *testing.T) {
	batch := &repository.StockBatch{ID: "batch-a", MedicineID: "med-1", BranchID: "branch-1", Quantity: 10, ExpirationDate: day(30)}
	batches := newFakeBatchStore(batch)
	archives := newFakeArchiveStore()
	svc := newArchiveService(batches, archives)

	portion, err := svc.Archive(context.Background(), "batch-a", 4, "damaged packaging", "branch-1", "user-1")
	require.NoError(t, err)

	err = svc.DeletePermanently(context.Background(), portion.ID, "branch-1")
	require.NoError(t, err)

	assert.Equal(t, 6, batches.quantity("batch-a"))
	_, err = archives.GetByID(context.Background(), nil, portion.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRestoreForeignBranch(t *testing.T) {
	batches := newFakeBatchStore()
	archives := newFakeArchiveStore()
	svc := newArchiveService(batches, archives)

	portion := &repository.ArchivedPortion{
		BatchID:    "batch-a",
		MedicineID: "med-1",
		BranchID:   "branch-1",
		Quantity:   2,
		Reason:     "expired on shelf",
		ArchivedBy: "user-1",
	}
	require.NoError(t, archives.Insert(context.Background(), nil, portion))

	err := svc.Restore(context.Background(), portion.ID, "branch-2", "user-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
