package service

import (
	"context"
	"testing"

	"github.com/medledger/medledger-backend/internal/ledger/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStockLevelReader struct {
	levels []*repository.StockLevel
}

func (f *fakeStockLevelReader) ListStockLevels(ctx context.Context) ([]*repository.StockLevel, error) {
	return f.levels, nil
}

func TestScanFlagsLevelsAtOrUnderThreshold(t *testing.T) {
	levels := &fakeStockLevelReader{levels: []*repository.StockLevel{
		{BranchID: "branch-1", MedicineID: "med-1", MedicineName: "Paracetamol", Available: 12},
		{BranchID: "branch-1", MedicineID: "med-2", MedicineName: "Ibuprofen", Available: 50},
		{BranchID: "branch-2", MedicineID: "med-1", MedicineName: "Paracetamol", Available: 300},
	}}
	store := &fakeNotificationStore{}
	scanner := NewLowStockScanner(levels, NewNotifier(store, testLogger), nil, 50, testLogger)

	require.NoError(t, scanner.Scan(context.Background()))

	// 12 and 50 are at or under the threshold, 300 is not
	require.Len(t, store.upserts, 2)
	assert.Equal(t, "med-1", *store.upserts[0].ReferenceID)
	assert.Equal(t, "branch-1", store.upserts[0].BranchID)
	assert.Equal(t, "med-2", *store.upserts[1].ReferenceID)
}

func TestScanRefreshesInsteadOfPilingUp(t *testing.T) {
	levels := &fakeStockLevelReader{levels: []*repository.StockLevel{
		{BranchID: "branch-1", MedicineID: "med-1", MedicineName: "Paracetamol", Available: 12},
	}}
	store := &fakeNotificationStore{}
	scanner := NewLowStockScanner(levels, NewNotifier(store, testLogger), nil, 50, testLogger)

	require.NoError(t, scanner.Scan(context.Background()))
	require.NoError(t, scanner.Scan(context.Background()))

	// both sweeps go through the deduped path, never plain inserts
	assert.Len(t, store.upserts, 2)
	assert.Empty(t, store.inserts)
}
