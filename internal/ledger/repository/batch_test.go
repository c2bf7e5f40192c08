package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/medledger/medledger-backend/pkg/database"
	"github.com/medledger/medledger-backend/pkg/errors"
	"github.com/medledger/medledger-backend/pkg/logger"
	"github.com/medledger/medledger-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = logger.New("repository-test", "development")

func newBatchRepo(t *testing.T) (*BatchRepository, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	repo := NewBatchRepository(database.NewFromSqlx(mockDB.DB, testLogger))
	return repo, mockDB
}

func batchColumns() []string {
	return []string{
		"id", "medicine_id", "branch_id", "initial_quantity", "quantity",
		"date_received", "expiration_date", "created_by", "created_at", "updated_at",
	}
}

func TestReduceQuantitySucceedsWhenGuardHolds(t *testing.T) {
	repo, mockDB := newBatchRepo(t)
	defer mockDB.Close()

	mockDB.ExpectExec("UPDATE stock_batches").
		WithArgs("batch-1", 5, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.ReduceQuantity(context.Background(), repo.DB(), "batch-1", 5, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	mockDB.ExpectationsWereMet(t)
}

func TestReduceQuantityFailsWhenGuardBroken(t *testing.T) {
	repo, mockDB := newBatchRepo(t)
	defer mockDB.Close()

	mockDB.ExpectExec("UPDATE stock_batches").
		WithArgs("batch-1", 5, 5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.ReduceQuantity(context.Background(), repo.DB(), "batch-1", 5, 5)
	require.NoError(t, err)
	assert.False(t, ok)
	mockDB.ExpectationsWereMet(t)
}

func TestReduceQuantityKeepsHigherExpectedMin(t *testing.T) {
	repo, mockDB := newBatchRepo(t)
	defer mockDB.Close()

	mockDB.ExpectExec("UPDATE stock_batches").
		WithArgs("batch-1", 2, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.ReduceQuantity(context.Background(), repo.DB(), "batch-1", 2, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	mockDB.ExpectationsWereMet(t)
}

func TestReduceQuantityRejectsNonPositiveDelta(t *testing.T) {
	repo, mockDB := newBatchRepo(t)
	defer mockDB.Close()

	_, err := repo.ReduceQuantity(context.Background(), repo.DB(), "batch-1", 0, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))
	mockDB.ExpectationsWereMet(t)
}

func TestListFEFOOrdersByExpiration(t *testing.T) {
	repo, mockDB := newBatchRepo(t)
	defer mockDB.Close()

	now := time.Now()
	rows := testutil.MockRows(batchColumns()...).
		AddRow("batch-a", "med-1", "branch-1", 10, 10, now, now.AddDate(0, 1, 0), "user-1", now, now).
		AddRow("batch-b", "med-1", "branch-1", 10, 4, now, now.AddDate(0, 2, 0), "user-1", now, now)

	mockDB.ExpectQuery("SELECT * FROM stock_batches").
		WithArgs("med-1", "branch-1").
		WillReturnRows(rows)

	batches, err := repo.ListFEFO(context.Background(), repo.DB(), "med-1", "branch-1")
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "batch-a", batches[0].ID)
	assert.Equal(t, 4, batches[1].Quantity)
	mockDB.ExpectationsWereMet(t)
}

func TestTotalAvailableHandlesEmptyResult(t *testing.T) {
	repo, mockDB := newBatchRepo(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT SUM(GREATEST(quantity, 0)) FROM stock_batches").
		WithArgs("med-1", "branch-1").
		WillReturnRows(testutil.MockRows("sum").AddRow(nil))

	total, err := repo.TotalAvailable(context.Background(), repo.DB(), "med-1", "branch-1")
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	mockDB.ExpectationsWereMet(t)
}

func TestTotalAvailableSums(t *testing.T) {
	repo, mockDB := newBatchRepo(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT SUM(GREATEST(quantity, 0)) FROM stock_batches").
		WithArgs("med-1", "branch-1").
		WillReturnRows(testutil.MockRows("sum").AddRow(37))

	total, err := repo.TotalAvailable(context.Background(), repo.DB(), "med-1", "branch-1")
	require.NoError(t, err)
	assert.Equal(t, 37, total)
	mockDB.ExpectationsWereMet(t)
}

func TestCreateSetsInitialQuantity(t *testing.T) {
	repo, mockDB := newBatchRepo(t)
	defer mockDB.Close()

	now := time.Now()
	mockDB.ExpectQuery("INSERT INTO stock_batches").
		WithArgs(testutil.AnyUUID{}, "med-1", "branch-1", 25, 25,
			testutil.AnyTime{}, testutil.AnyTime{}, "user-1").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))

	batch := &StockBatch{
		MedicineID:     "med-1",
		BranchID:       "branch-1",
		Quantity:       25,
		DateReceived:   now,
		ExpirationDate: now.AddDate(0, 6, 0),
		CreatedBy:      "user-1",
	}
	err := repo.Create(context.Background(), repo.DB(), batch)
	require.NoError(t, err)
	assert.Equal(t, 25, batch.InitialQuantity)
	assert.NotEmpty(t, batch.ID)
	mockDB.ExpectationsWereMet(t)
}
