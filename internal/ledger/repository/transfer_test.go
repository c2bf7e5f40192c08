package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/medledger/medledger-backend/pkg/database"
	"github.com/medledger/medledger-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransferRepo(t *testing.T) (*TransferRepository, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	repo := NewTransferRepository(database.NewFromSqlx(mockDB.DB, testLogger))
	return repo, mockDB
}

func TestCreateForcesPendingStatus(t *testing.T) {
	repo, mockDB := newTransferRepo(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("INSERT INTO transfer_requests").
		WithArgs(testutil.AnyUUID{}, "branch-1", "branch-2", "med-1", 10, StatusPending, "user-1").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))

	req := &TransferRequest{
		FromBranchID:      "branch-1",
		ToBranchID:        "branch-2",
		MedicineID:        "med-1",
		QuantityRequested: 10,
		Status:            "approved", // must be overridden
		RequestedBy:       "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), req))
	assert.Equal(t, StatusPending, req.Status)
	mockDB.ExpectationsWereMet(t)
}

func TestMarkApprovedOnlyTouchesPendingRows(t *testing.T) {
	repo, mockDB := newTransferRepo(t)
	defer mockDB.Close()

	linked := "batch-1"
	mockDB.ExpectExec("UPDATE transfer_requests").
		WithArgs("req-1", StatusApproved, "user-2", linked, StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.MarkApproved(context.Background(), repo.db.DB, "req-1", "user-2", &linked)
	require.NoError(t, err)
	assert.True(t, ok)
	mockDB.ExpectationsWereMet(t)
}

func TestMarkApprovedReturnsFalseWhenAlreadyResolved(t *testing.T) {
	repo, mockDB := newTransferRepo(t)
	defer mockDB.Close()

	mockDB.ExpectExec("UPDATE transfer_requests").
		WithArgs("req-1", StatusApproved, "user-2", nil, StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkApproved(context.Background(), repo.db.DB, "req-1", "user-2", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	mockDB.ExpectationsWereMet(t)
}

func TestMarkRejectedStoresReason(t *testing.T) {
	repo, mockDB := newTransferRepo(t)
	defer mockDB.Close()

	reason := "not enough on shelf"
	mockDB.ExpectExec("UPDATE transfer_requests").
		WithArgs("req-1", StatusRejected, "user-2", reason, StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.MarkRejected(context.Background(), repo.db.DB, "req-1", "user-2", &reason)
	require.NoError(t, err)
	assert.True(t, ok)
	mockDB.ExpectationsWereMet(t)
}
