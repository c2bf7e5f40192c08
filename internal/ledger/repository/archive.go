package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medledger/medledger-backend/pkg/database"
	"github.com/medledger/medledger-backend/pkg/errors"
)

// ArchivedPortion is a quantity removed from a batch with a reason. The
// stock it represents is already subtracted from the batch's live quantity;
// restoring adds it back and deletes the row.
type ArchivedPortion struct {
	ID         string    `db:"id" json:"id"`
	BatchID    string    `db:"batch_id" json:"batch_id"`
	MedicineID string    `db:"medicine_id" json:"medicine_id"`
	BranchID   string    `db:"branch_id" json:"branch_id"`
	Quantity   int       `db:"quantity" json:"quantity"`
	Reason     string    `db:"reason" json:"reason"`
	ArchivedBy string    `db:"archived_by" json:"archived_by"`
	ArchivedAt time.Time `db:"archived_at" json:"archived_at"`
}

// ArchiveRepository handles archived portion persistence
type ArchiveRepository struct {
	db *database.DB
}

// NewArchiveRepository creates a new archive repository
func NewArchiveRepository(db *database.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// Insert appends an archived portion record
func (r *ArchiveRepository) Insert(ctx context.Context, q sqlx.ExtContext, a *ArchivedPortion) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	query := `
		INSERT INTO archived_portions (id, batch_id, medicine_id, branch_id, quantity, reason, archived_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING archived_at
	`

	err := q.QueryRowxContext(ctx, query,
		a.ID, a.BatchID, a.MedicineID, a.BranchID, a.Quantity, a.Reason, a.ArchivedBy,
	).Scan(&a.ArchivedAt)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	}
	return nil
}

// GetByID gets an archived portion by ID
func (r *ArchiveRepository) GetByID(ctx context.Context, q sqlx.ExtContext, id string) (*ArchivedPortion, error) {
	var a ArchivedPortion
	query := `SELECT * FROM archived_portions WHERE id = $1`
	if err := sqlx.GetContext(ctx, q, &a, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("archived portion")
		}
		return nil, err
	}
	return &a, nil
}

// Delete removes an archived portion record
func (r *ArchiveRepository) Delete(ctx context.Context, q sqlx.ExtContext, id string) error {
	query := `DELETE FROM archived_portions WHERE id = $1`
	result, err := q.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("archived portion")
	}
	return nil
}

// ListByBranch lists archived portions for a branch, newest first
func (r *ArchiveRepository) ListByBranch(ctx context.Context, branchID string) ([]*ArchivedPortion, error) {
	var portions []*ArchivedPortion
	query := `
		SELECT * FROM archived_portions
		WHERE branch_id = $1
		ORDER BY archived_at DESC
	`
	if err := r.db.SelectContext(ctx, &portions, query, branchID); err != nil {
		return nil, err
	}
	return portions, nil
}
