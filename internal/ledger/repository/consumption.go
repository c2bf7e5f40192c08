package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medledger/medledger-backend/pkg/database"
)

// StockConsumption is an append-only audit record of a dispense against one
// batch. A batch's total dispensed quantity is the sum of its rows here.
type StockConsumption struct {
	ID          string    `db:"id" json:"id"`
	BatchID     string    `db:"batch_id" json:"batch_id"`
	MedicineID  string    `db:"medicine_id" json:"medicine_id"`
	BranchID    string    `db:"branch_id" json:"branch_id"`
	Quantity    int       `db:"quantity" json:"quantity"`
	DispensedBy string    `db:"dispensed_by" json:"dispensed_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ConsumptionRepository handles stock consumption audit records
type ConsumptionRepository struct {
	db *database.DB
}

// NewConsumptionRepository creates a new consumption repository
func NewConsumptionRepository(db *database.DB) *ConsumptionRepository {
	return &ConsumptionRepository{db: db}
}

// Insert appends a consumption record
func (r *ConsumptionRepository) Insert(ctx context.Context, q sqlx.ExtContext, c *StockConsumption) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_consumptions (id, batch_id, medicine_id, branch_id, quantity, dispensed_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := q.QueryRowxContext(ctx, query,
		c.ID, c.BatchID, c.MedicineID, c.BranchID, c.Quantity, c.DispensedBy,
	).Scan(&c.CreatedAt)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	}
	return nil
}

// SumByBatch returns the total quantity dispensed from a batch
func (r *ConsumptionRepository) SumByBatch(ctx context.Context, batchID string) (int, error) {
	var total sql.NullInt64
	query := `SELECT SUM(quantity) FROM stock_consumptions WHERE batch_id = $1`
	if err := r.db.GetContext(ctx, &total, query, batchID); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// ListByBranch lists consumption records for a branch, newest first
func (r *ConsumptionRepository) ListByBranch(ctx context.Context, branchID string, limit int) ([]*StockConsumption, error) {
	if limit <= 0 {
		limit = 100
	}

	var records []*StockConsumption
	query := `
		SELECT * FROM stock_consumptions
		WHERE branch_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &records, query, branchID, limit); err != nil {
		return nil, err
	}
	return records, nil
}
