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

// StockBatch represents a stock-in batch at a branch. quantity is the live
// remaining amount; initial_quantity never changes after insert, so
// initial_quantity = quantity + dispensed + archived holds at every snapshot.
type StockBatch struct {
	ID              string    `db:"id" json:"id"`
	MedicineID      string    `db:"medicine_id" json:"medicine_id"`
	BranchID        string    `db:"branch_id" json:"branch_id"`
	InitialQuantity int       `db:"initial_quantity" json:"initial_quantity"`
	Quantity        int       `db:"quantity" json:"quantity"`
	DateReceived    time.Time `db:"date_received" json:"date_received"`
	ExpirationDate  time.Time `db:"expiration_date" json:"expiration_date"`
	CreatedBy       string    `db:"created_by" json:"created_by"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Available returns the batch's consumable quantity, clamped at zero.
func (b *StockBatch) Available() int {
	if b.Quantity < 0 {
		return 0
	}
	return b.Quantity
}

// StockLevel is a per-(branch, medicine) availability aggregate
type StockLevel struct {
	BranchID      string     `db:"branch_id" json:"branch_id"`
	MedicineID    string     `db:"medicine_id" json:"medicine_id"`
	MedicineName  string     `db:"medicine_name" json:"medicine_name"`
	Category      string     `db:"category" json:"category"`
	Available     int        `db:"available" json:"available"`
	NearestExpiry *time.Time `db:"nearest_expiry" json:"nearest_expiry,omitempty"`
}

// BatchRepository handles stock batch persistence. Methods taking a
// sqlx.ExtContext participate in the caller's transaction; pass the pool
// (repo.DB()) outside one.
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// DB returns the underlying pool for non-transactional calls
func (r *BatchRepository) DB() sqlx.ExtContext {
	return r.db.DB
}

// Create inserts a new batch. initial_quantity is set from Quantity.
func (r *BatchRepository) Create(ctx context.Context, q sqlx.ExtContext, b *StockBatch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.InitialQuantity = b.Quantity

	query := `
		INSERT INTO stock_batches (
			id, medicine_id, branch_id, initial_quantity, quantity,
			date_received, expiration_date, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := q.QueryRowxContext(ctx, query,
		b.ID, b.MedicineID, b.BranchID, b.InitialQuantity, b.Quantity,
		b.DateReceived, b.ExpirationDate, b.CreatedBy,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	}
	return nil
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, q sqlx.ExtContext, id string) (*StockBatch, error) {
	var batch StockBatch
	query := `SELECT * FROM stock_batches WHERE id = $1`
	if err := sqlx.GetContext(ctx, q, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// ListFEFO lists all batches for a medicine at a branch in consumption order:
// ascending expiration date, ties broken by id. The ordering is total and
// stable across re-reads within one consume call.
func (r *BatchRepository) ListFEFO(ctx context.Context, q sqlx.ExtContext, medicineID, branchID string) ([]*StockBatch, error) {
	var batches []*StockBatch
	query := `
		SELECT * FROM stock_batches
		WHERE medicine_id = $1 AND branch_id = $2
		ORDER BY expiration_date, id
	`
	if err := sqlx.SelectContext(ctx, q, &batches, query, medicineID, branchID); err != nil {
		return nil, err
	}
	return batches, nil
}

// ReduceQuantity atomically decrements a batch's quantity. It succeeds only
// if the current quantity is at least expectedMin; otherwise it returns false
// without mutating, meaning the state changed concurrently and the caller
// must recompute.
func (r *BatchRepository) ReduceQuantity(ctx context.Context, q sqlx.ExtContext, id string, delta, expectedMin int) (bool, error) {
	if delta <= 0 {
		return false, errors.InvalidQuantity("reduction must be positive")
	}
	if expectedMin < delta {
		expectedMin = delta
	}

	query := `
		UPDATE stock_batches
		SET quantity = quantity - $2, updated_at = now()
		WHERE id = $1 AND quantity >= $3
	`
	result, err := q.ExecContext(ctx, query, id, delta, expectedMin)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return false, mapped
		}
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// AddQuantity adds stock back onto a batch (archive restore). Returns false
// if the batch no longer exists.
func (r *BatchRepository) AddQuantity(ctx context.Context, q sqlx.ExtContext, id string, delta int) (bool, error) {
	if delta <= 0 {
		return false, errors.InvalidQuantity("addition must be positive")
	}

	query := `
		UPDATE stock_batches
		SET quantity = quantity + $2, updated_at = now()
		WHERE id = $1
	`
	result, err := q.ExecContext(ctx, query, id, delta)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CountForMedicine counts batch rows for a medicine at a branch, including
// fully consumed ones.
func (r *BatchRepository) CountForMedicine(ctx context.Context, q sqlx.ExtContext, medicineID, branchID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM stock_batches WHERE medicine_id = $1 AND branch_id = $2`
	if err := sqlx.GetContext(ctx, q, &count, query, medicineID, branchID); err != nil {
		return 0, err
	}
	return count, nil
}

// TotalAvailable sums the availability of all batches for a medicine at a branch
func (r *BatchRepository) TotalAvailable(ctx context.Context, q sqlx.ExtContext, medicineID, branchID string) (int, error) {
	var total sql.NullInt64
	query := `
		SELECT SUM(GREATEST(quantity, 0)) FROM stock_batches
		WHERE medicine_id = $1 AND branch_id = $2
	`
	if err := sqlx.GetContext(ctx, q, &total, query, medicineID, branchID); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// ListStockLevels aggregates availability per (branch, medicine) across all
// branches. Used by the low-stock scanner.
func (r *BatchRepository) ListStockLevels(ctx context.Context) ([]*StockLevel, error) {
	var levels []*StockLevel
	query := `
		SELECT b.branch_id, b.medicine_id,
			m.name AS medicine_name, m.category,
			SUM(GREATEST(b.quantity, 0)) AS available,
			MIN(b.expiration_date) FILTER (WHERE b.quantity > 0) AS nearest_expiry
		FROM stock_batches b
		JOIN medicines m ON m.id = b.medicine_id
		GROUP BY b.branch_id, b.medicine_id, m.name, m.category
		ORDER BY b.branch_id, m.name
	`
	if err := r.db.SelectContext(ctx, &levels, query); err != nil {
		return nil, err
	}
	return levels, nil
}

// ListStockLevelsByBranch aggregates availability per medicine at one branch
func (r *BatchRepository) ListStockLevelsByBranch(ctx context.Context, branchID string) ([]*StockLevel, error) {
	var levels []*StockLevel
	query := `
		SELECT b.branch_id, b.medicine_id,
			m.name AS medicine_name, m.category,
			SUM(GREATEST(b.quantity, 0)) AS available,
			MIN(b.expiration_date) FILTER (WHERE b.quantity > 0) AS nearest_expiry
		FROM stock_batches b
		JOIN medicines m ON m.id = b.medicine_id
		WHERE b.branch_id = $1
		GROUP BY b.branch_id, b.medicine_id, m.name, m.category
		ORDER BY m.name
	`
	if err := r.db.SelectContext(ctx, &levels, query, branchID); err != nil {
		return nil, err
	}
	return levels, nil
}

// ListExpiring lists batches with remaining stock expiring within the given
// number of days at a branch.
func (r *BatchRepository) ListExpiring(ctx context.Context, branchID string, withinDays int) ([]*StockBatch, error) {
	var batches []*StockBatch
	query := `
		SELECT * FROM stock_batches
		WHERE branch_id = $1 AND quantity > 0
		AND expiration_date <= NOW() + INTERVAL '1 day' * $2
		ORDER BY expiration_date, id
	`
	if err := r.db.SelectContext(ctx, &batches, query, branchID, withinDays); err != nil {
		return nil, err
	}
	return batches, nil
}
