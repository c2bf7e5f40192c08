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

// Transfer request states
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// TransferRequest is a branch-to-branch stock request. FromBranchID is the
// requesting branch (where the stock should end up); ToBranchID is the branch
// the request is sent to, whose stock is consumed on approval.
type TransferRequest struct {
	ID                string     `db:"id" json:"id"`
	FromBranchID      string     `db:"from_branch_id" json:"from_branch_id"`
	ToBranchID        string     `db:"to_branch_id" json:"to_branch_id"`
	MedicineID        string     `db:"medicine_id" json:"medicine_id"`
	QuantityRequested int        `db:"quantity_requested" json:"quantity_requested"`
	Status            string     `db:"status" json:"status"`
	RequestedBy       string     `db:"requested_by" json:"requested_by"`
	ConfirmedBy       *string    `db:"confirmed_by" json:"confirmed_by,omitempty"`
	LinkedBatchID     *string    `db:"linked_batch_id" json:"linked_batch_id,omitempty"`
	RejectReason      *string    `db:"reject_reason" json:"reject_reason,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt        *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// TransferRepository handles transfer request persistence
type TransferRepository struct {
	db *database.DB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *database.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Create inserts a new request in pending state
func (r *TransferRepository) Create(ctx context.Context, t *TransferRequest) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.Status = StatusPending

	query := `
		INSERT INTO transfer_requests (
			id, from_branch_id, to_branch_id, medicine_id, quantity_requested, status, requested_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		t.ID, t.FromBranchID, t.ToBranchID, t.MedicineID, t.QuantityRequested, t.Status, t.RequestedBy,
	).Scan(&t.CreatedAt)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	}
	return nil
}

// GetByID gets a request by ID
func (r *TransferRepository) GetByID(ctx context.Context, q sqlx.ExtContext, id string) (*TransferRequest, error) {
	var t TransferRequest
	query := `SELECT * FROM transfer_requests WHERE id = $1`
	if err := sqlx.GetContext(ctx, q, &t, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("transfer request")
		}
		return nil, err
	}
	return &t, nil
}

// MarkApproved transitions a pending request to approved. Returns false if
// the request was not pending, which means another actor already resolved
// it; the conditional update makes the transition exactly-once.
func (r *TransferRepository) MarkApproved(ctx context.Context, q sqlx.ExtContext, id, confirmedBy string, linkedBatchID *string) (bool, error) {
	query := `
		UPDATE transfer_requests
		SET status = $2, confirmed_by = $3, linked_batch_id = $4, resolved_at = now()
		WHERE id = $1 AND status = $5
	`
	result, err := q.ExecContext(ctx, query, id, StatusApproved, confirmedBy, linkedBatchID, StatusPending)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkRejected transitions a pending request to rejected under the same
// exactly-once guard as MarkApproved.
func (r *TransferRepository) MarkRejected(ctx context.Context, q sqlx.ExtContext, id, confirmedBy string, reason *string) (bool, error) {
	query := `
		UPDATE transfer_requests
		SET status = $2, confirmed_by = $3, reject_reason = $4, resolved_at = now()
		WHERE id = $1 AND status = $5
	`
	result, err := q.ExecContext(ctx, query, id, StatusRejected, confirmedBy, reason, StatusPending)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListPending lists pending requests addressed to a branch, oldest first
func (r *TransferRepository) ListPending(ctx context.Context, toBranchID string) ([]*TransferRequest, error) {
	var requests []*TransferRequest
	query := `
		SELECT * FROM transfer_requests
		WHERE to_branch_id = $1 AND status = $2
		ORDER BY created_at
	`
	if err := r.db.SelectContext(ctx, &requests, query, toBranchID, StatusPending); err != nil {
		return nil, err
	}
	return requests, nil
}

// ListHistory lists resolved requests where the branch is either endpoint,
// newest first.
func (r *TransferRepository) ListHistory(ctx context.Context, branchID string) ([]*TransferRequest, error) {
	var requests []*TransferRequest
	query := `
		SELECT * FROM transfer_requests
		WHERE (from_branch_id = $1 OR to_branch_id = $1) AND status <> $2
		ORDER BY resolved_at DESC
	`
	if err := r.db.SelectContext(ctx, &requests, query, branchID, StatusPending); err != nil {
		return nil, err
	}
	return requests, nil
}
