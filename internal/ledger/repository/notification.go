package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/medledger/medledger-backend/pkg/database"
	"github.com/medledger/medledger-backend/pkg/errors"
)

// Notification types
const (
	NotificationLowStock        = "low_stock"
	NotificationRequest         = "request"
	NotificationRequestApproved = "request_approved"
	NotificationRequestRejected = "request_rejected"
)

// Notification is a per-branch alert row. Upsert-style notifications are
// unique per (branch_id, type, reference_id); status-change notifications
// are plain inserts.
type Notification struct {
	ID          string    `db:"id" json:"id"`
	BranchID    string    `db:"branch_id" json:"branch_id"`
	Type        string    `db:"type" json:"type"`
	ReferenceID *string   `db:"reference_id" json:"reference_id,omitempty"`
	Message     string    `db:"message" json:"message"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// NotificationRepository handles notification persistence
type NotificationRepository struct {
	db *database.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Upsert inserts a notification or, when an open one already exists for the
// (branch, type, reference) key, refreshes its message and marks it unread
// again. Repeated triggers collapse into a single row.
func (r *NotificationRepository) Upsert(ctx context.Context, n *Notification) error {
	if n.ReferenceID == nil || *n.ReferenceID == "" {
		return errors.BadRequest("deduped notifications require a reference id")
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	query := `
		INSERT INTO notifications (id, branch_id, type, reference_id, message)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (branch_id, type, reference_id) WHERE reference_id IS NOT NULL
		DO UPDATE SET message = EXCLUDED.message, is_read = FALSE, created_at = now()
		RETURNING id, is_read, created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		n.ID, n.BranchID, n.Type, n.ReferenceID, n.Message,
	).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	}
	return nil
}

// Insert unconditionally inserts a notification. Used for status-change
// events where each occurrence is a distinct fact.
func (r *NotificationRepository) Insert(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	query := `
		INSERT INTO notifications (id, branch_id, type, reference_id, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING is_read, created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		n.ID, n.BranchID, n.Type, n.ReferenceID, n.Message,
	).Scan(&n.IsRead, &n.CreatedAt)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	}
	return nil
}

// ListByBranch lists notifications for a branch, newest first
func (r *NotificationRepository) ListByBranch(ctx context.Context, branchID string) ([]*Notification, error) {
	var notifications []*Notification
	query := `
		SELECT * FROM notifications
		WHERE branch_id = $1
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &notifications, query, branchID); err != nil {
		return nil, err
	}
	return notifications, nil
}

// UnreadCount counts unread notifications for a branch
func (r *NotificationRepository) UnreadCount(ctx context.Context, branchID string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM notifications WHERE branch_id = $1 AND is_read = FALSE`
	if err := r.db.GetContext(ctx, &count, query, branchID); err != nil {
		return 0, err
	}
	return count, nil
}

// MarkAllRead flips every unread notification for a branch to read
func (r *NotificationRepository) MarkAllRead(ctx context.Context, branchID string) (int64, error) {
	query := `UPDATE notifications SET is_read = TRUE WHERE branch_id = $1 AND is_read = FALSE`
	result, err := r.db.ExecContext(ctx, query, branchID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
