package service

import (
	"context"
	"fmt"

	"github.com/medledger/medledger-backend/internal/ledger/repository"
	"github.com/medledger/medledger-backend/pkg/logger"
)

// Delivery selects how a notification is produced. Deduped notifications
// collapse repeated triggers into one unread row per (branch, type,
// reference); Always notifications are inserted unconditionally because each
// occurrence is a distinct fact.
type Delivery int

const (
	Deduped Delivery = iota
	Always
)

// NotificationStore is the persistence surface the notifier writes to
type NotificationStore interface {
	Upsert(ctx context.Context, n *repository.Notification) error
	Insert(ctx context.Context, n *repository.Notification) error
}

// Notifier produces branch notifications. Every method is best-effort:
// failures are logged and never propagated, so notification delivery can
// never fail or roll back a ledger operation.
type Notifier struct {
	store  NotificationStore
	logger *logger.Logger
}

// NewNotifier creates a new notifier
func NewNotifier(store NotificationStore, log *logger.Logger) *Notifier {
	return &Notifier{store: store, logger: log}
}

// Notify produces a notification with the given delivery mode
func (n *Notifier) Notify(ctx context.Context, delivery Delivery, branchID, ntype string, referenceID *string, message string) {
	if n == nil {
		return
	}

	notification := &repository.Notification{
		BranchID:    branchID,
		Type:        ntype,
		ReferenceID: referenceID,
		Message:     message,
	}

	var err error
	switch delivery {
	case Deduped:
		err = n.store.Upsert(ctx, notification)
	default:
		err = n.store.Insert(ctx, notification)
	}

	if err != nil {
		n.logger.Error().
			Err(err).
			Str("branch_id", branchID).
			Str("type", ntype).
			Msg("failed to produce notification")
	}
}

// LowStock raises a deduped low-stock notification keyed by medicine
func (n *Notifier) LowStock(ctx context.Context, branchID, medicineID, medicineName string, available, threshold int) {
	message := fmt.Sprintf("%s is low on stock: %d units left (threshold %d)", medicineName, available, threshold)
	n.Notify(ctx, Deduped, branchID, repository.NotificationLowStock, &medicineID, message)
}

// RequestCreated raises a deduped request notification at the branch the
// request is addressed to, keyed by medicine so repeated requests collapse.
func (n *Notifier) RequestCreated(ctx context.Context, toBranchID, medicineID string, quantity int) {
	message := fmt.Sprintf("another branch requested %d units of a medicine you stock", quantity)
	n.Notify(ctx, Deduped, toBranchID, repository.NotificationRequest, &medicineID, message)
}

// RequestApproved announces an approval to the requesting branch
func (n *Notifier) RequestApproved(ctx context.Context, fromBranchID, requestID string, quantity int) {
	message := fmt.Sprintf("your stock request for %d units was approved", quantity)
	n.Notify(ctx, Always, fromBranchID, repository.NotificationRequestApproved, &requestID, message)
}

// RequestRejected announces a rejection to the requesting branch
func (n *Notifier) RequestRejected(ctx context.Context, fromBranchID, requestID string, reason *string) {
	message := "your stock request was rejected"
	if reason != nil && *reason != "" {
		message = fmt.Sprintf("your stock request was rejected: %s", *reason)
	}
	n.Notify(ctx, Always, fromBranchID, repository.NotificationRequestRejected, &requestID, message)
}
