package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/medledger/medledger-backend/internal/ledger/events"
	"github.com/medledger/medledger-backend/internal/ledger/repository"
	"github.com/medledger/medledger-backend/pkg/errors"
	"github.com/medledger/medledger-backend/pkg/logger"
)

// ArchiveStore is the archived-portion persistence surface
type ArchiveStore interface {
	Insert(ctx context.Context, q sqlx.ExtContext, a *repository.ArchivedPortion) error
	GetByID(ctx context.Context, q sqlx.ExtContext, id string) (*repository.ArchivedPortion, error)
	Delete(ctx context.Context, q sqlx.ExtContext, id string) error
}

// ArchiveService moves quantities out of live batches into archive records
// and back. Archiving lowers the batch's live quantity the same way
// dispensing does; the archive row keeps the removed amount restorable.
type ArchiveService struct {
	db                TxRunner
	batches           BatchStore
	archives          ArchiveStore
	publisher         *events.LedgerEventPublisher
	defaultExpiryDays int
	logger            *logger.Logger
}

// NewArchiveService creates a new archive service
func NewArchiveService(
	db TxRunner,
	batches BatchStore,
	archives ArchiveStore,
	publisher *events.LedgerEventPublisher,
	defaultExpiryDays int,
	log *logger.Logger,
) *ArchiveService {
	return &ArchiveService{
		db:                db,
		batches:           batches,
		archives:          archives,
		publisher:         publisher,
		defaultExpiryDays: defaultExpiryDays,
		logger:            log,
	}
}

// Archive removes a quantity from a batch into an archive record. The
// decrement and the insert commit or roll back together.
func (s *ArchiveService) Archive(ctx context.Context, batchID string, quantity int, reason, branchID, actor string) (*repository.ArchivedPortion, error) {
	if quantity <= 0 {
		return nil, errors.InvalidQuantity("archive quantity must be positive")
	}

	var portion *repository.ArchivedPortion
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		batch, err := s.batches.GetByID(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if batch.BranchID != branchID {
			return errors.NotFound("batch")
		}
		if batch.Quantity < quantity {
			return errors.InsufficientStock(quantity, batch.Available())
		}

		ok, err := s.batches.ReduceQuantity(ctx, tx, batchID, quantity, quantity)
		if err != nil {
			return err
		}
		if !ok {
			// The pre-check passed, so the quantity moved underneath us.
			return errors.StockConflict("batch quantity changed while archiving")
		}

		portion = &repository.ArchivedPortion{
			BatchID:    batchID,
			MedicineID: batch.MedicineID,
			BranchID:   branchID,
			Quantity:   quantity,
			Reason:     reason,
			ArchivedBy: actor,
		}
		return s.archives.Insert(ctx, tx, portion)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishStockArchived(ctx, portion)

	return portion, nil
}

// Restore deletes an archive record and puts its quantity back onto the
// original batch. If that batch row is gone a replacement batch is
// synthesized; batches are normally zeroed rather than deleted, so this
// signals a data-integrity gap upstream and is logged as such.
func (s *ArchiveService) Restore(ctx context.Context, archiveID, branchID, actor string) error {
	var restored *repository.ArchivedPortion
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		portion, err := s.archives.GetByID(ctx, tx, archiveID)
		if err != nil {
			return err
		}
		restored = portion
		if portion.BranchID != branchID {
			return errors.NotFound("archived portion")
		}

		if err := s.archives.Delete(ctx, tx, archiveID); err != nil {
			return err
		}

		ok, err := s.batches.AddQuantity(ctx, tx, portion.BatchID, portion.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			s.logger.Warn().
				Str("archive_id", archiveID).
				Str("batch_id", portion.BatchID).
				Msg("original batch missing on restore, synthesizing replacement")

			now := time.Now()
			replacement := &repository.StockBatch{
				MedicineID:     portion.MedicineID,
				BranchID:       branchID,
				Quantity:       portion.Quantity,
				DateReceived:   now,
				ExpirationDate: now.AddDate(0, 0, s.defaultExpiryDays),
				CreatedBy:      actor,
			}
			return s.batches.Create(ctx, tx, replacement)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publisher.PublishStockRestored(ctx, restored)

	return nil
}

// DeletePermanently drops an archive record for good. The stock it
// represents was already removed from the batch at archive time, so batch
// quantities are untouched.
func (s *ArchiveService) DeletePermanently(ctx context.Context, archiveID, branchID string) error {
	return s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		portion, err := s.archives.GetByID(ctx, tx, archiveID)
		if err != nil {
			return err
		}
		if portion.BranchID != branchID {
			return errors.NotFound("archived portion")
		}
		return s.archives.Delete(ctx, tx, archiveID)
	})
}
