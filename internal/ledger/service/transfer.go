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

// TransferStore is the transfer request persistence surface
type TransferStore interface {
	Create(ctx context.Context, t *repository.TransferRequest) error
	GetByID(ctx context.Context, q sqlx.ExtContext, id string) (*repository.TransferRequest, error)
	MarkApproved(ctx context.Context, q sqlx.ExtContext, id, confirmedBy string, linkedBatchID *string) (bool, error)
	MarkRejected(ctx context.Context, q sqlx.ExtContext, id, confirmedBy string, reason *string) (bool, error)
	ListPending(ctx context.Context, toBranchID string) ([]*repository.TransferRequest, error)
	ListHistory(ctx context.Context, branchID string) ([]*repository.TransferRequest, error)
}

// StockConsumer runs the FEFO consumption inside a caller-owned transaction
type StockConsumer interface {
	ConsumeInTx(ctx context.Context, tx sqlx.ExtContext, medicineID, branchID string, quantity int, actor string) (*ConsumeResult, error)
}

// TransferService drives the branch-to-branch request workflow: a pending
// request is resolved exactly once, and an approval consumes stock at the
// approving branch in the same transaction as the status transition.
type TransferService struct {
	db                TxRunner
	transfers         TransferStore
	batches           BatchStore
	stock             StockConsumer
	medicines         MedicineCatalog
	publisher         *events.LedgerEventPublisher
	notifier          *Notifier
	defaultExpiryDays int
	materializeAlways bool
	logger            *logger.Logger
}

// NewTransferService creates a new transfer service
func NewTransferService(
	db TxRunner,
	transfers TransferStore,
	batches BatchStore,
	stock StockConsumer,
	medicines MedicineCatalog,
	publisher *events.LedgerEventPublisher,
	notifier *Notifier,
	defaultExpiryDays int,
	materializeAlways bool,
	log *logger.Logger,
) *TransferService {
	return &TransferService{
		db:                db,
		transfers:         transfers,
		batches:           batches,
		stock:             stock,
		medicines:         medicines,
		publisher:         publisher,
		notifier:          notifier,
		defaultExpiryDays: defaultExpiryDays,
		materializeAlways: materializeAlways,
		logger:            log,
	}
}

// CreateTransferInput carries a new transfer request
type CreateTransferInput struct {
	FromBranchID string
	ToBranchID   string
	MedicineID   string
	Quantity     int
	RequestedBy  string
}

// Create opens a pending transfer request from one branch to another
func (s *TransferService) Create(ctx context.Context, in CreateTransferInput) (*repository.TransferRequest, error) {
	if in.Quantity <= 0 {
		return nil, errors.InvalidQuantity("requested quantity must be positive")
	}
	if in.FromBranchID == in.ToBranchID {
		return nil, errors.BadRequest("a branch cannot request stock from itself")
	}

	if _, err := s.medicines.GetByID(ctx, in.MedicineID); err != nil {
		return nil, err
	}

	req := &repository.TransferRequest{
		FromBranchID:      in.FromBranchID,
		ToBranchID:        in.ToBranchID,
		MedicineID:        in.MedicineID,
		QuantityRequested: in.Quantity,
		RequestedBy:       in.RequestedBy,
	}
	if err := s.transfers.Create(ctx, req); err != nil {
		return nil, err
	}

	s.notifier.RequestCreated(ctx, req.ToBranchID, req.MedicineID, req.QuantityRequested)
	s.publisher.PublishTransferRequested(ctx, req)

	return req, nil
}

// Approve resolves a pending request by consuming the requested quantity at
// the approving branch. The consumption and the status transition commit
// together, so a request can never be approved without its stock moving, nor
// twice. Notifying the requester and materializing the stock at their branch
// happen after commit and never undo an approval.
func (s *TransferService) Approve(ctx context.Context, requestID, confirmedBy string) (*repository.TransferRequest, error) {
	req, err := s.transfers.GetByID(ctx, s.batches.DB(), requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != repository.StatusPending {
		return nil, errors.InvalidState("transfer request is already " + req.Status)
	}

	var result *ConsumeResult
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		result, err = s.stock.ConsumeInTx(ctx, tx, req.MedicineID, req.ToBranchID, req.QuantityRequested, confirmedBy)
		if err != nil {
			return err
		}

		var linked *string
		if id := result.FirstBatchID(); id != "" {
			linked = &id
		}
		ok, err := s.transfers.MarkApproved(ctx, tx, requestID, confirmedBy, linked)
		if err != nil {
			return err
		}
		if !ok {
			return errors.InvalidState("transfer request was resolved by someone else")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	req.Status = repository.StatusApproved
	req.ConfirmedBy = &confirmedBy
	if id := result.FirstBatchID(); id != "" {
		req.LinkedBatchID = &id
	}
	now := time.Now()
	req.ResolvedAt = &now

	s.materializeAtDestination(ctx, req, confirmedBy)
	s.notifier.RequestApproved(ctx, req.FromBranchID, req.ID, req.QuantityRequested)
	s.publisher.PublishTransferResolved(ctx, req, repository.StatusApproved, confirmedBy, "")

	return req, nil
}

// Reject resolves a pending request without touching stock
func (s *TransferService) Reject(ctx context.Context, requestID, confirmedBy string, reason *string) (*repository.TransferRequest, error) {
	req, err := s.transfers.GetByID(ctx, s.batches.DB(), requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != repository.StatusPending {
		return nil, errors.InvalidState("transfer request is already " + req.Status)
	}

	ok, err := s.transfers.MarkRejected(ctx, s.batches.DB(), requestID, confirmedBy, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.InvalidState("transfer request was resolved by someone else")
	}

	req.Status = repository.StatusRejected
	req.ConfirmedBy = &confirmedBy
	req.RejectReason = reason
	now := time.Now()
	req.ResolvedAt = &now

	s.notifier.RequestRejected(ctx, req.FromBranchID, req.ID, reason)
	rejectReason := ""
	if reason != nil {
		rejectReason = *reason
	}
	s.publisher.PublishTransferResolved(ctx, req, repository.StatusRejected, confirmedBy, rejectReason)

	return req, nil
}

// ListPending lists requests waiting on a branch's decision
func (s *TransferService) ListPending(ctx context.Context, toBranchID string) ([]*repository.TransferRequest, error) {
	return s.transfers.ListPending(ctx, toBranchID)
}

// ListHistory lists a branch's resolved requests, both sent and received
func (s *TransferService) ListHistory(ctx context.Context, branchID string) ([]*repository.TransferRequest, error) {
	return s.transfers.ListHistory(ctx, branchID)
}

// materializeAtDestination creates a batch at the requesting branch for the
// transferred quantity. It only does so when the branch has no batch rows
// for the medicine (or when configured to always materialize); otherwise
// the quantity is deliberately dropped from the ledger and logged, keeping
// the historical accounting behavior observable.
func (s *TransferService) materializeAtDestination(ctx context.Context, req *repository.TransferRequest, actor string) {
	count, err := s.batches.CountForMedicine(ctx, s.batches.DB(), req.MedicineID, req.FromBranchID)
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", req.ID).Msg("destination batch lookup failed after approval")
		return
	}
	if count > 0 && !s.materializeAlways {
		s.logger.Warn().
			Str("request_id", req.ID).
			Str("branch_id", req.FromBranchID).
			Str("medicine_id", req.MedicineID).
			Int("quantity", req.QuantityRequested).
			Msg("destination already stocks this medicine, transferred quantity not materialized")
		return
	}

	now := time.Now()
	batch := &repository.StockBatch{
		MedicineID:     req.MedicineID,
		BranchID:       req.FromBranchID,
		Quantity:       req.QuantityRequested,
		DateReceived:   now,
		ExpirationDate: now.AddDate(0, 0, s.defaultExpiryDays),
		CreatedBy:      actor,
	}
	if err := s.batches.Create(ctx, s.batches.DB(), batch); err != nil {
		s.logger.Error().Err(err).Str("request_id", req.ID).Msg("failed to materialize transferred stock at destination")
	}
}
