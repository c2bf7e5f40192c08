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

// TxRunner executes a function within a database transaction.
// *database.DB satisfies it.
type TxRunner interface {
	Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error
}

// BatchStore is the batch persistence surface the ledger services consume
type BatchStore interface {
	DB() sqlx.ExtContext
	Create(ctx context.Context, q sqlx.ExtContext, b *repository.StockBatch) error
	GetByID(ctx context.Context, q sqlx.ExtContext, id string) (*repository.StockBatch, error)
	ListFEFO(ctx context.Context, q sqlx.ExtContext, medicineID, branchID string) ([]*repository.StockBatch, error)
	ReduceQuantity(ctx context.Context, q sqlx.ExtContext, id string, delta, expectedMin int) (bool, error)
	AddQuantity(ctx context.Context, q sqlx.ExtContext, id string, delta int) (bool, error)
	CountForMedicine(ctx context.Context, q sqlx.ExtContext, medicineID, branchID string) (int, error)
	TotalAvailable(ctx context.Context, q sqlx.ExtContext, medicineID, branchID string) (int, error)
}

// ConsumptionLog appends dispense audit records
type ConsumptionLog interface {
	Insert(ctx context.Context, q sqlx.ExtContext, c *repository.StockConsumption) error
}

// MedicineCatalog resolves medicine ids
type MedicineCatalog interface {
	GetByID(ctx context.Context, id string) (*repository.Medicine, error)
}

// BatchTake records how much was taken from one batch during a consume
type BatchTake struct {
	BatchID  string `json:"batch_id"`
	Quantity int    `json:"quantity"`
}

// ConsumeResult reports which batches a consume operation reduced, in FEFO
// order, summing to the requested quantity.
type ConsumeResult struct {
	MedicineID string      `json:"medicine_id"`
	BranchID   string      `json:"branch_id"`
	Quantity   int         `json:"quantity"`
	Consumed   []BatchTake `json:"consumed"`
}

// FirstBatchID returns the id of the first batch reduced, for provenance
func (r *ConsumeResult) FirstBatchID() string {
	if len(r.Consumed) == 0 {
		return ""
	}
	return r.Consumed[0].BatchID
}

// TakesByBatch flattens the takes into a batch id to quantity map
func (r *ConsumeResult) TakesByBatch() map[string]int {
	takes := make(map[string]int, len(r.Consumed))
	for _, t := range r.Consumed {
		takes[t.BatchID] = t.Quantity
	}
	return takes
}

// StockService implements batch accounting: stock-in, availability and
// first-expire-first-out consumption.
type StockService struct {
	db           TxRunner
	batches      BatchStore
	consumptions ConsumptionLog
	medicines    MedicineCatalog
	publisher    *events.LedgerEventPublisher
	notifier     *Notifier
	threshold    int
	logger       *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(
	db TxRunner,
	batches BatchStore,
	consumptions ConsumptionLog,
	medicines MedicineCatalog,
	publisher *events.LedgerEventPublisher,
	notifier *Notifier,
	lowStockThreshold int,
	log *logger.Logger,
) *StockService {
	return &StockService{
		db:           db,
		batches:      batches,
		consumptions: consumptions,
		medicines:    medicines,
		publisher:    publisher,
		notifier:     notifier,
		threshold:    lowStockThreshold,
		logger:       log,
	}
}

// CreateBatchInput carries a stock-in request
type CreateBatchInput struct {
	MedicineID     string
	BranchID       string
	Quantity       int
	DateReceived   time.Time
	ExpirationDate time.Time
	CreatedBy      string
}

// CreateBatch records newly received stock as a batch
func (s *StockService) CreateBatch(ctx context.Context, in CreateBatchInput) (*repository.StockBatch, error) {
	if in.Quantity <= 0 {
		return nil, errors.InvalidQuantity("batch quantity must be positive")
	}
	if in.ExpirationDate.Before(in.DateReceived) {
		return nil, errors.BadRequest("expiration_date must not be before date_received")
	}

	if _, err := s.medicines.GetByID(ctx, in.MedicineID); err != nil {
		return nil, err
	}

	batch := &repository.StockBatch{
		MedicineID:     in.MedicineID,
		BranchID:       in.BranchID,
		Quantity:       in.Quantity,
		DateReceived:   in.DateReceived,
		ExpirationDate: in.ExpirationDate,
		CreatedBy:      in.CreatedBy,
	}
	if err := s.batches.Create(ctx, s.batches.DB(), batch); err != nil {
		return nil, err
	}

	s.publisher.PublishStockReceived(ctx, batch)

	return batch, nil
}

// TotalAvailable returns the summed availability for a medicine at a branch
func (s *StockService) TotalAvailable(ctx context.Context, medicineID, branchID string) (int, error) {
	return s.batches.TotalAvailable(ctx, s.batches.DB(), medicineID, branchID)
}

// Consume atomically takes the requested quantity out of a branch's stock of
// a medicine, oldest expiry first, inside its own transaction.
func (s *StockService) Consume(ctx context.Context, medicineID, branchID string, quantity int, actor string) (*ConsumeResult, error) {
	var result *ConsumeResult
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		result, err = s.ConsumeInTx(ctx, tx, medicineID, branchID, quantity, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ConsumeInTx runs the FEFO consumption algorithm inside the caller's
// transaction:
//
//  1. check total availability optimistically,
//  2. walk batches in FEFO order, reducing each through the conditional
//     update guard,
//  3. on a guard failure re-read once and either continue or give up with
//     StockConflict,
//  4. append one consumption audit row per batch reduced.
//
// The whole operation commits or rolls back with the surrounding transaction;
// there are no partial decrements.
func (s *StockService) ConsumeInTx(ctx context.Context, tx sqlx.ExtContext, medicineID, branchID string, quantity int, actor string) (*ConsumeResult, error) {
	if quantity <= 0 {
		return nil, errors.InvalidQuantity("consume quantity must be positive")
	}

	batches, err := s.batches.ListFEFO(ctx, tx, medicineID, branchID)
	if err != nil {
		return nil, err
	}

	if total := availableTotal(batches); total < quantity {
		return nil, errors.InsufficientStock(quantity, total)
	}

	remaining := quantity
	takes := make(map[string]int)
	order := make([]string, 0, len(batches))
	retried := false

	for i := 0; i < len(batches) && remaining > 0; i++ {
		batch := batches[i]
		avail := batch.Available()
		if avail == 0 {
			continue
		}

		take := avail
		if take > remaining {
			take = remaining
		}

		ok, err := s.batches.ReduceQuantity(ctx, tx, batch.ID, take, take)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Concurrent writer beat us to this batch. Re-read once; if the
			// rest of the stock still covers what is left, walk the fresh
			// list, otherwise abort and let the caller retry the whole
			// operation.
			if retried {
				return nil, errors.StockConflict("stock changed while consuming, retry the operation")
			}
			retried = true

			batches, err = s.batches.ListFEFO(ctx, tx, medicineID, branchID)
			if err != nil {
				return nil, err
			}
			if total := availableTotal(batches); total < remaining {
				return nil, errors.StockConflict("stock changed while consuming, retry the operation")
			}
			i = -1
			continue
		}

		if _, seen := takes[batch.ID]; !seen {
			order = append(order, batch.ID)
		}
		takes[batch.ID] += take
		remaining -= take
	}

	if remaining > 0 {
		return nil, errors.StockConflict("stock changed while consuming, retry the operation")
	}

	result := &ConsumeResult{
		MedicineID: medicineID,
		BranchID:   branchID,
		Quantity:   quantity,
		Consumed:   make([]BatchTake, 0, len(order)),
	}
	for _, batchID := range order {
		take := takes[batchID]
		result.Consumed = append(result.Consumed, BatchTake{BatchID: batchID, Quantity: take})

		record := &repository.StockConsumption{
			BatchID:     batchID,
			MedicineID:  medicineID,
			BranchID:    branchID,
			Quantity:    take,
			DispensedBy: actor,
		}
		if err := s.consumptions.Insert(ctx, tx, record); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// Dispense consumes stock for direct use. The batch id identifies which
// medicine (and branch) is being dispensed; the actual reduction still
// follows FEFO order across the medicine's batches.
func (s *StockService) Dispense(ctx context.Context, batchID string, quantity int, branchID, actor string) (*ConsumeResult, error) {
	batch, err := s.batches.GetByID(ctx, s.batches.DB(), batchID)
	if err != nil {
		return nil, err
	}
	if batch.BranchID != branchID {
		return nil, errors.NotFound("batch")
	}

	result, err := s.Consume(ctx, batch.MedicineID, branchID, quantity, actor)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishStockDispensed(ctx, result.MedicineID, result.BranchID, result.Quantity, result.TakesByBatch(), actor)
	s.checkLowStock(ctx, batch.MedicineID, branchID)

	return result, nil
}

// checkLowStock raises a deduped low_stock notification when availability
// drops to the configured threshold. Best-effort: failures are logged.
func (s *StockService) checkLowStock(ctx context.Context, medicineID, branchID string) {
	total, err := s.batches.TotalAvailable(ctx, s.batches.DB(), medicineID, branchID)
	if err != nil {
		s.logger.Error().Err(err).Str("medicine_id", medicineID).Msg("low stock check failed")
		return
	}
	if total > s.threshold {
		return
	}

	medicine, err := s.medicines.GetByID(ctx, medicineID)
	name := medicineID
	if err == nil {
		name = medicine.Name
	}

	s.notifier.LowStock(ctx, branchID, medicineID, name, total, s.threshold)
	s.publisher.PublishLowStock(ctx, branchID, medicineID, total, s.threshold)
}

func availableTotal(batches []*repository.StockBatch) int {
	total := 0
	for _, b := range batches {
		total += b.Available()
	}
	return total
}
