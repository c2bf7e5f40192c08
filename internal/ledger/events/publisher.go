package events

import (
	"context"

	"github.com/medledger/medledger-backend/internal/ledger/repository"
	"github.com/medledger/medledger-backend/pkg/logger"
	"github.com/medledger/medledger-backend/pkg/messaging"
)

// LedgerEventPublisher publishes ledger domain events. All publishes are
// best-effort: a broker failure is logged and never fails the operation
// that produced the event. A nil publisher silently drops events, which
// lets services run without a broker in tests.
type LedgerEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewLedgerEventPublisher creates an event publisher on the ledger exchange
func NewLedgerEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*LedgerEventPublisher, error) {
	pub, err := messaging.NewPublisher(rmq, messaging.ExchangeLedgerEvents, "ledger-service", log)
	if err != nil {
		return nil, err
	}
	return &LedgerEventPublisher{publisher: pub, logger: log}, nil
}

// PublishStockReceived announces a stocked-in batch
func (p *LedgerEventPublisher) PublishStockReceived(ctx context.Context, batch *repository.StockBatch) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventStockReceived, messaging.StockReceivedEvent{
		BatchID:    batch.ID,
		MedicineID: batch.MedicineID,
		BranchID:   batch.BranchID,
		Quantity:   batch.Quantity,
		Expiration: batch.ExpirationDate,
		CreatedBy:  batch.CreatedBy,
	})
}

// PublishStockDispensed announces a consumption, with the per-batch breakdown
func (p *LedgerEventPublisher) PublishStockDispensed(ctx context.Context, medicineID, branchID string, quantity int, takes map[string]int, actor string) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventStockDispensed, messaging.StockDispensedEvent{
		MedicineID: medicineID,
		BranchID:   branchID,
		Quantity:   quantity,
		Batches:    takes,
		Dispenser:  actor,
	})
}

// PublishStockArchived announces that part of a batch was set aside
func (p *LedgerEventPublisher) PublishStockArchived(ctx context.Context, portion *repository.ArchivedPortion) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventStockArchived, messaging.StockArchivedEvent{
		ArchiveID: portion.ID,
		BatchID:   portion.BatchID,
		BranchID:  portion.BranchID,
		Quantity:  portion.Quantity,
		Reason:    portion.Reason,
	})
}

// PublishStockRestored announces that an archived portion went back on shelf
func (p *LedgerEventPublisher) PublishStockRestored(ctx context.Context, portion *repository.ArchivedPortion) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventStockRestored, messaging.StockArchivedEvent{
		ArchiveID: portion.ID,
		BatchID:   portion.BatchID,
		BranchID:  portion.BranchID,
		Quantity:  portion.Quantity,
		Reason:    portion.Reason,
	})
}

// PublishTransferRequested announces a new transfer request
func (p *LedgerEventPublisher) PublishTransferRequested(ctx context.Context, req *repository.TransferRequest) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventTransferRequested, messaging.TransferRequestedEvent{
		RequestID:  req.ID,
		FromBranch: req.FromBranchID,
		ToBranch:   req.ToBranchID,
		MedicineID: req.MedicineID,
		Quantity:   req.QuantityRequested,
		Requester:  req.RequestedBy,
	})
}

// PublishTransferResolved announces an approval or rejection
func (p *LedgerEventPublisher) PublishTransferResolved(ctx context.Context, req *repository.TransferRequest, status, confirmer, reason string) {
	if p == nil {
		return
	}
	eventType := messaging.EventTransferApproved
	if status == repository.StatusRejected {
		eventType = messaging.EventTransferRejected
	}
	p.publish(ctx, eventType, messaging.TransferResolvedEvent{
		RequestID:  req.ID,
		Status:     status,
		FromBranch: req.FromBranchID,
		ToBranch:   req.ToBranchID,
		MedicineID: req.MedicineID,
		Quantity:   req.QuantityRequested,
		Confirmer:  confirmer,
		Reason:     reason,
	})
}

// PublishLowStock announces that availability dropped to the threshold
func (p *LedgerEventPublisher) PublishLowStock(ctx context.Context, branchID, medicineID string, available, threshold int) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventLowStockDetected, messaging.LowStockEvent{
		BranchID:   branchID,
		MedicineID: medicineID,
		Available:  available,
		Threshold:  threshold,
	})
}

func (p *LedgerEventPublisher) publish(ctx context.Context, eventType string, data interface{}) {
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}
