package service

import (
	"context"

	"github.com/medledger/medledger-backend/internal/ledger/events"
	"github.com/medledger/medledger-backend/internal/ledger/repository"
	"github.com/medledger/medledger-backend/pkg/logger"
)

// StockLevelReader lists per-branch availability aggregates
type StockLevelReader interface {
	ListStockLevels(ctx context.Context) ([]*repository.StockLevel, error)
}

// LowStockScanner sweeps every branch's stock levels and raises a deduped
// low_stock notification for each medicine at or under the threshold.
// Repeated sweeps refresh the same notification instead of piling up
// duplicates.
type LowStockScanner struct {
	levels    StockLevelReader
	notifier  *Notifier
	publisher *events.LedgerEventPublisher
	threshold int
	logger    *logger.Logger
}

// NewLowStockScanner creates a new low stock scanner
func NewLowStockScanner(
	levels StockLevelReader,
	notifier *Notifier,
	publisher *events.LedgerEventPublisher,
	threshold int,
	log *logger.Logger,
) *LowStockScanner {
	return &LowStockScanner{
		levels:    levels,
		notifier:  notifier,
		publisher: publisher,
		threshold: threshold,
		logger:    log,
	}
}

// Scan runs one sweep. Errors on individual notifications are logged and
// do not stop the sweep.
func (s *LowStockScanner) Scan(ctx context.Context) error {
	levels, err := s.levels.ListStockLevels(ctx)
	if err != nil {
		return err
	}

	flagged := 0
	for _, level := range levels {
		if level.Available > s.threshold {
			continue
		}
		flagged++
		s.notifier.LowStock(ctx, level.BranchID, level.MedicineID, level.MedicineName, level.Available, s.threshold)
		s.publisher.PublishLowStock(ctx, level.BranchID, level.MedicineID, level.Available, s.threshold)
	}

	s.logger.Debug().
		Int("levels", len(levels)).
		Int("flagged", flagged).
		Msg("low stock scan complete")

	return nil
}
