package service

import (
	"context"
	"time"

	"github.com/medledger/medledger-backend/pkg/logger"
)

// ScanScheduler runs low stock scans periodically in a background goroutine
type ScanScheduler struct {
	scanner  *LowStockScanner
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewScanScheduler creates a new scan scheduler
func NewScanScheduler(scanner *LowStockScanner, interval time.Duration, log *logger.Logger) *ScanScheduler {
	return &ScanScheduler{
		scanner:  scanner,
		interval: interval,
		logger:   log,
	}
}

// Start starts the scheduler. An initial scan runs immediately, then one
// per interval until Stop or context cancellation.
func (s *ScanScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("low stock scheduler started")

		s.runCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("low stock scheduler stopped")
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *ScanScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *ScanScheduler) runCycle(ctx context.Context) {
	start := time.Now()
	if err := s.scanner.Scan(ctx); err != nil {
		s.logger.Error().Err(err).Msg("low stock scan failed")
		return
	}
	s.logger.Info().Dur("duration", time.Since(start)).Msg("low stock scan cycle completed")
}
