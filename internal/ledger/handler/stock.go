package handler

import (
	"net/http"
	"strconv"

	"github.com/medledger/medledger-backend/internal/ledger/repository"
	"github.com/medledger/medledger-backend/pkg/httputil"
	"github.com/medledger/medledger-backend/pkg/logger"
)

const defaultExpiringWindowDays = 30

// StockHandler serves read-side stock projections
type StockHandler struct {
	batches      *repository.BatchRepository
	consumptions *repository.ConsumptionRepository
	logger       *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(batches *repository.BatchRepository, consumptions *repository.ConsumptionRepository, log *logger.Logger) *StockHandler {
	return &StockHandler{
		batches:      batches,
		consumptions: consumptions,
		logger:       log,
	}
}

// Overview lists per-medicine availability. Scoped to one branch when a
// branch is resolvable from the request, across all branches otherwise.
func (h *StockHandler) Overview(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchFrom(r)
	if err != nil {
		levels, listErr := h.batches.ListStockLevels(r.Context())
		if listErr != nil {
			httputil.Error(w, listErr)
			return
		}
		httputil.JSON(w, http.StatusOK, levels)
		return
	}

	levels, err := h.batches.ListStockLevelsByBranch(r.Context(), branchID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, levels)
}

// Expiring lists a branch's batches that expire within the window
func (h *StockHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	days := defaultExpiringWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}

	batches, err := h.batches.ListExpiring(r.Context(), branchID, days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// History lists a branch's recent consumption records
func (h *StockHandler) History(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.consumptions.ListByBranch(r.Context(), branchID, limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, records)
}
