package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medledger/medledger-backend/internal/ledger/repository"
	"github.com/medledger/medledger-backend/internal/ledger/service"
	"github.com/medledger/medledger-backend/pkg/httputil"
	"github.com/medledger/medledger-backend/pkg/logger"
)

// BatchHandler handles stock batch endpoints
type BatchHandler struct {
	stock   *service.StockService
	batches *repository.BatchRepository
	logger  *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(stock *service.StockService, batches *repository.BatchRepository, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		stock:   stock,
		batches: batches,
		logger:  log,
	}
}

// Create records newly received stock as a batch
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MedicineID     string    `json:"medicine_id" validate:"required,uuid"`
		Quantity       int       `json:"quantity" validate:"required,gt=0"`
		DateReceived   time.Time `json:"date_received" validate:"required"`
		ExpirationDate time.Time `json:"expiration_date" validate:"required"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	branchID, err := branchFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.stock.CreateBatch(r.Context(), service.CreateBatchInput{
		MedicineID:     req.MedicineID,
		BranchID:       branchID,
		Quantity:       req.Quantity,
		DateReceived:   req.DateReceived,
		ExpirationDate: req.ExpirationDate,
		CreatedBy:      httputil.GetUserID(r.Context()),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, batch)
}

// ListByMedicine lists a medicine's batches at a branch in consumption order
func (h *BatchHandler) ListByMedicine(w http.ResponseWriter, r *http.Request) {
	medicineID := chi.URLParam(r, "id")

	branchID, err := branchFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	batches, err := h.batches.ListFEFO(r.Context(), h.batches.DB(), medicineID, branchID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}
