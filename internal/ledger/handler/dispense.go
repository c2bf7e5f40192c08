package handler

import (
	"net/http"

	"github.com/medledger/medledger-backend/internal/ledger/service"
	"github.com/medledger/medledger-backend/pkg/httputil"
	"github.com/medledger/medledger-backend/pkg/logger"
)

// DispenseHandler handles the dispense endpoint
type DispenseHandler struct {
	stock  *service.StockService
	logger *logger.Logger
}

// NewDispenseHandler creates a new dispense handler
func NewDispenseHandler(stock *service.StockService, log *logger.Logger) *DispenseHandler {
	return &DispenseHandler{
		stock:  stock,
		logger: log,
	}
}

// Dispense takes stock out of a branch for direct use. The batch identifies
// the medicine; consumption runs oldest expiry first across the medicine's
// batches at the branch.
func (h *DispenseHandler) Dispense(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BatchID  string `json:"batch_id" validate:"required,uuid"`
		Quantity int    `json:"quantity" validate:"required,gt=0"`
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

	result, err := h.stock.Dispense(r.Context(), req.BatchID, req.Quantity, branchID, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
