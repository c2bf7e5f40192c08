package handler

import (
	"net/http"

	"github.com/medledger/medledger-backend/internal/ledger/repository"
	"github.com/medledger/medledger-backend/pkg/errors"
	"github.com/medledger/medledger-backend/pkg/httputil"
	"github.com/medledger/medledger-backend/pkg/logger"
)

// MedicineHandler handles medicine catalog endpoints
type MedicineHandler struct {
	medicines *repository.MedicineRepository
	logger    *logger.Logger
}

// NewMedicineHandler creates a new medicine handler
func NewMedicineHandler(medicines *repository.MedicineRepository, log *logger.Logger) *MedicineHandler {
	return &MedicineHandler{
		medicines: medicines,
		logger:    log,
	}
}

// Create registers a new medicine. Name and category are unique together,
// ignoring case and surrounding whitespace.
func (h *MedicineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name" validate:"required,min=2,max=255"`
		Category string `json:"category" validate:"required,min=2,max=100"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	existing, err := h.medicines.FindByNameCategory(r.Context(), req.Name, req.Category)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if existing != nil {
		httputil.Error(w, errors.Conflict("medicine already exists in this category"))
		return
	}

	medicine := &repository.Medicine{
		Name:     req.Name,
		Category: req.Category,
	}
	if err := h.medicines.Create(r.Context(), medicine); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, medicine)
}

// List lists the medicine catalog
func (h *MedicineHandler) List(w http.ResponseWriter, r *http.Request) {
	medicines, err := h.medicines.List(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicines)
}
