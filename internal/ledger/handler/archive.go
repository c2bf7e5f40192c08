package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medledger/medledger-backend/internal/ledger/repository"
	"github.com/medledger/medledger-backend/internal/ledger/service"
	"github.com/medledger/medledger-backend/pkg/httputil"
	"github.com/medledger/medledger-backend/pkg/logger"
)

// ArchiveHandler handles archived portion endpoints
type ArchiveHandler struct {
	service  *service.ArchiveService
	archives *repository.ArchiveRepository
	logger   *logger.Logger
}

// NewArchiveHandler creates a new archive handler
func NewArchiveHandler(svc *service.ArchiveService, archives *repository.ArchiveRepository, log *logger.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		service:  svc,
		archives: archives,
		logger:   log,
	}
}

// Create moves a quantity from a batch into the archive
func (h *ArchiveHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BatchID  string `json:"batch_id" validate:"required,uuid"`
		Quantity int    `json:"quantity" validate:"required,gt=0"`
		Reason   string `json:"reason" validate:"required,min=5,max=500"`
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

	portion, err := h.service.Archive(r.Context(), req.BatchID, req.Quantity, req.Reason, branchID, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, portion)
}

// List lists a branch's archived portions
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	portions, err := h.archives.ListByBranch(r.Context(), branchID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, portions)
}

// Restore puts an archived portion back on shelf
func (h *ArchiveHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	branchID, err := branchFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.Restore(r.Context(), id, branchID, httputil.GetUserID(r.Context())); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Delete drops an archived portion permanently
func (h *ArchiveHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	branchID, err := branchFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.DeletePermanently(r.Context(), id, branchID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
