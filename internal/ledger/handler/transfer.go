package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medledger/medledger-backend/internal/ledger/repository"
	"github.com/medledger/medledger-backend/internal/ledger/service"
	"github.com/medledger/medledger-backend/pkg/httputil"
	"github.com/medledger/medledger-backend/pkg/logger"
)

// TransferHandler handles transfer request endpoints
type TransferHandler struct {
	service   *service.TransferService
	directory *repository.DirectoryRepository
	logger    *logger.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(svc *service.TransferService, directory *repository.DirectoryRepository, log *logger.Logger) *TransferHandler {
	return &TransferHandler{
		service:   svc,
		directory: directory,
		logger:    log,
	}
}

// transferView is a transfer request enriched with directory display names
type transferView struct {
	*repository.TransferRequest
	RequestedByName string `json:"requested_by_name,omitempty"`
	ConfirmedByName string `json:"confirmed_by_name,omitempty"`
	FromBranchName  string `json:"from_branch_name,omitempty"`
	ToBranchName    string `json:"to_branch_name,omitempty"`
}

// Create opens a transfer request to another branch. The caller's branch is
// where the stock should end up.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ToBranchID string `json:"to_branch_id" validate:"required,uuid"`
		MedicineID string `json:"medicine_id" validate:"required,uuid"`
		Quantity   int    `json:"quantity" validate:"required,gt=0"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	fromBranchID, err := branchFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	request, err := h.service.Create(r.Context(), service.CreateTransferInput{
		FromBranchID: fromBranchID,
		ToBranchID:   req.ToBranchID,
		MedicineID:   req.MedicineID,
		Quantity:     req.Quantity,
		RequestedBy:  httputil.GetUserID(r.Context()),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, request)
}

// ListPending lists requests waiting on the caller's branch
func (h *TransferHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	requests, err := h.service.ListPending(r.Context(), branchID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, h.enrich(r, requests))
}

// ListHistory lists the caller branch's resolved requests, sent and received
func (h *TransferHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	requests, err := h.service.ListHistory(r.Context(), branchID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, h.enrich(r, requests))
}

// Approve resolves a pending request, consuming stock at the caller's branch
func (h *TransferHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	request, err := h.service.Approve(r.Context(), id, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, request)
}

// Reject resolves a pending request without moving stock
func (h *TransferHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// The body is optional: a rejection does not need a reason.
	var req struct {
		Reason *string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	request, err := h.service.Reject(r.Context(), id, httputil.GetUserID(r.Context()), req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, request)
}

// enrich resolves directory display names for request lists. Lookups are
// best-effort: unknown ids just render without names.
func (h *TransferHandler) enrich(r *http.Request, requests []*repository.TransferRequest) []*transferView {
	userIDs := make([]string, 0, len(requests)*2)
	seen := make(map[string]bool)
	for _, req := range requests {
		if !seen[req.RequestedBy] {
			seen[req.RequestedBy] = true
			userIDs = append(userIDs, req.RequestedBy)
		}
		if req.ConfirmedBy != nil && !seen[*req.ConfirmedBy] {
			seen[*req.ConfirmedBy] = true
			userIDs = append(userIDs, *req.ConfirmedBy)
		}
	}

	names, err := h.directory.UserNames(r.Context(), userIDs)
	if err != nil {
		h.logger.Warn().Err(err).Msg("directory user lookup failed")
		names = map[string]string{}
	}

	branchNames := make(map[string]string)
	branchName := func(id string) string {
		if name, ok := branchNames[id]; ok {
			return name
		}
		name, err := h.directory.BranchName(r.Context(), id)
		if err != nil {
			h.logger.Warn().Err(err).Str("branch_id", id).Msg("directory branch lookup failed")
			name = ""
		}
		branchNames[id] = name
		return name
	}

	views := make([]*transferView, 0, len(requests))
	for _, req := range requests {
		view := &transferView{
			TransferRequest: req,
			RequestedByName: names[req.RequestedBy],
			FromBranchName:  branchName(req.FromBranchID),
			ToBranchName:    branchName(req.ToBranchID),
		}
		if req.ConfirmedBy != nil {
			view.ConfirmedByName = names[*req.ConfirmedBy]
		}
		views = append(views, view)
	}
	return views
}
