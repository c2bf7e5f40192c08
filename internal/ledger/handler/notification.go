package handler

import (
	"net/http"

	"github.com/medledger/medledger-backend/internal/ledger/repository"
	"github.com/medledger/medledger-backend/pkg/httputil"
	"github.com/medledger/medledger-backend/pkg/logger"
)

// NotificationHandler handles branch notification endpoints
type NotificationHandler struct {
	notifications *repository.NotificationRepository
	logger        *logger.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifications *repository.NotificationRepository, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		logger:        log,
	}
}

// List lists a branch's notifications, newest first, with the unread count
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	notifications, err := h.notifications.ListByBranch(r.Context(), branchID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	unread, err := h.notifications.UnreadCount(r.Context(), branchID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"unread_count":  unread,
	})
}

// MarkAllRead marks every notification at a branch as read
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	marked, err := h.notifications.MarkAllRead(r.Context(), branchID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"marked_read": marked,
	})
}
