// Notification HTTP handlers.
//
// This file exposes REST endpoints for the caller's notification inbox:
//   - GET    /notifications       (list pending, newest first)
//   - DELETE /notifications/{id}  (acknowledge one)
//   - DELETE /notifications       (acknowledge all)
//
// Acknowledging deletes the row; there is no separate read flag. A repeat
// acknowledgment reports 404, which clients may safely ignore.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulalibre/go-aula-backend/internal/domain"
	"github.com/aulalibre/go-aula-backend/internal/services"
)

// ListNotificationsResponse contains the caller's pending notifications.
type ListNotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Total         int64                 `json:"total"`
}

// AcknowledgeAllResponse reports how many notifications were cleared.
type AcknowledgeAllResponse struct {
	Acknowledged int64 `json:"acknowledged"`
}

// ListNotifications returns the caller's pending notifications, newest
// first.
func (h *Handlers) ListNotifications(c *gin.Context) {
	uid, _, okID := identity(c)
	if !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	items, total, err := h.notifSvc.ListFor(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	ok(c, http.StatusOK, ListNotificationsResponse{Notifications: items, Total: total})
}

// AcknowledgeNotification deletes one notification owned by the caller.
func (h *Handlers) AcknowledgeNotification(c *gin.Context) {
	uid, _, okID := identity(c)
	if !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	err := h.notifSvc.Acknowledge(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrNotificationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "notification not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// AcknowledgeAllNotifications clears the caller's whole inbox and reports
// how many rows were removed. An empty inbox is a success with zero.
func (h *Handlers) AcknowledgeAllNotifications(c *gin.Context) {
	uid, _, okID := identity(c)
	if !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	n, err := h.notifSvc.AcknowledgeAll(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, AcknowledgeAllResponse{Acknowledged: n})
}
