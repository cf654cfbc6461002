// Event ingestion handler.
//
// Collaborating subsystems (submissions, grading, announcements) report
// domain events over POST /events; each accepted event becomes a persisted
// notification plus a best-effort live push. Only docente and admin
// callers may ingest events: these are the roles the collaborating
// subsystems act as.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulalibre/go-aula-backend/internal/domain"
	"github.com/aulalibre/go-aula-backend/internal/services"
)

// IngestEventRequest is the JSON payload reported by a collaborating
// subsystem.
type IngestEventRequest struct {
	// Kind classifies the event (entrega, actividad, calificacion,
	// sistema, mensaje, alerta).
	Kind string `json:"kind" binding:"required"`
	// RecipientID is the user the resulting notification belongs to.
	RecipientID int64 `json:"recipient_id" binding:"required"`
	// Body is the human-readable notification text.
	Body string `json:"body" binding:"required"`
	// ActividadID optionally links the event to an activity.
	ActividadID *int64 `json:"actividad_id,omitempty"`
	// EntregaID optionally links the event to a submission.
	EntregaID *int64 `json:"entrega_id,omitempty"`
}

// IngestEventResponse is the envelope for the notification an event
// produced.
type IngestEventResponse struct {
	Notification *domain.Notification `json:"notification"`
}

// IngestEvent turns a reported domain event into a notification for its
// recipient. Estudiante callers are rejected.
func (h *Handlers) IngestEvent(c *gin.Context) {
	_, role, okID := identity(c)
	if !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	if role != domain.RoleDocente && role != domain.RoleAdmin {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "role may not ingest events")
		return
	}

	var req IngestEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "kind, recipient_id and body required")
		return
	}

	n, err := h.notifSvc.Notify(c.Request.Context(), req.RecipientID, domain.NotificationKind(req.Kind), req.Body, services.Refs{
		ActividadID: req.ActividadID,
		EntregaID:   req.EntregaID,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidKind) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidKind, "unknown event kind")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	ok(c, http.StatusCreated, IngestEventResponse{Notification: n})
}
