// Chat HTTP handlers.
//
// This file exposes REST endpoints for chat resources:
//   - POST /chats   (open, or return, the chat with a peer)
//   - GET  /chats   (list the caller's chats)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses. The authenticated
// identity always comes from the auth middleware; client-supplied ids are
// never trusted for authorization.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulalibre/go-aula-backend/internal/domain"
	"github.com/aulalibre/go-aula-backend/internal/http/middleware"
	"github.com/aulalibre/go-aula-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// ChatService defines chat lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ChatService interface {
	// Create opens (or returns) the chat between the caller and peerID.
	Create(ctx context.Context, callerID int64, callerRole domain.Role, peerID int64) (*domain.Chat, error)
	// ListFor returns all chats the user participates in.
	ListFor(ctx context.Context, userID int64) ([]domain.Chat, error)
}

// MessageService defines message operations consumed by HTTP handlers.
type MessageService interface {
	// Send persists a message, optionally with an attachment, and pushes
	// it to the other participant.
	Send(ctx context.Context, chatID string, senderID int64, body string, upload *services.Upload) (*domain.Message, error)
	// ListPage returns one cursor page of a chat's history.
	ListPage(ctx context.Context, chatID, cursor string, pageSize int) (*services.Page, error)
	// Download resolves an attachment reference to metadata and payload.
	Download(ctx context.Context, ref string) (*domain.Attachment, []byte, error)
}

// NotificationService defines notification operations consumed by HTTP
// handlers.
type NotificationService interface {
	// Notify persists a notification and pushes it to the recipient.
	Notify(ctx context.Context, recipientID int64, kind domain.NotificationKind, body string, refs services.Refs) (*domain.Notification, error)
	// ListFor returns the user's pending notifications plus the count.
	ListFor(ctx context.Context, userID int64) ([]domain.Notification, int64, error)
	// Acknowledge deletes one notification owned by the user.
	Acknowledge(ctx context.Context, userID int64, id string) error
	// AcknowledgeAll deletes every notification for the user.
	AcknowledgeAll(ctx context.Context, userID int64) (int64, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for chats, messages, and notifications.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	chatSvc  ChatService
	msgSvc   MessageService
	notifSvc NotificationService
}

// New constructs a Handlers instance bound to the given services.
func New(chatSvc ChatService, msgSvc MessageService, notifSvc NotificationService) *Handlers {
	return &Handlers{chatSvc: chatSvc, msgSvc: msgSvc, notifSvc: notifSvc}
}

// identity extracts the authenticated user from the Gin context. A false
// return means the auth middleware did not run; the caller must abort.
func identity(c *gin.Context) (int64, domain.Role, bool) {
	uid, ok1 := middleware.UserID(c)
	role, ok2 := middleware.RoleOf(c)
	return uid, role, ok1 && ok2
}

//
// DTOs
//

// CreateChatRequest is the JSON payload for opening a chat.
type CreateChatRequest struct {
	// PeerID is the other participant's user id.
	PeerID int64 `json:"peer_id" binding:"required"`
}

// ChatListResponse contains all chats the caller participates in.
type ChatListResponse struct {
	Chats []domain.Chat `json:"chats"`
	Total int           `json:"total"`
}

//
// Handlers
//

// CreateChat opens the chat between the caller and the requested peer.
// The operation is idempotent: repeating it returns the existing chat and
// never creates a duplicate.
func (h *Handlers) CreateChat(c *gin.Context) {
	uid, role, okID := identity(c)
	if !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "peer_id required")
		return
	}

	ch, err := h.chatSvc.Create(c.Request.Context(), uid, role, req.PeerID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRolePair):
			fail(c, http.StatusForbidden, ErrCodeInvalidRolePair, "this role pair may not chat")
		case errors.Is(err, services.ErrUnknownUser):
			fail(c, http.StatusNotFound, ErrCodeUnknownUser, "peer not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	// Fresh and pre-existing chats both come back as 201; the body carries
	// the chat either way and clients treat the call as "ensure chat".
	ok(c, http.StatusCreated, ch)
}

// ListChats returns the caller's chats, most recent first.
func (h *Handlers) ListChats(c *gin.Context) {
	uid, _, okID := identity(c)
	if !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	items, err := h.chatSvc.ListFor(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if items == nil {
		items = []domain.Chat{}
	}
	ok(c, http.StatusOK, ChatListResponse{Chats: items, Total: len(items)})
}
