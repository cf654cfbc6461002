// Message HTTP handlers.
//
// This file exposes REST endpoints for chat messages and attachments:
//   - POST /chats/{id}/messages  (send a message, optionally with a file)
//   - GET  /chats/{id}/messages  (cursor-paginated history, newest first)
//   - GET  /attachments/{ref}    (download an attachment payload)
//
// Sending accepts either a JSON body {"body": "..."} or multipart form
// data with a "body" field and an optional "file" part. The cursor in the
// list endpoint is the opaque token from a previous page's next_cursor.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aulalibre/go-aula-backend/internal/domain"
	"github.com/aulalibre/go-aula-backend/internal/services"
	"github.com/aulalibre/go-aula-backend/internal/utils"
)

//
// DTOs
//

// SendMessageRequest is the JSON payload for a text-only message.
type SendMessageRequest struct {
	// Body is the message text.
	Body string `json:"body"`
}

// SendMessageResponse is the envelope for a newly persisted message.
type SendMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// ListMessagesResponse contains one page of chat history plus the cursor
// for the next (older) page.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	NextCursor string           `json:"next_cursor,omitempty"`
	HasMore    bool             `json:"has_more"`
}

//
// Handlers
//

// SendMessage appends a message to the chat. Multipart requests may attach
// one file under the "file" part; the attachment is validated and stored
// atomically with the message.
func (h *Handlers) SendMessage(c *gin.Context) {
	uid, _, okID := identity(c)
	if !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	chatID := c.Param("id")
	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}

	body, upload, err := readMessageInput(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	m, err := h.msgSvc.Send(c.Request.Context(), chatID, uid, body, upload)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
		case errors.Is(err, services.ErrNotParticipant):
			fail(c, http.StatusForbidden, ErrCodeNotParticipant, "not a participant of this chat")
		case errors.Is(err, services.ErrEmptyMessage):
			fail(c, http.StatusBadRequest, ErrCodeEmptyMessage, "message body or file required")
		case errors.Is(err, services.ErrTooLong):
			fail(c, http.StatusBadRequest, ErrCodeMessageTooLong, "message body too long")
		case errors.Is(err, services.ErrAttachmentInvalid):
			fail(c, http.StatusUnprocessableEntity, ErrCodeAttachmentInvalid, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusCreated, SendMessageResponse{Message: m})
}

// ListMessages returns one page of the chat's history, newest first.
// Query parameters: cursor (opaque, optional) and page_size.
func (h *Handlers) ListMessages(c *gin.Context) {
	if _, _, okID := identity(c); !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	chatID := c.Param("id")
	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}

	pageSize := utils.AtoiDefault(c.Query("page_size"), 0)
	p, err := h.msgSvc.ListPage(c.Request.Context(), chatID, c.Query("cursor"), pageSize)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
		case errors.Is(err, services.ErrInvalidCursor):
			fail(c, http.StatusBadRequest, ErrCodeInvalidCursor, "cursor is not valid")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   p.Items,
		NextCursor: p.NextCursor,
		HasMore:    p.HasMore,
	})
}

// DownloadAttachment streams the payload behind an attachment reference.
// The stored MIME type and the original filename are restored on the way
// out.
func (h *Handlers) DownloadAttachment(c *gin.Context) {
	if _, _, okID := identity(c); !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	ref := c.Param("ref")
	att, data, err := h.msgSvc.Download(c.Request.Context(), ref)
	if err != nil {
		if errors.Is(err, services.ErrAttachmentNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "attachment not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename})
	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, att.MimeType, data)
}

// readMessageInput extracts the message body and the optional file upload
// from either a JSON or a multipart request.
func readMessageInput(c *gin.Context) (string, *services.Upload, error) {
	ct := c.ContentType()
	if !strings.HasPrefix(ct, "multipart/") {
		var req SendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return "", nil, fmt.Errorf("body must be JSON or multipart form data")
		}
		return req.Body, nil, nil
	}

	body := c.PostForm("body")

	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return body, nil, nil
		}
		return "", nil, fmt.Errorf("malformed multipart body")
	}

	f, err := fh.Open()
	if err != nil {
		return "", nil, fmt.Errorf("cannot read uploaded file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("cannot read uploaded file")
	}

	return body, &services.Upload{
		Data:     data,
		Filename: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
	}, nil
}
