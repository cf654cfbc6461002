// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns the lifecycle of chat messages and their attachments. It validates
// inputs, checks chat membership, stores attachment payloads before the
// owning message commits, persists message and attachment atomically, and
// fans the persisted message out to the other participant's live
// connections on a best-effort basis.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include chat/user identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aulalibre/go-aula-backend/internal/domain"
	"github.com/aulalibre/go-aula-backend/internal/storage"
	"github.com/aulalibre/go-aula-backend/internal/utils"
	"github.com/aulalibre/go-aula-backend/internal/ws"
)

// MessageRepo defines the repository contract required by MessageService.
type MessageRepo interface {
	// CreateMessage inserts a message row with status "sent".
	CreateMessage(ctx context.Context, db *gorm.DB, chatID string, senderID int64, body string) (*domain.Message, error)

	// CreateAttachment inserts the attachment row owned by messageID.
	CreateAttachment(ctx context.Context, db *gorm.DB, messageID int64, ref, filename, mimeType string, size int64) (*domain.Attachment, error)

	// GetAttachmentByRef fetches an attachment row by store reference.
	GetAttachmentByRef(ctx context.Context, db *gorm.DB, ref string) (*domain.Attachment, error)

	// ListMessagesBefore returns up to limit messages strictly older than
	// the cursor position, newest first.
	ListMessagesBefore(ctx context.Context, db *gorm.DB, chatID string, beforeAt time.Time, beforeID int64, limit int) ([]domain.Message, error)
}

// BlobStore is the attachment payload store contract: validated writes,
// reference-addressed reads, and idempotent removal for compensation.
type BlobStore interface {
	Save(data []byte, filename, declaredMime string) (*storage.Stored, error)
	Open(ref string) ([]byte, error)
	Remove(ref string) error
}

// Pusher delivers an event to a user's live connections. Delivery is best
// effort and must never block or fail the caller.
type Pusher interface {
	Push(userID int64, ev ws.Event)
}

// Upload carries an attachment payload through Send. Nil means a
// text-only message.
type Upload struct {
	Data     []byte
	Filename string
	MimeType string // declared by the client; may be empty or generic
}

// MessageService coordinates message persistence, attachment storage,
// cursor pagination, and live delivery.
type MessageService struct {
	DB    *gorm.DB
	Repo  MessageRepo
	Chats ChatRepo
	Store BlobStore
	Push  Pusher

	// MaxBodyRunes caps message bodies by rune length (0 = unlimited).
	MaxBodyRunes int
	// PageSize is the default page size when the caller passes none.
	PageSize int
	// MaxPageSize caps requested page sizes.
	MaxPageSize int
}

// Send validates and persists a message, optionally with an attachment.
//
// The attachment payload is validated and written to the store before the
// database transaction starts; message row and attachment row then commit
// together. If the commit fails the stored payload is removed, so no
// orphan ever becomes visible in either direction. After a successful
// commit the message is pushed to the other participant; push outcome is
// deliberately ignored.
func (s *MessageService) Send(ctx context.Context, chatID string, senderID int64, body string, upload *Upload) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int64("user.id", senderID),
			attribute.Bool("has_attachment", upload != nil),
		),
	)
	defer span.End()

	body = strings.TrimSpace(body)
	if body == "" && upload == nil {
		return nil, ErrEmptyMessage
	}
	if s.MaxBodyRunes > 0 && utf8.RuneCountInString(body) > s.MaxBodyRunes {
		return nil, ErrTooLong
	}

	chat, err := s.Chats.GetChat(ctx, s.DB, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	if !chat.Has(senderID) {
		return nil, ErrNotParticipant
	}

	var stored *storage.Stored
	if upload != nil {
		stored, err = s.Store.Save(upload.Data, upload.Filename, upload.MimeType)
		if err != nil {
			if errors.Is(err, storage.ErrInvalidMimeType) || errors.Is(err, storage.ErrTooLarge) {
				return nil, fmt.Errorf("%w: %w", ErrAttachmentInvalid, err)
			}
			return nil, err
		}
	}

	var msg *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := s.Repo.CreateMessage(ctx, tx, chatID, senderID, body)
		if err != nil {
			return err
		}
		if stored != nil {
			a, err := s.Repo.CreateAttachment(ctx, tx, m.ID, stored.Ref, upload.Filename, stored.MimeType, stored.SizeBytes)
			if err != nil {
				return err
			}
			m.Attachment = a
		}
		msg = m
		return nil
	})
	if err != nil {
		if stored != nil {
			// Compensate the already-written payload; best effort.
			_ = s.Store.Remove(stored.Ref)
		}
		return nil, err
	}

	if s.Push != nil {
		s.Push.Push(chat.Other(senderID), ws.MessageEvent(msg))
	}
	return msg, nil
}

// Page is one page of a chat's history, newest first. NextCursor is empty
// when the page reached the beginning of the history.
type Page struct {
	Items      []domain.Message
	NextCursor string
	HasMore    bool
}

// ListPage returns one page of a chat's messages, walking backwards from
// the cursor (or from the latest message when the cursor is empty). Pages
// are non-overlapping and exhaustive: rows inserted after a page was
// served never shift the content of pages already returned.
func (s *MessageService) ListPage(ctx context.Context, chatID, cursor string, pageSize int) (*Page, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if pageSize <= 0 {
		pageSize = s.pageSize()
	}
	if max := s.maxPageSize(); pageSize > max {
		pageSize = max
	}

	if _, err := s.Chats.GetChat(ctx, s.DB, chatID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}

	var beforeAt time.Time
	beforeID := int64(math.MaxInt64)
	if cursor != "" {
		at, id, err := utils.DecodeCursor(cursor)
		if err != nil {
			return nil, ErrInvalidCursor
		}
		beforeAt, beforeID = at, id
	}

	// Fetch one extra row to learn whether an older page exists.
	items, err := s.Repo.ListMessagesBefore(ctx, s.DB, chatID, beforeAt, beforeID, pageSize+1)
	if err != nil {
		return nil, err
	}

	p := &Page{Items: items}
	if len(items) > pageSize {
		p.Items = items[:pageSize]
		p.HasMore = true
		last := p.Items[len(p.Items)-1]
		p.NextCursor = utils.EncodeCursor(last.CreatedAt, last.ID)
	}
	if p.Items == nil {
		p.Items = []domain.Message{}
	}
	return p, nil
}

// Download resolves an attachment reference to its metadata and payload.
// Unknown references report ErrAttachmentNotFound.
func (s *MessageService) Download(ctx context.Context, ref string) (*domain.Attachment, []byte, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Download",
		trace.WithAttributes(attribute.String("attachment.ref", ref)),
	)
	defer span.End()

	att, err := s.Repo.GetAttachmentByRef(ctx, s.DB, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrAttachmentNotFound
		}
		return nil, nil, err
	}
	data, err := s.Store.Open(att.Ref)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrAttachmentNotFound
		}
		return nil, nil, err
	}
	return att, data, nil
}

func (s *MessageService) pageSize() int {
	if s.PageSize > 0 {
		return s.PageSize
	}
	return 50
}

func (s *MessageService) maxPageSize() int {
	if s.MaxPageSize > 0 {
		return s.MaxPageSize
	}
	return 100
}
