// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// and Attachment models.
//
// Messages within a chat are totally ordered by (created_at, id); the
// integer primary key is assigned in insertion order and breaks timestamp
// ties. Pagination walks that order backwards from a cursor so that rows
// inserted after a page was served never change the content of pages
// already returned.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulalibre/go-aula-backend/internal/domain"
)

// CreateMessage inserts a new message row with status "sent". CreatedAt is
// set to UTC; the ID is assigned by the database in insertion order.
func CreateMessage(ctx context.Context, db *gorm.DB, chatID string, senderID int64, body string) (*domain.Message, error) {
	m := &domain.Message{
		ChatID:    chatID,
		SenderID:  senderID,
		Body:      body,
		Status:    domain.MessageStatusSent,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// CreateAttachment inserts the attachment row owned by messageID. Called
// inside the same transaction as CreateMessage so a failed message commit
// never leaves an orphaned attachment row.
func CreateAttachment(ctx context.Context, db *gorm.DB, messageID int64, ref, filename, mimeType string, size int64) (*domain.Attachment, error) {
	a := &domain.Attachment{
		ID:        uuid.NewString(),
		MessageID: messageID,
		Ref:       ref,
		Filename:  filename,
		MimeType:  mimeType,
		SizeBytes: size,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// GetAttachmentByRef fetches an attachment row by its opaque store
// reference, or ErrNotFound if no such reference was ever stored.
func GetAttachmentByRef(ctx context.Context, db *gorm.DB, ref string) (*domain.Attachment, error) {
	var a domain.Attachment
	err := db.WithContext(ctx).
		Where("ref = ?", ref).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListMessagesBefore returns up to limit messages of a chat strictly older
// than the cursor position (beforeAt, beforeID), newest first. A zero
// beforeAt means "from the latest message". Attachments are preloaded.
func ListMessagesBefore(ctx context.Context, db *gorm.DB, chatID string, beforeAt time.Time, beforeID int64, limit int) ([]domain.Message, error) {
	q := db.WithContext(ctx).
		Preload("Attachment").
		Where("chat_id = ?", chatID)
	if !beforeAt.IsZero() {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", beforeAt, beforeAt, beforeID)
	}
	var out []domain.Message
	err := q.Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, chatID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE chat_id = ?", chatID).
		Scan(&total).Error
	return total, err
}
