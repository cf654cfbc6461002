// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chat model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a chat is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Chats store their participant pair in canonical order (user_a < user_b);
// callers normalize with domain.NormalizePair before lookups and inserts so
// the unique pair index holds regardless of argument order.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulalibre/go-aula-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateChat inserts a new Chat row for the normalized pair (userA, userB).
// The chat ID is a randomly generated UUID (string), and CreatedAt is set
// to UTC. A duplicate pair surfaces as the driver's unique-constraint error.
func CreateChat(ctx context.Context, db *gorm.DB, userA, userB int64) (*domain.Chat, error) {
	userA, userB = domain.NormalizePair(userA, userB)
	c := &domain.Chat{
		ID:        uuid.NewString(),
		UserA:     userA,
		UserB:     userB,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetChatByPair fetches the chat for the normalized pair (userA, userB),
// or ErrNotFound if no chat exists between the two users.
func GetChatByPair(ctx context.Context, db *gorm.DB, userA, userB int64) (*domain.Chat, error) {
	userA, userB = domain.NormalizePair(userA, userB)
	var c domain.Chat
	err := db.WithContext(ctx).
		Where("user_a = ? AND user_b = ?", userA, userB).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChat fetches a single chat by its ID, or ErrNotFound if missing.
func GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	var c domain.Chat
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChatsFor returns all chats in which userID participates, ordered by
// creation time descending (most recent first). It returns an empty slice
// if the user has no chats.
func ListChatsFor(ctx context.Context, db *gorm.DB, userID int64) ([]domain.Chat, error) {
	var out []domain.Chat
	err := db.WithContext(ctx).
		Where("user_a = ? OR user_b = ?", userID, userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}
