// Package services – ChatService
//
// This file implements the ChatService, which manages the lifecycle of
// two-party chats. It enforces the role-pair rule (who may talk to whom),
// resolves peer roles through the injected directory, and coordinates
// repository operations for idempotent creation and listing.
//
// Service-level errors (e.g., ErrChatNotFound, ErrInvalidRolePair) are
// returned for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aulalibre/go-aula-backend/internal/domain"
)

// ChatRepo defines the repository contract required by ChatService.
// Implementations are responsible for persistence of chat aggregates.
type ChatRepo interface {
	// CreateChat inserts a new chat row for the normalized pair.
	CreateChat(ctx context.Context, db *gorm.DB, userA, userB int64) (*domain.Chat, error)

	// GetChatByPair fetches the chat between the two users, if any.
	GetChatByPair(ctx context.Context, db *gorm.DB, userA, userB int64) (*domain.Chat, error)

	// GetChat fetches a chat by ID.
	GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error)

	// ListChatsFor returns all chats the user participates in.
	ListChatsFor(ctx context.Context, db *gorm.DB, userID int64) ([]domain.Chat, error)
}

// RoleDirectory resolves a user's role from the shared users table, which
// is owned by the external administration system. Only reads happen here.
type RoleDirectory interface {
	RoleOf(ctx context.Context, db *gorm.DB, userID int64) (domain.Role, error)
}

// ChatService provides chat-level operations: idempotent creation under
// the role-pair rule and per-user listing.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the chat repository used by this service.
	Repo ChatRepo
	// Roles resolves peer roles for the role-pair check.
	Roles RoleDirectory
}

// NewChatService constructs a ChatService.
func NewChatService(db *gorm.DB, r ChatRepo, roles RoleDirectory) *ChatService {
	return &ChatService{DB: db, Repo: r, Roles: roles}
}

// Create opens (or returns) the chat between the caller and peerID.
//
// The operation is idempotent: if the pair already has a chat, that chat is
// returned and no duplicate is created, including under concurrent calls
// for the same pair. The role-pair rule is enforced first: a docente may
// chat with an estudiante, an estudiante with a docente or another
// estudiante, and nobody chats with themselves or with an admin.
func (s *ChatService) Create(ctx context.Context, callerID int64, callerRole domain.Role, peerID int64) (*domain.Chat, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.Int64("user.id", callerID),
			attribute.Int64("peer.id", peerID),
		),
	)
	defer span.End()

	if peerID == callerID {
		return nil, ErrInvalidRolePair
	}

	peerRole, err := s.Roles.RoleOf(ctx, s.DB, peerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}
	if !callerRole.CanChatWith(peerRole) {
		return nil, ErrInvalidRolePair
	}

	if c, err := s.Repo.GetChatByPair(ctx, s.DB, callerID, peerID); err == nil {
		return c, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	c, err := s.Repo.CreateChat(ctx, s.DB, callerID, peerID)
	if err != nil {
		// A concurrent Create for the same pair may have won the insert
		// race; the unique pair index rejects ours, so re-read theirs.
		if existing, gerr := s.Repo.GetChatByPair(ctx, s.DB, callerID, peerID); gerr == nil {
			return existing, nil
		}
		return nil, err
	}
	return c, nil
}

// ListFor returns all chats the user participates in, most recent first.
func (s *ChatService) ListFor(ctx context.Context, userID int64) ([]domain.Chat, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "ListFor",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	return s.Repo.ListChatsFor(ctx, s.DB, userID)
}
