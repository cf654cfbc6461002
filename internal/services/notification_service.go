// Package services – NotificationService
//
// This file implements NotificationService, which turns domain events from
// collaborating subsystems (submissions, grading, system announcements)
// into persisted notifications and best-effort live pushes. A notification
// has no read flag: acknowledging it deletes the row, and acknowledging it
// again is reported as not found so clients can treat the repeat as benign.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aulalibre/go-aula-backend/internal/domain"
	"github.com/aulalibre/go-aula-backend/internal/ws"
)

// NotificationRepo defines the repository contract required by
// NotificationService.
type NotificationRepo interface {
	// CreateNotification inserts a notification row for recipientID.
	CreateNotification(ctx context.Context, db *gorm.DB, recipientID int64, kind domain.NotificationKind, body string, actividadID, entregaID *int64) (*domain.Notification, error)

	// ListNotificationsFor returns all notifications for userID, newest
	// first, plus the total count.
	ListNotificationsFor(ctx context.Context, db *gorm.DB, userID int64) ([]domain.Notification, int64, error)

	// DeleteNotification removes one notification owned by userID.
	DeleteNotification(ctx context.Context, db *gorm.DB, userID int64, id string) error

	// DeleteAllNotifications removes every notification for userID.
	DeleteAllNotifications(ctx context.Context, db *gorm.DB, userID int64) (int64, error)
}

// Refs carries the optional entity references a notification may point at.
type Refs struct {
	ActividadID *int64
	EntregaID   *int64
}

// NotificationService persists notifications and fans them out to the
// recipient's live connections.
type NotificationService struct {
	DB   *gorm.DB
	Repo NotificationRepo
	Push Pusher
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB, r NotificationRepo, p Pusher) *NotificationService {
	return &NotificationService{DB: db, Repo: r, Push: p}
}

// Notify persists a notification and then pushes it to the recipient's
// live connections. Persistence is the delivery guarantee; the push is
// best effort and its outcome never reaches the caller. An unknown kind
// is rejected before anything is written.
func (s *NotificationService) Notify(ctx context.Context, recipientID int64, kind domain.NotificationKind, body string, refs Refs) (*domain.Notification, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "Notify",
		trace.WithAttributes(
			attribute.Int64("user.id", recipientID),
			attribute.String("notification.kind", string(kind)),
		),
	)
	defer span.End()

	if !kind.Valid() {
		return nil, ErrInvalidKind
	}

	n, err := s.Repo.CreateNotification(ctx, s.DB, recipientID, kind, body, refs.ActividadID, refs.EntregaID)
	if err != nil {
		return nil, err
	}

	if s.Push != nil {
		s.Push.Push(recipientID, ws.NotificationEvent(n))
	}
	return n, nil
}

// ListFor returns the user's pending notifications, newest first, with
// the total count. Acknowledged notifications no longer exist and so
// never appear.
func (s *NotificationService) ListFor(ctx context.Context, userID int64) ([]domain.Notification, int64, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "ListFor",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	return s.Repo.ListNotificationsFor(ctx, s.DB, userID)
}

// Acknowledge deletes one notification owned by userID. Acknowledging a
// notification that is gone (repeat acknowledgment, unknown id, or a
// notification owned by someone else) returns ErrNotificationNotFound.
func (s *NotificationService) Acknowledge(ctx context.Context, userID int64, id string) error {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "Acknowledge",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.String("notification.id", id),
		),
	)
	defer span.End()

	err := s.Repo.DeleteNotification(ctx, s.DB, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}

// AcknowledgeAll deletes every notification for userID in one statement
// and reports how many were removed. Zero is not an error.
func (s *NotificationService) AcknowledgeAll(ctx context.Context, userID int64) (int64, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "AcknowledgeAll",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	return s.Repo.DeleteAllNotifications(ctx, s.DB, userID)
}
