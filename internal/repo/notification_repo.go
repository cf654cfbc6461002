// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Notification model.
//
// There is no update path: notifications are inserted by domain events and
// removed by acknowledgment. Deleting a row that is already gone reports
// ErrNotFound so callers can distinguish a repeat acknowledgment.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulalibre/go-aula-backend/internal/domain"
)

// CreateNotification inserts a new notification row for recipientID.
func CreateNotification(ctx context.Context, db *gorm.DB, recipientID int64, kind domain.NotificationKind, body string, actividadID, entregaID *int64) (*domain.Notification, error) {
	n := &domain.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Kind:        kind,
		Body:        body,
		ActividadID: actividadID,
		EntregaID:   entregaID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

// ListNotificationsFor returns all notifications for userID, newest first,
// along with the total count.
func ListNotificationsFor(ctx context.Context, db *gorm.DB, userID int64) ([]domain.Notification, int64, error) {
	var out []domain.Notification
	err := db.WithContext(ctx).
		Where("recipient_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, int64(len(out)), nil
}

// DeleteNotification removes the notification identified by id and owned
// by userID. If no row is affected (already acknowledged, unknown id, or
// foreign recipient), it returns ErrNotFound.
func DeleteNotification(ctx context.Context, db *gorm.DB, userID int64, id string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, userID).
		Delete(&domain.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteAllNotifications removes every notification for userID in a single
// statement, which keeps the operation atomic from the caller's view.
// It returns the number of rows removed.
func DeleteAllNotifications(ctx context.Context, db *gorm.DB, userID int64) (int64, error) {
	res := db.WithContext(ctx).
		Where("recipient_id = ?", userID).
		Delete(&domain.Notification{})
	return res.RowsAffected, res.Error
}
