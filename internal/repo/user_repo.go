// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file reads the users table owned by the external
// admin system; the messaging subsystem only resolves roles from it.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/aulalibre/go-aula-backend/internal/domain"
)

// RoleOf returns the role of the given user. If the user does not exist,
// it returns ErrNotFound.
func RoleOf(ctx context.Context, db *gorm.DB, userID int64) (domain.Role, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Select("id", "role").
		Where("id = ?", userID).
		First(&u).Error
	if err != nil {
		return "", err
	}
	return u.Role, nil
}
