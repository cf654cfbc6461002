package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aulalibre/go-aula-backend/internal/domain"
)

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	base := t.TempDir()
	bad := filepath.Join(base, "does-not-exist", "app.db")

	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}

	// Be tolerant across platforms/drivers.
	lower := strings.ToLower(err.Error())
	if !(os.IsNotExist(err) ||
		strings.Contains(lower, "unable to open database file") ||
		strings.Contains(lower, "no such file or directory") ||
		strings.Contains(lower, "out of memory")) {
		t.Fatalf("unexpected error opening %q: %v", bad, err)
	}
}

func TestOpenSQLite_AndAutoMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	// Every model must be queryable after migration.
	ctx := context.Background()
	if _, err := RoleOf(ctx, db, 1); err == nil {
		t.Fatal("expected ErrNotFound on empty users table")
	}
	if _, err := CreateChat(ctx, db, 10, 20); err != nil {
		t.Fatalf("CreateChat after migrate: %v", err)
	}
	if _, _, err := ListNotificationsFor(ctx, db, 10); err != nil {
		t.Fatalf("ListNotificationsFor after migrate: %v", err)
	}
}

func TestRoleOf(t *testing.T) {
	db := newRepoDB(t, &domain.User{})
	ctx := context.Background()

	if err := db.Create(&domain.User{ID: 10, Role: domain.RoleDocente, Name: "Marta"}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	role, err := RoleOf(ctx, db, 10)
	if err != nil {
		t.Fatalf("RoleOf error: %v", err)
	}
	if role != domain.RoleDocente {
		t.Fatalf("role = %q; want docente", role)
	}

	if _, err := RoleOf(ctx, db, 404); err == nil {
		t.Fatal("expected error for unknown user")
	}
}
