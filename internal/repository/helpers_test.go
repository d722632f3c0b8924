package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/globetrotter/globetrotter-api/internal/database"
	"github.com/globetrotter/globetrotter-api/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()
	dsn := "sqlite:file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := database.OpenWithLogger(ctx, dsn, logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	if err := database.AutoMigrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, PasswordHash: "hash"}
	if err := NewUserRepository(db).Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func utcNow() time.Time { return time.Now().UTC() }
