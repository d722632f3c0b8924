package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/globetrotter/globetrotter-api/internal/domain"
)

func TestPasswordResetRepositoryNewRequestInvalidatesPrior(t *testing.T) {
	db := newTestDB(t)
	repo := NewPasswordResetRepository(db)
	ctx := context.Background()
	u := createUser(t, db, "reset@example.com")
	now := utcNow()

	if err := repo.CreateInvalidatingPrior(ctx, &domain.PasswordReset{UserID: u.ID, TokenHash: "first", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := repo.CreateInvalidatingPrior(ctx, &domain.PasswordReset{UserID: u.ID, TokenHash: "second", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("second request: %v", err)
	}

	if _, err := repo.Consume(ctx, "first", "h1", now); !errors.Is(err, ErrResetTokenUsed) {
		t.Fatalf("expected first token invalidated, got %v", err)
	}
	userID, err := repo.Consume(ctx, "second", "h2", now)
	if err != nil || userID != u.ID {
		t.Fatalf("expected second token consumable, got %d (%v)", userID, err)
	}
}

func TestPasswordResetRepositoryConsume(t *testing.T) {
	db := newTestDB(t)
	repo := NewPasswordResetRepository(db)
	sessions := NewSessionRepository(db)
	users := NewUserRepository(db)
	ctx := context.Background()
	u := createUser(t, db, "consume@example.com")
	now := utcNow()

	for _, hash := range []string{"s1", "s2"} {
		if err := sessions.Create(ctx, &domain.Session{UserID: u.ID, TokenHash: hash, ExpiresAt: now.Add(time.Hour)}); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}
	if err := repo.CreateInvalidatingPrior(ctx, &domain.PasswordReset{UserID: u.ID, TokenHash: "tok", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create reset: %v", err)
	}

	if _, err := repo.Consume(ctx, "tok", "new-hash", now); err != nil {
		t.Fatalf("consume: %v", err)
	}
	stored, err := users.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if stored.PasswordHash != "new-hash" {
		t.Fatalf("expected password hash updated, got %q", stored.PasswordHash)
	}
	active, err := sessions.ListActiveByUserID(ctx, u.ID, now)
	if err != nil || len(active) != 0 {
		t.Fatalf("expected all sessions revoked, got %d (%v)", len(active), err)
	}
	if _, err := repo.Consume(ctx, "tok", "again", now); !errors.Is(err, ErrResetTokenUsed) {
		t.Fatalf("expected ErrResetTokenUsed on reuse, got %v", err)
	}
	if _, err := repo.Consume(ctx, "missing", "x", now); !errors.Is(err, ErrResetTokenNotFound) {
		t.Fatalf("expected ErrResetTokenNotFound, got %v", err)
	}
}

func TestPasswordResetRepositoryExpiredTokenRejected(t *testing.T) {
	db := newTestDB(t)
	repo := NewPasswordResetRepository(db)
	sessions := NewSessionRepository(db)
	ctx := context.Background()
	u := createUser(t, db, "late@example.com")
	now := utcNow()

	if err := sessions.Create(ctx, &domain.Session{UserID: u.ID, TokenHash: "keep", ExpiresAt: now.Add(2 * time.Hour)}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := repo.CreateInvalidatingPrior(ctx, &domain.PasswordReset{UserID: u.ID, TokenHash: "old", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create reset: %v", err)
	}

	later := now.Add(time.Hour + time.Second)
	if _, err := repo.Consume(ctx, "old", "x", later); !errors.Is(err, ErrResetTokenExpired) {
		t.Fatalf("expected ErrResetTokenExpired, got %v", err)
	}
	if _, err := sessions.FindByTokenHash(ctx, "keep"); err != nil {
		t.Fatalf("failed consume must leave sessions intact: %v", err)
	}

	removed, err := repo.CleanupExpired(ctx, later)
	if err != nil || removed != 1 {
		t.Fatalf("expected 1 reset row swept, got %d (%v)", removed, err)
	}
}
