package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/globetrotter/globetrotter-api/internal/domain"
)

func TestSessionRepositoryListActiveByUserID(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()
	u1 := createUser(t, db, "one@example.com")
	u2 := createUser(t, db, "two@example.com")
	now := utcNow()

	older := &domain.Session{UserID: u1.ID, TokenHash: "h1", ExpiresAt: now.Add(2 * time.Hour), CreatedAt: now.Add(-2 * time.Minute)}
	newer := &domain.Session{UserID: u1.ID, TokenHash: "h2", ExpiresAt: now.Add(2 * time.Hour), CreatedAt: now.Add(-time.Minute)}
	expired := &domain.Session{UserID: u1.ID, TokenHash: "h3", ExpiresAt: now.Add(-time.Hour)}
	other := &domain.Session{UserID: u2.ID, TokenHash: "h4", ExpiresAt: now.Add(2 * time.Hour)}
	for _, s := range []*domain.Session{older, newer, expired, other} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("create %s: %v", s.TokenHash, err)
		}
	}

	sessions, err := repo.ListActiveByUserID(ctx, u1.ID, now)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 active sessions, got %d", len(sessions))
	}
	if sessions[0].TokenHash != "h2" || sessions[1].TokenHash != "h1" {
		t.Fatalf("expected newest first, got %s then %s", sessions[0].TokenHash, sessions[1].TokenHash)
	}
}

func TestSessionRepositoryDeleteScopedByUser(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()
	u1 := createUser(t, db, "one@example.com")
	u2 := createUser(t, db, "two@example.com")

	s2 := &domain.Session{UserID: u2.ID, TokenHash: "u2s1", ExpiresAt: utcNow().Add(time.Hour)}
	if err := repo.Create(ctx, s2); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.DeleteByIDForUser(ctx, u1.ID, s2.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found when deleting another user's session, got %v", err)
	}
	if err := repo.DeleteByIDForUser(ctx, u2.ID, s2.ID); err != nil {
		t.Fatalf("delete owned session: %v", err)
	}
	if err := repo.DeleteByIDForUser(ctx, u2.ID, s2.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestSessionRepositoryRotateIsSingleUse(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()
	u := createUser(t, db, "rotate@example.com")
	now := utcNow()

	if err := repo.Create(ctx, &domain.Session{UserID: u.ID, TokenHash: "old", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	next := &domain.Session{TokenHash: "new", ExpiresAt: now.Add(time.Hour)}
	if err := repo.Rotate(ctx, "old", next, now); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if next.UserID != u.ID || next.ID == 0 {
		t.Fatalf("expected successor bound to user %d, got %+v", u.ID, next)
	}
	if err := repo.Rotate(ctx, "old", &domain.Session{TokenHash: "again", ExpiresAt: now.Add(time.Hour)}, now); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on reuse, got %v", err)
	}
	if _, err := repo.FindByTokenHash(ctx, "again"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("failed rotation must not insert a successor, got %v", err)
	}
}

func TestSessionRepositoryRotateExpiredDeletesRow(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()
	u := createUser(t, db, "expired@example.com")
	now := utcNow()

	if err := repo.Create(ctx, &domain.Session{UserID: u.ID, TokenHash: "stale", ExpiresAt: now.Add(-time.Second)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := repo.Rotate(ctx, "stale", &domain.Session{TokenHash: "fresh", ExpiresAt: now.Add(time.Hour)}, now)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if _, err := repo.FindByTokenHash(ctx, "stale"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected stale row deleted, got %v", err)
	}
	if _, err := repo.FindByTokenHash(ctx, "fresh"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expired rotation must not insert a successor, got %v", err)
	}
}

func TestSessionRepositoryConcurrentRotateHasOneWinner(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()
	u := createUser(t, db, "race@example.com")
	now := utcNow()

	if err := repo.Create(ctx, &domain.Session{UserID: u.ID, TokenHash: "contended", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	const callers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		notFound int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := &domain.Session{TokenHash: "succ-" + string(rune('a'+i)), ExpiresAt: now.Add(time.Hour)}
			err := repo.Rotate(ctx, "contended", next, now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrSessionNotFound):
				notFound++
			default:
				t.Errorf("unexpected rotate error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 || notFound != callers-1 {
		t.Fatalf("expected exactly one winner, got wins=%d notFound=%d", wins, notFound)
	}
	active, err := repo.ListActiveByUserID(ctx, u.ID, now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected one surviving session, got %d", len(active))
	}
}

func TestSessionRepositoryDeleteByUserAndCleanup(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()
	u := createUser(t, db, "bulk@example.com")
	now := utcNow()

	for _, s := range []*domain.Session{
		{UserID: u.ID, TokenHash: "a", ExpiresAt: now.Add(time.Hour)},
		{UserID: u.ID, TokenHash: "b", ExpiresAt: now.Add(time.Hour)},
		{UserID: u.ID, TokenHash: "c", ExpiresAt: now.Add(-time.Hour)},
	} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	removed, err := repo.CleanupExpired(ctx, now)
	if err != nil || removed != 1 {
		t.Fatalf("expected 1 expired row removed, got %d (%v)", removed, err)
	}
	deleted, err := repo.DeleteByTokenHash(ctx, "a")
	if err != nil || !deleted {
		t.Fatalf("expected token a deleted, got %v (%v)", deleted, err)
	}
	count, err := repo.DeleteByUserID(ctx, u.ID)
	if err != nil || count != 1 {
		t.Fatalf("expected 1 remaining session revoked, got %d (%v)", count, err)
	}
}
