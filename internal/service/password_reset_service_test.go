package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPasswordResetSecondRequestInvalidatesFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.signup(t, "twice@example.com", "secret1")

	first, _, err := env.resets.CreateResetRequest(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, expiresAt, err := env.resets.CreateResetRequest(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if want := env.clock.Now().Add(time.Hour); !expiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, expiresAt)
	}

	if _, err := env.resets.Consume(ctx, first, "newsecret"); !errors.Is(err, ErrResetTokenUsed) {
		t.Fatalf("expected first token unusable, got %v", err)
	}
	userID, err := env.resets.Consume(ctx, second, "newsecret")
	if err != nil || userID != res.User.ID {
		t.Fatalf("expected second token consumable, got %d (%v)", userID, err)
	}
}

func TestPasswordResetExpiresAfterOneHour(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.signup(t, "late@example.com", "secret1")

	token, _, err := env.resets.CreateResetRequest(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	env.clock.Advance(time.Hour + time.Second)
	if _, err := env.resets.Consume(ctx, token, "newsecret"); !errors.Is(err, ErrResetTokenExpired) {
		t.Fatalf("expected ErrResetTokenExpired, got %v", err)
	}
}

func TestPasswordResetUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, token := range []string{"", "nope"} {
		if _, err := env.resets.Consume(ctx, token, "newsecret"); !errors.Is(err, ErrResetTokenInvalid) {
			t.Fatalf("token %q: expected ErrResetTokenInvalid, got %v", token, err)
		}
	}
}
