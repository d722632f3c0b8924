package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/globetrotter/globetrotter-api/internal/domain"
	"github.com/globetrotter/globetrotter-api/internal/repository"
	"github.com/globetrotter/globetrotter-api/internal/security"
)

// ResetNotifier delivers a freshly minted reset token to the account owner.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, user *domain.User, token string, expiresAt time.Time) error
}

// LogResetNotifier records that a reset was requested. It never logs the token.
type LogResetNotifier struct{ logger *slog.Logger }

func NewLogResetNotifier(logger *slog.Logger) *LogResetNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogResetNotifier{logger: logger}
}

func (n *LogResetNotifier) NotifyPasswordReset(ctx context.Context, user *domain.User, _ string, expiresAt time.Time) error {
	n.logger.InfoContext(ctx, "password reset requested", "user_id", user.ID, "expires_at", expiresAt)
	return nil
}

type PasswordResetService struct {
	resetRepo repository.PasswordResetRepository
	hasher    *security.PasswordHasher
	pepper    string
	ttl       time.Duration
	now       func() time.Time
}

func NewPasswordResetService(resetRepo repository.PasswordResetRepository, hasher *security.PasswordHasher, pepper string, ttl time.Duration) *PasswordResetService {
	return &PasswordResetService{
		resetRepo: resetRepo,
		hasher:    hasher,
		pepper:    pepper,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (s *PasswordResetService) WithClock(now func() time.Time) *PasswordResetService {
	if now != nil {
		s.now = now
	}
	return s
}

// CreateResetRequest mints a one-time token for userID. Earlier unused tokens
// of the same user stop being consumable.
func (s *PasswordResetService) CreateResetRequest(ctx context.Context, userID uint) (string, time.Time, error) {
	token, err := security.NewOpaqueToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate reset token: %w", err)
	}
	expiresAt := s.now().UTC().Add(s.ttl)
	err = s.resetRepo.CreateInvalidatingPrior(ctx, &domain.PasswordReset{
		UserID:    userID,
		TokenHash: security.HashToken(token, s.pepper),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("store reset token: %w", err)
	}
	return token, expiresAt, nil
}

// Consume sets a new password for the token owner and ends all of the owner's
// sessions.
func (s *PasswordResetService) Consume(ctx context.Context, token, newPassword string) (uint, error) {
	if token == "" {
		return 0, ErrResetTokenInvalid
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	userID, err := s.resetRepo.Consume(ctx, security.HashToken(token, s.pepper), hash, s.now().UTC())
	switch {
	case errors.Is(err, repository.ErrResetTokenNotFound), errors.Is(err, repository.ErrUserNotFound):
		return 0, ErrResetTokenInvalid
	case errors.Is(err, repository.ErrResetTokenUsed):
		return 0, ErrResetTokenUsed
	case errors.Is(err, repository.ErrResetTokenExpired):
		return 0, ErrResetTokenExpired
	case err != nil:
		return 0, fmt.Errorf("consume reset token: %w", err)
	}
	return userID, nil
}
