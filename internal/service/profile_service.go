package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/globetrotter/globetrotter-api/internal/domain"
	"github.com/globetrotter/globetrotter-api/internal/repository"
	"github.com/globetrotter/globetrotter-api/internal/security"
)

type ProfileService struct {
	userRepo    repository.UserRepository
	hasher      *security.PasswordHasher
	revocations *RevocationService
	logger      *slog.Logger
}

func NewProfileService(userRepo repository.UserRepository, hasher *security.PasswordHasher, revocations *RevocationService, logger *slog.Logger) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{userRepo: userRepo, hasher: hasher, revocations: revocations, logger: logger}
}

func (s *ProfileService) Get(ctx context.Context, userID uint) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *ProfileService) Update(ctx context.Context, userID uint, patch domain.ProfilePatch) (*domain.User, error) {
	if patch.Email != nil {
		email := NormalizeEmail(*patch.Email)
		patch.Email = &email
	}
	user, err := s.userRepo.ApplyPatch(ctx, userID, patch)
	switch {
	case errors.Is(err, repository.ErrEmailTaken):
		return nil, ErrEmailTaken
	case errors.Is(err, repository.ErrUserNotFound):
		return nil, ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// Delete removes the account after confirming password. The access token that
// authorised the request is blacklisted so it cannot outlive the account.
func (s *ProfileService) Delete(ctx context.Context, userID uint, password, accessToken string) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return ErrIncorrectPassword
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	if accessToken != "" {
		if err := s.revocations.Blacklist(ctx, accessToken); err != nil {
			s.logger.WarnContext(ctx, "account delete: blacklist access token failed", "user_id", userID, "error", err)
		}
	}
	return nil
}
