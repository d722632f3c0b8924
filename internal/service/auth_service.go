package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/globetrotter/globetrotter-api/internal/domain"
	"github.com/globetrotter/globetrotter-api/internal/repository"
	"github.com/globetrotter/globetrotter-api/internal/security"
)

// ResetTokenExposure makes ForgotPassword return the raw reset token. Only
// meant for local development without a mail transport.
type ResetTokenExposure bool

type LoginResult struct {
	User   *domain.User
	Tokens *TokenPair
}

type AuthService struct {
	userRepo    repository.UserRepository
	hasher      *security.PasswordHasher
	tokens      *TokenService
	sessions    *SessionService
	revocations *RevocationService
	resets      *PasswordResetService
	notifier    ResetNotifier
	exposeReset ResetTokenExposure
	logger      *slog.Logger

	pendingResets sync.WaitGroup
}

func NewAuthService(
	userRepo repository.UserRepository,
	hasher *security.PasswordHasher,
	tokens *TokenService,
	sessions *SessionService,
	revocations *RevocationService,
	resets *PasswordResetService,
	notifier ResetNotifier,
	exposeReset ResetTokenExposure,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		userRepo:    userRepo,
		hasher:      hasher,
		tokens:      tokens,
		sessions:    sessions,
		revocations: revocations,
		resets:      resets,
		notifier:    notifier,
		exposeReset: exposeReset,
		logger:      logger,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Signup(ctx context.Context, email, password string, meta SessionMeta) (*LoginResult, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{Email: NormalizeEmail(email), PasswordHash: hash}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	pair, err := s.tokens.Issue(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: pair}, nil
}

// Login does the same bcrypt work for unknown emails as for wrong passwords.
func (s *AuthService) Login(ctx context.Context, email, password string, meta SessionMeta) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.CompareDummy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	pair, err := s.tokens.Issue(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: pair}, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta SessionMeta) (*TokenPair, error) {
	pair, _, err := s.tokens.Rotate(ctx, refreshToken, meta)
	return pair, err
}

// Logout ends the session behind refreshToken and blacklists accessToken.
// Both are optional and failures are only logged.
func (s *AuthService) Logout(ctx context.Context, refreshToken, accessToken string) {
	if refreshToken != "" {
		if _, err := s.sessions.RevokeByToken(ctx, refreshToken); err != nil {
			s.logger.WarnContext(ctx, "logout: revoke session failed", "error", err)
		}
	}
	if accessToken != "" {
		if err := s.revocations.Blacklist(ctx, accessToken); err != nil && !errors.Is(err, security.ErrInvalidSignature) {
			s.logger.WarnContext(ctx, "logout: blacklist access token failed", "error", err)
		}
	}
}

// LogoutAll ends every session of userID and blacklists the calling token.
func (s *AuthService) LogoutAll(ctx context.Context, userID uint, accessToken string) (int64, error) {
	n, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	if accessToken != "" {
		if err := s.revocations.Blacklist(ctx, accessToken); err != nil {
			s.logger.WarnContext(ctx, "logout-all: blacklist access token failed", "user_id", userID, "error", err)
		}
	}
	return n, nil
}

// ForgotPassword never reports whether the email exists. Known and unknown
// emails both cost one lookup on the request path; the reset row and the
// notification are produced in the background. The returned token is empty
// unless reset token exposure is enabled, in which case the work stays inline.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) string {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			s.logger.ErrorContext(ctx, "forgot-password: user lookup failed", "error", err)
		}
		return ""
	}
	if s.exposeReset {
		return s.issueReset(ctx, user)
	}
	s.pendingResets.Add(1)
	go func() {
		defer s.pendingResets.Done()
		s.issueReset(context.WithoutCancel(ctx), user)
	}()
	return ""
}

// WaitPendingResets blocks until background reset requests have finished.
func (s *AuthService) WaitPendingResets() {
	s.pendingResets.Wait()
}

func (s *AuthService) issueReset(ctx context.Context, user *domain.User) string {
	token, expiresAt, err := s.resets.CreateResetRequest(ctx, user.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "forgot-password: create reset request failed", "user_id", user.ID, "error", err)
		return ""
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyPasswordReset(ctx, user, token, expiresAt); err != nil {
			s.logger.ErrorContext(ctx, "forgot-password: notify failed", "user_id", user.ID, "error", err)
		}
	}
	return token
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	_, err := s.resets.Consume(ctx, token, newPassword)
	return err
}

// ChangePassword keeps existing sessions alive.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword string) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Compare(user.PasswordHash, currentPassword) {
		return ErrIncorrectPassword
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID uint) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *AuthService) ListSessions(ctx context.Context, userID uint) ([]SessionView, error) {
	return s.sessions.List(ctx, userID)
}

func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID uint) error {
	return s.sessions.Revoke(ctx, userID, sessionID)
}
