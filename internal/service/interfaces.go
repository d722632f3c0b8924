package service

import (
	"context"

	"github.com/globetrotter/globetrotter-api/internal/domain"
)

type AuthServiceInterface interface {
	Signup(ctx context.Context, email, password string, meta SessionMeta) (*LoginResult, error)
	Login(ctx context.Context, email, password string, meta SessionMeta) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string, meta SessionMeta) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken, accessToken string)
	LogoutAll(ctx context.Context, userID uint, accessToken string) (int64, error)
	ForgotPassword(ctx context.Context, email string) string
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword string) error
	Me(ctx context.Context, userID uint) (*domain.User, error)
	ListSessions(ctx context.Context, userID uint) ([]SessionView, error)
	RevokeSession(ctx context.Context, userID, sessionID uint) error
}

type ProfileServiceInterface interface {
	Get(ctx context.Context, userID uint) (*domain.User, error)
	Update(ctx context.Context, userID uint, patch domain.ProfilePatch) (*domain.User, error)
	Delete(ctx context.Context, userID uint, password, accessToken string) error
}

var (
	_ AuthServiceInterface    = (*AuthService)(nil)
	_ ProfileServiceInterface = (*ProfileService)(nil)
)
