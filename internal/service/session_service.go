package service

import (
	"context"
	"errors"
	"time"

	"github.com/globetrotter/globetrotter-api/internal/repository"
	"github.com/globetrotter/globetrotter-api/internal/security"
)

type SessionView struct {
	ID        uint      `json:"id"`
	UserAgent string    `json:"userAgent"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type SessionService struct {
	sessionRepo repository.SessionRepository
	pepper      string
	now         func() time.Time
}

func NewSessionService(sessionRepo repository.SessionRepository, pepper string) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		pepper:      pepper,
		now:         time.Now,
	}
}

// List returns the user's unexpired sessions, newest first.
func (s *SessionService) List(ctx context.Context, userID uint) ([]SessionView, error) {
	sessions, err := s.sessionRepo.ListActiveByUserID(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, SessionView{
			ID:        session.ID,
			UserAgent: session.UserAgent,
			IP:        session.IP,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
		})
	}
	return views, nil
}

// Revoke deletes one of the user's sessions. Sessions of other users are
// reported as ErrSessionNotFound.
func (s *SessionService) Revoke(ctx context.Context, userID, sessionID uint) error {
	err := s.sessionRepo.DeleteByIDForUser(ctx, userID, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return ErrSessionNotFound
	}
	return err
}

func (s *SessionService) RevokeAll(ctx context.Context, userID uint) (int64, error) {
	return s.sessionRepo.DeleteByUserID(ctx, userID)
}

func (s *SessionService) RevokeByToken(ctx context.Context, refreshToken string) (bool, error) {
	if refreshToken == "" {
		return false, nil
	}
	return s.sessionRepo.DeleteByTokenHash(ctx, security.HashToken(refreshToken, s.pepper))
}
