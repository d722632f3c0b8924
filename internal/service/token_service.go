package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/globetrotter/globetrotter-api/internal/domain"
	"github.com/globetrotter/globetrotter-api/internal/repository"
	"github.com/globetrotter/globetrotter-api/internal/security"
)

// SessionMeta describes the client a session is issued to.
type SessionMeta struct {
	UserAgent string
	IP        string
}

type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
	ExpiresIn       int64
}

type TokenService struct {
	issuer      *security.TokenIssuer
	sessionRepo repository.SessionRepository
	pepper      string
	refreshTTL  time.Duration
	now         func() time.Time
}

func NewTokenService(issuer *security.TokenIssuer, sessionRepo repository.SessionRepository, pepper string, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		issuer:      issuer,
		sessionRepo: sessionRepo,
		pepper:      pepper,
		refreshTTL:  refreshTTL,
		now:         time.Now,
	}
}

func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue opens a new session for userID and returns its first token pair.
func (s *TokenService) Issue(ctx context.Context, userID uint, meta SessionMeta) (*TokenPair, error) {
	refresh, err := s.issuer.IssueRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	session := s.newSession(refresh, meta)
	session.UserID = userID
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s.pairFor(userID, refresh)
}

// Rotate exchanges refreshToken for a new pair. The presented token is
// consumed whether or not it turns out to be expired.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string, meta SessionMeta) (*TokenPair, uint, error) {
	if refreshToken == "" {
		return nil, 0, ErrInvalidRefreshToken
	}
	next, err := s.issuer.IssueRefreshToken()
	if err != nil {
		return nil, 0, fmt.Errorf("issue refresh token: %w", err)
	}
	session := s.newSession(next, meta)
	err = s.sessionRepo.Rotate(ctx, security.HashToken(refreshToken, s.pepper), session, s.now().UTC())
	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		return nil, 0, ErrInvalidRefreshToken
	case errors.Is(err, repository.ErrSessionExpired):
		return nil, 0, ErrRefreshTokenExpired
	case err != nil:
		return nil, 0, fmt.Errorf("rotate session: %w", err)
	}
	pair, err := s.pairFor(session.UserID, next)
	if err != nil {
		return nil, 0, err
	}
	return pair, session.UserID, nil
}

func (s *TokenService) newSession(refresh string, meta SessionMeta) *domain.Session {
	return &domain.Session{
		TokenHash: security.HashToken(refresh, s.pepper),
		UserAgent: truncate(meta.UserAgent, 512),
		IP:        truncate(meta.IP, 64),
		ExpiresAt: s.now().UTC().Add(s.refreshTTL),
	}
}

func (s *TokenService) pairFor(userID uint, refresh string) (*TokenPair, error) {
	access, exp, err := s.issuer.IssueAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: exp,
		ExpiresIn:       int64(s.issuer.AccessTTL() / time.Second),
	}, nil
}

func truncate(v string, max int) string {
	if len(v) <= max {
		return v
	}
	return v[:max]
}
