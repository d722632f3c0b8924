package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/globetrotter/globetrotter-api/internal/observability"
	"github.com/globetrotter/globetrotter-api/internal/repository"
	"github.com/globetrotter/globetrotter-api/internal/security"
)

// RevocationService is the access-token blacklist. Entries live until the
// token's own expiry.
type RevocationService struct {
	issuer *security.TokenIssuer
	repo   repository.RevokedTokenRepository
	cache  RevocationCacheStore
	pepper string
	now    func() time.Time
	logger *slog.Logger
}

func NewRevocationService(issuer *security.TokenIssuer, repo repository.RevokedTokenRepository, cache RevocationCacheStore, pepper string, logger *slog.Logger) *RevocationService {
	if cache == nil {
		cache = NewNoopRevocationCacheStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RevocationService{
		issuer: issuer,
		repo:   repo,
		cache:  cache,
		pepper: pepper,
		now:    time.Now,
		logger: logger,
	}
}

// Blacklist revokes a signed access token. Tokens that are already expired
// need no entry and are accepted silently; tokens that fail signature checks
// return an error wrapping security.ErrInvalidSignature.
func (s *RevocationService) Blacklist(ctx context.Context, raw string) error {
	claims, err := s.issuer.ParseSigned(raw)
	if errors.Is(err, security.ErrTokenExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	expiresAt := claims.ExpiresAtTime().UTC()
	hash := security.HashToken(raw, s.pepper)
	if err := s.repo.Add(ctx, hash, expiresAt); err != nil {
		return fmt.Errorf("store revoked token: %w", err)
	}
	s.fillCache(ctx, hash, expiresAt)
	return nil
}

// IsRevoked reports whether raw is on the blacklist. Cache failures degrade
// to a database lookup.
func (s *RevocationService) IsRevoked(ctx context.Context, raw string) (bool, error) {
	hash := security.HashToken(raw, s.pepper)
	hit, err := s.cache.Contains(ctx, hash)
	switch {
	case err != nil:
		observability.RecordRevocationCacheEvent(ctx, s.cache.Name(), "error")
		s.logger.WarnContext(ctx, "revocation cache lookup failed", "store", s.cache.Name(), "error", err)
	case hit:
		observability.RecordRevocationCacheEvent(ctx, s.cache.Name(), "hit")
		return true, nil
	default:
		observability.RecordRevocationCacheEvent(ctx, s.cache.Name(), "miss")
	}

	revoked, err := s.repo.Exists(ctx, hash, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("lookup revoked token: %w", err)
	}
	if revoked {
		if claims, perr := s.issuer.ParseSigned(raw); perr == nil {
			s.fillCache(ctx, hash, claims.ExpiresAtTime())
		}
	}
	return revoked, nil
}

func (s *RevocationService) fillCache(ctx context.Context, hash string, expiresAt time.Time) {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}
	if err := s.cache.Add(ctx, hash, ttl); err != nil {
		observability.RecordRevocationCacheEvent(ctx, s.cache.Name(), "error")
		s.logger.WarnContext(ctx, "revocation cache fill failed", "store", s.cache.Name(), "error", err)
		return
	}
	observability.RecordRevocationCacheEvent(ctx, s.cache.Name(), "fill")
}
