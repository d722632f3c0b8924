package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const TokenTypeAccess = "access"

var (
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidSignature = errors.New("invalid token")
	ErrWrongTokenType   = errors.New("unexpected token type")
)

type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidSignature)
	}
	return uint(id), nil
}

// ExpiresAtTime returns the embedded expiry, or the zero time if absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// TokenIssuer mints short-lived HS256 access tokens and opaque refresh tokens.
type TokenIssuer struct {
	issuer    string
	audience  string
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

func NewTokenIssuer(issuer, audience, secret string, accessTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		issuer:    issuer,
		audience:  audience,
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	if now != nil {
		i.now = now
	}
	return i
}

func (i *TokenIssuer) AccessTTL() time.Duration { return i.accessTTL }

func (i *TokenIssuer) IssueAccessToken(userID uint) (string, time.Time, error) {
	return i.sign(userID, TokenTypeAccess, i.accessTTL)
}

func (i *TokenIssuer) IssueRefreshToken() (string, error) {
	return NewOpaqueToken()
}

func (i *TokenIssuer) sign(userID uint, tokenType string, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(ttl)
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Audience:  []string{i.audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccessToken checks signature, expiry and token type.
func (i *TokenIssuer) VerifyAccessToken(raw string) (*Claims, error) {
	claims, err := i.ParseSigned(raw)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, fmt.Errorf("%w: %s", ErrWrongTokenType, claims.TokenType)
	}
	return claims, nil
}

// ParseSigned checks signature, issuer, audience and expiry but not the token
// type, so callers can interleave their own checks before the type check.
func (i *TokenIssuer) ParseSigned(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return i.secret, nil
	},
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidSignature
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}
