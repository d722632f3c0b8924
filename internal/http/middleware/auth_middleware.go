package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/globetrotter/globetrotter-api/internal/http/response"
	"github.com/globetrotter/globetrotter-api/internal/observability"
	"github.com/globetrotter/globetrotter-api/internal/security"
)

type contextKey string

const PrincipalContextKey contextKey = "principal"

// Principal is the authenticated caller bound to the request context.
type Principal struct {
	UserID   uint
	Claims   *security.Claims
	RawToken string
}

// RevocationChecker reports whether an access token has been blacklisted.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, raw string) (bool, error)
}

type authFailure struct {
	status  int
	code    string
	message string
	outcome string
}

var (
	failMissing  = &authFailure{http.StatusUnauthorized, "UNAUTHORIZED", "No token provided", "missing"}
	failInvalid  = &authFailure{http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", "invalid"}
	failExpired  = &authFailure{http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired", "expired"}
	failRevoked  = &authFailure{http.StatusUnauthorized, "TOKEN_REVOKED", "Token has been revoked", "revoked"}
	failWrongTyp = &authFailure{http.StatusUnauthorized, "INVALID_TOKEN_TYPE", "Invalid token type", "wrong_type"}
	failBackend  = &authFailure{http.StatusInternalServerError, "INTERNAL", "Internal server error", "error"}
)

// authenticate runs signature and expiry, then blacklist, then type checks.
func authenticate(r *http.Request, issuer *security.TokenIssuer, revocations RevocationChecker) (*Principal, *authFailure) {
	raw := security.BearerToken(r)
	if raw == "" {
		return nil, failMissing
	}
	claims, err := issuer.ParseSigned(raw)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, failExpired
		}
		return nil, failInvalid
	}
	if revocations != nil {
		revoked, err := revocations.IsRevoked(r.Context(), raw)
		if err != nil {
			slog.ErrorContext(r.Context(), "revocation lookup failed", "request_id", response.RequestID(r), "error", err)
			return nil, failBackend
		}
		if revoked {
			return nil, failRevoked
		}
	}
	if claims.TokenType != security.TokenTypeAccess {
		return nil, failWrongTyp
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, failInvalid
	}
	return &Principal{UserID: userID, Claims: claims, RawToken: raw}, nil
}

// AuthMiddleware rejects requests without a valid, unrevoked access token.
func AuthMiddleware(issuer *security.TokenIssuer, revocations RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, fail := authenticate(r, issuer, revocations)
			if fail != nil {
				observability.RecordAccessTokenValidation(r.Context(), fail.outcome)
				response.Error(w, r, fail.status, fail.code, fail.message, nil)
				return
			}
			observability.RecordAccessTokenValidation(r.Context(), "valid")
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// OptionalAuthMiddleware binds a principal when the token checks out and
// otherwise lets the request through anonymously.
func OptionalAuthMiddleware(issuer *security.TokenIssuer, revocations RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, fail := authenticate(r, issuer, revocations)
			if fail != nil {
				if fail != failMissing {
					observability.RecordAccessTokenValidation(r.Context(), fail.outcome)
				}
				next.ServeHTTP(w, r)
				return
			}
			observability.RecordAccessTokenValidation(r.Context(), "valid")
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(*Principal)
	return p, ok && p != nil
}
