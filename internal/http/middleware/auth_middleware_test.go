package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/globetrotter/globetrotter-api/internal/security"
)

const (
	testIssuer   = "iss"
	testAudience = "aud"
	testSecret   = "abcdefghijklmnopqrstuvwxyz123456"
)

type stubRevocations struct {
	revoked map[string]bool
	err     error
	calls   int
}

func (s *stubRevocations) IsRevoked(_ context.Context, raw string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.revoked[raw], nil
}

func newTestIssuer(now func() time.Time) *security.TokenIssuer {
	return security.NewTokenIssuer(testIssuer, testAudience, testSecret, 15*time.Minute).WithClock(now)
}

func signWithType(t *testing.T, userID uint, tokenType string, exp time.Time) string {
	t.Helper()
	claims := security.Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Audience:  []string{testAudience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(exp.Add(-15 * time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func serveAuth(mw func(http.Handler) http.Handler, token string) (*httptest.ResponseRecorder, *Principal) {
	var seen *Principal
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr, seen
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return body.Code
}

func TestAuthMiddlewareRejections(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(func() time.Time { return now })
	valid, _, err := issuer.IssueAccessToken(7)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	refreshTyped := signWithType(t, 7, "refresh", now.Add(time.Hour))
	expired := signWithType(t, 7, security.TokenTypeAccess, now.Add(-time.Second))
	revokedRefreshTyped := signWithType(t, 8, "refresh", now.Add(time.Hour))
	other := security.NewTokenIssuer(testIssuer, testAudience, "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", 15*time.Minute).WithClock(func() time.Time { return now })
	forged, _, _ := other.IssueAccessToken(7)

	revocations := &stubRevocations{revoked: map[string]bool{
		revokedRefreshTyped: true,
		expired:             true,
	}}

	tests := []struct {
		name   string
		token  string
		status int
		code   string
	}{
		{"missing token", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong signing key", forged, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"expired beats blacklist", expired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"blacklist beats type", revokedRefreshTyped, http.StatusUnauthorized, "TOKEN_REVOKED"},
		{"wrong type", refreshTyped, http.StatusUnauthorized, "INVALID_TOKEN_TYPE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, principal := serveAuth(AuthMiddleware(issuer, revocations), tt.token)
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d (%s)", tt.status, rr.Code, rr.Body.String())
			}
			if got := errorCode(t, rr); got != tt.code {
				t.Fatalf("expected code %s, got %s", tt.code, got)
			}
			if principal != nil {
				t.Fatal("handler must not run on rejection")
			}
		})
	}

	t.Run("valid token binds principal", func(t *testing.T) {
		rr, principal := serveAuth(AuthMiddleware(issuer, revocations), valid)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rr.Code)
		}
		if principal == nil || principal.UserID != 7 || principal.RawToken != valid {
			t.Fatalf("unexpected principal %+v", principal)
		}
	})
}

func TestAuthMiddlewareExpiresAfterAccessTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(func() time.Time { return now })
	token, _, err := issuer.IssueAccessToken(3)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	now = now.Add(901 * time.Second)

	rr, _ := serveAuth(AuthMiddleware(issuer, &stubRevocations{}), token)
	if rr.Code != http.StatusUnauthorized || errorCode(t, rr) != "TOKEN_EXPIRED" {
		t.Fatalf("expected TOKEN_EXPIRED, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestAuthMiddlewareRevocationBackendFailure(t *testing.T) {
	issuer := newTestIssuer(time.Now)
	token, _, _ := issuer.IssueAccessToken(1)

	rr, _ := serveAuth(AuthMiddleware(issuer, &stubRevocations{err: errors.New("db down")}), token)
	if rr.Code != http.StatusInternalServerError || errorCode(t, rr) != "INTERNAL" {
		t.Fatalf("expected 500 INTERNAL, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestOptionalAuthMiddlewareNeverRejects(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(func() time.Time { return now })
	valid, _, _ := issuer.IssueAccessToken(11)
	revoked, _, _ := issuer.IssueAccessToken(12)
	revocations := &stubRevocations{revoked: map[string]bool{revoked: true}}

	for _, token := range []string{"", "garbage", revoked, signWithType(t, 11, "refresh", now.Add(time.Hour))} {
		rr, principal := serveAuth(OptionalAuthMiddleware(issuer, revocations), token)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("token %q: expected pass-through, got %d", token, rr.Code)
		}
		if principal != nil {
			t.Fatalf("token %q: expected anonymous request, got %+v", token, principal)
		}
	}

	rr, principal := serveAuth(OptionalAuthMiddleware(issuer, revocations), valid)
	if rr.Code != http.StatusNoContent || principal == nil || principal.UserID != 11 {
		t.Fatalf("expected authenticated pass-through, got %d %+v", rr.Code, principal)
	}
}

func TestPrincipalFromContextEmpty(t *testing.T) {
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatal("expected no principal")
	}
}
