package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/globetrotter/globetrotter-api/internal/domain"
	"github.com/globetrotter/globetrotter-api/internal/http/middleware"
	"github.com/globetrotter/globetrotter-api/internal/http/response"
	"github.com/globetrotter/globetrotter-api/internal/security"
	"github.com/globetrotter/globetrotter-api/internal/service"
	"github.com/globetrotter/globetrotter-api/internal/validation"
)

type userView struct {
	ID          uint      `json:"id"`
	Email       string    `json:"email"`
	Name        *string   `json:"name"`
	HomeCountry *string   `json:"homeCountry"`
	Currency    *string   `json:"currency"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toUserView(u *domain.User) userView {
	return userView{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		HomeCountry: u.HomeCountry,
		Currency:    u.Currency,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the 400 itself and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body != nil {
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				response.Error(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", nil)
				return false
			}
			response.Error(w, r, http.StatusBadRequest, validation.Code, "Invalid JSON body", nil)
			return false
		}
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		response.Error(w, r, http.StatusBadRequest, validation.Code, verr.Error(), verr.Details())
		return false
	}
	return true
}

func mustPrincipal(w http.ResponseWriter, r *http.Request) (*middleware.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "No token provided", nil)
		return nil, false
	}
	return p, true
}

func sessionMeta(r *http.Request) service.SessionMeta {
	return service.SessionMeta{UserAgent: r.UserAgent(), IP: security.ClientIP(r)}
}

// writeServiceError maps service errors onto status codes. Anything
// unrecognised is logged and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials", nil)
	case errors.Is(err, service.ErrIncorrectPassword):
		response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Current password is incorrect", nil)
	case errors.Is(err, service.ErrEmailTaken):
		response.Error(w, r, http.StatusConflict, "EMAIL_TAKEN", "Email already registered", nil)
	case errors.Is(err, service.ErrUserNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
	case errors.Is(err, service.ErrSessionNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "Session not found", nil)
	case errors.Is(err, service.ErrInvalidRefreshToken):
		response.Error(w, r, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Invalid refresh token", nil)
	case errors.Is(err, service.ErrRefreshTokenExpired):
		response.Error(w, r, http.StatusUnauthorized, "REFRESH_TOKEN_EXPIRED", "Refresh token expired", nil)
	case errors.Is(err, service.ErrResetTokenInvalid):
		response.Error(w, r, http.StatusBadRequest, "RESET_TOKEN_INVALID", "Invalid or expired reset token", nil)
	case errors.Is(err, service.ErrResetTokenUsed):
		response.Error(w, r, http.StatusBadRequest, "RESET_TOKEN_USED", "Reset token already used", nil)
	case errors.Is(err, service.ErrResetTokenExpired):
		response.Error(w, r, http.StatusBadRequest, "RESET_TOKEN_EXPIRED", "Reset token expired", nil)
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		response.Error(w, r, http.StatusBadRequest, validation.Code, "Password is too long", nil)
	default:
		slog.ErrorContext(r.Context(), op+" failed", "request_id", response.RequestID(r), "error", err)
		response.Internal(w, r)
	}
}

func decodeJSONQuietly(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
