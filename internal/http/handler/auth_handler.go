package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/globetrotter/globetrotter-api/internal/http/middleware"
	"github.com/globetrotter/globetrotter-api/internal/http/response"
	"github.com/globetrotter/globetrotter-api/internal/observability"
	"github.com/globetrotter/globetrotter-api/internal/security"
	"github.com/globetrotter/globetrotter-api/internal/service"
)

const forgotPasswordMessage = "If the email exists, a reset link has been sent"

type AuthHandler struct {
	auth service.AuthServiceInterface
}

func NewAuthHandler(auth service.AuthServiceInterface) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required,min=6,passwordbytes"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=320"`
	Password string `json:"password" validate:"required,passwordbytes"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required,max=256"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken" validate:"max=256"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,max=320"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required,max=256"`
	NewPassword string `json:"newPassword" validate:"required,min=6,passwordbytes"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required,passwordbytes"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,passwordbytes"`
}

type loginResponse struct {
	User         userView `json:"user"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresIn    int64    `json:"expiresIn"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type forgotPasswordResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	DemoToken string `json:"_demoToken,omitempty"`
}

func newLoginResponse(res *service.LoginResult) loginResponse {
	return loginResponse{
		User:         toUserView(res.User),
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresIn:    res.Tokens.ExpiresIn,
	}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	res, err := h.auth.Signup(r.Context(), req.Email, req.Password, sessionMeta(r))
	if err != nil {
		observability.Audit(r, "auth.signup", "failure")
		writeServiceError(w, r, "signup", err)
		return
	}
	observability.Audit(r, "auth.signup", "success", "user_id", res.User.ID)
	response.JSON(w, r, http.StatusCreated, newLoginResponse(res))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password, sessionMeta(r))
	if err != nil {
		observability.Audit(r, "auth.login", "failure", "client_ip", security.ClientIP(r))
		writeServiceError(w, r, "login", err)
		return
	}
	observability.Audit(r, "auth.login", "success", "user_id", res.User.ID)
	response.JSON(w, r, http.StatusOK, newLoginResponse(res))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken, sessionMeta(r))
	if err != nil {
		observability.Audit(r, "auth.refresh", "failure")
		writeServiceError(w, r, "refresh", err)
		return
	}
	observability.Audit(r, "auth.refresh", "success")
	response.JSON(w, r, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// Logout always succeeds; a malformed body is treated as empty.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if r.Body != nil {
		_ = decodeJSONQuietly(r, &req)
	}
	h.auth.Logout(r.Context(), req.RefreshToken, security.BearerToken(r))
	if principal, ok := middleware.PrincipalFromContext(r.Context()); ok {
		observability.Audit(r, "auth.logout", "success", "user_id", principal.UserID)
	} else {
		observability.Audit(r, "auth.logout", "success")
	}
	response.JSON(w, r, http.StatusOK, successResponse{Success: true, Message: "Logged out successfully"})
}

func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	n, err := h.auth.LogoutAll(r.Context(), principal.UserID, principal.RawToken)
	if err != nil {
		writeServiceError(w, r, "logout-all", err)
		return
	}
	observability.Audit(r, "auth.logout_all", "success", "user_id", principal.UserID, "sessions", n)
	response.JSON(w, r, http.StatusOK, successResponse{Success: true, Message: "All sessions logged out"})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	token := h.auth.ForgotPassword(r.Context(), req.Email)
	observability.Audit(r, "auth.password_forgot", "accepted")
	response.JSON(w, r, http.StatusOK, forgotPasswordResponse{
		Success:   true,
		Message:   forgotPasswordMessage,
		DemoToken: token,
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		observability.Audit(r, "auth.password_reset", "failure")
		writeServiceError(w, r, "reset-password", err)
		return
	}
	observability.Audit(r, "auth.password_reset", "success")
	response.JSON(w, r, http.StatusOK, successResponse{Success: true, Message: "Password reset successfully"})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.auth.ChangePassword(r.Context(), principal.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		observability.Audit(r, "auth.password_change", "failure", "user_id", principal.UserID)
		writeServiceError(w, r, "change-password", err)
		return
	}
	observability.Audit(r, "auth.password_change", "success", "user_id", principal.UserID)
	response.JSON(w, r, http.StatusOK, successResponse{Success: true, Message: "Password changed successfully"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	user, err := h.auth.Me(r.Context(), principal.UserID)
	if err != nil {
		writeServiceError(w, r, "me", err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"user": toUserView(user)})
}

func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	sessions, err := h.auth.ListSessions(r.Context(), principal.UserID)
	if err != nil {
		writeServiceError(w, r, "list sessions", err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"sessions": sessions, "count": len(sessions)})
}

func (h *AuthHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	sessionID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || sessionID == 0 {
		// Non-numeric ids can never belong to the caller.
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "Session not found", nil)
		return
	}
	if err := h.auth.RevokeSession(r.Context(), principal.UserID, uint(sessionID)); err != nil {
		writeServiceError(w, r, "revoke session", err)
		return
	}
	observability.Audit(r, "auth.session_revoke", "success", "user_id", principal.UserID, "session_id", sessionID)
	response.JSON(w, r, http.StatusOK, successResponse{Success: true, Message: "Session revoked"})
}
