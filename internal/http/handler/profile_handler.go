package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/globetrotter/globetrotter-api/internal/domain"
	"github.com/globetrotter/globetrotter-api/internal/http/response"
	"github.com/globetrotter/globetrotter-api/internal/observability"
	"github.com/globetrotter/globetrotter-api/internal/service"
	"github.com/globetrotter/globetrotter-api/internal/validation"
)

type ProfileHandler struct {
	profiles service.ProfileServiceInterface
}

func NewProfileHandler(profiles service.ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// updateProfileRequest mirrors domain.ProfilePatch; absent fields stay nil.
type updateProfileRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Email       *string `json:"email" validate:"omitempty,email,max=320"`
	HomeCountry *string `json:"homeCountry" validate:"omitempty,max=64"`
	Currency    *string `json:"currency" validate:"omitempty,max=8"`
}

func (req updateProfileRequest) patch() domain.ProfilePatch {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		s := strings.TrimSpace(*v)
		return &s
	}
	p := domain.ProfilePatch{
		Name:        trim(req.Name),
		HomeCountry: trim(req.HomeCountry),
		Currency:    trim(req.Currency),
	}
	// An empty email is "no change", not "clear".
	if e := trim(req.Email); e != nil && *e != "" {
		p.Email = e
	}
	return p
}

type deleteProfileRequest struct {
	Password string `json:"password" validate:"passwordbytes"`
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	user, err := h.profiles.Get(r.Context(), principal.UserID)
	if err != nil {
		writeServiceError(w, r, "get profile", err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"user": toUserView(user)})
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	user, err := h.profiles.Update(r.Context(), principal.UserID, req.patch())
	if err != nil {
		writeServiceError(w, r, "update profile", err)
		return
	}
	observability.Audit(r, "profile.update", "success", "user_id", principal.UserID)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"message": "Profile updated successfully",
		"user":    toUserView(user),
	})
}

func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req deleteProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.Password == "" {
		response.Error(w, r, http.StatusBadRequest, validation.Code, "Password required to delete account", nil)
		return
	}
	err := h.profiles.Delete(r.Context(), principal.UserID, req.Password, principal.RawToken)
	if errors.Is(err, service.ErrIncorrectPassword) {
		observability.Audit(r, "profile.delete", "failure", "user_id", principal.UserID)
		response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Incorrect password", nil)
		return
	}
	if err != nil {
		writeServiceError(w, r, "delete profile", err)
		return
	}
	observability.Audit(r, "profile.delete", "success", "user_id", principal.UserID)
	response.JSON(w, r, http.StatusOK, successResponse{Success: true, Message: "Account deleted successfully"})
}
