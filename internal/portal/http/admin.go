package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gymslim/portal/internal/portal/service"
	"github.com/gymslim/portal/internal/portal/store"
	"github.com/gymslim/portal/pkg/httpx"
	"github.com/gymslim/portal/pkg/slogx"
)

// AdminHandler serves the administrative account and settings operations.
// All routes are behind requireAdmin.
type AdminHandler struct {
	UserService     *service.UserService
	MFAService      *service.MFAService
	SettingsService *service.SettingsService
}

type createUserRequest struct {
	Username     string `json:"username"`
	Name         string `json:"name"`
	BookingEmail string `json:"bookingEmail"`
	Password     string `json:"password"`
	IsAdmin      bool   `json:"isAdmin"`
}

// HandleCreateUser handles POST /admin/users.
func (h *AdminHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, err := h.UserService.Create(ctx, service.CreateUserParams{
		Username:     req.Username,
		Name:         req.Name,
		BookingEmail: req.BookingEmail,
		Password:     req.Password,
		IsAdmin:      req.IsAdmin,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameTaken):
			httpx.WriteMessage(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrUsernameRequired), errors.Is(err, service.ErrPasswordTooShort):
			httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		default:
			slogx.FromContext(ctx).Error("user creation failed", "error", err)
			httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":                 user.ID,
		"username":           user.Username,
		"name":               user.Name,
		"bookingEmail":       user.BookingEmail,
		"isAdmin":            user.IsAdmin,
		"mustChangePassword": user.MustChangePassword,
	})
}

type updateUserRequest struct {
	Name         string `json:"name"`
	BookingEmail string `json:"bookingEmail"`
}

// HandleUpdateUser handles PUT /admin/users/{id}: edits the display name
// and booking email of an existing account.
func (h *AdminHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("id")

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := h.UserService.UpdateDetails(ctx, userID, req.Name, req.BookingEmail); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteMessage(w, http.StatusNotFound, "user not found")
			return
		}
		slogx.FromContext(ctx).Error("user detail update failed", "user_id", userID, "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "user updated")
}

// HandleDeleteUser handles DELETE /admin/users/{id}.
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := sessionFromContext(ctx)

	err := h.UserService.Delete(ctx, s.User.ID, r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfDeleteForbidden):
			httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			httpx.WriteMessage(w, http.StatusNotFound, "user not found")
		default:
			slogx.FromContext(ctx).Error("user deletion failed", "error", err)
			httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "user deleted")
}

// HandleResetPassword handles POST /admin/users/{id}/password/reset. The
// temporary password appears in this response and nowhere else.
func (h *AdminHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	temp, err := h.UserService.ResetPassword(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteMessage(w, http.StatusNotFound, "user not found")
			return
		}
		slogx.FromContext(ctx).Error("password reset failed", "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"temporaryPassword": temp})
}

// HandleDisableMFA handles POST /admin/users/{id}/mfa/disable.
func (h *AdminHandler) HandleDisableMFA(w http.ResponseWriter, r *http.Request) {
	h.mfaReset(w, r, false)
}

// HandleForceMFA handles POST /admin/users/{id}/mfa/force: clears any
// current MFA and locks the account down until the user re-enrolls.
func (h *AdminHandler) HandleForceMFA(w http.ResponseWriter, r *http.Request) {
	h.mfaReset(w, r, true)
}

func (h *AdminHandler) mfaReset(w http.ResponseWriter, r *http.Request, force bool) {
	ctx := r.Context()
	userID := r.PathValue("id")

	var err error
	if force {
		err = h.MFAService.AdminForceEnroll(ctx, userID)
	} else {
		err = h.MFAService.AdminDisable(ctx, userID)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteMessage(w, http.StatusNotFound, "user not found")
			return
		}
		slogx.FromContext(ctx).Error("admin MFA reset failed", "user_id", userID, "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	if force {
		httpx.WriteMessage(w, http.StatusOK, "MFA reset, user must re-enroll")
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "MFA disabled")
}

// HandleGetSettings handles GET /admin/settings. With cache_enabled off
// the mirror is reloaded from the store first, so the page reflects
// changes made outside this process.
func (h *AdminHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.SettingsService.CacheEnabled() {
		if err := h.SettingsService.Load(ctx); err != nil {
			slogx.FromContext(ctx).Error("settings reload failed", "error", err)
			httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
			return
		}
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, h.SettingsService.All())
}

// HandleUpdateSettings handles PUT /admin/settings. The body is a flat
// object of setting key to value; every pair is validated before any of
// them is persisted, so a bad pair leaves the settings untouched.
func (h *AdminHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}

	for key, value := range req {
		if err := h.SettingsService.Validate(key, value); err != nil {
			httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	for key, value := range req {
		if err := h.SettingsService.Update(ctx, key, value); err != nil {
			slogx.FromContext(ctx).Error("settings update failed", "key", key, "error", err)
			httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
			return
		}
	}

	httpx.WriteJSON(w, http.StatusOK, h.SettingsService.All())
}
