package http

import (
	"errors"
	"net/http"

	"github.com/gymslim/portal/internal/portal/service"
	"github.com/gymslim/portal/internal/portal/session"
	"github.com/gymslim/portal/pkg/httpx"
	"github.com/gymslim/portal/pkg/slogx"
)

// PasswordHandler covers the forced password-change funnel and the
// profile-initiated password change.
type PasswordHandler struct {
	AuthService *service.AuthService
	Sessions    *session.Manager
}

// HandleChangePasswordPage handles GET /change-password.
func (h *PasswordHandler) HandleChangePasswordPage(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	if !s.MustChangePassword {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"mustChangePassword": true})
}

// HandleChangePassword handles POST /change-password: the forced flow,
// where the current password was already proven at login.
func (h *PasswordHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := sessionFromContext(ctx)

	if err := r.ParseForm(); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "malformed form")
		return
	}

	err := h.AuthService.ChangePassword(ctx, s.User.ID,
		r.PostFormValue("new_password"), r.PostFormValue("confirm_password"))
	if err != nil {
		if errors.Is(err, service.ErrPasswordTooShort) || errors.Is(err, service.ErrPasswordConfirmation) {
			httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		slogx.FromContext(ctx).Error("password change failed", "user_id", s.User.ID, "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	// Lift the gate immediately rather than waiting for the next request's
	// record fetch.
	s.MustChangePassword = false
	if err := h.Sessions.Save(ctx, w, s); err != nil {
		slogx.FromContext(ctx).Error("failed to save session", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleProfilePassword handles POST /profile/password: a voluntary
// change that re-proves the current password first.
func (h *PasswordHandler) HandleProfilePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := sessionFromContext(ctx)

	if err := r.ParseForm(); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "malformed form")
		return
	}

	err := h.AuthService.ChangePasswordWithCurrent(ctx, s.User.ID,
		r.PostFormValue("current_password"),
		r.PostFormValue("new_password"),
		r.PostFormValue("confirm_password"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordMismatch),
			errors.Is(err, service.ErrPasswordTooShort),
			errors.Is(err, service.ErrPasswordConfirmation):
			httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		default:
			slogx.FromContext(ctx).Error("profile password change failed", "user_id", s.User.ID, "error", err)
			httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "password updated")
}
