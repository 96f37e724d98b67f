package http

import (
	"errors"
	"net/http"

	"github.com/gymslim/portal/internal/portal/service"
	"github.com/gymslim/portal/internal/portal/session"
	"github.com/gymslim/portal/pkg/httpx"
	"github.com/gymslim/portal/pkg/slogx"
)

// ProfileMFAHandler serves the authenticated-user MFA management
// endpoints backing the profile page.
type ProfileMFAHandler struct {
	MFAService *service.MFAService
	Sessions   *session.Manager
}

// HandleProfile handles GET /profile.
func (h *ProfileMFAHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"user":              s.User,
		"pendingEnrollment": s.EnrollmentSecret != "",
	})
}

// HandleGenerate handles POST /profile/mfa/generate. The fresh secret
// lives only in the session until verified; generating again replaces it.
func (h *ProfileMFAHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := sessionFromContext(ctx)
	log := slogx.FromContext(ctx)

	user, ok := userFromContext(ctx)
	if !ok {
		httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	enrollment, err := h.MFAService.Enroll(ctx, user)
	if err != nil {
		log.Error("MFA enrollment failed", "user_id", user.ID, "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	s.EnrollmentSecret = enrollment.Base32Secret
	if err := h.Sessions.Save(ctx, w, s); err != nil {
		log.Error("failed to save session", "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"qrCodeDataUrl": enrollment.QRCodeDataURL,
		"base32Secret":  enrollment.Base32Secret,
		"otpauthUrl":    enrollment.OtpauthURL,
	})
}

// HandleVerify handles POST /profile/mfa/verify.
func (h *ProfileMFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := sessionFromContext(ctx)
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "malformed form")
		return
	}

	err := h.MFAService.Activate(ctx, s.User.ID, s.EnrollmentSecret, r.PostFormValue("code"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoEnrollmentPending):
			httpx.WriteMessage(w, http.StatusBadRequest, "generate a secret first")
		case errors.Is(err, service.ErrInvalidTOTPCode):
			// The pending secret stays in the session so the same QR can
			// be retried.
			httpx.WriteMessage(w, http.StatusBadRequest, "invalid code, try again")
		default:
			log.Error("MFA activation failed", "user_id", s.User.ID, "error", err)
			httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	s.EnrollmentSecret = ""
	h.refresh(w, r, s)
	httpx.WriteMessage(w, http.StatusOK, "two-factor authentication enabled")
}

// HandleDisable handles POST /profile/mfa/disable.
func (h *ProfileMFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := sessionFromContext(ctx)
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "malformed form")
		return
	}

	err := h.MFAService.Disable(ctx, s.User.ID, r.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, service.ErrPasswordMismatch) {
			httpx.WriteMessage(w, http.StatusBadRequest, "current password is incorrect")
			return
		}
		log.Error("MFA disable failed", "user_id", s.User.ID, "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	h.refresh(w, r, s)
	httpx.WriteMessage(w, http.StatusOK, "two-factor authentication disabled")
}

// refresh re-reads the user record into the session snapshot after an MFA
// mutation so gates see the new flags on this very response cycle.
func (h *ProfileMFAHandler) refresh(w http.ResponseWriter, r *http.Request, s *session.Session) {
	ctx := r.Context()
	user, err := h.MFAService.Store.Users().GetUserByID(ctx, s.User.ID)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to refresh session snapshot", "error", err)
		return
	}
	s.RefreshSnapshot(user)
	if err := h.Sessions.Save(ctx, w, s); err != nil {
		slogx.FromContext(ctx).Error("failed to save session", "error", err)
	}
}
