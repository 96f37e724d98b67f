package http

import (
	"errors"
	"net/http"

	"github.com/gymslim/portal/internal/portal/domain"
	"github.com/gymslim/portal/internal/portal/service"
	"github.com/gymslim/portal/internal/portal/session"
	"github.com/gymslim/portal/pkg/httpx"
	"github.com/gymslim/portal/pkg/slogx"
)

// TrustedDeviceCookie carries the MFA bypass token. It is deliberately
// separate from the session cookie and survives logout.
const TrustedDeviceCookie = "trusted_device"

// LoginHandler implements the two-step login flow and logout.
type LoginHandler struct {
	AuthService   *service.AuthService
	DeviceService *service.TrustedDeviceService
	Sessions      *session.Manager
	SecureCookies bool
}

// HandleLoginPage handles GET /login.
func (h *LoginHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	if s.IsAuthenticated() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"state": string(s.State)})
}

// HandleLogin handles POST /login.
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := sessionFromContext(ctx)

	if err := r.ParseForm(); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "malformed form")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	result, err := h.AuthService.Login(ctx, username, password, h.trustedToken(r))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.WriteMessage(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		slogx.FromContext(ctx).Error("login failed", "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	if result.MFARequiredUserID != "" {
		s.BeginMFA(result.MFARequiredUserID)
		if err := h.Sessions.Save(ctx, w, s); err != nil {
			slogx.FromContext(ctx).Error("failed to save session", "error", err)
			httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
			return
		}
		http.Redirect(w, r, "/login/mfa", http.StatusFound)
		return
	}

	h.completeLogin(w, r, s, *result.Authenticated)
}

// HandleMFAPage handles GET /login/mfa.
func (h *LoginHandler) HandleMFAPage(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	if s.State != session.StatePendingMFA {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"state": string(s.State)})
}

// HandleMFA handles POST /login/mfa.
func (h *LoginHandler) HandleMFA(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := sessionFromContext(ctx)

	// No password step on record for this browser: back to the start,
	// without leaking whether such a challenge ever existed.
	if s.State != session.StatePendingMFA || s.PendingUserID == "" {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "malformed form")
		return
	}
	code := r.PostFormValue("code")

	user, err := h.AuthService.CompleteMFA(ctx, s.PendingUserID, code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTOTPCode):
			httpx.WriteMessage(w, http.StatusUnauthorized, "invalid code, try again")
		case errors.Is(err, service.ErrMFASecretCorrupt):
			httpx.WriteMessage(w, http.StatusInternalServerError,
				"MFA configuration error, contact an administrator")
		case errors.Is(err, service.ErrMFANotPending):
			s.Reset()
			if err := h.Sessions.Save(ctx, w, s); err != nil {
				slogx.FromContext(ctx).Error("failed to save session", "error", err)
			}
			http.Redirect(w, r, "/login", http.StatusFound)
		default:
			slogx.FromContext(ctx).Error("MFA completion failed", "error", err)
			httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	if wantsTrustedDevice(r) {
		grant, err := h.DeviceService.Issue(ctx, user.ID, r.UserAgent())
		if err != nil {
			// The login still succeeds; only the bypass is lost.
			slogx.FromContext(ctx).Error("failed to issue trusted device", "user_id", user.ID, "error", err)
		} else {
			http.SetCookie(w, &http.Cookie{
				Name:     TrustedDeviceCookie,
				Value:    grant.Token,
				Path:     "/",
				Expires:  grant.ExpiresAt,
				HttpOnly: true,
				Secure:   h.SecureCookies,
				SameSite: http.SameSiteStrictMode,
			})
		}
	}

	h.completeLogin(w, r, s, user)
}

// HandleLogout handles GET /logout. Only the session goes away; the
// trusted-device cookie stays so the next login can still skip MFA.
func (h *LoginHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := sessionFromContext(ctx)
	if err := h.Sessions.Destroy(ctx, w, s); err != nil {
		slogx.FromContext(ctx).Error("failed to destroy session", "error", err)
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

// completeLogin establishes the authenticated session and sends the
// browser back where it was headed. The forced-password-change funnel is
// handled by middleware on the next request, so no special-casing here.
func (h *LoginHandler) completeLogin(w http.ResponseWriter, r *http.Request, s *session.Session, user domain.User) {
	ctx := r.Context()

	s.Authenticate(user)
	target := s.ReturnTo
	if target == "" {
		target = "/"
	}
	s.ReturnTo = ""

	if err := h.Sessions.Save(ctx, w, s); err != nil {
		slogx.FromContext(ctx).Error("failed to save session", "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	slogx.FromContext(ctx).Info("login complete", "user_id", user.ID, "username", user.Username)
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *LoginHandler) trustedToken(r *http.Request) string {
	cookie, err := r.Cookie(TrustedDeviceCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func wantsTrustedDevice(r *http.Request) bool {
	switch r.PostFormValue("trust_device") {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
