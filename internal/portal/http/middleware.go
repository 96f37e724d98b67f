package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gymslim/portal/internal/portal/session"
	"github.com/gymslim/portal/internal/portal/store"
	"github.com/gymslim/portal/pkg/httpx"
	"github.com/gymslim/portal/pkg/slogx"
)

// withSessionState resolves the session cookie and, for authenticated
// sessions, re-fetches the user record so every downstream check sees the
// current flags rather than a stale snapshot. A session whose user has
// been deleted is destroyed on the spot.
func (rt *Router) withSessionState(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s := rt.Sessions.Load(r)

		if s.IsAuthenticated() {
			user, err := rt.store.Users().GetUserByID(ctx, s.User.ID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					slogx.FromContext(ctx).Warn("session for deleted user destroyed", "user_id", s.User.ID)
					_ = rt.Sessions.Destroy(ctx, w, s)
					s = session.New()
				} else {
					slogx.FromContext(ctx).Error("session user lookup failed", "error", err)
					httpx.WriteMessage(w, http.StatusInternalServerError, "something went wrong")
					return
				}
			} else {
				s.RefreshSnapshot(user)
				ctx = withUser(ctx, user)
			}
		}

		next.ServeHTTP(w, r.WithContext(withSession(ctx, s)))
	})
}

// requireAuth redirects anonymous and pending-MFA browsers to /login,
// remembering where they were headed.
func (rt *Router) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := sessionFromContext(r.Context())
		if s.IsAuthenticated() {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodGet {
			s.ReturnTo = r.URL.RequestURI()
			if err := rt.Sessions.Save(r.Context(), w, s); err != nil {
				slogx.FromContext(r.Context()).Error("failed to save session", "error", err)
			}
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})
}

// requirePasswordChanged funnels accounts flagged for a forced password
// change to /change-password before anything else.
func (rt *Router) requirePasswordChanged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := sessionFromContext(r.Context())
		if s.MustChangePassword && r.URL.Path != "/change-password" {
			http.Redirect(w, r, "/change-password", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// mfaExemptPaths may be used while an MFA setup is still outstanding:
// the user has to reach the enrollment endpoints, and must always be able
// to log out.
func mfaExempt(path string) bool {
	return path == "/logout" || path == "/profile" || strings.HasPrefix(path, "/profile/")
}

// requireMFAConfigured blocks non-admin accounts flagged for forced MFA
// enrollment from everything except the profile area and logout.
func (rt *Router) requireMFAConfigured(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := sessionFromContext(r.Context())
		if s.IsAuthenticated() && !s.User.IsAdmin && s.User.MustConfigureMFA && !mfaExempt(r.URL.Path) {
			http.Redirect(w, r, "/profile", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin gates the administrative endpoints. Signed-in non-admins
// are bounced to the landing page; anonymous requests never reach this
// middleware because requireAuth runs first.
func (rt *Router) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := sessionFromContext(r.Context())
		if !s.IsAuthenticated() {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		if !s.User.IsAdmin {
			slogx.FromContext(r.Context()).Warn("admin endpoint denied",
				"path", r.URL.Path, "user_id", s.UserID())
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
