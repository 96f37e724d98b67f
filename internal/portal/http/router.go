package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gymslim/portal/internal/portal/service"
	"github.com/gymslim/portal/internal/portal/session"
	"github.com/gymslim/portal/internal/portal/store"
	"github.com/gymslim/portal/pkg/httpx"
	"github.com/gymslim/portal/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion  string
	startTime     time.Time
	logger        *slog.Logger
	secureCookies bool

	store    store.Store
	Sessions *session.Manager

	AuthService     *service.AuthService
	MFAService      *service.MFAService
	DeviceService   *service.TrustedDeviceService
	SettingsService *service.SettingsService
	UserService     *service.UserService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	sessions *session.Manager,
	secureCookies bool,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:           http.NewServeMux(),
		buildVersion:  buildVersion,
		startTime:     time.Now(),
		logger:        logger,
		secureCookies: secureCookies,
		store:         st,
		Sessions:      sessions,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		r.withSessionState,
	}

	return r
}

func (rt *Router) ApplyRoutes() {
	rt.Mux.Handle("GET /", rt.secured(http.HandlerFunc(rt.handleHome)))
	rt.registerLogin()
	rt.registerPassword()
	rt.registerProfile()
	rt.registerAdmin()
	rt.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (rt *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(rt.Mux, rt.middlewares...).ServeHTTP(w, req)
}

// secured wraps h in the full authenticated-area gate stack. Order
// matters: auth first, then the forced-password-change funnel, then the
// forced-MFA funnel.
func (rt *Router) secured(h http.Handler) http.Handler {
	return httpx.Chain(h,
		rt.requireAuth,
		rt.requirePasswordChanged,
		rt.requireMFAConfigured,
	)
}

func (rt *Router) registerLogin() {
	h := &LoginHandler{
		AuthService:   rt.AuthService,
		DeviceService: rt.DeviceService,
		Sessions:      rt.Sessions,
		SecureCookies: rt.secureCookies,
	}

	rt.Mux.Handle("GET /login", http.HandlerFunc(h.HandleLoginPage))

	// Credential attempts are throttled per IP and per claimed username so
	// one address cannot spray and one account cannot be hammered from many.
	rt.Mux.Handle("POST /login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)

	rt.Mux.Handle("GET /login/mfa", http.HandlerFunc(h.HandleMFAPage))
	rt.Mux.Handle("POST /login/mfa",
		httpx.Chain(http.HandlerFunc(h.HandleMFA),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	rt.Mux.Handle("GET /logout", http.HandlerFunc(h.HandleLogout))
}

func (rt *Router) registerPassword() {
	h := &PasswordHandler{AuthService: rt.AuthService, Sessions: rt.Sessions}

	// /change-password sits behind requireAuth only: the whole point is
	// that the password-change funnel must stay reachable.
	changeGet := httpx.Chain(http.HandlerFunc(h.HandleChangePasswordPage), rt.requireAuth)
	changePost := httpx.Chain(http.HandlerFunc(h.HandleChangePassword), rt.requireAuth)
	rt.Mux.Handle("GET /change-password", changeGet)
	rt.Mux.Handle("POST /change-password", changePost)

	rt.Mux.Handle("POST /profile/password", rt.secured(http.HandlerFunc(h.HandleProfilePassword)))
}

func (rt *Router) registerProfile() {
	h := &ProfileMFAHandler{
		MFAService: rt.MFAService,
		Sessions:   rt.Sessions,
	}

	rt.Mux.Handle("GET /profile", rt.secured(http.HandlerFunc(h.HandleProfile)))
	rt.Mux.Handle("POST /profile/mfa/generate", rt.secured(http.HandlerFunc(h.HandleGenerate)))
	rt.Mux.Handle("POST /profile/mfa/verify", rt.secured(http.HandlerFunc(h.HandleVerify)))
	rt.Mux.Handle("POST /profile/mfa/disable", rt.secured(http.HandlerFunc(h.HandleDisable)))
}

func (rt *Router) registerAdmin() {
	h := &AdminHandler{
		UserService:     rt.UserService,
		MFAService:      rt.MFAService,
		SettingsService: rt.SettingsService,
	}

	admin := func(hf http.HandlerFunc) http.Handler {
		return httpx.Chain(hf,
			rt.requireAuth,
			rt.requirePasswordChanged,
			rt.requireAdmin,
		)
	}

	rt.Mux.Handle("POST /admin/users", admin(h.HandleCreateUser))
	rt.Mux.Handle("PUT /admin/users/{id}", admin(h.HandleUpdateUser))
	rt.Mux.Handle("DELETE /admin/users/{id}", admin(h.HandleDeleteUser))
	rt.Mux.Handle("POST /admin/users/{id}/password/reset", admin(h.HandleResetPassword))
	rt.Mux.Handle("POST /admin/users/{id}/mfa/disable", admin(h.HandleDisableMFA))
	rt.Mux.Handle("POST /admin/users/{id}/mfa/force", admin(h.HandleForceMFA))
	rt.Mux.Handle("GET /admin/settings", admin(h.HandleGetSettings))
	rt.Mux.Handle("PUT /admin/settings", admin(h.HandleUpdateSettings))
}

func (rt *Router) registerSystem() {
	rt.Mux.Handle("GET /livez", LivezHandler(rt.startTime, rt.buildVersion))
	rt.Mux.Handle("GET /readyz", ReadyzHandler(rt.startTime, rt.buildVersion, rt.store))
}
