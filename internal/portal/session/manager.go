package session

import (
	"context"
	"net/http"
	"time"

	"github.com/gymslim/portal/pkg/cryptox"
)

// CookieName is the session cookie. Distinct from the trusted-device
// cookie: logging out removes this one and leaves the other alone.
const CookieName = "portal_session"

// Manager binds browser cookies to stored sessions. The cookie value is
// an opaque random token; the store key is its SHA-256 fingerprint.
type Manager struct {
	Store  Store
	TTL    time.Duration
	Secure bool // set Secure on cookies (TLS / production)
}

// Load resolves the request's session cookie. A missing, unknown, or
// expired cookie yields a fresh anonymous session rather than an error.
func (m *Manager) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return New()
	}

	s, err := m.Store.Get(r.Context(), cryptox.FingerprintToken(cookie.Value))
	if err != nil {
		return New()
	}
	s.ID = cookie.Value
	return s
}

// Save persists the session and (for new sessions) sets the cookie.
// Every save renews the store TTL, so active sessions slide forward.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s.ID == "" {
		s.ID = cryptox.MustGenerateToken(cryptox.TokenSize256)
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    s.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   m.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return m.Store.Put(ctx, cryptox.FingerprintToken(s.ID), s, m.TTL)
}

// Destroy removes the server-side session and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s.ID != "" {
		if err := m.Store.Delete(ctx, cryptox.FingerprintToken(s.ID)); err != nil {
			return err
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	return nil
}
