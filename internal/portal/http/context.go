package http

import (
	"context"

	"github.com/gymslim/portal/internal/portal/domain"
	"github.com/gymslim/portal/internal/portal/session"
)

type ctxKey int

const (
	ctxKeySession ctxKey = iota
	ctxKeyUser
)

func withSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, ctxKeySession, s)
}

// sessionFromContext returns the request session. The session middleware
// guarantees one on every routed request.
func sessionFromContext(ctx context.Context) *session.Session {
	if s, ok := ctx.Value(ctxKeySession).(*session.Session); ok {
		return s
	}
	return session.New()
}

func withUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, u)
}

// userFromContext returns the freshly-loaded user record for an
// authenticated request. ok is false on anonymous or pending sessions.
func userFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(ctxKeyUser).(domain.User)
	return u, ok
}
