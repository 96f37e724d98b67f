package session

import (
	"time"

	"github.com/gymslim/portal/internal/portal/domain"
)

// State tags where a browser session sits in the login protocol.
type State string

const (
	// StateAnonymous is a session with no verified identity.
	StateAnonymous State = "anonymous"
	// StatePendingMFA sits between the credential step and the code step:
	// the password was correct but the session is NOT authenticated yet.
	StatePendingMFA State = "pending_mfa"
	// StateAuthenticated is a fully established login.
	StateAuthenticated State = "authenticated"
)

// Session is the per-browser server-side state. The transition methods
// clear cross-state fields so an illegal combination (authenticated with a
// pending-MFA user id, pending enrollment while anonymous) cannot persist.
type Session struct {
	// ID is the raw cookie token. It lives only in the browser and in this
	// in-memory struct; the store keys records by the token's fingerprint
	// and must never hold the token itself, so it is excluded from the
	// serialized body.
	ID    string `json:"-"`
	State State  `json:"state"`

	// PendingUserID is set only in StatePendingMFA.
	PendingUserID string `json:"pending_user_id,omitempty"`

	// Fields below are meaningful only in StateAuthenticated.
	User               *domain.Snapshot `json:"user,omitempty"`
	MustChangePassword bool             `json:"must_change_password,omitempty"`
	// EnrollmentSecret is a generated-but-unconfirmed TOTP secret. It is
	// never persisted to the user record until verified.
	EnrollmentSecret string `json:"enrollment_secret,omitempty"`

	// ReturnTo remembers the path that triggered a login redirect.
	ReturnTo string `json:"return_to,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// New returns a fresh anonymous session. The ID is assigned by the
// manager when the session is first saved.
func New() *Session {
	return &Session{State: StateAnonymous, CreatedAt: time.Now().UTC()}
}

// BeginMFA records a verified password for userID and moves to
// StatePendingMFA. Any previous login or pending state is discarded.
func (s *Session) BeginMFA(userID string) {
	s.State = StatePendingMFA
	s.PendingUserID = userID
	s.User = nil
	s.MustChangePassword = false
	s.EnrollmentSecret = ""
}

// Authenticate establishes the full login: user snapshot, the
// must-change-password flag copied from the record, pending state cleared.
func (s *Session) Authenticate(u domain.User) {
	snap := domain.NewSnapshot(u)
	s.State = StateAuthenticated
	s.User = &snap
	s.MustChangePassword = u.MustChangePassword
	s.PendingUserID = ""
	s.EnrollmentSecret = ""
}

// Reset drops the session back to anonymous, keeping only ReturnTo.
func (s *Session) Reset() {
	s.State = StateAnonymous
	s.PendingUserID = ""
	s.User = nil
	s.MustChangePassword = false
	s.EnrollmentSecret = ""
}

// RefreshSnapshot updates the cached user copy after a record mutation so
// gating checks see the change immediately.
func (s *Session) RefreshSnapshot(u domain.User) {
	if s.State != StateAuthenticated {
		return
	}
	snap := domain.NewSnapshot(u)
	s.User = &snap
	s.MustChangePassword = u.MustChangePassword
}

// IsAuthenticated reports whether the session holds a completed login.
func (s *Session) IsAuthenticated() bool {
	return s.State == StateAuthenticated && s.User != nil
}

// UserID returns the authenticated user's id, or "".
func (s *Session) UserID() string {
	if !s.IsAuthenticated() {
		return ""
	}
	return s.User.ID
}
