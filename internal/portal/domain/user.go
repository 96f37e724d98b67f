package domain

import "time"

// User is the portal identity record. MFASecret holds the TOTP seed
// encrypted by the secret cipher, never the plaintext. The invariant is
// that MFASecret is non-nil exactly when MFAEnabled is true; a secret
// pending enrollment lives only in the session.
type User struct {
	ID                 string
	Username           string
	Name               string
	BookingEmail       string
	PasswordHash       string // argon2id encoded
	IsAdmin            bool
	MustChangePassword bool
	MFAEnabled         bool
	MFASecret          *string // encrypted, nullable
	MustConfigureMFA   bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// MFALabel is the account label embedded into the otpauth provisioning URI:
// the booking email when present, else the username.
func (u User) MFALabel() string {
	if u.BookingEmail != "" {
		return u.BookingEmail
	}
	return u.Username
}

// Snapshot is the denormalized per-session copy of a user, kept small so
// gating checks don't need a lookup.
type Snapshot struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	Name             string `json:"name"`
	BookingEmail     string `json:"booking_email"`
	IsAdmin          bool   `json:"is_admin"`
	MFAEnabled       bool   `json:"mfa_enabled"`
	MustConfigureMFA bool   `json:"must_configure_mfa"`
}

// NewSnapshot copies the session-relevant fields of u.
func NewSnapshot(u User) Snapshot {
	return Snapshot{
		ID:               u.ID,
		Username:         u.Username,
		Name:             u.Name,
		BookingEmail:     u.BookingEmail,
		IsAdmin:          u.IsAdmin,
		MFAEnabled:       u.MFAEnabled,
		MustConfigureMFA: u.MustConfigureMFA,
	}
}
