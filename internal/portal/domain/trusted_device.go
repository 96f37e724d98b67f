package domain

import "time"

// TrustedDevice is an MFA bypass grant for one browser. TokenHash is the
// SHA-256 fingerprint of the opaque cookie token; the raw token is never
// stored. UserAgent is informational only and not enforced on check.
type TrustedDevice struct {
	ID        string
	UserID    string
	TokenHash string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the grant has lapsed at the given instant.
func (d TrustedDevice) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}
