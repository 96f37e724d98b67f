package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/gymslim/portal/internal/portal/domain"
	"github.com/gymslim/portal/internal/portal/store"
	"github.com/gymslim/portal/pkg/cryptox"
	"github.com/gymslim/portal/pkg/slogx"
)

var (
	// ErrInvalidCredentials covers both unknown-user and wrong-password so
	// responses cannot be used to enumerate accounts. The distinction is
	// logged, never returned.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidTOTPCode is a retryable code mismatch.
	ErrInvalidTOTPCode = errors.New("invalid TOTP code")

	// ErrMFASecretCorrupt means the stored secret cannot be decrypted. This
	// is not retryable: no code the user types can ever verify.
	ErrMFASecretCorrupt = errors.New("MFA configuration error")

	// ErrPasswordMismatch is returned when an already-authenticated user
	// supplies a wrong current password (profile password change, MFA
	// disable). Unlike login there is nothing to hide here.
	ErrPasswordMismatch = errors.New("current password is incorrect")

	ErrPasswordTooShort     = errors.New("password must be at least 6 characters")
	ErrPasswordConfirmation = errors.New("password confirmation does not match")
	ErrMFANotPending        = errors.New("no MFA challenge pending")
)

const minPasswordLength = 6

// AuthService implements credential verification, the two-step login
// sequence, and password changes.
type AuthService struct {
	Store   store.Store
	Cipher  *cryptox.SecretCipher
	Devices *TrustedDeviceService
}

// LoginResult reports how far a login got. Exactly one branch is set.
type LoginResult struct {
	// Authenticated is non-nil when the login is complete (MFA disabled,
	// or bypassed by a trusted device).
	Authenticated *domain.User

	// MFARequiredUserID is set when the password verified but a TOTP code
	// is still required. The caller must hold it in pending-MFA session
	// state, never in an authenticated one.
	MFARequiredUserID string
}

// verifyCredentials looks up username and checks password. Read-only: it
// never mutates the user record or any session state.
func (s *AuthService) verifyCredentials(ctx context.Context, username, password string) (domain.User, error) {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("login failed: unknown username", "username", username)
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		log.Warn("login failed: wrong password", "username", username)
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Login runs the fixed sequence: verify credentials, then consult the
// trusted-device token, then branch on whether the account has MFA
// enabled. The trusted-device check happens only after the password
// verified, so the token alone opens nothing.
func (s *AuthService) Login(ctx context.Context, username, password, trustedToken string) (LoginResult, error) {
	user, err := s.verifyCredentials(ctx, username, password)
	if err != nil {
		return LoginResult{}, err
	}

	if !user.MFAEnabled {
		return LoginResult{Authenticated: &user}, nil
	}

	trusted, err := s.Devices.Check(ctx, trustedToken, user.ID)
	if err != nil {
		// A storage fault during the bypass check falls through to the MFA
		// challenge rather than failing the login outright.
		slogx.FromContext(ctx).Error("trusted device check failed", "user_id", user.ID, "error", err)
		trusted = false
	}
	if trusted {
		slogx.FromContext(ctx).Info("MFA bypassed by trusted device", "user_id", user.ID)
		return LoginResult{Authenticated: &user}, nil
	}

	return LoginResult{MFARequiredUserID: user.ID}, nil
}

// CompleteMFA verifies a TOTP code for the user left pending by Login and
// returns the full user record on success. A code mismatch is retryable
// (ErrInvalidTOTPCode); an undecryptable stored secret is not
// (ErrMFASecretCorrupt).
func (s *AuthService) CompleteMFA(ctx context.Context, pendingUserID, code string) (domain.User, error) {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByID(ctx, pendingUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrMFANotPending
		}
		return domain.User{}, fmt.Errorf("lookup pending user: %w", err)
	}
	if !user.MFAEnabled || user.MFASecret == nil {
		return domain.User{}, ErrMFANotPending
	}

	secret, err := s.Cipher.Decrypt(*user.MFASecret)
	if err != nil {
		log.Error("stored MFA secret cannot be decrypted", "user_id", user.ID, "error", err)
		return domain.User{}, ErrMFASecretCorrupt
	}

	if !validateTOTP(code, secret) {
		log.Warn("MFA failed: wrong code", "user_id", user.ID)
		return domain.User{}, ErrInvalidTOTPCode
	}
	return user, nil
}

// ChangePassword sets a new password for userID after validating length
// and confirmation, and clears the must-change flag. Used by the forced
// change flow, where the old password was already proven at login.
func (s *AuthService) ChangePassword(ctx context.Context, userID, newPassword, confirm string) error {
	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if newPassword != confirm {
		return ErrPasswordConfirmation
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash, false); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	slogx.FromContext(ctx).Info("password changed", "user_id", userID)
	return nil
}

// ChangePasswordWithCurrent is the profile variant: the caller is already
// authenticated but must still prove the current password.
func (s *AuthService) ChangePasswordWithCurrent(ctx context.Context, userID, current, newPassword, confirm string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if err := cryptox.VerifyPassword(current, user.PasswordHash); err != nil {
		return ErrPasswordMismatch
	}
	return s.ChangePassword(ctx, userID, newPassword, confirm)
}

// validateTOTP checks a six-digit code against a base32 secret with one
// period of skew either side. Malformed input verifies as false.
func validateTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
