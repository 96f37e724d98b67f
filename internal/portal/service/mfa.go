package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/gymslim/portal/internal/portal/domain"
	"github.com/gymslim/portal/internal/portal/store"
	"github.com/gymslim/portal/pkg/cryptox"
	"github.com/gymslim/portal/pkg/slogx"
)

var ErrNoEnrollmentPending = errors.New("no MFA enrollment pending")

const qrImageSize = 200

// MFAService handles TOTP enrollment and teardown. The plaintext secret
// exists only between Enroll and Activate (held in the caller's session);
// what reaches the users table is always cipher output.
type MFAService struct {
	Store   store.Store
	Cipher  *cryptox.SecretCipher
	Devices *TrustedDeviceService
	Issuer  string
}

// Enrollment is what the profile page needs to show an authenticator
// prompt: the QR image inline, plus the secret and URI for manual entry.
type Enrollment struct {
	Base32Secret  string
	OtpauthURL    string
	QRCodeDataURL string
}

// Enroll generates a fresh TOTP secret for the user. Nothing is persisted;
// calling Enroll again simply produces a replacement secret, and the
// caller overwrites whatever pending secret it was holding.
func (s *MFAService) Enroll(ctx context.Context, user domain.User) (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.MFALabel(),
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("generate TOTP key: %w", err)
	}

	dataURL, err := qrDataURL(key)
	if err != nil {
		return Enrollment{}, fmt.Errorf("render QR code: %w", err)
	}

	return Enrollment{
		Base32Secret:  key.Secret(),
		OtpauthURL:    key.URL(),
		QRCodeDataURL: dataURL,
	}, nil
}

// Activate turns a pending enrollment on: the submitted code must verify
// against pendingSecret, and only then is the secret encrypted and
// persisted with mfa_enabled set. A wrong code leaves everything as it
// was so the user can retry against the same QR.
func (s *MFAService) Activate(ctx context.Context, userID, pendingSecret, code string) error {
	if pendingSecret == "" {
		return ErrNoEnrollmentPending
	}
	if !validateTOTP(code, pendingSecret) {
		return ErrInvalidTOTPCode
	}

	encrypted, err := s.Cipher.Encrypt(pendingSecret)
	if err != nil {
		return fmt.Errorf("encrypt MFA secret: %w", err)
	}
	if err := s.Store.Users().EnableMFA(ctx, userID, encrypted); err != nil {
		return fmt.Errorf("enable MFA: %w", err)
	}

	slogx.FromContext(ctx).Info("MFA enabled", "user_id", userID)
	return nil
}

// Disable is the self-service path: the user re-proves their password,
// then the MFA fields are cleared and every trusted device revoked.
func (s *MFAService) Disable(ctx context.Context, userID, password string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return ErrPasswordMismatch
	}
	return s.disable(ctx, userID, false)
}

// AdminDisable clears MFA without a password check. For admins helping a
// user who lost their authenticator.
func (s *MFAService) AdminDisable(ctx context.Context, userID string) error {
	return s.disable(ctx, userID, false)
}

// AdminForceEnroll clears MFA and flags the account so the user cannot use
// the portal until they complete a fresh enrollment.
func (s *MFAService) AdminForceEnroll(ctx context.Context, userID string) error {
	return s.disable(ctx, userID, true)
}

func (s *MFAService) disable(ctx context.Context, userID string, forceReconfigure bool) error {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().DisableMFA(ctx, userID, forceReconfigure); err != nil {
			return fmt.Errorf("disable MFA: %w", err)
		}
		// Trusted devices exist only to bypass MFA; none may survive it.
		if err := tx.TrustedDevices().DeleteUserTrustedDevices(ctx, userID); err != nil {
			return fmt.Errorf("revoke trusted devices: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("MFA disabled",
		"user_id", userID, "force_reconfigure", forceReconfigure)
	return nil
}

// qrDataURL renders the provisioning URI as an inline PNG data URL.
func qrDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(qrImageSize, qrImageSize)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
