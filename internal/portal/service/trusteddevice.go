package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gymslim/portal/internal/portal/domain"
	"github.com/gymslim/portal/internal/portal/store"
	"github.com/gymslim/portal/pkg/cryptox"
	"github.com/gymslim/portal/pkg/idx"
	"github.com/gymslim/portal/pkg/slogx"
)

// TrustedDeviceService issues and checks MFA bypass grants. The browser
// holds a raw opaque token; the store holds only its SHA-256 fingerprint,
// so a database read never yields a usable cookie value.
type TrustedDeviceService struct {
	Store    store.Store
	Settings *SettingsService
}

// TrustedDeviceGrant is the result of Issue: the raw token for the cookie
// and the expiry to stamp on it.
type TrustedDeviceGrant struct {
	Token     string
	ExpiresAt time.Time
}

// Issue creates a new grant for userID. The lifetime comes from the
// trusted_device_days setting at the moment of issue; changing the setting
// later does not shorten grants already handed out.
func (s *TrustedDeviceService) Issue(ctx context.Context, userID, userAgent string) (TrustedDeviceGrant, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return TrustedDeviceGrant{}, fmt.Errorf("generate trusted device token: %w", err)
	}

	now := time.Now().UTC()
	grant := TrustedDeviceGrant{
		Token:     token,
		ExpiresAt: now.Add(time.Duration(s.Settings.TrustedDeviceDays()) * 24 * time.Hour),
	}

	err = s.Store.TrustedDevices().CreateTrustedDevice(ctx, domain.TrustedDevice{
		ID:        idx.New().String(),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(token),
		UserAgent: userAgent,
		ExpiresAt: grant.ExpiresAt,
		CreatedAt: now,
	})
	if err != nil {
		return TrustedDeviceGrant{}, fmt.Errorf("store trusted device: %w", err)
	}
	return grant, nil
}

// Check reports whether rawToken is a live grant for userID. Expired rows
// are deleted on the way through, so expiry needs no background sweeper.
// An empty token, an unknown token, or a token issued to a different user
// all report false without error.
func (s *TrustedDeviceService) Check(ctx context.Context, rawToken, userID string) (bool, error) {
	if rawToken == "" {
		return false, nil
	}

	device, err := s.Store.TrustedDevices().GetTrustedDevice(ctx, cryptox.FingerprintToken(rawToken), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup trusted device: %w", err)
	}

	if device.Expired(time.Now().UTC()) {
		if err := s.Store.TrustedDevices().DeleteTrustedDevice(ctx, device.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			slogx.FromContext(ctx).Warn("failed to prune expired trusted device",
				"device_id", device.ID, "error", err)
		}
		return false, nil
	}
	return true, nil
}

// RevokeAll removes every grant for userID. Called when MFA is disabled or
// forcibly reset so stale bypasses cannot outlive the secret they guarded.
func (s *TrustedDeviceService) RevokeAll(ctx context.Context, userID string) error {
	if err := s.Store.TrustedDevices().DeleteUserTrustedDevices(ctx, userID); err != nil {
		return fmt.Errorf("revoke trusted devices: %w", err)
	}
	return nil
}
