package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/gymslim/portal/internal/portal/domain"
	"github.com/gymslim/portal/internal/portal/store"
)

var (
	ErrInvalidTrustedDeviceDays = errors.New("trusted_device_days must be between 1 and 365")
	ErrInvalidSettingValue      = errors.New("invalid setting value")
	ErrUnknownSettingKey        = errors.New("unknown setting key")
)

// SettingsService keeps a read-mostly in-process mirror of the settings
// table. Reads are lock-free via an atomic pointer; Update writes through
// to the store and then swaps the mirror, so other replicas (and a
// concurrent reader mid-request) may briefly see the previous value.
type SettingsService struct {
	Store store.Store

	mirror atomic.Pointer[map[string]string]
}

func defaults() map[string]string {
	return map[string]string{
		domain.SettingTrustedDeviceDays: domain.SettingTrustedDeviceDaysDefault,
		domain.SettingCacheEnabled:      domain.SettingCacheEnabledDefault,
	}
}

// Load reads every persisted setting into the mirror, layered over the
// defaults. Called once at boot and safe to call again.
func (s *SettingsService) Load(ctx context.Context) error {
	values := defaults()

	persisted, err := s.Store.Settings().ListSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	for _, setting := range persisted {
		values[setting.Key] = setting.Value
	}

	s.mirror.Store(&values)
	return nil
}

// Get returns the mirrored value for key, or fallback when the key is
// absent (including before Load has run).
func (s *SettingsService) Get(key, fallback string) string {
	m := s.mirror.Load()
	if m == nil {
		return fallback
	}
	if v, ok := (*m)[key]; ok {
		return v
	}
	return fallback
}

// All returns a copy of the mirrored settings.
func (s *SettingsService) All() map[string]string {
	out := make(map[string]string)
	if m := s.mirror.Load(); m != nil {
		for k, v := range *m {
			out[k] = v
		}
	}
	return out
}

// TrustedDeviceDays returns the trusted-device lifetime in days. A value
// that fails to parse falls back to the default rather than erroring: the
// validator on Update should have prevented it, but old rows win no prizes
// for breaking logins.
func (s *SettingsService) TrustedDeviceDays() int {
	raw := s.Get(domain.SettingTrustedDeviceDays, domain.SettingTrustedDeviceDaysDefault)
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 {
		days, _ = strconv.Atoi(domain.SettingTrustedDeviceDaysDefault)
	}
	return days
}

// CacheEnabled reports the cache_enabled flag.
func (s *SettingsService) CacheEnabled() bool {
	return s.Get(domain.SettingCacheEnabled, domain.SettingCacheEnabledDefault) == "true"
}

// Validate checks a key/value pair without touching the store or the
// mirror, so callers can vet a whole batch before applying any of it.
func (s *SettingsService) Validate(key, value string) error {
	switch key {
	case domain.SettingTrustedDeviceDays:
		days, err := strconv.Atoi(value)
		if err != nil || days < 1 || days > 365 {
			return ErrInvalidTrustedDeviceDays
		}
	case domain.SettingCacheEnabled:
		if value != "true" && value != "false" {
			return fmt.Errorf("%w: cache_enabled must be true or false", ErrInvalidSettingValue)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSettingKey, key)
	}
	return nil
}

// Update validates, persists, and re-mirrors a single setting.
func (s *SettingsService) Update(ctx context.Context, key, value string) error {
	if err := s.Validate(key, value); err != nil {
		return err
	}

	if err := s.Store.Settings().UpsertSetting(ctx, domain.Setting{Key: key, Value: value}); err != nil {
		return fmt.Errorf("persist setting %s: %w", key, err)
	}

	next := s.All()
	if len(next) == 0 {
		next = defaults()
	}
	next[key] = value
	s.mirror.Store(&next)
	return nil
}
