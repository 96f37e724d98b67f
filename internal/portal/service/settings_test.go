package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gymslim/portal/internal/portal/domain"
)

func TestSettingsDefaults(t *testing.T) {
	st := newTestStore(t)
	settings := newSettings(t, st)

	require.Equal(t, 30, settings.TrustedDeviceDays())
	require.True(t, settings.CacheEnabled())
	require.Equal(t, "fallback", settings.Get("no_such_key", "fallback"))
}

func TestSettingsUpdateRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	settings := newSettings(t, st)

	require.NoError(t, settings.Update(ctx, domain.SettingTrustedDeviceDays, "90"))
	require.Equal(t, 90, settings.TrustedDeviceDays())

	require.NoError(t, settings.Update(ctx, domain.SettingCacheEnabled, "false"))
	require.False(t, settings.CacheEnabled())

	// A fresh service reading the same store sees the persisted values.
	again := newSettings(t, st)
	require.Equal(t, 90, again.TrustedDeviceDays())
	require.False(t, again.CacheEnabled())
}

func TestSettingsValidation(t *testing.T) {
	ctx := context.Background()
	settings := newSettings(t, newTestStore(t))

	for _, bad := range []string{"0", "-1", "366", "abc", ""} {
		require.ErrorIs(t, settings.Update(ctx, domain.SettingTrustedDeviceDays, bad),
			ErrInvalidTrustedDeviceDays, "value %q", bad)
	}
	require.NoError(t, settings.Update(ctx, domain.SettingTrustedDeviceDays, "1"))
	require.NoError(t, settings.Update(ctx, domain.SettingTrustedDeviceDays, "365"))

	require.ErrorIs(t, settings.Update(ctx, domain.SettingCacheEnabled, "yes"), ErrInvalidSettingValue)
	require.ErrorIs(t, settings.Update(ctx, "mystery", "1"), ErrUnknownSettingKey)
}

func TestSettingsUnparseableRowFallsBack(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	// A row written outside the validator must not break grant issuance.
	require.NoError(t, st.Settings().UpsertSetting(ctx, domain.Setting{
		Key: domain.SettingTrustedDeviceDays, Value: "not-a-number",
	}))

	settings := newSettings(t, st)
	require.Equal(t, 30, settings.TrustedDeviceDays())
}
