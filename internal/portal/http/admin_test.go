package http

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gymslim/portal/internal/portal/domain"
)

func loginAdmin(t *testing.T, env *testEnv) domain.User {
	t.Helper()
	admin := env.seedUser(t, "boss", "hunter2!", func(u *domain.User) {
		u.IsAdmin = true
	})
	resp := env.login(t, "boss", "hunter2!")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	return admin
}

func TestAdminCreateUser(t *testing.T) {
	env := newTestEnv(t)
	loginAdmin(t, env)

	resp := env.do(t, http.MethodPost, "/admin/users",
		`{"username":"fred","name":"Fred Dagg","bookingEmail":"fred@example.com","password":"welcome1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID                 string `json:"id"`
		MustChangePassword bool   `json:"mustChangePassword"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.ID)
	require.True(t, created.MustChangePassword)

	// Duplicate username.
	resp = env.do(t, http.MethodPost, "/admin/users",
		`{"username":"fred","password":"welcome1"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Validation failures.
	resp = env.do(t, http.MethodPost, "/admin/users", `{"username":"","password":"welcome1"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/admin/users", `{"username":"mary","password":"x"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminUpdateUserDetails(t *testing.T) {
	env := newTestEnv(t)
	loginAdmin(t, env)
	user := env.seedUser(t, "fred", "hunter2!")

	resp := env.do(t, http.MethodPut, "/admin/users/"+user.ID,
		`{"name":"Fred Dagg","bookingEmail":"fred@gym.example"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	fresh, err := env.store.Users().GetUserByID(t.Context(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "Fred Dagg", fresh.Name)
	require.Equal(t, "fred@gym.example", fresh.BookingEmail)
	require.Equal(t, "fred", fresh.Username)

	resp = env.do(t, http.MethodPut, "/admin/users/missing-id", `{"name":"x"}`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	admin := loginAdmin(t, env)
	victim := env.seedUser(t, "fred", "hunter2!")

	resp := env.do(t, http.MethodDelete, "/admin/users/"+admin.ID, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/admin/users/"+victim.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/admin/users/"+victim.ID, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminResetPassword(t *testing.T) {
	env := newTestEnv(t)
	loginAdmin(t, env)
	user := env.seedUser(t, "fred", "hunter2!")

	resp := env.do(t, http.MethodPost, "/admin/users/"+user.ID+"/password/reset", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		TemporaryPassword string `json:"temporaryPassword"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.TemporaryPassword)

	fresh, err := env.store.Users().GetUserByID(t.Context(), user.ID)
	require.NoError(t, err)
	require.True(t, fresh.MustChangePassword)
}

func TestAdminMFAOperations(t *testing.T) {
	env := newTestEnv(t)
	loginAdmin(t, env)
	user, _ := env.seedMFAUser(t, "fred", "hunter2!")

	resp := env.do(t, http.MethodPost, "/admin/users/"+user.ID+"/mfa/disable", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	fresh, err := env.store.Users().GetUserByID(t.Context(), user.ID)
	require.NoError(t, err)
	require.False(t, fresh.MFAEnabled)
	require.False(t, fresh.MustConfigureMFA)

	resp = env.do(t, http.MethodPost, "/admin/users/"+user.ID+"/mfa/force", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	fresh, err = env.store.Users().GetUserByID(t.Context(), user.ID)
	require.NoError(t, err)
	require.True(t, fresh.MustConfigureMFA)

	resp = env.do(t, http.MethodPost, "/admin/users/missing-id/mfa/disable", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminForceMFARevokesTrustedDevices(t *testing.T) {
	env := newTestEnv(t)
	loginAdmin(t, env)
	user, _ := env.seedMFAUser(t, "fred", "hunter2!")

	_, err := env.devices.Issue(t.Context(), user.ID, "test-agent")
	require.NoError(t, err)

	resp := env.do(t, http.MethodPost, "/admin/users/"+user.ID+"/mfa/force", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	count, err := env.store.TrustedDevices().CountUserTrustedDevices(t.Context(), user.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestAdminSettings(t *testing.T) {
	env := newTestEnv(t)
	loginAdmin(t, env)

	resp := env.get(t, "/admin/settings")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var settings map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&settings))
	require.Equal(t, "30", settings[domain.SettingTrustedDeviceDays])

	resp = env.do(t, http.MethodPut, "/admin/settings", `{"trusted_device_days":"90"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&settings))
	require.Equal(t, "90", settings[domain.SettingTrustedDeviceDays])

	resp = env.do(t, http.MethodPut, "/admin/settings", `{"trusted_device_days":"500"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/admin/settings", `{"mystery":"1"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Persisted, not just mirrored.
	stored, err := env.store.Settings().ListSettings(t.Context())
	require.NoError(t, err)
	found := false
	for _, s := range stored {
		if s.Key == domain.SettingTrustedDeviceDays {
			require.Equal(t, "90", s.Value)
			found = true
		}
	}
	require.True(t, found)
}

func TestAdminSettingsRejectWholeBatch(t *testing.T) {
	env := newTestEnv(t)
	loginAdmin(t, env)

	// One bad pair rejects the lot; the valid pair must not slip through.
	resp := env.do(t, http.MethodPut, "/admin/settings",
		`{"trusted_device_days":"45","cache_enabled":"banana"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.get(t, "/admin/settings")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var settings map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&settings))
	require.Equal(t, "30", settings[domain.SettingTrustedDeviceDays])

	stored, err := env.store.Settings().ListSettings(t.Context())
	require.NoError(t, err)
	for _, s := range stored {
		require.NotEqual(t, "45", s.Value)
		require.NotEqual(t, "banana", s.Value)
	}
}

func TestAdminSettingsReloadWhenCacheDisabled(t *testing.T) {
	env := newTestEnv(t)
	loginAdmin(t, env)

	resp := env.do(t, http.MethodPut, "/admin/settings", `{"cache_enabled":"false"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// With the cache off, a row written behind the service's back shows up
	// on the next read.
	require.NoError(t, env.store.Settings().UpsertSetting(t.Context(),
		domain.Setting{Key: domain.SettingTrustedDeviceDays, Value: "7"}))

	resp = env.get(t, "/admin/settings")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var settings map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&settings))
	require.Equal(t, "7", settings[domain.SettingTrustedDeviceDays])
}
