package service

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gymslim/portal/internal/portal/domain"
	"github.com/gymslim/portal/internal/portal/store"
	"github.com/gymslim/portal/internal/portal/store/drivers/sqlite"
	"github.com/gymslim/portal/pkg/cryptox"
	"github.com/gymslim/portal/pkg/idx"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func newTestCipher(t *testing.T) *cryptox.SecretCipher {
	t.Helper()
	cipher, err := cryptox.NewSecretCipher(bytes.Repeat([]byte{0x42}, cryptox.KeySize))
	require.NoError(t, err)
	return cipher
}

func newSettings(t *testing.T, st store.Store) *SettingsService {
	t.Helper()
	settings := &SettingsService{Store: st}
	require.NoError(t, settings.Load(context.Background()))
	return settings
}

// seedUser inserts a user with the given password and returns the record.
func seedUser(t *testing.T, st store.Store, username, password string, mutate ...func(*domain.User)) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Name:         "Test User",
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, fn := range mutate {
		fn(&u)
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

// seedMFAUser inserts a user with MFA enabled and returns the record plus
// the plaintext base32 secret for generating codes.
func seedMFAUser(t *testing.T, st store.Store, cipher *cryptox.SecretCipher, username, password string) (domain.User, string) {
	t.Helper()

	const secret = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	encrypted, err := cipher.Encrypt(secret)
	require.NoError(t, err)

	u := seedUser(t, st, username, password)
	require.NoError(t, st.Users().EnableMFA(context.Background(), u.ID, encrypted))

	u, err = st.Users().GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	return u, secret
}
